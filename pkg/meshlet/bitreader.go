package meshlet

import (
	"encoding/binary"
	"fmt"
)

// BitReader reads LSB-first fields from a word buffer, mirroring the GPU
// kernel's reader.
type BitReader struct {
	words  []uint32
	offset uint64
}

// NewBitReader returns a reader positioned at bit offset.
func NewBitReader(words []uint32, offset uint64) *BitReader {
	return &BitReader{words: words, offset: offset}
}

// Offset returns the current bit position.
func (r *BitReader) Offset() uint64 {
	return r.offset
}

// Seek moves to an absolute bit position.
func (r *BitReader) Seek(offset uint64) {
	r.offset = offset
}

// Remaining returns how many bits are left before the end of the buffer.
func (r *BitReader) Remaining() uint64 {
	total := uint64(len(r.words)) * 32
	if r.offset >= total {
		return 0
	}
	return total - r.offset
}

// ReadBitsUnchecked reads an n-bit field, n in [1, 32], without checking
// that it lies inside the buffer. A field that straddles a word boundary
// takes its high bits from the next word. Callers must establish the bounds
// first; an overrun panics on the slice index.
func (r *BitReader) ReadBitsUnchecked(n uint32) uint32 {
	bit := uint32(r.offset & 31)
	idx := r.offset >> 5
	r.offset += uint64(n)

	value := r.words[idx] >> bit
	if bit+n > 32 {
		value |= r.words[idx+1] << (32 - bit)
	}
	return value & mask(n)
}

// ReadBits reads an n-bit field, returning ErrOutOfBounds instead of
// reading past the end.
func (r *BitReader) ReadBits(n uint32) (uint32, error) {
	if n == 0 || n > 32 {
		return 0, fmt.Errorf("%w: width %d", ErrOutOfBounds, n)
	}
	if uint64(n) > r.Remaining() {
		return 0, fmt.Errorf("%w: %d bits at offset %d of %d", ErrOutOfBounds, n, r.offset, uint64(len(r.words))*32)
	}
	return r.ReadBitsUnchecked(n), nil
}

// WordsFromBytes reinterprets an encoded buffer as little-endian words.
func WordsFromBytes(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnalignedBuffer, len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return words, nil
}
