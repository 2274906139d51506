package meshlet

import "encoding/binary"

// BitWriter packs values least-significant-bit first into 32-bit words.
type BitWriter struct {
	words []uint32
	n     uint64
}

// Write appends the low `bits` bits of value. bits must be in [0, 32].
func (w *BitWriter) Write(bits uint32, value uint32) {
	if bits == 0 {
		return
	}
	value &= mask(bits)

	off := uint32(w.n & 31)
	idx := int(w.n >> 5)
	if off == 0 {
		w.words = append(w.words, 0)
	}
	w.words[idx] |= value << off
	if off+bits > 32 {
		w.words = append(w.words, value>>(32-off))
	}
	w.n += uint64(bits)
}

// Append writes every bit of other after the bits already in w.
func (w *BitWriter) Append(other *BitWriter) {
	full := int(other.n >> 5)
	for _, word := range other.words[:full] {
		w.Write(32, word)
	}
	if rest := uint32(other.n & 31); rest > 0 {
		w.Write(rest, other.words[full])
	}
}

// Len returns the number of bits written.
func (w *BitWriter) Len() uint64 {
	return w.n
}

// Words returns the packed words. The last word is zero-filled past Len.
func (w *BitWriter) Words() []uint32 {
	return w.words
}

// Bytes returns the stream byte-aligned and zero-padded to a 4-byte boundary.
func (w *BitWriter) Bytes() []byte {
	out := make([]byte, 4*len(w.words))
	for i, word := range w.words {
		binary.LittleEndian.PutUint32(out[4*i:], word)
	}
	return out
}

// mask returns a mask of the low n bits; n = 32 yields all ones.
func mask(n uint32) uint32 {
	return uint32(1)<<n - 1
}
