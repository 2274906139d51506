package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/tessera/pkg/math"
)

// MLT container errors.
var (
	ErrInvalidMLTMagic       = errors.New("invalid MLT magic: expected 'TMLT'")
	ErrUnsupportedMLTVersion = errors.New("unsupported MLT version")
	ErrTruncatedMLTData      = errors.New("truncated MLT data")
	ErrMLTSizeMismatch       = errors.New("MLT payload size mismatch")
)

// MLTVersion is the container version this package writes.
const MLTVersion = 1

const (
	mltMagic      = "TMLT"
	mltHeaderSize = 56

	mltFlagCompressed = 1 << 0
)

// MLT is a meshlet asset: the packed meshlet buffer plus what a loader needs
// to know about it without decoding headers.
//
// Layout (little-endian):
//
//	magic "TMLT" | version u16 | flags u16 | meshlets u32
//	source vertices u32 | source triangles u32 | tolerance f32
//	bounds min xyz, max xyz f32 | raw length u32 | stored length u32
//	stored payload (zstd frame when flags&1)
type MLT struct {
	Version        uint16
	MeshletCount   uint32
	VertexCount    uint32
	TriangleCount  uint32
	ErrorTolerance float32
	Bounds         math.AABB
	// Compressed reports how the payload was stored.
	Compressed bool
	// Data is the uncompressed meshlet buffer.
	Data []byte
}

// MLTWriteOptions controls payload storage.
type MLTWriteOptions struct {
	Compress bool
	// Level is 1 (fastest) to 4 (best compression). 0 selects 2.
	Level int
}

// ParseMLT parses an MLT container from raw bytes.
func ParseMLT(data []byte) (*MLT, error) {
	if len(data) < mltHeaderSize {
		return nil, ErrTruncatedMLTData
	}
	if string(data[0:4]) != mltMagic {
		return nil, ErrInvalidMLTMagic
	}

	r := bytes.NewReader(data[4:mltHeaderSize])
	var hdr struct {
		Version      uint16
		Flags        uint16
		Meshlets     uint32
		Vertices     uint32
		Triangles    uint32
		Tolerance    float32
		Bounds       [6]float32
		RawLength    uint32
		StoredLength uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedMLTData)
	}
	if hdr.Version != MLTVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMLTVersion, hdr.Version)
	}

	stored := data[mltHeaderSize:]
	if uint64(len(stored)) < uint64(hdr.StoredLength) {
		return nil, fmt.Errorf("%w: payload has %d of %d bytes", ErrTruncatedMLTData, len(stored), hdr.StoredLength)
	}
	stored = stored[:hdr.StoredLength]

	m := &MLT{
		Version:        hdr.Version,
		MeshletCount:   hdr.Meshlets,
		VertexCount:    hdr.Vertices,
		TriangleCount:  hdr.Triangles,
		ErrorTolerance: hdr.Tolerance,
		Bounds: math.AABB{
			Min: math.Vec3{X: hdr.Bounds[0], Y: hdr.Bounds[1], Z: hdr.Bounds[2]},
			Max: math.Vec3{X: hdr.Bounds[3], Y: hdr.Bounds[4], Z: hdr.Bounds[5]},
		},
		Compressed: hdr.Flags&mltFlagCompressed != 0,
	}

	if m.Compressed {
		raw, err := decompressZstd(stored, int(hdr.RawLength))
		if err != nil {
			return nil, fmt.Errorf("decompressing MLT payload: %w", err)
		}
		m.Data = raw
	} else {
		m.Data = append([]byte(nil), stored...)
	}

	if uint64(len(m.Data)) != uint64(hdr.RawLength) {
		return nil, fmt.Errorf("%w: got %d bytes, header says %d", ErrMLTSizeMismatch, len(m.Data), hdr.RawLength)
	}
	if len(m.Data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not word aligned", ErrMLTSizeMismatch, len(m.Data))
	}
	return m, nil
}

// ParseMLTFile parses the MLT file at path.
func ParseMLTFile(path string) (*MLT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MLT file: %w", err)
	}
	return ParseMLT(data)
}

// Marshal serializes the container.
func (m *MLT) Marshal(opts MLTWriteOptions) ([]byte, error) {
	if len(m.Data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not word aligned", ErrMLTSizeMismatch, len(m.Data))
	}

	stored := m.Data
	var flags uint16
	if opts.Compress {
		var err error
		if stored, err = compressZstd(m.Data, opts.Level); err != nil {
			return nil, fmt.Errorf("compressing MLT payload: %w", err)
		}
		flags |= mltFlagCompressed
	}

	buf := bytes.NewBuffer(make([]byte, 0, mltHeaderSize+len(stored)))
	buf.WriteString(mltMagic)
	fields := []any{
		uint16(MLTVersion),
		flags,
		m.MeshletCount,
		m.VertexCount,
		m.TriangleCount,
		m.ErrorTolerance,
		m.Bounds.Min.Array(),
		m.Bounds.Max.Array(),
		uint32(len(m.Data)),
		uint32(len(stored)),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	buf.Write(stored)
	return buf.Bytes(), nil
}

// WriteFile serializes the container to path.
func (m *MLT) WriteFile(path string, opts MLTWriteOptions) error {
	data, err := m.Marshal(opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing MLT file: %w", err)
	}
	return nil
}

// Pooled zstd coders, one encoder pool per level.
var (
	zstdEncPools [4]sync.Pool
	zstdDecPool  = sync.Pool{
		New: func() any {
			dec, _ := zstd.NewReader(nil)
			return dec
		},
	}
)

func init() {
	for i := range zstdEncPools {
		level := zstd.EncoderLevel(i + 1)
		zstdEncPools[i].New = func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
			return enc
		}
	}
}

func compressZstd(data []byte, level int) ([]byte, error) {
	if level == 0 {
		level = int(zstd.SpeedDefault)
	}
	if level < 1 || level > len(zstdEncPools) {
		return nil, fmt.Errorf("compression level %d not in [1, %d]", level, len(zstdEncPools))
	}

	pool := &zstdEncPools[level-1]
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

// maxSizeHint caps the preallocation taken from an untrusted header.
const maxSizeHint = 64 << 20

func decompressZstd(data []byte, sizeHint int) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	return dec.DecodeAll(data, make([]byte, 0, min(sizeHint, maxSizeHint)))
}
