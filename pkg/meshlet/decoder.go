package meshlet

import (
	"fmt"

	"github.com/Faultbox/tessera/pkg/math"
)

// WorkgroupSize is the number of lanes cooperating on one meshlet.
const WorkgroupSize = 32

// Vertex is a decoded vertex in object space.
type Vertex struct {
	Position math.Vec3
	TexCoord math.Vec2
	Normal   math.Vec3
}

// Decoded is one meshlet reconstructed from the buffer.
type Decoded struct {
	Header    Header
	Vertices  []Vertex
	Triangles [][3]uint32
	// Color is the per-meshlet debug color.
	Color math.Vec3
}

// ParseHeaders reads the first n header records.
func ParseHeaders(words []uint32, n int) ([]Header, error) {
	if n < 0 || uint64(n)*HeaderBits > uint64(len(words))*32 {
		return nil, fmt.Errorf("%w: %d headers in %d words", ErrOutOfBounds, n, len(words))
	}
	headers := make([]Header, n)
	r := NewBitReader(words, 0)
	for i := range headers {
		h, err := readHeader(r)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		headers[i] = h
	}
	return headers, nil
}

// DecodeHeader reads the header of meshlet k.
func DecodeHeader(words []uint32, k int) (Header, error) {
	end := uint64(k+1) * HeaderBits
	if k < 0 || end > uint64(len(words))*32 {
		return Header{}, fmt.Errorf("%w: header %d in %d words", ErrOutOfBounds, k, len(words))
	}
	h, err := readHeader(NewBitReader(words, uint64(k)*HeaderBits))
	if err != nil {
		return h, fmt.Errorf("header %d: %w", k, err)
	}
	return h, nil
}

// DecodeMeshlet reconstructs meshlet k the way one GPU workgroup does:
// lanes stride over vertices and triangles by WorkgroupSize. The payload
// range is checked once up front; field reads then use the unchecked path.
func DecodeMeshlet(words []uint32, k int) (*Decoded, error) {
	h, err := DecodeHeader(words, k)
	if err != nil {
		return nil, err
	}
	if end := uint64(h.DataOffset) + h.PayloadBits(); end > uint64(len(words))*32 {
		return nil, fmt.Errorf("%w: meshlet %d payload ends at bit %d of %d", ErrOutOfBounds, k, end, uint64(len(words))*32)
	}

	d := &Decoded{
		Header:    h,
		Vertices:  make([]Vertex, h.VertexCount),
		Triangles: make([][3]uint32, h.TriangleCount),
		Color:     DebugColor(uint32(k)),
	}
	for lane := uint32(0); lane < WorkgroupSize; lane++ {
		for v := lane; v < h.VertexCount; v += WorkgroupSize {
			d.Vertices[v] = decodeVertex(words, &h, v)
		}
		for t := lane; t < h.TriangleCount; t += WorkgroupSize {
			d.Triangles[t] = decodeTriangle(words, &h, t)
		}
	}
	for t, tri := range d.Triangles {
		for _, l := range tri {
			if l >= h.VertexCount {
				return nil, fmt.Errorf("%w: meshlet %d triangle %d index %d", ErrInvalidHeader, k, t, l)
			}
		}
	}
	return d, nil
}

// DecodeAll decodes the first n meshlets.
func DecodeAll(words []uint32, n int) ([]*Decoded, error) {
	out := make([]*Decoded, n)
	for k := range out {
		d, err := DecodeMeshlet(words, k)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func decodeVertex(words []uint32, h *Header, v uint32) Vertex {
	r := NewBitReader(words, h.VertexOffset(v))
	qx := r.ReadBitsUnchecked(h.Size.X)
	qy := r.ReadBitsUnchecked(h.Size.Y)
	qz := r.ReadBitsUnchecked(h.Size.Z)
	qu := r.ReadBitsUnchecked(TexCoordBits)
	qv := r.ReadBitsUnchecked(TexCoordBits)
	nx := r.ReadBitsUnchecked(NormalBits)
	ny := r.ReadBitsUnchecked(NormalBits)
	nz := r.ReadBitsUnchecked(NormalBits)

	lo, hi := h.Bounds.Min, h.Bounds.Max
	return Vertex{
		Position: math.Vec3{
			X: dequantizePosition(qx, h.Size.X, lo.X, hi.X),
			Y: dequantizePosition(qy, h.Size.Y, lo.Y, hi.Y),
			Z: dequantizePosition(qz, h.Size.Z, lo.Z, hi.Z),
		},
		TexCoord: math.Vec2{X: Dequantize(qu, TexCoordBits), Y: Dequantize(qv, TexCoordBits)},
		Normal:   math.Vec3{X: decodeNormal(nx), Y: decodeNormal(ny), Z: decodeNormal(nz)},
	}
}

func decodeTriangle(words []uint32, h *Header, t uint32) [3]uint32 {
	r := NewBitReader(words, h.TriangleOffset(t))
	return [3]uint32{
		r.ReadBitsUnchecked(h.IndexBits),
		r.ReadBitsUnchecked(h.IndexBits),
		r.ReadBitsUnchecked(h.IndexBits),
	}
}

// DebugColor hashes a meshlet index to an RGB color in [0, 1]. The GPU
// kernel computes the same PCG hash.
func DebugColor(group uint32) math.Vec3 {
	h := pcgHash(group)
	return math.Vec3{
		X: float32(h&0xff) / 255,
		Y: float32((h>>8)&0xff) / 255,
		Z: float32((h>>16)&0xff) / 255,
	}
}

func pcgHash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}
