// Package meshlet implements the meshlet bitstream codec: per-meshlet
// adaptive position quantization, an LSB-first bit writer and reader, the
// encoder producing the packed buffer, and a CPU mirror of the GPU decoder.
//
// Buffer layout, all fields least-significant-bit first in little-endian
// 32-bit words:
//
//	header[0] .. header[N-1]   HeaderBits each, back to back
//	payload[0] .. payload[N-1] vertex records then triangle records
//	zero padding to a 4-byte boundary
//
// Header.DataOffset is the absolute bit offset of a meshlet's payload.
package meshlet

import (
	"math/bits"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/cluster"
	"github.com/Faultbox/tessera/pkg/math"
)

// Capacity limits shared with the partitioner and the GPU kernel.
const (
	MaxVertices  = cluster.MaxVertices
	MaxTriangles = cluster.MaxTriangles
)

// Fixed attribute widths.
const (
	MinPositionBits = 4
	MaxSearchBits   = 30
	FullBits        = 32
	TexCoordBits    = 32
	NormalBits      = 8
)

// Header field widths, in write order.
const (
	boundsFieldBits        = 32 // per component, min.xyz then max.xyz
	positionBitsFieldBits  = 5  // per axis, stores width-1
	texCoordBitsFieldBits  = 5  // per component, stores width-1
	normalBitsFieldBits    = 3  // stores width-1
	indexBitsFieldBits     = 5  // stores width-1
	vertexCountFieldBits   = 6  // stores count-1
	triangleCountFieldBits = 7  // stores count-1
	dataOffsetFieldBits    = 32
)

// HeaderBits is the size of one header record.
const HeaderBits = 6*boundsFieldBits +
	3*positionBitsFieldBits +
	2*texCoordBitsFieldBits +
	normalBitsFieldBits +
	indexBitsFieldBits +
	vertexCountFieldBits +
	triangleCountFieldBits +
	dataOffsetFieldBits

// VertexSizeDesc holds the position bit width of each axis, in [4, 32].
type VertexSizeDesc struct {
	X, Y, Z uint32
}

// Axis returns the width of axis i (0=x, 1=y, 2=z).
func (d VertexSizeDesc) Axis(i int) uint32 {
	switch i {
	case 0:
		return d.X
	case 1:
		return d.Y
	default:
		return d.Z
	}
}

// VertexBits returns the size of one vertex record.
func (d VertexSizeDesc) VertexBits() uint32 {
	return d.X + d.Y + d.Z + 2*TexCoordBits + 3*NormalBits
}

// IndexBits returns the width of a local triangle index for a meshlet with
// vertexCount vertices: ceil(log2(n)), at least 1.
func IndexBits(vertexCount int) uint32 {
	if vertexCount <= 2 {
		return 1
	}
	return uint32(bits.Len32(uint32(vertexCount - 1)))
}

// Header is the decoded form of one header record.
type Header struct {
	Bounds        math.AABB
	Size          VertexSizeDesc
	IndexBits     uint32
	VertexCount   uint32
	TriangleCount uint32
	DataOffset    uint32
}

// VertexBits returns the per-vertex record size.
func (h *Header) VertexBits() uint32 {
	return h.Size.VertexBits()
}

// PayloadBits returns the size of the meshlet's vertex and triangle records.
func (h *Header) PayloadBits() uint64 {
	return uint64(h.VertexCount)*uint64(h.VertexBits()) +
		uint64(h.TriangleCount)*3*uint64(h.IndexBits)
}

// VertexOffset returns the bit offset of vertex record i.
func (h *Header) VertexOffset(i uint32) uint64 {
	return uint64(h.DataOffset) + uint64(i)*uint64(h.VertexBits())
}

// TriangleOffset returns the bit offset of triangle record i.
func (h *Header) TriangleOffset(i uint32) uint64 {
	return uint64(h.DataOffset) +
		uint64(h.VertexCount)*uint64(h.VertexBits()) +
		uint64(i)*3*uint64(h.IndexBits)
}

func (h *Header) write(w *BitWriter) {
	for _, v := range h.Bounds.Min.Array() {
		w.Write(boundsFieldBits, math32.Float32bits(v))
	}
	for _, v := range h.Bounds.Max.Array() {
		w.Write(boundsFieldBits, math32.Float32bits(v))
	}
	w.Write(positionBitsFieldBits, h.Size.X-1)
	w.Write(positionBitsFieldBits, h.Size.Y-1)
	w.Write(positionBitsFieldBits, h.Size.Z-1)
	w.Write(texCoordBitsFieldBits, TexCoordBits-1)
	w.Write(texCoordBitsFieldBits, TexCoordBits-1)
	w.Write(normalBitsFieldBits, NormalBits-1)
	w.Write(indexBitsFieldBits, h.IndexBits-1)
	w.Write(vertexCountFieldBits, h.VertexCount-1)
	w.Write(triangleCountFieldBits, h.TriangleCount-1)
	w.Write(dataOffsetFieldBits, h.DataOffset)
}

// readHeader reads one record. Fixed texcoord and normal widths are read
// and checked against the values this codec writes.
func readHeader(r *BitReader) (Header, error) {
	var h Header
	var f [6]float32
	for i := range f {
		f[i] = math32.Float32frombits(r.ReadBitsUnchecked(boundsFieldBits))
	}
	h.Bounds.Min = math.Vec3{X: f[0], Y: f[1], Z: f[2]}
	h.Bounds.Max = math.Vec3{X: f[3], Y: f[4], Z: f[5]}

	h.Size.X = r.ReadBitsUnchecked(positionBitsFieldBits) + 1
	h.Size.Y = r.ReadBitsUnchecked(positionBitsFieldBits) + 1
	h.Size.Z = r.ReadBitsUnchecked(positionBitsFieldBits) + 1
	u := r.ReadBitsUnchecked(texCoordBitsFieldBits) + 1
	v := r.ReadBitsUnchecked(texCoordBitsFieldBits) + 1
	n := r.ReadBitsUnchecked(normalBitsFieldBits) + 1
	h.IndexBits = r.ReadBitsUnchecked(indexBitsFieldBits) + 1
	h.VertexCount = r.ReadBitsUnchecked(vertexCountFieldBits) + 1
	h.TriangleCount = r.ReadBitsUnchecked(triangleCountFieldBits) + 1
	h.DataOffset = r.ReadBitsUnchecked(dataOffsetFieldBits)

	if u != TexCoordBits || v != TexCoordBits || n != NormalBits {
		return h, ErrInvalidHeader
	}
	if h.TriangleCount > MaxTriangles {
		return h, ErrInvalidHeader
	}
	for i := 0; i < 3; i++ {
		if h.Size.Axis(i) < MinPositionBits {
			return h, ErrInvalidHeader
		}
	}
	return h, nil
}
