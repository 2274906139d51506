// Package mesh holds the indexed triangle mesh consumed by the meshlet
// pipeline: vertex attributes plus a flat triangle index list.
package mesh

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/math"
)

// Mesh validation errors.
var (
	ErrNoTriangles     = errors.New("mesh has no triangles")
	ErrIndexCount      = errors.New("index count is not a multiple of 3")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNonFiniteVertex = errors.New("vertex has non-finite component")
)

// Vertex is one mesh vertex. Plain value, compared by its bits.
type Vertex struct {
	Position math.Vec3
	TexCoord math.Vec2
	Normal   math.Vec3
}

// Mesh is an indexed triangle list. Three indices per triangle.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle returns the three vertex indices of triangle i.
func (m *Mesh) Triangle(i int) [3]uint32 {
	return [3]uint32{m.Indices[i*3], m.Indices[i*3+1], m.Indices[i*3+2]}
}

// Positions returns the vertex positions in vertex order.
func (m *Mesh) Positions() []math.Vec3 {
	out := make([]math.Vec3, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = v.Position
	}
	return out
}

// Bounds returns the bounding box over all vertex positions.
func (m *Mesh) Bounds() math.AABB {
	b := math.EmptyAABB()
	for _, v := range m.Vertices {
		b = b.Extend(v.Position)
	}
	return b
}

// Validate checks index count, index range and that every vertex is finite.
func (m *Mesh) Validate() error {
	if len(m.Indices) == 0 {
		return ErrNoTriangles
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrIndexCount, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("%w: index %d at %d, %d vertices", ErrIndexOutOfRange, idx, i, len(m.Vertices))
		}
	}
	for i, v := range m.Vertices {
		if !v.finite() {
			return fmt.Errorf("%w: vertex %d", ErrNonFiniteVertex, i)
		}
	}
	return nil
}

// OutOfRangeTexCoords counts vertices whose texture coordinate lies outside [0,1].
func (m *Mesh) OutOfRangeTexCoords() int {
	n := 0
	for _, v := range m.Vertices {
		if !v.TexCoord.InUnitRange() {
			n++
		}
	}
	return n
}

func (v Vertex) finite() bool {
	for _, f := range [...]float32{
		v.Position.X, v.Position.Y, v.Position.Z,
		v.TexCoord.X, v.TexCoord.Y,
		v.Normal.X, v.Normal.Y, v.Normal.Z,
	} {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return false
		}
	}
	return true
}
