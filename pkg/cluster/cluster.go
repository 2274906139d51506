// Package cluster partitions an indexed mesh into meshlets: bounded groups of
// at most MaxVertices vertices and MaxTriangles triangles, the unit a GPU
// workgroup decodes.
package cluster

import (
	"errors"
	"fmt"

	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// Hard capacity limits. The decoder's output arrays and the header's
// 6-bit vertex count and 7-bit triangle count fields are sized from these.
const (
	MaxVertices  = 64
	MaxTriangles = 124
)

// Partition errors.
var (
	ErrInvalidLimits     = errors.New("meshlet limits out of range")
	ErrCapacityExceeded  = errors.New("meshlet exceeds capacity")
	ErrEmptyMeshlet      = errors.New("meshlet has no triangles")
	ErrLocalIndexInvalid = errors.New("meshlet local index out of range")
)

// Meshlet is one cluster of a mesh.
type Meshlet struct {
	// Vertices maps local vertex index to the parent mesh's vertex index.
	Vertices []uint32
	// Triangles holds local vertex indices, three per triangle.
	Triangles []uint8
	// Bounds is the box over the meshlet's vertex positions, computed once
	// when the meshlet is built.
	Bounds math.AABB
}

// TriangleCount returns the number of triangles.
func (m *Meshlet) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Options controls partitioning.
type Options struct {
	MaxVertices  int
	MaxTriangles int
	// ConeWeight trades spatial compactness for normal-cone tightness.
	// The asset builder always uses 0.
	ConeWeight float32
}

// DefaultOptions returns the hard caps with a cone weight of 0.
func DefaultOptions() Options {
	return Options{
		MaxVertices:  MaxVertices,
		MaxTriangles: MaxTriangles,
		ConeWeight:   0,
	}
}

func (o Options) validate() error {
	if o.MaxVertices < 3 || o.MaxVertices > MaxVertices {
		return fmt.Errorf("%w: max vertices %d not in [3, %d]", ErrInvalidLimits, o.MaxVertices, MaxVertices)
	}
	if o.MaxTriangles < 1 || o.MaxTriangles > MaxTriangles {
		return fmt.Errorf("%w: max triangles %d not in [1, %d]", ErrInvalidLimits, o.MaxTriangles, MaxTriangles)
	}
	if o.ConeWeight < 0 || o.ConeWeight > 1 {
		return fmt.Errorf("%w: cone weight %v not in [0, 1]", ErrInvalidLimits, o.ConeWeight)
	}
	return nil
}

// Validate checks every meshlet against the hard caps and the parent
// vertex count. A violation is an internal invariant failure.
func Validate(meshlets []Meshlet, vertexCount int) error {
	for i := range meshlets {
		m := &meshlets[i]
		if len(m.Vertices) > MaxVertices {
			return fmt.Errorf("%w: meshlet %d has %d vertices", ErrCapacityExceeded, i, len(m.Vertices))
		}
		if m.TriangleCount() > MaxTriangles {
			return fmt.Errorf("%w: meshlet %d has %d triangles", ErrCapacityExceeded, i, m.TriangleCount())
		}
		if m.TriangleCount() == 0 || len(m.Triangles)%3 != 0 {
			return fmt.Errorf("%w: meshlet %d", ErrEmptyMeshlet, i)
		}
		for _, v := range m.Vertices {
			if int(v) >= vertexCount {
				return fmt.Errorf("%w: meshlet %d references vertex %d of %d", mesh.ErrIndexOutOfRange, i, v, vertexCount)
			}
		}
		for _, l := range m.Triangles {
			if int(l) >= len(m.Vertices) {
				return fmt.Errorf("%w: meshlet %d local index %d of %d", ErrLocalIndexInvalid, i, l, len(m.Vertices))
			}
		}
	}
	return nil
}

// ComputeBounds returns the box over the meshlet's vertex positions.
func ComputeBounds(m *mesh.Mesh, vertices []uint32) math.AABB {
	b := math.EmptyAABB()
	for _, v := range vertices {
		b = b.Extend(m.Vertices[v].Position)
	}
	return b
}
