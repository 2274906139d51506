// Package debug provides debug visualization utilities for the viewer.
package debug

import (
	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/meshlet"
)

// LineStride is the number of floats per line vertex: position (xyzw) and
// color (rgb), matching the renderer's triangle layout.
const LineStride = 7

// BoxVertexCount is the number of line vertices per box (12 edges x 2).
const BoxVertexCount = 24

// boxEdges lists corner index pairs. Corner i takes max on axis a when bit a
// of i is set.
var boxEdges = [12][2]int{
	{0, 1}, {1, 5}, {5, 4}, {4, 0}, // bottom
	{2, 3}, {3, 7}, {7, 6}, {6, 2}, // top
	{0, 2}, {1, 3}, {5, 7}, {4, 6}, // vertical
}

func corner(b math.AABB, i int) math.Vec3 {
	c := b.Min
	if i&1 != 0 {
		c.X = b.Max.X
	}
	if i&2 != 0 {
		c.Y = b.Max.Y
	}
	if i&4 != 0 {
		c.Z = b.Max.Z
	}
	return c
}

// AppendBoxLines appends the wireframe of b in one color.
func AppendBoxLines(dst []float32, b math.AABB, color math.Vec3) []float32 {
	for _, e := range boxEdges {
		for _, i := range e {
			p := corner(b, i)
			dst = append(dst, p.X, p.Y, p.Z, 1, color.X, color.Y, color.Z)
		}
	}
	return dst
}

// MeshletBoundsLines returns the wireframe of every header's bounds in that
// meshlet's debug color.
func MeshletBoundsLines(headers []meshlet.Header) []float32 {
	dst := make([]float32, 0, len(headers)*BoxVertexCount*LineStride)
	for k := range headers {
		dst = AppendBoxLines(dst, headers[k].Bounds, meshlet.DebugColor(uint32(k))) //nolint:gosec // meshlet index
	}
	return dst
}
