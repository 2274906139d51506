package meshlet

import (
	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// SelectVertexSize picks the position width of each axis for one meshlet.
//
// For every axis the widths 4..30 are tried in ascending order and the first
// one whose worst round trip error over the meshlet's vertices, scaled by
// axis extent over the box diagonal, is below tolerance wins. Axes that no
// width satisfies use 32 bits. A zero-extent axis always takes the minimum
// width since every vertex normalizes to 0.
func SelectVertexSize(m *mesh.Mesh, vertices []uint32, bounds math.AABB, tolerance float32) VertexSizeDesc {
	ext := bounds.Extent()
	diag := float64(bounds.Diagonal())

	normalized := make([][3]float64, len(vertices))
	for i, v := range vertices {
		p := m.Vertices[v].Position
		for axis := 0; axis < 3; axis++ {
			normalized[i][axis] = normalizeAxis(p.Axis(axis), bounds.Min.Axis(axis), bounds.Max.Axis(axis))
		}
	}

	var size [3]uint32
	for axis := 0; axis < 3; axis++ {
		extent := float64(ext.Axis(axis))
		if extent <= 0 {
			size[axis] = MinPositionBits
			continue
		}
		size[axis] = FullBits
		for b := uint32(MinPositionBits); b <= MaxSearchBits; b++ {
			if axisError(normalized, axis, b, extent, diag) < float64(tolerance) {
				size[axis] = b
				break
			}
		}
	}
	return VertexSizeDesc{X: size[0], Y: size[1], Z: size[2]}
}

// axisError returns the worst diagonal-relative round trip error of one axis
// at width b.
func axisError(normalized [][3]float64, axis int, b uint32, extent, diag float64) float64 {
	if diag == 0 {
		return 0
	}
	var worst float64
	for _, p := range normalized {
		t := p[axis]
		d := dequantizeUnit(quantizeUnit(t, b), b) - t
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst * extent / diag
}
