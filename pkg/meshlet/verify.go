package meshlet

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/cluster"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// Verify decodes every meshlet of an encoded buffer and checks it against
// the source: counts, widths, triangle order, and each position within one
// quantization step of its axis.
func Verify(m *mesh.Mesh, meshlets []cluster.Meshlet, words []uint32) error {
	for k := range meshlets {
		ml := &meshlets[k]
		d, err := DecodeMeshlet(words, k)
		if err != nil {
			return err
		}
		h := &d.Header
		if int(h.VertexCount) != len(ml.Vertices) || int(h.TriangleCount) != ml.TriangleCount() {
			return fmt.Errorf("%w: meshlet %d has %d/%d vertices/triangles, source %d/%d",
				ErrMismatch, k, h.VertexCount, h.TriangleCount, len(ml.Vertices), ml.TriangleCount())
		}
		if h.Bounds != ml.Bounds {
			return fmt.Errorf("%w: meshlet %d bounds", ErrMismatch, k)
		}

		for t, tri := range d.Triangles {
			for c := 0; c < 3; c++ {
				if want := uint32(ml.Triangles[3*t+c]); tri[c] != want {
					return fmt.Errorf("%w: meshlet %d triangle %d corner %d is %d, want %d",
						ErrMismatch, k, t, c, tri[c], want)
				}
			}
		}

		ext := h.Bounds.Extent()
		for i, v := range ml.Vertices {
			src := m.Vertices[v].Position
			got := d.Vertices[i].Position
			for axis := 0; axis < 3; axis++ {
				e := ext.Axis(axis)
				limit := e*float32(QuantizationStep(h.Size.Axis(axis))) + positionSlack(h.Bounds.Min.Axis(axis), e)
				if diff := math32.Abs(got.Axis(axis) - src.Axis(axis)); diff > limit {
					return fmt.Errorf("%w: meshlet %d vertex %d axis %d off by %g (limit %g)",
						ErrMismatch, k, i, axis, diff, limit)
				}
			}
		}
	}
	return nil
}

// positionSlack covers the single float32 rounding of the reconstructed
// coordinate: half an ulp of the largest magnitude on the axis.
func positionSlack(lo, extent float32) float32 {
	return (math32.Abs(lo) + extent) * 0x1p-24
}
