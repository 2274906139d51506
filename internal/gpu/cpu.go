package gpu

import (
	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/meshlet"
)

// CPUDecoder runs the kernel's work on the CPU. It is the fallback when no
// adapter is available and the reference the GPU path is tested against.
type CPUDecoder struct{}

// Decode decodes the first n meshlets and transforms positions by viewProj.
func (CPUDecoder) Decode(words []uint32, n int, viewProj math.Mat4) (*Output, error) {
	decoded, err := meshlet.DecodeAll(words, n)
	if err != nil {
		return nil, err
	}
	out := &Output{Meshlets: make([]Meshlet, n)}
	for k, d := range decoded {
		m := &out.Meshlets[k]
		m.Color = d.Color
		m.Triangles = d.Triangles
		m.Vertices = make([]Vertex, len(d.Vertices))
		for i, v := range d.Vertices {
			m.Vertices[i] = Vertex{
				Clip:     viewProj.TransformPoint(v.Position),
				Normal:   v.Normal,
				TexCoord: v.TexCoord,
			}
		}
	}
	return out, nil
}

// Close is a no-op.
func (CPUDecoder) Close() {}
