package gpu

import (
	"encoding/binary"
	"errors"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/cluster"
	"github.com/Faultbox/tessera/pkg/math"
)

// ErrUnavailable is returned when no GPU decoder can be created.
var ErrUnavailable = errors.New("gpu: decoder unavailable")

// Vertex is one decoded vertex transformed to clip space.
type Vertex struct {
	Clip     math.Vec4
	Normal   math.Vec3
	TexCoord math.Vec2
}

// Meshlet is the kernel output for one workgroup.
type Meshlet struct {
	Color     math.Vec3
	Vertices  []Vertex
	Triangles [][3]uint32
}

// Output holds the decoded meshlets in buffer order.
type Output struct {
	Meshlets []Meshlet
}

// TriangleCount returns the total number of triangles across meshlets.
func (o *Output) TriangleCount() int {
	n := 0
	for i := range o.Meshlets {
		n += len(o.Meshlets[i].Triangles)
	}
	return n
}

// MeshletDecoder decodes the first n meshlets of a packed buffer.
type MeshletDecoder interface {
	Decode(words []uint32, n int, viewProj math.Mat4) (*Output, error)
	Close()
}

// dispatchSize splits n workgroups over x and y so neither exceeds the
// per-dimension limit.
func dispatchSize(n int) (x, y uint32) {
	if n <= maxDispatchSize {
		return uint32(n), 1 //nolint:gosec // n bounded above
	}
	return maxDispatchSize, uint32((n + maxDispatchSize - 1) / maxDispatchSize) //nolint:gosec // meshlet counts fit uint32
}

func packParams(viewProj math.Mat4, n int) []byte {
	buf := make([]byte, paramsSize)
	for i, f := range viewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math32.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[64:], uint32(n)) //nolint:gosec // meshlet counts fit uint32
	return buf
}

func packWords(words []uint32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func readF32(b []byte, off int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

// unpackOutput converts the kernel's readback buffers into an Output.
func unpackOutput(vertices, triangles, meshlets []byte, n int) *Output {
	out := &Output{Meshlets: make([]Meshlet, n)}
	for k := range out.Meshlets {
		info := meshlets[k*meshletStride:]
		vc := min(int(binary.LittleEndian.Uint32(info[16:])), cluster.MaxVertices)
		tc := min(int(binary.LittleEndian.Uint32(info[20:])), cluster.MaxTriangles)
		m := &out.Meshlets[k]
		m.Color = math.Vec3{X: readF32(info, 0), Y: readF32(info, 4), Z: readF32(info, 8)}
		m.Vertices = make([]Vertex, vc)
		for v := range m.Vertices {
			rec := vertices[(k*cluster.MaxVertices+v)*vertexStride:]
			m.Vertices[v] = Vertex{
				Clip:     math.Vec4{readF32(rec, 0), readF32(rec, 4), readF32(rec, 8), readF32(rec, 12)},
				Normal:   math.Vec3{X: readF32(rec, 16), Y: readF32(rec, 20), Z: readF32(rec, 24)},
				TexCoord: math.Vec2{X: readF32(rec, 32), Y: readF32(rec, 36)},
			}
		}
		m.Triangles = make([][3]uint32, tc)
		for t := range m.Triangles {
			rec := triangles[(k*cluster.MaxTriangles+t)*triangleStride:]
			m.Triangles[t] = [3]uint32{
				binary.LittleEndian.Uint32(rec),
				binary.LittleEndian.Uint32(rec[4:]),
				binary.LittleEndian.Uint32(rec[8:]),
			}
		}
	}
	return out
}

// TriangleListStride is the number of floats per vertex in TriangleList.
const TriangleListStride = 7

// TriangleList flattens the output into a non-indexed triangle list of
// position (xyzw) and meshlet color (rgb) per vertex.
func (o *Output) TriangleList() []float32 {
	data := make([]float32, 0, o.TriangleCount()*3*TriangleListStride)
	for i := range o.Meshlets {
		m := &o.Meshlets[i]
		for _, tri := range m.Triangles {
			for _, l := range tri {
				c := m.Vertices[l].Clip
				data = append(data, c[0], c[1], c[2], c[3], m.Color.X, m.Color.Y, m.Color.Z)
			}
		}
	}
	return data
}
