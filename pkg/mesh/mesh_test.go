package mesh

import (
	"errors"
	stdmath "math"
	"testing"

	"github.com/Faultbox/tessera/pkg/math"
)

func vtx(x, y, z float32) Vertex {
	return Vertex{Position: math.Vec3{X: x, Y: y, Z: z}, Normal: math.Vec3{Z: 1}}
}

func TestValidate(t *testing.T) {
	good := &Mesh{
		Vertices: []Vertex{vtx(0, 0, 0), vtx(1, 0, 0), vtx(0, 1, 0)},
		Indices:  []uint32{0, 1, 2},
	}

	tests := []struct {
		name    string
		mesh    *Mesh
		wantErr error
	}{
		{"valid", good, nil},
		{"no triangles", &Mesh{Vertices: good.Vertices}, ErrNoTriangles},
		{"ragged indices", &Mesh{Vertices: good.Vertices, Indices: []uint32{0, 1}}, ErrIndexCount},
		{"index out of range", &Mesh{Vertices: good.Vertices, Indices: []uint32{0, 1, 3}}, ErrIndexOutOfRange},
		{
			"nan position",
			&Mesh{
				Vertices: []Vertex{vtx(float32(stdmath.NaN()), 0, 0), vtx(1, 0, 0), vtx(0, 1, 0)},
				Indices:  []uint32{0, 1, 2},
			},
			ErrNonFiniteVertex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeduplicate(t *testing.T) {
	// Two triangles of a quad written face-varying: six corners, four unique.
	m := &Mesh{
		Vertices: []Vertex{
			vtx(0, 0, 0), vtx(1, 0, 0), vtx(1, 1, 0),
			vtx(0, 0, 0), vtx(1, 1, 0), vtx(0, 1, 0),
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}

	d := Deduplicate(m)
	if len(d.Vertices) != 4 {
		t.Fatalf("got %d vertices, want 4", len(d.Vertices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i := range want {
		if d.Indices[i] != want[i] {
			t.Errorf("index %d = %d, want %d", i, d.Indices[i], want[i])
		}
	}
	for i, idx := range d.Indices {
		if d.Vertices[idx] != m.Vertices[m.Indices[i]] {
			t.Errorf("corner %d changed: got %v, want %v", i, d.Vertices[idx], m.Vertices[m.Indices[i]])
		}
	}
}

func TestDeduplicateKeepsAttributeSeams(t *testing.T) {
	a := vtx(0, 0, 0)
	b := a
	b.TexCoord = math.Vec2{X: 1}

	m := &Mesh{
		Vertices: []Vertex{a, vtx(1, 0, 0), vtx(0, 1, 0), b},
		Indices:  []uint32{0, 1, 2, 3, 1, 2},
	}
	if got := len(Deduplicate(m).Vertices); got != 4 {
		t.Errorf("got %d vertices, want 4 (uv seam must not merge)", got)
	}
}

func TestDeduplicateDropsUnreferenced(t *testing.T) {
	m := &Mesh{
		Vertices: []Vertex{vtx(9, 9, 9), vtx(0, 0, 0), vtx(1, 0, 0), vtx(0, 1, 0)},
		Indices:  []uint32{1, 2, 3},
	}
	d := Deduplicate(m)
	if len(d.Vertices) != 3 {
		t.Fatalf("got %d vertices, want 3", len(d.Vertices))
	}
	if d.Vertices[0] != m.Vertices[1] {
		t.Errorf("first vertex = %v, want %v", d.Vertices[0], m.Vertices[1])
	}
}

func TestOutOfRangeTexCoords(t *testing.T) {
	in := vtx(0, 0, 0)
	out := vtx(1, 0, 0)
	out.TexCoord = math.Vec2{X: 2, Y: 0.5}
	m := &Mesh{Vertices: []Vertex{in, out}}
	if got := m.OutOfRangeTexCoords(); got != 1 {
		t.Errorf("OutOfRangeTexCoords() = %d, want 1", got)
	}
}
