package cluster

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// gridMesh builds an n x n quad grid in the XY plane with a bump in Z.
func gridMesh(n int) *mesh.Mesh {
	m := &mesh.Mesh{}
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			u := float32(x) / float32(n)
			v := float32(y) / float32(n)
			m.Vertices = append(m.Vertices, mesh.Vertex{
				Position: math.Vec3{X: float32(x), Y: float32(y), Z: u * v},
				TexCoord: math.Vec2{X: u, Y: v},
				Normal:   math.Vec3{Z: 1},
			})
		}
	}
	stride := uint32(n + 1)
	for y := uint32(0); y < uint32(n); y++ {
		for x := uint32(0); x < uint32(n); x++ {
			i := y*stride + x
			m.Indices = append(m.Indices, i, i+1, i+stride, i+1, i+stride+1, i+stride)
		}
	}
	return m
}

func checkPartition(t *testing.T, m *mesh.Mesh, meshlets []Meshlet, opts Options) {
	t.Helper()

	seen := make(map[[3]uint32]int)
	for i := 0; i < m.TriangleCount(); i++ {
		seen[m.Triangle(i)]++
	}

	total := 0
	for i, ml := range meshlets {
		if len(ml.Vertices) > opts.MaxVertices {
			t.Errorf("meshlet %d: %d vertices > %d", i, len(ml.Vertices), opts.MaxVertices)
		}
		if ml.TriangleCount() > opts.MaxTriangles {
			t.Errorf("meshlet %d: %d triangles > %d", i, ml.TriangleCount(), opts.MaxTriangles)
		}
		if ml.TriangleCount() == 0 {
			t.Errorf("meshlet %d is empty", i)
		}
		for j := 0; j < ml.TriangleCount(); j++ {
			var tri [3]uint32
			for k := 0; k < 3; k++ {
				l := ml.Triangles[j*3+k]
				if int(l) >= len(ml.Vertices) {
					t.Fatalf("meshlet %d: local index %d out of range", i, l)
				}
				tri[k] = ml.Vertices[l]
			}
			seen[tri]--
			total++
		}
		if got, want := ml.Bounds, ComputeBounds(m, ml.Vertices); got != want {
			t.Errorf("meshlet %d: bounds %v, want %v", i, got, want)
		}
	}

	if total != m.TriangleCount() {
		t.Errorf("emitted %d triangles, want %d", total, m.TriangleCount())
	}
	for tri, n := range seen {
		if n != 0 {
			t.Errorf("triangle %v emitted %d times too few", tri, n)
		}
	}
}

func TestBuildRespectsCaps(t *testing.T) {
	tests := []struct {
		name string
		n    int
		opts Options
	}{
		{"default", 40, DefaultOptions()},
		{"small", 20, Options{MaxVertices: 16, MaxTriangles: 12}},
		{"minimal", 6, Options{MaxVertices: 3, MaxTriangles: 1}},
		{"cone", 24, Options{MaxVertices: 64, MaxTriangles: 124, ConeWeight: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := gridMesh(tt.n)
			meshlets, err := Build(m, tt.opts)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			checkPartition(t, m, meshlets, tt.opts)
		})
	}
}

// soupMesh builds triangles over random vertices with no spatial coherence.
// Every tenth triangle repeats a corner.
func soupMesh(seed uint64, vertices, triangles int) *mesh.Mesh {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m := &mesh.Mesh{}
	for i := 0; i < vertices; i++ {
		m.Vertices = append(m.Vertices, mesh.Vertex{
			Position: math.Vec3{X: r.Float32()*200 - 100, Y: r.Float32() * 3, Z: r.Float32()*50 - 25},
			Normal:   math.Vec3{Y: 1},
		})
	}
	for t := 0; t < triangles; t++ {
		a, b, c := r.Uint32N(uint32(vertices)), r.Uint32N(uint32(vertices)), r.Uint32N(uint32(vertices))
		if t%10 == 0 {
			b = a
		}
		m.Indices = append(m.Indices, a, b, c)
	}
	return m
}

// fanMesh builds n triangles around one hub vertex.
func fanMesh(n int) *mesh.Mesh {
	m := &mesh.Mesh{Vertices: []mesh.Vertex{{Normal: math.Vec3{Z: 1}}}}
	for i := 0; i <= n; i++ {
		a := 2 * math32.Pi * float32(i) / float32(n)
		m.Vertices = append(m.Vertices, mesh.Vertex{
			Position: math.Vec3{X: math32.Cos(a), Y: math32.Sin(a)},
			Normal:   math.Vec3{Z: 1},
		})
	}
	for i := uint32(1); i <= uint32(n); i++ {
		m.Indices = append(m.Indices, 0, i, i+1)
	}
	return m
}

func TestBuildIrregularMeshes(t *testing.T) {
	tests := []struct {
		name string
		m    *mesh.Mesh
		opts Options
	}{
		{"soup", soupMesh(1, 300, 2000), DefaultOptions()},
		{"soup dense", soupMesh(7, 40, 1500), DefaultOptions()},
		{"soup small caps", soupMesh(3, 500, 800), Options{MaxVertices: 8, MaxTriangles: 5}},
		{"fan", fanMesh(1000), DefaultOptions()},
		{"fan small caps", fanMesh(300), Options{MaxVertices: 4, MaxTriangles: 124}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meshlets, err := Build(tt.m, tt.opts)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			checkPartition(t, tt.m, meshlets, tt.opts)
			if err := Validate(meshlets, len(tt.m.Vertices)); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestBuildSingleTriangle(t *testing.T) {
	m := &mesh.Mesh{
		Vertices: []mesh.Vertex{
			{Position: math.Vec3{}},
			{Position: math.Vec3{X: 1, Y: 0.5}},
			{Position: math.Vec3{Y: 1, Z: 1}},
		},
		Indices: []uint32{0, 1, 2},
	}

	meshlets, err := Build(m, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(meshlets) != 1 {
		t.Fatalf("got %d meshlets, want 1", len(meshlets))
	}
	ml := meshlets[0]
	if len(ml.Vertices) != 3 || ml.TriangleCount() != 1 {
		t.Fatalf("got %d vertices / %d triangles", len(ml.Vertices), ml.TriangleCount())
	}
	for k, l := range ml.Triangles {
		if ml.Vertices[l] != uint32(k) {
			t.Errorf("corner %d maps to vertex %d", k, ml.Vertices[l])
		}
	}
}

func TestBuildDegenerateExtent(t *testing.T) {
	// Every vertex on one point.
	m := &mesh.Mesh{
		Vertices: make([]mesh.Vertex, 6),
		Indices:  []uint32{0, 1, 2, 3, 4, 5, 0, 2, 4},
	}
	meshlets, err := Build(m, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkPartition(t, m, meshlets, DefaultOptions())
}

func TestBuildDisconnected(t *testing.T) {
	// Islands of single triangles spread over a line.
	m := &mesh.Mesh{}
	for i := 0; i < 300; i++ {
		base := uint32(len(m.Vertices))
		x := float32(i) * 10
		m.Vertices = append(m.Vertices,
			mesh.Vertex{Position: math.Vec3{X: x}},
			mesh.Vertex{Position: math.Vec3{X: x + 1}},
			mesh.Vertex{Position: math.Vec3{X: x, Y: 1}},
		)
		m.Indices = append(m.Indices, base, base+1, base+2)
	}

	opts := DefaultOptions()
	meshlets, err := Build(m, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checkPartition(t, m, meshlets, opts)
	// 64 vertices hold 21 three-vertex islands.
	if want := (300 + 20) / 21; len(meshlets) != want {
		t.Errorf("got %d meshlets, want %d", len(meshlets), want)
	}
}

func TestBuildInvalidOptions(t *testing.T) {
	m := gridMesh(2)
	tests := []struct {
		name string
		opts Options
	}{
		{"too many vertices", Options{MaxVertices: 65, MaxTriangles: 124}},
		{"too few vertices", Options{MaxVertices: 2, MaxTriangles: 124}},
		{"too many triangles", Options{MaxVertices: 64, MaxTriangles: 125}},
		{"zero triangles", Options{MaxVertices: 64, MaxTriangles: 0}},
		{"cone weight", Options{MaxVertices: 64, MaxTriangles: 124, ConeWeight: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(m, tt.opts)
			if !errors.Is(err, ErrInvalidLimits) {
				t.Errorf("Build() error = %v, want ErrInvalidLimits", err)
			}
		})
	}
}

func TestBuildRejectsInvalidMesh(t *testing.T) {
	m := &mesh.Mesh{
		Vertices: make([]mesh.Vertex, 3),
		Indices:  []uint32{0, 1, 3},
	}
	if _, err := Build(m, DefaultOptions()); !errors.Is(err, mesh.ErrIndexOutOfRange) {
		t.Errorf("Build() error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		meshlet Meshlet
		wantErr error
	}{
		{"ok", Meshlet{Vertices: []uint32{0, 1, 2}, Triangles: []uint8{0, 1, 2}}, nil},
		{"empty", Meshlet{Vertices: []uint32{0}}, ErrEmptyMeshlet},
		{"local index", Meshlet{Vertices: []uint32{0, 1}, Triangles: []uint8{0, 1, 2}}, ErrLocalIndexInvalid},
		{"parent index", Meshlet{Vertices: []uint32{0, 1, 9}, Triangles: []uint8{0, 1, 2}}, mesh.ErrIndexOutOfRange},
		{"too many vertices", Meshlet{Vertices: make([]uint32, 65), Triangles: []uint8{0, 1, 2}}, ErrCapacityExceeded},
		{"too many triangles", Meshlet{Vertices: []uint32{0, 1, 2}, Triangles: make([]uint8, 3*125)}, ErrCapacityExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]Meshlet{tt.meshlet}, 3)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
