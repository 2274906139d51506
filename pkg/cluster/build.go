package cluster

import (
	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// Build partitions m into meshlets. Meshlets grow greedily across shared
// vertices: the next triangle is the adjacent one adding the fewest new
// vertices, ties broken towards triangles that finish off a vertex and then
// by distance to the meshlet center. When a meshlet has no adjacent
// candidate left it pulls in the nearest free triangle, and a new meshlet is
// seeded next to the previous one.
func Build(m *mesh.Mesh, opts Options) ([]Meshlet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	b := newBuilder(m, opts)
	b.run()

	if err := Validate(b.out, len(m.Vertices)); err != nil {
		return nil, err
	}
	return b.out, nil
}

type builder struct {
	mesh *mesh.Mesh
	opts Options

	// Vertex -> triangle adjacency in CSR form.
	adjOffsets []int
	adjTris    []int32
	live       []int // unemitted triangles per vertex

	emitted   []bool
	remaining int
	centroids []math.Vec3
	normals   []math.Vec3
	grid      *triGrid

	// Meshlet under construction.
	local     []int16 // parent vertex -> local index, -1 when absent
	verts     []uint32
	tris      []uint8
	centerSum math.Vec3
	normalSum math.Vec3

	out []Meshlet
}

func newBuilder(m *mesh.Mesh, opts Options) *builder {
	triCount := m.TriangleCount()
	b := &builder{
		mesh:      m,
		opts:      opts,
		live:      make([]int, len(m.Vertices)),
		emitted:   make([]bool, triCount),
		remaining: triCount,
		centroids: make([]math.Vec3, triCount),
		normals:   make([]math.Vec3, triCount),
		local:     make([]int16, len(m.Vertices)),
	}

	for i := range b.local {
		b.local[i] = -1
	}

	for _, idx := range m.Indices {
		b.live[idx]++
	}
	b.adjOffsets = make([]int, len(m.Vertices)+1)
	for v, n := range b.live {
		b.adjOffsets[v+1] = b.adjOffsets[v] + n
	}
	b.adjTris = make([]int32, len(m.Indices))
	fill := make([]int, len(m.Vertices))
	copy(fill, b.adjOffsets[:len(m.Vertices)])
	for t := 0; t < triCount; t++ {
		tri := m.Triangle(t)
		for _, v := range tri {
			b.adjTris[fill[v]] = int32(t)
			fill[v]++
		}

		p0 := m.Vertices[tri[0]].Position
		p1 := m.Vertices[tri[1]].Position
		p2 := m.Vertices[tri[2]].Position
		b.centroids[t] = p0.Add(p1).Add(p2).Scale(1.0 / 3.0)
		b.normals[t] = p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
	}

	b.grid = newTriGrid(b.centroids, m.Bounds())
	return b
}

func (b *builder) run() {
	seedFrom := math.Vec3{}
	haveSeed := false

	for b.remaining > 0 {
		t := -1
		if len(b.tris) > 0 {
			t = b.bestAdjacent()
			if t < 0 {
				t = b.grid.nearest(b.center(), b.emitted)
				if t >= 0 && !b.fits(t) {
					seedFrom = b.center()
					haveSeed = true
					b.flush()
				}
			}
		}
		if t < 0 {
			if haveSeed {
				t = b.grid.nearest(seedFrom, b.emitted)
			} else {
				t = b.grid.first(b.emitted)
			}
		}

		b.add(t)

		if len(b.tris)/3 == b.opts.MaxTriangles || (len(b.verts) == b.opts.MaxVertices && b.bestAdjacent() < 0) {
			seedFrom = b.center()
			haveSeed = true
			b.flush()
		}
	}
	b.flush()
}

// extra returns how many vertices triangle t would add to the current meshlet.
func (b *builder) extra(t int) int {
	n := 0
	for _, v := range b.mesh.Triangle(t) {
		if b.local[v] < 0 {
			n++
		}
	}
	return n
}

func (b *builder) fits(t int) bool {
	return len(b.verts)+b.extra(t) <= b.opts.MaxVertices && len(b.tris)/3 < b.opts.MaxTriangles
}

func (b *builder) center() math.Vec3 {
	return b.centerSum.Scale(1 / float32(len(b.tris)/3))
}

// bestAdjacent returns the best unemitted triangle sharing a vertex with the
// current meshlet that still fits, or -1.
func (b *builder) bestAdjacent() int {
	if len(b.tris) == 0 {
		return -1
	}

	center := b.center()
	cone := b.normalSum.Normalize()

	best := -1
	var bestExtra, bestLast int
	var bestScore float32
	for _, v := range b.verts {
		for _, t32 := range b.adjTris[b.adjOffsets[v]:b.adjOffsets[v+1]] {
			t := int(t32)
			if b.emitted[t] || !b.fits(t) {
				continue
			}

			extra := b.extra(t)
			last := 1
			for _, tv := range b.mesh.Triangle(t) {
				if b.live[tv] == 1 {
					last = 0
					break
				}
			}

			d := b.centroids[t].Sub(center).Length()
			score := d
			if b.opts.ConeWeight > 0 {
				spread := 1 - b.normals[t].Dot(cone)
				score = d*(1-b.opts.ConeWeight) + spread*b.opts.ConeWeight
			}

			if best < 0 || extra < bestExtra ||
				(extra == bestExtra && last < bestLast) ||
				(extra == bestExtra && last == bestLast && score < bestScore) {
				best, bestExtra, bestLast, bestScore = t, extra, last, score
			}
		}
	}
	return best
}

func (b *builder) add(t int) {
	for _, v := range b.mesh.Triangle(t) {
		if b.local[v] < 0 {
			b.local[v] = int16(len(b.verts))
			b.verts = append(b.verts, v)
		}
		b.tris = append(b.tris, uint8(b.local[v]))
		b.live[v]--
	}
	b.emitted[t] = true
	b.remaining--
	b.centerSum = b.centerSum.Add(b.centroids[t])
	b.normalSum = b.normalSum.Add(b.normals[t])
}

func (b *builder) flush() {
	if len(b.tris) == 0 {
		return
	}

	m := Meshlet{
		Vertices:  append([]uint32(nil), b.verts...),
		Triangles: append([]uint8(nil), b.tris...),
	}
	m.Bounds = ComputeBounds(b.mesh, m.Vertices)
	b.out = append(b.out, m)

	for _, v := range b.verts {
		b.local[v] = -1
	}
	b.verts = b.verts[:0]
	b.tris = b.tris[:0]
	b.centerSum = math.Vec3{}
	b.normalSum = math.Vec3{}
}
