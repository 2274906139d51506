package cluster

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/math"
)

// triGrid buckets triangle centroids into a uniform grid for nearest free
// triangle queries. Emitted triangles are dropped lazily while scanning.
type triGrid struct {
	centroids []math.Vec3
	origin    math.Vec3
	cell      float32
	dims      [3]int
	cells     [][]int32
	cursor    int // lowest cell that may still hold a free triangle
}

// Roughly eight triangles per cell.
const trianglesPerCell = 8

func newTriGrid(centroids []math.Vec3, bounds math.AABB) *triGrid {
	g := &triGrid{centroids: centroids, origin: bounds.Min}

	ext := bounds.Extent()
	maxExt := math32.Max(ext.X, math32.Max(ext.Y, ext.Z))
	cellCount := len(centroids)/trianglesPerCell + 1
	if maxExt <= 0 {
		g.cell = 1
	} else {
		// Pick the cell size from the volume, ignoring flat axes.
		vol := float32(1)
		axes := 0
		for _, e := range [3]float32{ext.X, ext.Y, ext.Z} {
			if e > maxExt*1e-3 {
				vol *= e
				axes++
			}
		}
		g.cell = math32.Pow(vol/float32(cellCount), 1/float32(axes))
		if g.cell <= 0 || math32.IsNaN(g.cell) || math32.IsInf(g.cell, 0) {
			g.cell = maxExt
		}
	}

	for i, e := range [3]float32{ext.X, ext.Y, ext.Z} {
		g.dims[i] = 1
		if e > maxExt*1e-3 {
			g.dims[i] = min(int(e/g.cell)+1, 1024)
		}
	}
	g.cells = make([][]int32, g.dims[0]*g.dims[1]*g.dims[2])
	for t, c := range centroids {
		i := g.index(g.coord(c))
		g.cells[i] = append(g.cells[i], int32(t))
	}
	return g
}

func (g *triGrid) coord(p math.Vec3) [3]int {
	var c [3]int
	for i := 0; i < 3; i++ {
		v := int((p.Axis(i) - g.origin.Axis(i)) / g.cell)
		if v < 0 {
			v = 0
		}
		if v >= g.dims[i] {
			v = g.dims[i] - 1
		}
		c[i] = v
	}
	return c
}

func (g *triGrid) index(c [3]int) int {
	return (c[2]*g.dims[1]+c[1])*g.dims[0] + c[0]
}

// compact drops emitted triangles from cell i and returns what is left.
func (g *triGrid) compact(i int, emitted []bool) []int32 {
	cell := g.cells[i]
	n := 0
	for _, t := range cell {
		if !emitted[t] {
			cell[n] = t
			n++
		}
	}
	g.cells[i] = cell[:n]
	return g.cells[i]
}

// first returns the lowest-numbered free triangle of the first non-empty
// cell, or -1 when every triangle is emitted.
func (g *triGrid) first(emitted []bool) int {
	for ; g.cursor < len(g.cells); g.cursor++ {
		if cell := g.compact(g.cursor, emitted); len(cell) > 0 {
			return int(cell[0])
		}
	}
	return -1
}

// nearest returns the free triangle whose centroid is closest to p, or -1.
// Shells of cells are searched outward until the next shell cannot hold
// anything closer than the best hit.
func (g *triGrid) nearest(p math.Vec3, emitted []bool) int {
	c := g.coord(p)
	maxR := g.dims[0]
	if g.dims[1] > maxR {
		maxR = g.dims[1]
	}
	if g.dims[2] > maxR {
		maxR = g.dims[2]
	}

	best := -1
	bestDist := math32.Inf(1)
	for r := 0; r <= maxR; r++ {
		if best >= 0 && float32(r-1)*g.cell > bestDist {
			break
		}
		g.shell(c, r, func(i int) {
			for _, t := range g.compact(i, emitted) {
				d := g.distance(p, int(t))
				if d < bestDist {
					best, bestDist = int(t), d
				}
			}
		})
	}
	return best
}

func (g *triGrid) distance(p math.Vec3, t int) float32 {
	return g.centroids[t].Sub(p).Length()
}

// shell calls fn for every cell at Chebyshev distance r from c.
func (g *triGrid) shell(c [3]int, r int, fn func(int)) {
	for z := c[2] - r; z <= c[2]+r; z++ {
		if z < 0 || z >= g.dims[2] {
			continue
		}
		for y := c[1] - r; y <= c[1]+r; y++ {
			if y < 0 || y >= g.dims[1] {
				continue
			}
			for x := c[0] - r; x <= c[0]+r; x++ {
				if x < 0 || x >= g.dims[0] {
					continue
				}
				onShell := x == c[0]-r || x == c[0]+r ||
					y == c[1]-r || y == c[1]+r ||
					z == c[2]-r || z == c[2]+r
				if !onShell {
					continue
				}
				fn(g.index([3]int{x, y, z}))
			}
		}
	}
}
