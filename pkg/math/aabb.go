package math

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns an inverted box that any Extend call replaces.
func EmptyAABB() AABB {
	return AABB{
		Min: Splat(math32.Inf(1)),
		Max: Splat(math32.Inf(-1)),
	}
}

// AABBFromPoints computes the component-wise min and max of points.
// An empty slice yields EmptyAABB.
func AABBFromPoints(points []Vec3) AABB {
	b := EmptyAABB()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// Extend returns the box grown to contain p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// IsEmpty reports whether the box contains no point.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extent returns max - min per axis.
func (b AABB) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// Diagonal returns the length of the box diagonal.
func (b AABB) Diagonal() float32 {
	return b.Extent().Length()
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Normalize maps p into [0,1] per axis relative to the box.
// Axes with zero extent map to 0 instead of dividing by zero.
func (b AABB) Normalize(p Vec3) Vec3 {
	e := b.Extent()
	return Vec3{
		normalizeAxis(p.X, b.Min.X, e.X),
		normalizeAxis(p.Y, b.Min.Y, e.Y),
		normalizeAxis(p.Z, b.Min.Z, e.Z),
	}
}

func normalizeAxis(v, lo, extent float32) float32 {
	if extent <= 0 {
		return 0
	}
	t := (v - lo) / extent
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
