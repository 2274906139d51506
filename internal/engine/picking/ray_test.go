package picking

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/meshlet"
)

func TestIntersectAABB(t *testing.T) {
	box := math.AABB{Min: math.Splat(-1), Max: math.Splat(1)}
	tests := []struct {
		name string
		ray  Ray
		hit  bool
		t    float32
	}{
		{"hit from outside", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}, true, 4},
		{"inside returns exit", Ray{Origin: math.Vec3{}, Direction: math.Vec3{X: 1}}, true, 1},
		{"pointing away", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: 1}}, false, 0},
		{"parallel outside slab", Ray{Origin: math.Vec3{X: 2, Z: 5}, Direction: math.Vec3{Z: -1}}, false, 0},
		{"miss diagonal", Ray{Origin: math.Vec3{X: 3, Z: 5}, Direction: math.Vec3{Y: 1, Z: -1}.Normalize()}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("expected hit %v, got %v", tt.hit, hit)
			}
			if hit && math32.Abs(d-tt.t) > 1e-5 {
				t.Errorf("expected t %f, got %f", tt.t, d)
			}
		})
	}
}

func TestScreenToRayCenter(t *testing.T) {
	eye := math.Vec3{Z: 10}
	vp := math.Perspective(1, 1, 0.1, 100).Mul(math.LookAt(eye, math.Vec3{}, math.Vec3{Y: 1}))

	r := ScreenToRay(50, 50, 100, 100, vp.Inverse())
	if math32.Abs(r.Direction.Z+1) > 1e-3 {
		t.Errorf("expected ray along -Z, got %+v", r.Direction)
	}
	if p := r.At(10 - r.Origin.Z); math32.Abs(p.X) > 1e-3 || math32.Abs(p.Y) > 1e-3 {
		t.Errorf("expected ray through origin, got %+v", p)
	}
}

func TestPickMeshlet(t *testing.T) {
	headers := []meshlet.Header{
		{Bounds: math.AABB{Min: math.Vec3{X: -1, Y: -1, Z: -6}, Max: math.Vec3{X: 1, Y: 1, Z: -4}}},
		{Bounds: math.AABB{Min: math.Vec3{X: -1, Y: -1, Z: -1}, Max: math.Vec3{X: 1, Y: 1, Z: 1}}},
		{Bounds: math.AABB{Min: math.Vec3{X: 5, Y: 5, Z: 5}, Max: math.Vec3{X: 6, Y: 6, Z: 6}}},
	}
	r := Ray{Origin: math.Vec3{Z: 10}, Direction: math.Vec3{Z: -1}}

	k, d, ok := PickMeshlet(r, headers)
	if !ok || k != 1 {
		t.Fatalf("expected meshlet 1, got %d (ok=%v)", k, ok)
	}
	if d != 9 {
		t.Errorf("expected distance 9, got %f", d)
	}

	if k, _, ok := PickMeshlet(Ray{Origin: math.Vec3{X: 20}, Direction: math.Vec3{Z: -1}}, headers); ok {
		t.Errorf("expected no pick, got %d", k)
	}
}
