package math

import "testing"

func TestAABBFromPoints(t *testing.T) {
	b := AABBFromPoints([]Vec3{{1, 5, -2}, {-3, 2, 4}, {0, 0, 0}})
	if want := (Vec3{-3, 0, -2}); b.Min != want {
		t.Errorf("Min = %v, want %v", b.Min, want)
	}
	if want := (Vec3{1, 5, 4}); b.Max != want {
		t.Errorf("Max = %v, want %v", b.Max, want)
	}
}

func TestAABBEmpty(t *testing.T) {
	if !AABBFromPoints(nil).IsEmpty() {
		t.Error("box of no points should be empty")
	}
	if AABBFromPoints([]Vec3{{1, 1, 1}}).IsEmpty() {
		t.Error("box of one point should not be empty")
	}
}

func TestAABBDiagonal(t *testing.T) {
	b := AABB{Min: Vec3{0, 0, 0}, Max: Vec3{3, 4, 0}}
	if got := b.Diagonal(); got != 5 {
		t.Errorf("Diagonal() = %v, want 5", got)
	}
	if got, want := b.Center(), (Vec3{1.5, 2, 0}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
}

func TestAABBNormalize(t *testing.T) {
	b := AABB{Min: Vec3{-1, 0, 2}, Max: Vec3{1, 4, 2}}

	tests := []struct {
		name string
		p    Vec3
		want Vec3
	}{
		{"min corner", Vec3{-1, 0, 2}, Vec3{0, 0, 0}},
		{"max corner", Vec3{1, 4, 2}, Vec3{1, 1, 0}},
		{"center", Vec3{0, 2, 2}, Vec3{0.5, 0.5, 0}},
		{"clamped outside", Vec3{5, -3, 7}, Vec3{1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Normalize(tt.p); got != tt.want {
				t.Errorf("Normalize(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}
