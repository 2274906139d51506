package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	got := m.TransformPoint(Vec3{1, 2, 3})

	want := Vec4{11, 22, 33, 1}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestMulComposesTranslations(t *testing.T) {
	m := Translate(1, 0, 0).Mul(Translate(0, 2, 0))
	got := m.TransformPoint(Vec3{})
	want := Vec4{1, 2, 0, 1}
	if got != want {
		t.Errorf("composed translation: got %v, want %v", got, want)
	}
}

func TestPerspective(t *testing.T) {
	m := Perspective(float32(math.Pi/4), 1, 0.1, 100)

	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAt(t *testing.T) {
	eye := Vec3{0, 0, 5}
	m := LookAt(eye, Vec3{}, Vec3{0, 1, 0})

	// The eye maps to the view-space origin.
	p := m.TransformPoint(eye)
	for i := 0; i < 3; i++ {
		if abs(p[i]) > 1e-5 {
			t.Errorf("LookAt eye component %d = %f, want 0", i, p[i])
		}
	}
	if m[15] != 1 {
		t.Errorf("LookAt [15] should be 1, got %f", m[15])
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestInverse(t *testing.T) {
	m := Perspective(1.0, 1.5, 0.1, 100).Mul(LookAt(Vec3{X: 3, Y: 2, Z: 5}, Vec3{}, Vec3{Y: 1}))
	p := m.Mul(m.Inverse())
	id := Identity()
	for i := range p {
		if abs(p[i]-id[i]) > 1e-3 {
			t.Errorf("element %d: got %f, want %f", i, p[i], id[i])
		}
	}

	var singular Mat4
	if singular.Inverse() != Identity() {
		t.Error("singular matrix should invert to identity")
	}
}
