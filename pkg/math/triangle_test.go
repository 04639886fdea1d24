package math

import (
	"testing"
)

func flatTriangle(y float32) Triangle {
	return NewTriangle(Vec3{0, y, 0}, Vec3{0, y, 4}, Vec3{4, y, 0}, FlagTerrain)
}

func TestMaterialKindPacking(t *testing.T) {
	f := FlagTerrain | FlagBlended
	f = f.WithMaterialKind(17)
	if f.MaterialKind() != 17 {
		t.Errorf("MaterialKind = %d, want 17", f.MaterialKind())
	}
	if f&FlagTerrain == 0 || f&FlagBlended == 0 {
		t.Error("packing the material kind dropped collision flags")
	}
	f = f.WithMaterialKind(3)
	if f.MaterialKind() != 3 {
		t.Errorf("MaterialKind after repack = %d, want 3", f.MaterialKind())
	}
}

func TestIntersectSegment(t *testing.T) {
	tri := flatTriangle(10)

	tests := []struct {
		name   string
		origin Vec3
		dir    Vec3
		want   float32
		hit    bool
	}{
		{"down", Vec3{1, 100, 1}, Vec3{0, -200, 0}, 0.45, true},
		{"up from below", Vec3{1, 0, 1}, Vec3{0, 20, 0}, 0.5, true},
		{"short", Vec3{1, 100, 1}, Vec3{0, -50, 0}, 0, false},
		{"outside", Vec3{5, 100, 5}, Vec3{0, -200, 0}, 0, false},
		{"vertex", Vec3{0, 100, 0}, Vec3{0, -200, 0}, 0.45, true},
		{"parallel", Vec3{-1, 10, 1}, Vec3{10, 0, 0}, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tri.IntersectSegment(tc.origin, tc.dir)
			if ok != tc.hit {
				t.Fatalf("hit = %v, want %v", ok, tc.hit)
			}
			if ok && (got-tc.want > 1e-4 || tc.want-got > 1e-4) {
				t.Errorf("dist = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSweepCollideFaceContact(t *testing.T) {
	ground := NewTriangle(Vec3{-10, 0, -10}, Vec3{-10, 0, 10}, Vec3{10, 0, -10}, FlagTerrain)
	mover := NewTriangle(Vec3{-1, 5, -1}, Vec3{-1, 5, 1}, Vec3{1, 5, -1}, 0)

	d, ok := mover.SweepCollide(ground, Vec3{0, -10, 0})
	if !ok {
		t.Fatal("expected the falling triangle to hit the ground")
	}
	if d < 0.499 || d > 0.501 {
		t.Errorf("contact at %v, want 0.5", d)
	}

	if _, ok := mover.SweepCollide(ground, Vec3{0, 2, 0}); ok {
		t.Error("moving away should not collide")
	}
}

func TestSweepCollideEdgeContact(t *testing.T) {
	// A vertical sliver moving sideways meets a vertical sliver crossing its path
	// edge-first; no vertex ever pierces a face.
	a := NewTriangle(Vec3{0, -1, 0}, Vec3{0, 1, 0}, Vec3{0, 0, -0.001}, 0)
	b := NewTriangle(Vec3{5, 0, -1}, Vec3{5, 0, 1}, Vec3{5.001, 0, 0}, 0)

	d, ok := a.SweepCollide(b, Vec3{10, 0, 0})
	if !ok {
		t.Fatal("expected edge contact")
	}
	if d < 0.49 || d > 0.51 {
		t.Errorf("contact at %v, want ~0.5", d)
	}
}
