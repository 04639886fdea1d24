package math

import "github.com/chewxy/math32"

// TriangleFlags is the collision flag bitfield carried by a triangle.
// Bits 0-7 are collision flags; bits 8-15 hold the material kind.
type TriangleFlags uint32

// Collision flags.
const (
	FlagTerrain     TriangleFlags = 1 << 0
	FlagNotCollide  TriangleFlags = 1 << 1
	FlagTransparent TriangleFlags = 1 << 2
	FlagBlended     TriangleFlags = 1 << 3
	FlagDoubleSided TriangleFlags = 1 << 4
)

const (
	materialKindShift                = 8
	materialKindMask   TriangleFlags = 0xff << materialKindShift
	intersectTolerance               = 1e-5
)

// MaterialKind returns the material kind packed into the flags.
func (f TriangleFlags) MaterialKind() uint8 {
	return uint8((f & materialKindMask) >> materialKindShift)
}

// WithMaterialKind returns the flags with the material kind replaced.
// Collision flags are kept.
func (f TriangleFlags) WithMaterialKind(kind uint8) TriangleFlags {
	return (f &^ materialKindMask) | TriangleFlags(kind)<<materialKindShift
}

// Triangle is a triangle with collision flags.
type Triangle struct {
	V     [3]Vec3
	Flags TriangleFlags
}

// NewTriangle creates a triangle from three vertices.
func NewTriangle(a, b, c Vec3, flags TriangleFlags) Triangle {
	return Triangle{V: [3]Vec3{a, b, c}, Flags: flags}
}

// Normal returns the unit face normal (counter-clockwise winding).
func (t Triangle) Normal() Vec3 {
	return t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0])).Normalize()
}

// Translate returns the triangle moved by d.
func (t Triangle) Translate(d Vec3) Triangle {
	return Triangle{V: [3]Vec3{t.V[0].Add(d), t.V[1].Add(d), t.V[2].Add(d)}, Flags: t.Flags}
}

// Transform returns the triangle with every vertex transformed by m.
func (t Triangle) Transform(m Mat4) Triangle {
	return Triangle{
		V:     [3]Vec3{m.TransformVec3(t.V[0]), m.TransformVec3(t.V[1]), m.TransformVec3(t.V[2])},
		Flags: t.Flags,
	}
}

// Bounds returns the triangle's bounding box.
func (t Triangle) Bounds() AABB {
	return AABB{
		Min: t.V[0].Min(t.V[1]).Min(t.V[2]),
		Max: t.V[0].Max(t.V[1]).Max(t.V[2]),
	}
}

// IntersectSegment tests the segment origin -> origin+dir against the triangle
// from both sides (Moller-Trumbore). It returns the parameter along dir in [0, 1].
func (t Triangle) IntersectSegment(origin, dir Vec3) (float32, bool) {
	edge1 := t.V[1].Sub(t.V[0])
	edge2 := t.V[2].Sub(t.V[0])

	h := dir.Cross(edge2)
	a := edge1.Dot(h)
	if math32.Abs(a) < 1e-9 {
		return 0, false
	}

	f := 1 / a
	s := origin.Sub(t.V[0])
	u := f * s.Dot(h)
	if u < -intersectTolerance || u > 1+intersectTolerance {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * dir.Dot(q)
	if v < -intersectTolerance || u+v > 1+intersectTolerance {
		return 0, false
	}

	dist := f * edge2.Dot(q)
	if dist < -intersectTolerance || dist > 1+intersectTolerance {
		return 0, false
	}
	return clamp01(dist), true
}

// SweepCollide moves t along delta and returns the earliest parameter in
// [0, 1] at which it touches other. Both triangles are treated as flat,
// two-sided surfaces: contact is found between vertices and faces in both
// directions and between every pair of edges.
func (t Triangle) SweepCollide(other Triangle, delta Vec3) (float32, bool) {
	best := float32(2)

	// Our vertices running into the other face.
	for _, p := range t.V {
		if d, ok := other.IntersectSegment(p, delta); ok && d < best {
			best = d
		}
	}

	// The other triangle's vertices running back into ours.
	back := delta.Scale(-1)
	for _, p := range other.V {
		if d, ok := t.IntersectSegment(p, back); ok && d < best {
			best = d
		}
	}

	// Edge against edge: P0 + s*e + d*delta = Q0 + u*f.
	for i := 0; i < 3; i++ {
		p0 := t.V[i]
		e := t.V[(i+1)%3].Sub(p0)
		for j := 0; j < 3; j++ {
			q0 := other.V[j]
			f := other.V[(j+1)%3].Sub(q0)
			if d, ok := edgeSweep(p0, e, q0, f, delta); ok && d < best {
				best = d
			}
		}
	}

	if best > 1 {
		return 0, false
	}
	return best, true
}

// edgeSweep solves [e delta -f] * (s, d, u) = q0 - p0 with Cramer's rule.
func edgeSweep(p0, e, q0, f, delta Vec3) (float32, bool) {
	nf := f.Scale(-1)
	det := e.Dot(delta.Cross(nf))
	if math32.Abs(det) < 1e-9 {
		return 0, false
	}
	r := q0.Sub(p0)
	s := r.Dot(delta.Cross(nf)) / det
	d := e.Dot(r.Cross(nf)) / det
	u := e.Dot(delta.Cross(r)) / det

	const tol = intersectTolerance
	if s < -tol || s > 1+tol || u < -tol || u > 1+tol || d < -tol || d > 1+tol {
		return 0, false
	}
	return clamp01(d), true
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
