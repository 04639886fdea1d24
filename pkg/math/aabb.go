package math

import "github.com/chewxy/math32"

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// NewAABB creates an AABB from two corners, ordering each axis.
func NewAABB(a, b Vec3) AABB {
	return AABB{Min: a.Min(b), Max: a.Max(b)}
}

// Contains reports whether p lies inside the box (inclusive).
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Expand returns the box grown by bloat on every side.
func (b AABB) Expand(bloat float32) AABB {
	d := Vec3{bloat, bloat, bloat}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(other AABB) AABB {
	return AABB{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Transform returns the box enclosing all eight transformed corners.
func (b AABB) Transform(m Mat4) AABB {
	out := AABB{
		Min: Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32},
		Max: Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32},
	}
	for i := 0; i < 8; i++ {
		c := Vec3{b.Min.X, b.Min.Y, b.Min.Z}
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		p := m.TransformVec3(c)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}

// ClipSegment clips the segment start -> end against the box grown by bloat.
// It returns the parametric interval [t0, t1] within [0, 1] that lies inside,
// and false when the segment misses the box entirely.
func (b AABB) ClipSegment(start, end Vec3, bloat float32) (t0, t1 float32, ok bool) {
	box := b.Expand(bloat)
	t0, t1 = 0, 1
	d := end.Sub(start)

	for axis := 0; axis < 3; axis++ {
		s := start.Idx(axis)
		dir := d.Idx(axis)
		lo := box.Min.Idx(axis)
		hi := box.Max.Idx(axis)

		if dir == 0 {
			if s < lo || s > hi {
				return 0, 0, false
			}
			continue
		}

		ta := (lo - s) / dir
		tb := (hi - s) / dir
		if ta > tb {
			ta, tb = tb, ta
		}
		if ta > t0 {
			t0 = ta
		}
		if tb < t1 {
			t1 = tb
		}
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}
