package math

import "github.com/chewxy/math32"

// Mat4 is a 4x4 matrix in column-major order.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
//
// Block placement only ever uses affine matrices (rotation, scale, translation).
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// RotateY returns a rotation matrix around the Y axis. angle is in radians.
func RotateY(angle float32) Mat4 {
	s, c := math32.Sincos(angle)
	return Mat4{
		c, 0, -s, 0,
		0, 1, 0, 0,
		s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] = m[row]*other[col*4] +
				m[4+row]*other[col*4+1] +
				m[8+row]*other[col*4+2] +
				m[12+row]*other[col*4+3]
		}
	}
	return result
}

// TransformVec3 transforms a point (w=1).
func (m Mat4) TransformVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12],
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13],
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14],
	}
}

// TransformDirection transforms a direction (ignores translation).
func (m Mat4) TransformDirection(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z,
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z,
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z,
	}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// AffineInverse inverts an affine matrix. A singular linear part yields the identity.
func (m Mat4) AffineInverse() Mat4 {
	a, b, c := m[0], m[4], m[8]
	d, e, f := m[1], m[5], m[9]
	g, h, i := m[2], m[6], m[10]

	co00 := e*i - f*h
	co01 := -(d*i - f*g)
	co02 := d*h - e*g
	det := a*co00 + b*co01 + c*co02
	if det == 0 {
		return Identity()
	}
	inv := 1 / det

	// Inverse of the 3x3 block, row-major r[row][col].
	r := [3][3]float32{
		{co00 * inv, -(b*i - c*h) * inv, (b*f - c*e) * inv},
		{co01 * inv, (a*i - c*g) * inv, -(a*f - c*d) * inv},
		{co02 * inv, -(a*h - b*g) * inv, (a*e - b*d) * inv},
	}

	t := m.Translation()
	tx := -(r[0][0]*t.X + r[0][1]*t.Y + r[0][2]*t.Z)
	ty := -(r[1][0]*t.X + r[1][1]*t.Y + r[1][2]*t.Z)
	tz := -(r[2][0]*t.X + r[2][1]*t.Y + r[2][2]*t.Z)

	return Mat4{
		r[0][0], r[1][0], r[2][0], 0,
		r[0][1], r[1][1], r[2][1], 0,
		r[0][2], r[1][2], r[2][2], 0,
		tx, ty, tz, 1,
	}
}
