/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vecmath provides the vector, quaternion, and matrix primitives
// shared by the replication and physics cores. It intentionally mirrors a
// small, dependency-free math kernel rather than reaching for a generic
// linear-algebra library: every type here is fixed-size and allocation-free,
// which both the property convergence path and the physics tick depend on.
package vecmath

import "math"

// Vec3 is a 3-component real vector.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns a+b.
func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

// Sub returns a-b.
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Scale returns a scaled by s.
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

// Neg returns -a.
func (a Vec3) Neg() Vec3 { return Vec3{-a.X, -a.Y, -a.Z} }

// Dot returns the dot product of a and b.
func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

// Cross returns the cross product a x b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// LengthSq returns the squared length of a.
func (a Vec3) LengthSq() float64 { return a.Dot(a) }

// Length returns the length of a.
func (a Vec3) Length() float64 { return math.Sqrt(a.LengthSq()) }

// Normalized returns a unit vector in the direction of a, or the zero
// vector if a is (numerically) zero-length.
func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l < 1e-12 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// Distance returns the Euclidean distance between a and b.
func (a Vec3) Distance(b Vec3) float64 { return a.Sub(b).Length() }

// Component index returns the axis values at index 0 (x), 1 (y), 2 (z).
func (a Vec3) Component(axis int) float64 {
	switch axis {
	case 0:
		return a.X
	case 1:
		return a.Y
	default:
		return a.Z
	}
}

// WithComponent returns a copy of a with the given axis replaced.
func (a Vec3) WithComponent(axis int, v float64) Vec3 {
	switch axis {
	case 0:
		a.X = v
	case 1:
		a.Y = v
	default:
		a.Z = v
	}
	return a
}

// ApproxEqual reports whether a and b differ by no more than eps per
// component.
func (a Vec3) ApproxEqual(b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

// Quat is a unit quaternion representing an orientation, stored (x, y, z, w).
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat is the identity rotation.
var IdentityQuat = Quat{0, 0, 0, 1}

// Mul returns the Hamilton product a*b (apply b, then a).
func (a Quat) Mul(b Quat) Quat {
	return Quat{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
	}
}

// Normalized returns a re-normalized copy of a, falling back to identity
// when a has collapsed to zero length (guards against drift after repeated
// quaternion composition during position integration).
func (a Quat) Normalized() Quat {
	n := math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z + a.W*a.W)
	if n < 1e-12 {
		return IdentityQuat
	}
	inv := 1 / n
	return Quat{a.X * inv, a.Y * inv, a.Z * inv, a.W * inv}
}

// Conjugate returns the conjugate (inverse, for unit quaternions) of a.
func (a Quat) Conjugate() Quat { return Quat{-a.X, -a.Y, -a.Z, a.W} }

// RotateVec3 rotates v by the rotation a represents.
func (a Quat) RotateVec3(v Vec3) Vec3 {
	qv := Vec3{a.X, a.Y, a.Z}
	t := qv.Cross(v).Scale(2)
	return v.Add(t.Scale(a.W)).Add(qv.Cross(t))
}

// FromAxisAngle builds a unit quaternion representing a rotation of angle
// radians about axis (which need not be pre-normalized).
func FromAxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalized()
	half := angle * 0.5
	s := math.Sin(half)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math.Cos(half)}.Normalized()
}

// Integrate advances a by angular velocity omega over dt using the
// first-order quaternion derivative dq/dt = 0.5 * (omega, 0) * q, followed
// by re-normalization, matching the integration used for dynamic body
// orientations each physics tick.
func (a Quat) Integrate(omega Vec3, dt float64) Quat {
	deriv := Quat{omega.X, omega.Y, omega.Z, 0}.Mul(a).Scale(0.5)
	return Quat{a.X + deriv.X*dt, a.Y + deriv.Y*dt, a.Z + deriv.Z*dt, a.W + deriv.W*dt}.Normalized()
}

// Scale multiplies every component of q by s (used only as an intermediate
// step of Integrate; not a meaningful rotation on its own).
func (a Quat) Scale(s float64) Quat {
	return Quat{a.X * s, a.Y * s, a.Z * s, a.W * s}
}

// Mat3 is a row-major 3x3 matrix, used for inertia tensors and rotation
// matrices derived from a body's quaternion.
type Mat3 [3][3]float64

// Identity3 is the 3x3 identity matrix.
var Identity3 = Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// MulVec3 returns m*v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m*n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[i][k] * n[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Add returns m+n.
func (m Mat3) Add(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] + n[i][j]
		}
	}
	return out
}

// Sub returns m-n.
func (m Mat3) Sub(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] - n[i][j]
		}
	}
	return out
}

// Scale returns m scaled by s.
func (m Mat3) Scale(s float64) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] * s
		}
	}
	return out
}

// FromQuat builds the rotation matrix represented by q.
func FromQuat(q Quat) Mat3 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// Diag3 builds a diagonal matrix from the given axis values.
func Diag3(x, y, z float64) Mat3 {
	return Mat3{{x, 0, 0}, {0, y, 0}, {0, 0, z}}
}

// Inverse3 returns the inverse of a symmetric positive-definite 3x3 matrix
// such as an inertia tensor, and whether the matrix was invertible.
func Inverse3(m Mat3) (Mat3, bool) {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if math.Abs(det) < 1e-18 {
		return Mat3{}, false
	}
	invDet := 1 / det
	return Mat3{
		{(e*i - f*h) * invDet, (c*h - b*i) * invDet, (b*f - c*e) * invDet},
		{(f*g - d*i) * invDet, (a*i - c*g) * invDet, (c*d - a*f) * invDet},
		{(d*h - e*g) * invDet, (b*g - a*h) * invDet, (a*e - b*d) * invDet},
	}, true
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampLength scales v down so its length does not exceed maxLen, leaving
// it unchanged when already within bounds.
func ClampLength(v Vec3, maxLen float64) Vec3 {
	l := v.Length()
	if l <= maxLen || l < 1e-12 {
		return v
	}
	return v.Scale(maxLen / l)
}
