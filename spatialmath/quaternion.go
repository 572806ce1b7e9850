// Package spatialmath provides rigid transforms and poses used to express
// submap-local and world-frame geometry.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Quaternion is a unit quaternion representing a 3D rotation.
type Quaternion struct {
	Real float64
	I    float64
	J    float64
	K    float64
}

// NewZeroOrientation returns the identity rotation.
func NewZeroOrientation() Quaternion {
	return Quaternion{Real: 1}
}

// Quaternion satisfies Orientation.
func (q Quaternion) Quaternion() Quaternion { return q }

// Normalize rescales q to unit length. The zero quaternion normalizes to identity.
func (q Quaternion) Normalize() Quaternion {
	n := math.Sqrt(q.Real*q.Real + q.I*q.I + q.J*q.J + q.K*q.K)
	if n < 1e-12 {
		return NewZeroOrientation()
	}
	return Quaternion{q.Real / n, q.I / n, q.J / n, q.K / n}
}

// Conjugate returns the conjugate (= inverse, for a unit quaternion).
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{q.Real, -q.I, -q.J, -q.K}
}

// Mul composes two quaternions as rotations: applying the result rotates by q
// first, then by other (other * q in Hamilton-product order used here).
func (q Quaternion) Mul(other Quaternion) Quaternion {
	a1, b1, c1, d1 := other.Real, other.I, other.J, other.K
	a2, b2, c2, d2 := q.Real, q.I, q.J, q.K
	return Quaternion{
		Real: a1*a2 - b1*b2 - c1*c2 - d1*d2,
		I:    a1*b2 + b1*a2 + c1*d2 - d1*c2,
		J:    a1*c2 - b1*d2 + c1*a2 + d1*b2,
		K:    a1*d2 + b1*c2 - c1*b2 + d1*a2,
	}
}

// Rotate applies the rotation represented by q to a vector, leaving its
// length unchanged.
func (q Quaternion) Rotate(v r3.Vector) r3.Vector {
	qn := q.Normalize()
	p := Quaternion{0, v.X, v.Y, v.Z}
	r := qn.Conjugate().Mul(p).Mul(qn)
	return r3.Vector{X: r.I, Y: r.J, Z: r.K}
}

// IsRigid reports whether q is (within tolerance) a unit quaternion, i.e.
// represents a pure rotation with no scaling or shear.
func (q Quaternion) IsRigid(tolerance float64) bool {
	n := q.Real*q.Real + q.I*q.I + q.J*q.J + q.K*q.K
	return math.Abs(n-1) < tolerance
}

// QuaternionFromAxisAngle builds a unit quaternion rotating by angle radians
// about axis (which need not be normalized; the zero vector yields identity).
func QuaternionFromAxisAngle(axis r3.Vector, angle float64) Quaternion {
	n := axis.Norm()
	if n < 1e-12 {
		return NewZeroOrientation()
	}
	axis = axis.Mul(1 / n)
	half := angle / 2
	s := math.Sin(half)
	return Quaternion{Real: math.Cos(half), I: axis.X * s, J: axis.Y * s, K: axis.Z * s}
}
