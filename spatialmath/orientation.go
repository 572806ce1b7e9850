package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Orientation is anything that can be reduced to a rotation quaternion.
// Multiple concrete representations are supported, mirroring the several
// orientation encodings a SLAM/motion stack typically accepts from callers.
type Orientation interface {
	Quaternion() Quaternion
}

// EulerAngles represents a rotation as roll/pitch/yaw in radians, applied
// in roll, then pitch, then yaw order (extrinsic XYZ).
type EulerAngles struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// Quaternion converts the Euler angle triple to a quaternion.
func (e *EulerAngles) Quaternion() Quaternion {
	cr, sr := math.Cos(e.Roll/2), math.Sin(e.Roll/2)
	cp, sp := math.Cos(e.Pitch/2), math.Sin(e.Pitch/2)
	cy, sy := math.Cos(e.Yaw/2), math.Sin(e.Yaw/2)
	return Quaternion{
		Real: cr*cp*cy + sr*sp*sy,
		I:    sr*cp*cy - cr*sp*sy,
		J:    cr*sp*cy + sr*cp*sy,
		K:    cr*cp*sy - sr*sp*cy,
	}
}

// OrientationVectorDegrees represents orientation as a unit direction vector
// (OX, OY, OZ) plus a rotation angle (Theta, degrees) about that vector,
// mirroring the OVD encoding used across the examples corpus's motion stack.
type OrientationVectorDegrees struct {
	OX, OY, OZ float64
	Theta      float64
}

// Quaternion converts the orientation vector encoding to a quaternion.
func (o *OrientationVectorDegrees) Quaternion() Quaternion {
	axis := r3.Vector{X: o.OX, Y: o.OY, Z: o.OZ}
	return QuaternionFromAxisAngle(axis, o.Theta*math.Pi/180)
}
