package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pose is a rigid transform: a translation plus a rotation, expressed with
// respect to some parent frame that is tracked by the caller, never by Pose
// itself.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation Quaternion
}

// NewPose builds a Pose from a translation and an orientation.
func NewPose(point r3.Vector, o Orientation) Pose {
	q := NewZeroOrientation()
	if o != nil {
		q = o.Quaternion()
	}
	return &pose{point: point, orientation: q}
}

// NewPoseFromPoint builds a Pose with identity orientation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &pose{point: point, orientation: NewZeroOrientation()}
}

// NewPoseFromOrientation builds a Pose from a translation and orientation,
// identical to NewPose; kept as a separate name for call-site clarity when
// the orientation is the emphasis.
func NewPoseFromOrientation(point r3.Vector, o Orientation) Pose {
	return NewPose(point, o)
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return &pose{orientation: NewZeroOrientation()}
}

func (p *pose) Point() r3.Vector         { return p.point }
func (p *pose) Orientation() Orientation { return p.orientation }

// Quat returns the rotation component of a Pose as a Quaternion.
func Quat(p Pose) Quaternion {
	if p == nil {
		return NewZeroOrientation()
	}
	return p.Orientation().Quaternion()
}

// Compose returns the pose equivalent to applying a, then b, i.e. it
// composes two transforms such that TransformPoint(Compose(a,b), v) ==
// TransformPoint(a, TransformPoint(b, v)).
func Compose(a, b Pose) Pose {
	qa, qb := Quat(a), Quat(b)
	q := qb.Mul(qa)
	pt := a.Point().Add(qa.Rotate(b.Point()))
	return &pose{point: pt, orientation: q.Normalize()}
}

// PoseInverse returns the inverse transform of p.
func PoseInverse(p Pose) Pose {
	q := Quat(p).Conjugate()
	pt := q.Rotate(p.Point()).Mul(-1)
	return &pose{point: pt, orientation: q}
}

// TransformPoint applies the full rigid transform (rotation + translation)
// to a point.
func TransformPoint(p Pose, v r3.Vector) r3.Vector {
	return Quat(p).Rotate(v).Add(p.Point())
}

// RotatePoint applies only the rotation component of p to v. Used to
// transform normal vectors, which must not translate.
func RotatePoint(p Pose, v r3.Vector) r3.Vector {
	return Quat(p).Rotate(v)
}

// PoseAlmostEqual reports whether a and b are equal up to a default
// floating-point tolerance.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps reports whether a and b are equal up to eps in both
// translation and rotation.
func PoseAlmostEqualEps(a, b Pose, eps float64) bool {
	if a.Point().Sub(b.Point()).Norm() > eps {
		return false
	}
	qa, qb := Quat(a).Normalize(), Quat(b).Normalize()
	dot := qa.Real*qb.Real + qa.I*qb.I + qa.J*qb.J + qa.K*qb.K
	return math.Abs(math.Abs(dot)-1) < eps
}

// IsRigid reports whether p represents a valid rigid transform: the
// orientation component must be (within tolerance) a unit quaternion.
func IsRigid(p Pose, tolerance float64) bool {
	if p == nil {
		return false
	}
	return Quat(p).IsRigid(tolerance)
}
