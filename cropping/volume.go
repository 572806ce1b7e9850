// Package cropping implements the pose-anchored spatial predicates used to
// bound map updates: box, cylinder, sphere, and max-radius cropping
// volumes behind one uniform capability set.
package cropping

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/submap/pointcloud"
	"go.viam.com/submap/spatialmath"
)

// Kind discriminates the cropping volume variants.
type Kind int

const (
	// Box keeps points within an axis-aligned (in the volume's own frame)
	// half-extent box.
	Box Kind = iota
	// Cylinder keeps points within radius of the volume's Z axis, between
	// MinZ and MaxZ.
	Cylinder
	// Sphere keeps points within radius of the volume's origin.
	Sphere
	// MaxRadius keeps points within radius of the volume's origin,
	// ignoring Z entirely (a 2D radial cut through any height).
	MaxRadius
)

// Params configures a Volume's extent. Radius is used by Cylinder, Sphere,
// and MaxRadius; MinZ/MaxZ are used by Cylinder; HalfExtent is used by Box.
type Params struct {
	Radius     float64
	MinZ       float64
	MaxZ       float64
	HalfExtent r3.Vector
}

// Volume is a pose-bearing spatial predicate: SetPose repositions it,
// Crop/IndicesWithin test cloud membership against the transformed volume.
// Points exactly on the boundary are included (tie-breaking per spec).
type Volume struct {
	kind   Kind
	params Params
	pose   spatialmath.Pose
}

// New constructs a Volume of the given kind and parameters at the identity
// pose.
func New(kind Kind, params Params) (*Volume, error) {
	if params.Radius < 0 {
		return nil, errors.Errorf("cropping volume radius must be non-negative, got %v", params.Radius)
	}
	return &Volume{kind: kind, params: params, pose: spatialmath.NewZeroPose()}, nil
}

// SetPose repositions the volume.
func (v *Volume) SetPose(p spatialmath.Pose) {
	v.pose = p
}

// Contains reports whether world-frame point p lies within the volume,
// boundary-inclusive.
func (v *Volume) Contains(p r3.Vector) bool {
	local := spatialmath.TransformPoint(spatialmath.PoseInverse(v.pose), p)
	switch v.kind {
	case Box:
		return absLE(local.X, v.params.HalfExtent.X) &&
			absLE(local.Y, v.params.HalfExtent.Y) &&
			absLE(local.Z, v.params.HalfExtent.Z)
	case Cylinder:
		r := r3.Vector{X: local.X, Y: local.Y, Z: 0}.Norm()
		return r <= v.params.Radius && local.Z >= v.params.MinZ && local.Z <= v.params.MaxZ
	case Sphere:
		return local.Norm() <= v.params.Radius
	case MaxRadius:
		r := r3.Vector{X: local.X, Y: local.Y, Z: 0}.Norm()
		return r <= v.params.Radius
	default:
		return false
	}
}

func absLE(v, bound float64) bool {
	if v < 0 {
		v = -v
	}
	return v <= bound
}

// Crop returns a new PointCloud keeping only the points of cloud that lie
// within the volume, with attributes preserved.
func (v *Volume) Crop(cloud pointcloud.PointCloud) pointcloud.PointCloud {
	out := pointcloud.NewWithPrealloc(cloud.Size())
	cloud.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if v.Contains(p) {
			_ = out.Set(p, d)
		}
		return true
	})
	return out
}

// IndicesWithin returns the sorted, unique slice-order indices (as returned
// by pointcloud.Points) of cloud's points lying within the volume.
func (v *Volume) IndicesWithin(cloud pointcloud.PointCloud) []int {
	points := pointcloud.Points(cloud)
	idxs := make([]int, 0, len(points))
	for i, pd := range points {
		if v.Contains(pd.P) {
			idxs = append(idxs, i)
		}
	}
	sort.Ints(idxs)
	return idxs
}
