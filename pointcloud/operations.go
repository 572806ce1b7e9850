package pointcloud

import (
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"go.viam.com/submap/spatialmath"
)

// Transform returns a new PointCloud with T applied to every point's
// position, and to its normal (rotation only, per spec) where present.
func Transform(pc PointCloud, t spatialmath.Pose) PointCloud {
	out := NewWithPrealloc(pc.Size())
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		newP := spatialmath.TransformPoint(t, p)
		newD := d
		if HasNormal(d) {
			newD = withNormal(d, spatialmath.RotatePoint(t, d.NormalVector()))
		}
		_ = out.Set(newP, newD)
		return true
	})
	return out
}

// Append concatenates other onto a copy of pc. Per-point attribute
// mismatches (e.g. a malformed entry) are aggregated via multierr rather
// than aborting the whole append.
func Append(pc, other PointCloud) (PointCloud, error) {
	out := NewWithPrealloc(pc.Size() + other.Size())
	var errs error
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		errs = multierr.Append(errs, out.Set(p, d))
		return true
	})
	other.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		errs = multierr.Append(errs, out.Set(p, d))
		return true
	})
	return out, errs
}

// SelectByIndex returns a new PointCloud containing only the points at the
// given slice-order indices (as returned by Points/Iterate order).
func SelectByIndex(pc PointCloud, idxs []int) PointCloud {
	points := Points(pc)
	out := NewWithPrealloc(len(idxs))
	for _, i := range idxs {
		if i < 0 || i >= len(points) {
			continue
		}
		_ = out.Set(points[i].P, points[i].D)
	}
	return out
}

// Centroid returns the mean position of all points in pc. Returns the zero
// vector for an empty cloud.
func Centroid(pc PointCloud) r3.Vector {
	if pc.Size() == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		sum = sum.Add(p)
		return true
	})
	return sum.Mul(1 / float64(pc.Size()))
}
