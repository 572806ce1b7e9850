package pointcloud

import (
	"github.com/golang/geo/r3"

	"go.viam.com/submap/spatialmath"
)

type voxelKey struct {
	i, j, k int64
}

func keyForSize(p r3.Vector, size float64) voxelKey {
	return voxelKey{
		i: floorDiv(p.X, size),
		j: floorDiv(p.Y, size),
		k: floorDiv(p.Z, size),
	}
}

func floorDiv(v, size float64) int64 {
	q := v / size
	f := int64(q)
	if q < 0 && float64(f) != q {
		f--
	}
	return f
}

type voxelAccum struct {
	count       int
	sumP        r3.Vector
	sumNormal   r3.Vector
	normalCount int
}

// VoxelDownsample returns a new PointCloud with one point per occupied
// voxel of the given size, each representative being the mean position
// (and mean normal, if every contributing point has one) of the points
// that fell in that voxel. size <= 0 is a no-op (returns a copy of pc),
// matching the "zero or negative configured voxel size disables
// voxelization" no-op rule.
func VoxelDownsample(pc PointCloud, size float64) PointCloud {
	if size <= 0 {
		out := NewWithPrealloc(pc.Size())
		pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
			_ = out.Set(p, d)
			return true
		})
		return out
	}

	accum := map[voxelKey]*voxelAccum{}
	order := make([]voxelKey, 0)
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		k := keyForSize(p, size)
		a, ok := accum[k]
		if !ok {
			a = &voxelAccum{}
			accum[k] = a
			order = append(order, k)
		}
		a.count++
		a.sumP = a.sumP.Add(p)
		if HasNormal(d) {
			a.sumNormal = a.sumNormal.Add(d.NormalVector())
			a.normalCount++
		}
		return true
	})

	out := NewWithPrealloc(len(order))
	for _, k := range order {
		a := accum[k]
		mean := a.sumP.Mul(1 / float64(a.count))
		var d Data
		if a.normalCount == a.count && a.count > 0 {
			n := a.sumNormal.Mul(1 / float64(a.normalCount))
			d = withNormal(nil, spatialmath.NormalizeVector(n))
		}
		_ = out.Set(mean, d)
	}
	return out
}
