// Package voxelgrid implements the dense voxel cloud (C3): a mapping from
// integer voxel key to aggregated point attributes, supporting insertion,
// key removal, and rigid transform with rebucketing.
package voxelgrid

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/submap/pointcloud"
	"go.viam.com/submap/spatialmath"
)

// Key is an integer lattice coordinate derived from a real point by
// component-wise floor division by the grid's voxel size.
type Key struct {
	I, J, K int64
}

// Aggregated holds the running-mean attributes accumulated for one voxel.
type Aggregated struct {
	Count       int
	Position    r3.Vector
	HasNormal   bool
	Normal      r3.Vector
	HasColor    bool
	ColorSum    r3.Vector // running mean of R,G,B as float64 0-255
	normalCount int
	colorCount  int
}

// VoxelizedCloud is the dense, per-voxel aggregated representation of a
// point set (C3). Insert merges new points into existing or new buckets by
// running mean; Transform rigid-transforms the aggregated representatives
// and rebuilds the key grid so no representative straddles its bucket.
type VoxelizedCloud struct {
	size   float64
	voxels map[Key]*Aggregated
}

// New returns an empty dense voxel cloud with the given voxel size. size
// must be positive, since keys are computed by dividing by it; New does not
// validate it.
func New(size float64) *VoxelizedCloud {
	return &VoxelizedCloud{size: size, voxels: map[Key]*Aggregated{}}
}

func keyFor(p r3.Vector, size float64) Key {
	return Key{
		I: floorDiv(p.X, size),
		J: floorDiv(p.Y, size),
		K: floorDiv(p.Z, size),
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

// Insert merges every point of cloud into the grid, one running-mean update
// of its voxel per point.
func (vc *VoxelizedCloud) Insert(cloud pointcloud.PointCloud) {
	cloud.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		vc.insertOne(p, d)
		return true
	})
}

func (vc *VoxelizedCloud) insertOne(p r3.Vector, d pointcloud.Data) {
	k := keyFor(p, vc.size)
	a, ok := vc.voxels[k]
	if !ok {
		a = &Aggregated{}
		vc.voxels[k] = a
	}
	a.Position = runningMean(a.Position, a.Count, p)
	a.Count++
	if pointcloud.HasNormal(d) {
		a.Normal = runningMean(a.Normal, a.normalCount, d.NormalVector())
		a.normalCount++
		a.HasNormal = true
	}
	if pointcloud.HasColor(d) {
		c := d.Color()
		cv := r3.Vector{X: float64(c.R), Y: float64(c.G), Z: float64(c.B)}
		a.ColorSum = runningMean(a.ColorSum, a.colorCount, cv)
		a.colorCount++
		a.HasColor = true
	}
}

// runningMean folds one new sample into a mean accumulated from n prior
// samples, without needing to retain the individual samples.
func runningMean(mean r3.Vector, n int, sample r3.Vector) r3.Vector {
	fn := float64(n)
	return r3.Vector{
		X: mean.X + (sample.X-mean.X)/(fn+1),
		Y: mean.Y + (sample.Y-mean.Y)/(fn+1),
		Z: mean.Z + (sample.Z-mean.Z)/(fn+1),
	}
}

// weightedMean combines two (mean, count) pairs per axis via gonum's
// weighted mean, used when merging voxel buckets that collided after a
// transform rebucketed their representatives.
func weightedMean(a, b float64, wa, wb int) float64 {
	if wa+wb == 0 {
		return 0
	}
	return stat.Mean([]float64{a, b}, []float64{float64(wa), float64(wb)})
}

// RemoveKey deletes the voxel at k, if present.
func (vc *VoxelizedCloud) RemoveKey(k Key) {
	delete(vc.voxels, k)
}

// IsEmpty reports whether the grid has no occupied voxels.
func (vc *VoxelizedCloud) IsEmpty() bool {
	return len(vc.voxels) == 0
}

// Size returns the number of occupied voxels.
func (vc *VoxelizedCloud) Size() int {
	return len(vc.voxels)
}

// Entries calls fn once per occupied voxel with its key and aggregated
// attributes, until fn returns false.
func (vc *VoxelizedCloud) Entries(fn func(Key, Aggregated) bool) {
	for k, a := range vc.voxels {
		if !fn(k, *a) {
			return
		}
	}
}

// Transform rigid-transforms every voxel's aggregated position (and normal,
// rotation only) by t, then rebuilds the key grid from the new positions so
// that no voxel's representative straddles a bucket boundary post-move.
func (vc *VoxelizedCloud) Transform(t spatialmath.Pose) {
	rebuilt := make(map[Key]*Aggregated, len(vc.voxels))
	for _, a := range vc.voxels {
		a.Position = spatialmath.TransformPoint(t, a.Position)
		if a.HasNormal {
			a.Normal = spatialmath.RotatePoint(t, a.Normal)
		}
		k := keyFor(a.Position, vc.size)
		if existing, ok := rebuilt[k]; ok {
			merged := mergeAggregated(*existing, a)
			rebuilt[k] = &merged
		} else {
			rebuilt[k] = a
		}
	}
	vc.voxels = rebuilt
}

func mergeAggregated(a, b Aggregated) Aggregated {
	total := a.Count + b.Count
	out := Aggregated{Count: total}
	if total > 0 {
		out.Position = r3.Vector{
			X: weightedMean(a.Position.X, b.Position.X, a.Count, b.Count),
			Y: weightedMean(a.Position.Y, b.Position.Y, a.Count, b.Count),
			Z: weightedMean(a.Position.Z, b.Position.Z, a.Count, b.Count),
		}
	}
	nTotal := a.normalCount + b.normalCount
	if nTotal > 0 {
		out.Normal = r3.Vector{
			X: weightedMean(a.Normal.X, b.Normal.X, a.normalCount, b.normalCount),
			Y: weightedMean(a.Normal.Y, b.Normal.Y, a.normalCount, b.normalCount),
			Z: weightedMean(a.Normal.Z, b.Normal.Z, a.normalCount, b.normalCount),
		}
		out.HasNormal = true
		out.normalCount = nTotal
	}
	cTotal := a.colorCount + b.colorCount
	if cTotal > 0 {
		out.ColorSum = r3.Vector{
			X: weightedMean(a.ColorSum.X, b.ColorSum.X, a.colorCount, b.colorCount),
			Y: weightedMean(a.ColorSum.Y, b.ColorSum.Y, a.colorCount, b.colorCount),
			Z: weightedMean(a.ColorSum.Z, b.ColorSum.Z, a.colorCount, b.colorCount),
		}
		out.HasColor = true
		out.colorCount = cTotal
	}
	return out
}
