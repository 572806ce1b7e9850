// Package pointcloud implements typed 3D point sets with optional
// normals/colors, and the transform/downsample/neighbor operations the
// submap engine builds on.
package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// quantizeScale sets the precision (0.1mm) at which point positions are
// hashed for O(1) Set/At lookups: each coordinate is scaled and truncated
// toward zero, and two points whose truncated keys match are considered the
// same point.
const quantizeScale = 1e4

// maxPreciseFloat64 / minPreciseFloat64 bound the coordinate range that can
// be quantized into an int64 key without overflow.
const (
	maxPreciseFloat64 = float64(1<<52) / quantizeScale
	minPreciseFloat64 = -maxPreciseFloat64
)

type quantKey struct {
	i, j, k int64
}

func quantize(v r3.Vector) quantKey {
	return quantKey{
		i: int64(v.X * quantizeScale),
		j: int64(v.Y * quantizeScale),
		k: int64(v.Z * quantizeScale),
	}
}

// PointAndData pairs a point position with its attributes, returned by
// iteration and neighbor-query helpers.
type PointAndData struct {
	P r3.Vector
	D Data
}

// PointCloud is an ordered set of 3D points with optional attributes
// (normal, color, value). All attribute data is optional per-point; a
// point with nil Data carries no attributes.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int
	// At returns the Data stored at the given position, if any point exists
	// there (within quantization tolerance).
	At(x, y, z float64) (Data, bool)
	// Set inserts or replaces the point at p with attributes d. Returns an
	// error if p has a component outside the representable range.
	Set(p r3.Vector, d Data) error
	// Unset removes the point at the given position, if any.
	Unset(x, y, z float64)
	// Iterate walks a (numBatches-th) contiguous slice of the cloud's
	// points, calling fn for each until fn returns false or points are
	// exhausted. numBatches <= 1 iterates the whole cloud.
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

type basicPointCloud struct {
	points []PointAndData
	index  map[quantKey]int
}

// New returns an empty PointCloud.
func New() PointCloud {
	return &basicPointCloud{index: map[quantKey]int{}}
}

// NewWithPrealloc returns an empty PointCloud with storage reserved for n
// points, avoiding reallocation during bulk inserts such as a fresh scan.
func NewWithPrealloc(n int) PointCloud {
	return &basicPointCloud{
		points: make([]PointAndData, 0, n),
		index:  make(map[quantKey]int, n),
	}
}

// NewVector constructs a position vector quantized to the cloud's
// addressable precision, so that repeated Set/At calls on computed
// positions address the same point.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{
		X: float64(int64(x*quantizeScale)) / quantizeScale,
		Y: float64(int64(y*quantizeScale)) / quantizeScale,
		Z: float64(int64(z*quantizeScale)) / quantizeScale,
	}
}

func (pc *basicPointCloud) Size() int { return len(pc.points) }

func (pc *basicPointCloud) At(x, y, z float64) (Data, bool) {
	idx, ok := pc.index[quantize(r3.Vector{X: x, Y: y, Z: z})]
	if !ok {
		return nil, false
	}
	return pc.points[idx].D, true
}

func (pc *basicPointCloud) Set(p r3.Vector, d Data) error {
	if p.X < minPreciseFloat64 || p.X > maxPreciseFloat64 {
		return errors.Errorf("x component %v out of representable range", p.X)
	}
	if p.Y < minPreciseFloat64 || p.Y > maxPreciseFloat64 {
		return errors.Errorf("y component %v out of representable range", p.Y)
	}
	if p.Z < minPreciseFloat64 || p.Z > maxPreciseFloat64 {
		return errors.Errorf("z component %v out of representable range", p.Z)
	}
	key := quantize(p)
	if idx, ok := pc.index[key]; ok {
		pc.points[idx] = PointAndData{P: p, D: d}
		return nil
	}
	pc.index[key] = len(pc.points)
	pc.points = append(pc.points, PointAndData{P: p, D: d})
	return nil
}

func (pc *basicPointCloud) Unset(x, y, z float64) {
	key := quantize(r3.Vector{X: x, Y: y, Z: z})
	idx, ok := pc.index[key]
	if !ok {
		return
	}
	pc.removeIndices([]int{idx})
}

func (pc *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	total := len(pc.points)
	if numBatches <= 0 {
		numBatches = 1
	}
	batchSize := total / numBatches
	start := myBatch * batchSize
	end := start + batchSize
	if myBatch == numBatches-1 {
		end = total
	}
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	for i := start; i < end; i++ {
		if !fn(pc.points[i].P, pc.points[i].D) {
			return
		}
	}
}

// removeIndices deletes the points at the given slice indices (not keys),
// preserving the relative order of the remaining points and rebuilding the
// position index.
func (pc *basicPointCloud) removeIndices(idxs []int) {
	if len(idxs) == 0 {
		return
	}
	drop := make(map[int]struct{}, len(idxs))
	for _, i := range idxs {
		drop[i] = struct{}{}
	}
	kept := pc.points[:0:0]
	for i, pd := range pc.points {
		if _, isDropped := drop[i]; isDropped {
			continue
		}
		kept = append(kept, pd)
	}
	pc.points = kept
	pc.index = make(map[quantKey]int, len(pc.points))
	for i, pd := range pc.points {
		pc.index[quantize(pd.P)] = i
	}
}

// CloudContains reports whether the cloud has a point at the given
// position.
func CloudContains(pc PointCloud, x, y, z float64) bool {
	_, ok := pc.At(x, y, z)
	return ok
}

// Points returns every point in the cloud in iteration order. Intended for
// algorithms (kd-tree build, voxel downsample) that need random access; not
// part of the PointCloud interface itself since most callers should prefer
// Iterate.
func Points(pc PointCloud) []PointAndData {
	out := make([]PointAndData, 0, pc.Size())
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		out = append(out, PointAndData{P: p, D: d})
		return true
	})
	return out
}

// RemoveIndices returns a new PointCloud containing every point of pc
// except those at the given slice-order indices (as returned by Points /
// Iterate order). idxs need not be sorted.
func RemoveIndices(pc PointCloud, idxs []int) PointCloud {
	drop := make(map[int]struct{}, len(idxs))
	for _, i := range idxs {
		drop[i] = struct{}{}
	}
	out := New()
	i := 0
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		if _, isDropped := drop[i]; !isDropped {
			_ = out.Set(p, d) // positions/bounds already validated by the source cloud
		}
		i++
		return true
	})
	return out
}
