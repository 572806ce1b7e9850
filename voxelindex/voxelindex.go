// Package voxelindex implements the sparse voxel index (C4): a mapping
// from voxel key to the set of point indices of an owning cloud lying in
// that voxel, used for adjacency-based neighbor queries. Rebuilt, not
// incrementally patched, per spec.
package voxelindex

import (
	"github.com/golang/geo/r3"

	"go.viam.com/submap/pointcloud"
)

// Key is an integer lattice coordinate.
type Key struct {
	I, J, K int64
}

// VoxelMap is the sparse index over a referenced PointCloud's points, keyed
// by voxel, at a voxel size equal to the map builder's voxel size times an
// expansion factor (for adjacency queries that need margin). Multiple named
// layers may coexist.
type VoxelMap struct {
	size   float64
	layers map[string]map[Key][]int
}

// New returns an empty VoxelMap with the given (already-expanded) voxel
// size.
func New(size float64) *VoxelMap {
	return &VoxelMap{size: size, layers: map[string]map[Key][]int{}}
}

// NewExpanded returns an empty VoxelMap whose voxel size is
// mapBuilderVoxelSize * expansionFactor, per spec §4.4.
func NewExpanded(mapBuilderVoxelSize, expansionFactor float64) *VoxelMap {
	return New(mapBuilderVoxelSize * expansionFactor)
}

// Clear discards every layer.
func (vm *VoxelMap) Clear() {
	vm.layers = map[string]map[Key][]int{}
}

func keyFor(p r3.Vector, size float64) Key {
	return Key{I: floorDiv(p.X, size), J: floorDiv(p.Y, size), K: floorDiv(p.Z, size)}
}

func floorDiv(v, size float64) int64 {
	q := v / size
	f := int64(q)
	if q < 0 && float64(f) != q {
		f--
	}
	return f
}

// InsertCloud indexes every point of cloud by voxel key under the named
// layer, replacing any prior contents of that layer.
func (vm *VoxelMap) InsertCloud(layer string, cloud pointcloud.PointCloud) {
	idx := map[Key][]int{}
	i := 0
	cloud.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		k := keyFor(p, vm.size)
		idx[k] = append(idx[k], i)
		i++
		return true
	})
	vm.layers[layer] = idx
}

// Layer returns the raw key->indices mapping for the named layer, or nil if
// absent.
func (vm *VoxelMap) Layer(layer string) map[Key][]int {
	return vm.layers[layer]
}

// Indices returns the point indices stored at exactly key within the named
// layer.
func (vm *VoxelMap) Indices(layer string, key Key) []int {
	l, ok := vm.layers[layer]
	if !ok {
		return nil
	}
	return l[key]
}

// KeysNear returns the 26-neighborhood of key (key itself plus every
// adjacent voxel), independent of whether those voxels are occupied.
func KeysNear(key Key) []Key {
	out := make([]Key, 0, 27)
	for di := int64(-1); di <= 1; di++ {
		for dj := int64(-1); dj <= 1; dj++ {
			for dk := int64(-1); dk <= 1; dk++ {
				out = append(out, Key{key.I + di, key.J + dj, key.K + dk})
			}
		}
	}
	return out
}

// IndicesNear returns the union of point indices stored in key's
// 26-neighborhood (including key itself) within the named layer.
func (vm *VoxelMap) IndicesNear(layer string, key Key) []int {
	var out []int
	for _, k := range KeysNear(key) {
		out = append(out, vm.Indices(layer, k)...)
	}
	return out
}

// KeyFor exposes the index's own key-quantization so callers can look up a
// world point's voxel without duplicating the floor-division logic.
func (vm *VoxelMap) KeyFor(p r3.Vector) Key {
	return keyFor(p, vm.size)
}
