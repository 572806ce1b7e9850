// Package carving implements space carving (C5): the ray-casting routine
// that identifies map points/voxels invalidated by a fresh scan.
package carving

import (
	"github.com/golang/geo/r3"

	"go.viam.com/submap/cropping"
	"go.viam.com/submap/pointcloud"
	"go.viam.com/submap/spatialmath"
	"go.viam.com/submap/voxelgrid"
)

// Params configures a carve pass, per spec §4.5.
type Params struct {
	MaxRangeToDrop             float64
	VoxelSizeRay               float64
	StepSize                   float64
	MinDotThresholdForDropping float64
	CarveSpaceEveryNsec        int64
}

type ray struct {
	dir r3.Vector
	rng float64
}

func buildRays(scanWorld pointcloud.PointCloud, origin r3.Vector) []ray {
	var rays []ray
	scanWorld.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		v := p.Sub(origin)
		r := v.Norm()
		if r < 1e-9 {
			return true
		}
		rays = append(rays, ray{dir: v.Mul(1 / r), rng: r})
		return true
	})
	return rays
}

// candidateRemovals walks every ray from its scan return out to
// MaxRangeToDrop in steps of params.StepSize, and for each step looks up
// candidate points within params.VoxelSizeRay of that step. A candidate is
// marked removed if it lies strictly beyond the ray's first return (beyond
// VoxelSizeRay tolerance) — i.e. in space the new scan proves is occluded
// by a closer surface — within MaxRangeToDrop, and, when it carries a
// normal, sufficiently aligned with the view direction.
func candidateRemovals(rays []ray, origin r3.Vector, candidates *pointcloud.KDTree, params Params) map[int]struct{} {
	removed := map[int]struct{}{}
	indexOf := map[r3.Vector]int{}
	points := pointcloud.Points(candidates)
	for i, pd := range points {
		indexOf[pd.P] = i
	}

	for _, rr := range rays {
		minT := rr.rng + params.VoxelSizeRay
		maxT := params.MaxRangeToDrop
		if params.StepSize <= 0 || minT > maxT {
			continue
		}
		for t := minT; t <= maxT; t += params.StepSize {
			pos := origin.Add(rr.dir.Mul(t))
			neighbors := candidates.RadiusNearestNeighbors(pos, params.VoxelSizeRay, true)
			for _, n := range neighbors {
				idx, ok := indexOf[n.P]
				if !ok {
					continue
				}
				if _, already := removed[idx]; already {
					continue
				}
				rangeToPoint := n.P.Sub(origin).Norm()
				if rangeToPoint > params.MaxRangeToDrop {
					continue
				}
				if pointcloud.HasNormal(n.D) {
					viewDir := rr.dir.Mul(-1)
					if n.D.NormalVector().Dot(viewDir) < params.MinDotThresholdForDropping {
						continue
					}
				}
				removed[idx] = struct{}{}
			}
		}
	}
	return removed
}

// PointCloudCarve runs the point-cloud carve variant (spec §4.5) against
// target. rawScan is in the sensor frame; sensorPose carries it to world.
// volume is repositioned to sensorPose and used to restrict candidate
// removal to the sensor-anchored region. No-op (returns target unchanged,
// ran=false) unless target is non-empty and timer is due at nowNsec.
func PointCloudCarve(
	rawScan pointcloud.PointCloud,
	sensorPose spatialmath.Pose,
	volume *cropping.Volume,
	params Params,
	target pointcloud.PointCloud,
	timer *Timer,
	nowNsec int64,
) (pointcloud.PointCloud, []int, bool) {
	if target.Size() == 0 || !timer.Due(nowNsec) {
		return target, nil, false
	}

	scanWorld := pointcloud.Transform(rawScan, sensorPose)
	volume.SetPose(sensorPose)
	candidateIdxs := volume.IndicesWithin(target)
	timer.Reset(nowNsec)
	if len(candidateIdxs) == 0 {
		return target, nil, true
	}

	candidatePC := pointcloud.SelectByIndex(target, candidateIdxs)
	candidateKD := pointcloud.NewKDTree(candidatePC)
	origin := sensorPose.Point()
	rays := buildRays(scanWorld, origin)

	removedCandidateIdxs := candidateRemovals(rays, origin, candidateKD, params)
	if len(removedCandidateIdxs) == 0 {
		return target, nil, true
	}

	removedTargetIdxs := make([]int, 0, len(removedCandidateIdxs))
	for idx := range removedCandidateIdxs {
		removedTargetIdxs = append(removedTargetIdxs, candidateIdxs[idx])
	}
	newTarget := pointcloud.RemoveIndices(target, removedTargetIdxs)
	return newTarget, removedTargetIdxs, true
}

// VoxelCarve runs the voxel carve variant (spec §4.5): identical ray logic,
// but the candidate set and removal are voxel keys of a dense VoxelizedCloud
// rather than point-cloud indices.
func VoxelCarve(
	rawScan pointcloud.PointCloud,
	sensorPose spatialmath.Pose,
	volume *cropping.Volume,
	params Params,
	target *voxelgrid.VoxelizedCloud,
	timer *Timer,
	nowNsec int64,
) ([]voxelgrid.Key, bool) {
	if target.IsEmpty() || !timer.Due(nowNsec) {
		return nil, false
	}

	scanWorld := pointcloud.Transform(rawScan, sensorPose)
	volume.SetPose(sensorPose)
	timer.Reset(nowNsec)

	candidatePC := pointcloud.New()
	keyForIndex := map[int]voxelgrid.Key{}
	i := 0
	target.Entries(func(k voxelgrid.Key, a voxelgrid.Aggregated) bool {
		if volume.Contains(a.Position) {
			var d pointcloud.Data
			if a.HasNormal {
				d = pointcloud.NewNormalData(a.Normal)
			}
			_ = candidatePC.Set(a.Position, d)
			keyForIndex[i] = k
			i++
		}
		return true
	})
	if candidatePC.Size() == 0 {
		return nil, true
	}

	candidateKD := pointcloud.NewKDTree(candidatePC)
	origin := sensorPose.Point()
	rays := buildRays(scanWorld, origin)

	removedIdxs := candidateRemovals(rays, origin, candidateKD, params)
	if len(removedIdxs) == 0 {
		return nil, true
	}
	removedKeys := make([]voxelgrid.Key, 0, len(removedIdxs))
	for idx := range removedIdxs {
		k := keyForIndex[idx]
		removedKeys = append(removedKeys, k)
		target.RemoveKey(k)
	}
	return removedKeys, true
}
