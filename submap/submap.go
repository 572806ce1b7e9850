// Package submap implements the submap orchestrator (C7): the map unit that
// owns a map point cloud and its voxel-downsampled sparse copy, a dense voxel cloud, a sparse voxel index, and
// place-recognition features, and coordinates their update under scan
// insertion, space carving, and rigid transform.
package submap

import (
	"fmt"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/submap/carving"
	"go.viam.com/submap/config"
	"go.viam.com/submap/cropping"
	"go.viam.com/submap/features"
	"go.viam.com/submap/logging"
	"go.viam.com/submap/pointcloud"
	"go.viam.com/submap/spatialmath"
	"go.viam.com/submap/voxelgrid"
	"go.viam.com/submap/voxelindex"
)

// sparseIndexExpansionFactor widens the sparse voxel index relative to the
// map voxel size so KeysNear adjacency queries have margin, per spec §4.4.
const sparseIndexExpansionFactor = 2.0

// carveStatsWindowNsec is the accumulation window over which rolling
// space-carving timing stats are logged.
const carveStatsWindowNsec = 20_000_000_000

// carveStats accumulates per-call elapsed-time samples (milliseconds) for
// one carve timer, logging a rolling average/frequency summary once
// carveStatsWindowNsec has elapsed since the last log.
type carveStats struct {
	samplesMs  []float64
	windowFrom int64
}

func (c *carveStats) record(logger logging.Logger, label string, elapsedMs float64, nowNsec int64) {
	if c.windowFrom == 0 {
		c.windowFrom = nowNsec
	}
	c.samplesMs = append(c.samplesMs, elapsedMs)
	if nowNsec-c.windowFrom < carveStatsWindowNsec {
		return
	}
	avg, err := stats.Mean(c.samplesMs)
	if err == nil {
		elapsedSec := float64(nowNsec-c.windowFrom) / 1e9
		freqHz := float64(len(c.samplesMs)) / elapsedSec
		logger.Infow(fmt.Sprintf("%s: Space carving timing stats: Avg execution time: %.3f msec , frequency: %.3f Hz", label, avg, freqHz))
	}
	c.samplesMs = c.samplesMs[:0]
	c.windowFrom = nowNsec
}

// Submap is one map unit of the submap engine: a map cloud and its
// voxel-downsampled sparse map cloud guarded by mapCloudMutex, a dense voxel cloud guarded by denseMapMutex, a derived
// sparse voxel index and place-recognition feature set, and the rigid
// transforms anchoring it to the parent map and range sensor. Acquisition
// order when both locks are needed is always mapCloudMutex, then
// denseMapMutex, per spec §5.
type Submap struct {
	id       string
	parentID string

	mapCloudMutex  sync.Mutex
	mapCloud       pointcloud.PointCloud
	sparseMapCloud pointcloud.PointCloud
	voxelMap       *voxelindex.VoxelMap

	denseMapMutex sync.Mutex
	denseMap      *voxelgrid.VoxelizedCloud

	mapToSubmap      spatialmath.Pose
	mapToRangeSensor spatialmath.Pose

	submapCenter         spatialmath.Pose
	submapCenterComputed bool

	creationTimeNsec int64
	hasCreationTime  bool

	params       config.MapperParameters
	mapCropper   *cropping.Volume
	denseCropper *cropping.Volume

	mapCarveTimer   *carving.Timer
	denseCarveTimer *carving.Timer
	mapCarveStats   carveStats
	denseCarveStats carveStats

	featuresMutex sync.Mutex
	featuresTimer *carving.Timer
	featureResult *features.Result
	featuresSet   bool

	logger logging.Logger
}

// New constructs an empty Submap anchored at the identity transform, with
// the given id/parentID and parameters.
func New(id, parentID string, params config.MapperParameters, logger logging.Logger) (*Submap, error) {
	mapCropper, err := cropping.New(params.MapBuilder.Cropper.Kind, params.MapBuilder.Cropper.Params)
	if err != nil {
		return nil, errors.Wrap(err, "building map cropper")
	}
	denseCropper, err := cropping.New(params.DenseMapBuilder.Cropper.Kind, params.DenseMapBuilder.Cropper.Params)
	if err != nil {
		return nil, errors.Wrap(err, "building dense map cropper")
	}
	return &Submap{
		id:               id,
		parentID:         parentID,
		mapCloud:         pointcloud.New(),
		sparseMapCloud:   pointcloud.New(),
		voxelMap:         voxelindex.NewExpanded(params.MapBuilder.MapVoxelSize, sparseIndexExpansionFactor),
		denseMap:         voxelgrid.New(params.DenseMapBuilder.DenseVoxelSize),
		mapToSubmap:      spatialmath.NewZeroPose(),
		mapToRangeSensor: spatialmath.NewZeroPose(),
		params:           params,
		mapCropper:       mapCropper,
		denseCropper:     denseCropper,
		mapCarveTimer:    carving.NewTimer(params.MapBuilder.Carving.CarveSpaceEveryNsec),
		denseCarveTimer:  carving.NewTimer(params.DenseMapBuilder.Carving.CarveSpaceEveryNsec),
		featuresTimer:    carving.NewTimer(secondsToNsec(params.Submaps.MinSecondsBetweenFeatureComputation)),
		logger:           logger,
	}, nil
}

// secondsToNsec converts a fractional-seconds interval (as decoded from
// config) into the nanosecond interval carving.Timer operates on.
func secondsToNsec(seconds float64) int64 {
	return int64(seconds * 1e9)
}

// requiresNormals reports whether the configured ICP objective needs
// per-point normals to register a scan, per spec §4.7/§7.
func requiresNormals(icpObjective string) bool {
	return icpObjective == "point_to_plane"
}

func fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// GetId returns the submap's own identifier.
func (s *Submap) GetId() string { return s.id }

// GetParentId returns the identifier of the map this submap belongs to.
func (s *Submap) GetParentId() string { return s.parentID }

// GetMapToSubmapOrigin returns the rigid transform from the parent map frame
// to this submap's own (creation-time) origin.
func (s *Submap) GetMapToSubmapOrigin() spatialmath.Pose { return s.mapToSubmap }

// GetCreationTime returns the nanosecond timestamp of the first non-empty
// InsertScan call, and whether one has happened yet.
func (s *Submap) GetCreationTime() (int64, bool) {
	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()
	return s.creationTimeNsec, s.hasCreationTime
}

// GetMapToSubmapCenter returns the transform to the submap's computed
// centroid pose. Fatal if ComputeSubmapCenter has not yet been called,
// mirroring the uncomputed-features contract below, since callers must
// explicitly opt into the (non-trivial) centroid computation.
func (s *Submap) GetMapToSubmapCenter() spatialmath.Pose {
	if !s.submapCenterComputed {
		fatalf("submap %s: GetMapToSubmapCenter called before ComputeSubmapCenter", s.id)
	}
	return s.submapCenter
}

// GetMapPointCloud returns the live map cloud. Callers must not
// mutate it; use GetMapPointCloudCopy for an owned copy.
func (s *Submap) GetMapPointCloud() pointcloud.PointCloud {
	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()
	return s.mapCloud
}

// GetMapPointCloudCopy returns an independent copy of the map cloud.
func (s *Submap) GetMapPointCloudCopy() pointcloud.PointCloud {
	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()
	cp, err := pointcloud.Append(pointcloud.New(), s.mapCloud)
	if err != nil {
		fatalf("submap %s: copying map cloud: %v", s.id, err)
	}
	return cp
}

// GetSparseMapPointCloud returns the live voxel-downsampled sparse
// representation of the map cloud.
func (s *Submap) GetSparseMapPointCloud() pointcloud.PointCloud {
	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()
	return s.sparseMapCloud
}

// GetDenseMap returns the live dense voxel cloud.
func (s *Submap) GetDenseMap() *voxelgrid.VoxelizedCloud {
	s.denseMapMutex.Lock()
	defer s.denseMapMutex.Unlock()
	return s.denseMap
}

// GetDenseMapCopy returns an independent copy of the dense voxel cloud.
func (s *Submap) GetDenseMapCopy() *voxelgrid.VoxelizedCloud {
	s.denseMapMutex.Lock()
	defer s.denseMapMutex.Unlock()
	cp := voxelgrid.New(s.params.DenseMapBuilder.DenseVoxelSize)
	pc := pointcloud.New()
	s.denseMap.Entries(func(k voxelgrid.Key, a voxelgrid.Aggregated) bool {
		var d pointcloud.Data
		if a.HasNormal {
			d = pointcloud.NewNormalData(a.Normal)
		}
		_ = pc.Set(a.Position, d)
		return true
	})
	cp.Insert(pc)
	return cp
}

// GetVoxelMap returns the live sparse voxel index.
func (s *Submap) GetVoxelMap() *voxelindex.VoxelMap {
	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()
	return s.voxelMap
}

// GetFeatures returns the most recently computed place-recognition
// features. Fatal (programmer error) if ComputeFeatures has never been
// called, per spec §7.
func (s *Submap) GetFeatures() features.Result {
	s.featuresMutex.Lock()
	defer s.featuresMutex.Unlock()
	if !s.featuresSet {
		fatalf("submap %s: GetFeatures called before ComputeFeatures", s.id)
	}
	return *s.featureResult
}

// IsEmpty reports whether the map cloud currently holds no points.
func (s *Submap) IsEmpty() bool {
	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()
	return s.mapCloud.Size() == 0
}

// SetParameters replaces the submap's configuration. Per spec, changing
// parameters invalidates the dense map (its voxel size and cropper may no
// longer match), so the dense map is rebuilt empty, and the sparse voxel
// index is rebuilt empty at the new expanded map voxel size; the map cloud
// and the sparse map cloud are left intact since the map voxel size change
// only affects future inserts.
func (s *Submap) SetParameters(params config.MapperParameters) error {
	mapCropper, err := cropping.New(params.MapBuilder.Cropper.Kind, params.MapBuilder.Cropper.Params)
	if err != nil {
		return errors.Wrap(err, "building map cropper")
	}
	denseCropper, err := cropping.New(params.DenseMapBuilder.Cropper.Kind, params.DenseMapBuilder.Cropper.Params)
	if err != nil {
		return errors.Wrap(err, "building dense map cropper")
	}

	s.mapCloudMutex.Lock()
	s.denseMapMutex.Lock()
	defer s.denseMapMutex.Unlock()
	defer s.mapCloudMutex.Unlock()

	s.params = params
	s.mapCropper = mapCropper
	s.denseCropper = denseCropper
	s.mapCarveTimer = carving.NewTimer(params.MapBuilder.Carving.CarveSpaceEveryNsec)
	s.denseCarveTimer = carving.NewTimer(params.DenseMapBuilder.Carving.CarveSpaceEveryNsec)
	s.denseMap = voxelgrid.New(params.DenseMapBuilder.DenseVoxelSize)
	s.voxelMap = voxelindex.NewExpanded(params.MapBuilder.MapVoxelSize, sparseIndexExpansionFactor)

	s.featuresMutex.Lock()
	s.featuresTimer = carving.NewTimer(secondsToNsec(params.Submaps.MinSecondsBetweenFeatureComputation))
	s.featuresMutex.Unlock()
	return nil
}

// InsertScan merges a scan into the map cloud. rawScan is in the
// sensor frame and is the ray source for space carving; preProcessedScan is
// the (possibly filtered/downsampled) cloud actually appended to the map,
// letting a caller feed a cleaned-up cloud into the map while still casting
// carve rays from the sensor's unmodified returns. sensorPose is the pose
// (mapToRangeSensor) of the sensor in the parent map frame at capture time.
// performCarving lets the caller skip a carve pass on this call even when
// carving is enabled in config (e.g. to rate-limit it independent of the
// carve timer). An empty rawScan is a no-op (spec P1) and reports false. The
// first non-empty insert sets the submap's creation time and mapToSubmap
// origin to sensorPose (spec P2).
func (s *Submap) InsertScan(
	rawScan, preProcessedScan pointcloud.PointCloud,
	sensorPose spatialmath.Pose,
	nowNsec int64,
	performCarving bool,
) (bool, error) {
	if rawScan.Size() == 0 {
		return false, nil
	}

	s.mapCloudMutex.Lock()
	defer s.mapCloudMutex.Unlock()

	if !s.hasCreationTime {
		s.creationTimeNsec = nowNsec
		s.hasCreationTime = true
		s.mapToSubmap = sensorPose
	}
	s.mapToRangeSensor = sensorPose

	scanForMap := preProcessedScan
	if requiresNormals(s.params.ScanMatcher.ICPObjective) {
		scanForMap = pointcloud.EstimateNormals(preProcessedScan, s.params.ScanMatcher.KNNNormalEstimation)
	}
	worldScan := pointcloud.Transform(scanForMap, sensorPose)
	merged, err := pointcloud.Append(s.mapCloud, worldScan)
	if err != nil {
		return false, errors.Wrap(err, "merging scan into map cloud")
	}
	s.mapCloud = merged

	if performCarving && s.params.MapBuilder.Carving.Enabled {
		start := time.Now()
		carved, _, ran := carving.PointCloudCarve(
			rawScan, sensorPose, s.mapCropper,
			s.params.MapBuilder.Carving.ToCarvingParams(),
			s.mapCloud, s.mapCarveTimer, nowNsec,
		)
		if ran {
			s.mapCloud = carved
			elapsedMs := float64(time.Since(start).Microseconds()) / 1000
			s.mapCarveStats.record(s.logger, "map builder", elapsedMs, nowNsec)
		}
	}

	s.sparseMapCloud = pointcloud.VoxelDownsample(s.mapCloud, s.params.MapBuilder.MapVoxelSize)
	s.voxelMap.InsertCloud("sparse", s.sparseMapCloud)
	return true, nil
}

// InsertScanDenseMap merges a new scan into the dense voxel cloud,
// independent of (and under a different lock than) the sparse map cloud,
// per spec's two-mutex concurrency model. rawScan is cropped by the dense
// cropping volume set to the identity pose (i.e. in the sensor's own frame)
// before being transformed into the map frame and inserted, so the dense
// map never accumulates points the configured dense cropper would exclude.
// performCarving mirrors InsertScan's parameter of the same name. Reports
// false (no-op) for an empty rawScan.
func (s *Submap) InsertScanDenseMap(
	rawScan pointcloud.PointCloud,
	sensorPose spatialmath.Pose,
	nowNsec int64,
	performCarving bool,
) bool {
	if rawScan.Size() == 0 {
		return false
	}

	s.denseMapMutex.Lock()
	defer s.denseMapMutex.Unlock()

	s.denseCropper.SetPose(spatialmath.NewZeroPose())
	croppedScan := s.denseCropper.Crop(rawScan)
	worldScan := pointcloud.Transform(croppedScan, sensorPose)
	s.denseMap.Insert(worldScan)

	if performCarving && s.params.DenseMapBuilder.Carving.Enabled {
		start := time.Now()
		_, ran := carving.VoxelCarve(
			rawScan, sensorPose, s.denseCropper,
			s.params.DenseMapBuilder.Carving.ToCarvingParams(),
			s.denseMap, s.denseCarveTimer, nowNsec,
		)
		if ran {
			elapsedMs := float64(time.Since(start).Microseconds()) / 1000
			s.denseCarveStats.record(s.logger, "dense map builder", elapsedMs, nowNsec)
		}
	}
	return true
}

// Transform rigid-transforms the submap's entire state — map cloud, sparse
// map cloud, dense map, and the mapToSubmap/mapToRangeSensor anchors — by t.
// Per the corrected reading of the source's Open Question (a), the sparse
// map cloud's mutation is covered by mapCloudMutex along with the rest of
// the sparse state, so that a concurrent reader never observes mapCloud and
// sparseMapCloud transformed by different amounts.
func (s *Submap) Transform(t spatialmath.Pose) {
	s.mapCloudMutex.Lock()
	s.mapCloud = pointcloud.Transform(s.mapCloud, t)
	s.sparseMapCloud = pointcloud.Transform(s.sparseMapCloud, t)
	s.voxelMap.InsertCloud("sparse", s.sparseMapCloud)
	s.mapToSubmap = spatialmath.Compose(t, s.mapToSubmap)
	s.mapToRangeSensor = spatialmath.Compose(t, s.mapToRangeSensor)
	if s.submapCenterComputed {
		s.submapCenter = spatialmath.Compose(t, s.submapCenter)
	}
	s.mapCloudMutex.Unlock()

	s.denseMapMutex.Lock()
	s.denseMap.Transform(t)
	s.denseMapMutex.Unlock()
}

// ComputeSubmapCenter computes and caches the submap's centroid pose (the
// mean position of the map cloud, identity-oriented), in the parent
// map frame.
func (s *Submap) ComputeSubmapCenter() spatialmath.Pose {
	s.mapCloudMutex.Lock()
	centroid := pointcloud.Centroid(s.mapCloud)
	s.mapCloudMutex.Unlock()

	center := spatialmath.NewPoseFromPoint(centroid)
	s.submapCenter = center
	s.submapCenterComputed = true
	return center
}

// ComputeFeatures rebuilds the sparse voxel index and the place-recognition
// feature set concurrently, since neither depends on the other's output;
// the two goroutines are joined with errgroup before ComputeFeatures
// returns, per spec §4.7. Gated by MinSecondsBetweenFeatureComputation: a
// call before that interval has elapsed since the last run is a no-op.
func (s *Submap) ComputeFeatures(nowNsec int64) error {
	s.featuresMutex.Lock()
	if !s.featuresTimer.Due(nowNsec) {
		s.featuresMutex.Unlock()
		return nil
	}
	s.featuresTimer.Reset(nowNsec)
	s.featuresMutex.Unlock()

	s.mapCloudMutex.Lock()
	mapCloud := s.mapCloud
	cp, err := pointcloud.Append(pointcloud.New(), mapCloud)
	if err != nil {
		s.mapCloudMutex.Unlock()
		return errors.Wrap(err, "copying map cloud for feature computation")
	}
	s.mapCloudMutex.Unlock()

	var g errgroup.Group
	var computed features.Result
	g.Go(func() error {
		computed = features.Compute(cp, featureParams(s.params.PlaceRecognition))
		return nil
	})
	g.Go(func() error {
		s.mapCloudMutex.Lock()
		s.sparseMapCloud = pointcloud.VoxelDownsample(s.mapCloud, s.params.MapBuilder.MapVoxelSize)
		s.voxelMap.InsertCloud("sparse", s.sparseMapCloud)
		s.mapCloudMutex.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.featuresMutex.Lock()
	s.featureResult = &computed
	s.featuresSet = true
	s.featuresMutex.Unlock()
	return nil
}

func featureParams(p config.PlaceRecognitionParameters) features.Params {
	return features.Params{
		FeatureVoxelSize:       p.FeatureVoxelSize,
		NormalEstimationRadius: p.NormalEstimationRadius,
		NormalKnn:              p.NormalKnn,
		FeatureRadius:          p.FeatureRadius,
		FeatureKnn:             p.FeatureKnn,
	}
}
