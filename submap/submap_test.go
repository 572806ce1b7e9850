package submap

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/submap/config"
	"go.viam.com/submap/logging"
	"go.viam.com/submap/pointcloud"
	"go.viam.com/submap/spatialmath"
)

func testParams() config.MapperParameters {
	p := config.Default()
	p.MapBuilder.Carving.CarveSpaceEveryNsec = 0
	p.DenseMapBuilder.Carving.CarveSpaceEveryNsec = 0
	return p
}

func newTestSubmap(t *testing.T) *Submap {
	t.Helper()
	sm, err := New("submap-1", "map-1", testParams(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return sm
}

func TestEmptyScanIsNoOp(t *testing.T) {
	sm := newTestSubmap(t)
	inserted, err := sm.InsertScan(pointcloud.New(), pointcloud.New(), spatialmath.NewZeroPose(), 100, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inserted, test.ShouldBeFalse)
	test.That(t, sm.IsEmpty(), test.ShouldBeTrue)
	_, has := sm.GetCreationTime()
	test.That(t, has, test.ShouldBeFalse)
}

func TestFirstInsertSetsCreationTimeAndOrigin(t *testing.T) {
	sm := newTestSubmap(t)
	scan := pointcloud.New()
	test.That(t, scan.Set(r3.Vector{X: 1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	pose := spatialmath.NewPoseFromPoint(r3.Vector{X: 10, Y: 0, Z: 0})

	inserted, err := sm.InsertScan(scan, scan, pose, 1000, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inserted, test.ShouldBeTrue)
	ct, has := sm.GetCreationTime()
	test.That(t, has, test.ShouldBeTrue)
	test.That(t, ct, test.ShouldEqual, int64(1000))
	test.That(t, sm.GetMapToSubmapOrigin().Point(), test.ShouldResemble, pose.Point())

	scan2 := pointcloud.New()
	test.That(t, scan2.Set(r3.Vector{X: 2, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	pose2 := spatialmath.NewPoseFromPoint(r3.Vector{X: 20, Y: 0, Z: 0})
	_, err = sm.InsertScan(scan2, scan2, pose2, 2000, true)
	test.That(t, err, test.ShouldBeNil)
	ct2, _ := sm.GetCreationTime()
	test.That(t, ct2, test.ShouldEqual, int64(1000)) // unchanged on subsequent inserts
}

func TestInsertScanGrowsMapCloud(t *testing.T) {
	sm := newTestSubmap(t)
	scan := pointcloud.New()
	test.That(t, scan.Set(r3.Vector{X: 1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	test.That(t, scan.Set(r3.Vector{X: 2, Y: 0, Z: 0}, nil), test.ShouldBeNil)

	_, err := sm.InsertScan(scan, scan, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sm.GetMapPointCloud().Size(), test.ShouldEqual, 2)
	test.That(t, sm.IsEmpty(), test.ShouldBeFalse)
}

func TestCarvingRemovesOccludedPointOnInsert(t *testing.T) {
	sm := newTestSubmap(t)
	params := testParams()
	params.MapBuilder.Cropper.Params.Radius = 1000
	test.That(t, sm.SetParameters(params), test.ShouldBeNil)

	first := pointcloud.New()
	test.That(t, first.Set(r3.Vector{X: 5, Y: 0, Z: 0}, pointcloud.NewNormalData(r3.Vector{X: -1, Y: 0, Z: 0})), test.ShouldBeNil)
	_, err := sm.InsertScan(first, first, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sm.GetMapPointCloud().Size(), test.ShouldEqual, 1)

	second := pointcloud.New()
	test.That(t, second.Set(r3.Vector{X: 3, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	_, err = sm.InsertScan(second, second, spatialmath.NewZeroPose(), 1, true)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, sm.GetMapPointCloud().Size(), test.ShouldEqual, 1) // old point carved, new return remains
}

func TestInsertScanSkipsCarvingWhenPerformCarvingFalse(t *testing.T) {
	sm := newTestSubmap(t)
	params := testParams()
	params.MapBuilder.Cropper.Params.Radius = 1000
	test.That(t, sm.SetParameters(params), test.ShouldBeNil)

	first := pointcloud.New()
	test.That(t, first.Set(r3.Vector{X: 5, Y: 0, Z: 0}, pointcloud.NewNormalData(r3.Vector{X: -1, Y: 0, Z: 0})), test.ShouldBeNil)
	_, err := sm.InsertScan(first, first, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)

	second := pointcloud.New()
	test.That(t, second.Set(r3.Vector{X: 3, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	_, err = sm.InsertScan(second, second, spatialmath.NewZeroPose(), 1, false)
	test.That(t, err, test.ShouldBeNil)

	// performCarving=false: the occluded first point survives even though
	// carving is enabled in config.
	test.That(t, sm.GetMapPointCloud().Size(), test.ShouldEqual, 2)
}

func TestTransformMovesMapAndDenseMapTogether(t *testing.T) {
	sm := newTestSubmap(t)
	scan := pointcloud.New()
	test.That(t, scan.Set(r3.Vector{X: 1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	_, err := sm.InsertScan(scan, scan, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)
	sm.InsertScanDenseMap(scan, spatialmath.NewZeroPose(), 0, true)

	shift := spatialmath.NewPoseFromPoint(r3.Vector{X: 10, Y: 0, Z: 0})
	sm.Transform(shift)

	mapCloud := sm.GetMapPointCloud()
	found := false
	mapCloud.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if p.X > 10.5 && p.X < 11.5 {
			found = true
		}
		return true
	})
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, sm.GetDenseMap().IsEmpty(), test.ShouldBeFalse)
}

func TestSetParametersResetsDenseMap(t *testing.T) {
	sm := newTestSubmap(t)
	scan := pointcloud.New()
	test.That(t, scan.Set(r3.Vector{X: 1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	sm.InsertScanDenseMap(scan, spatialmath.NewZeroPose(), 0, true)
	test.That(t, sm.GetDenseMap().IsEmpty(), test.ShouldBeFalse)

	test.That(t, sm.SetParameters(testParams()), test.ShouldBeNil)
	test.That(t, sm.GetDenseMap().IsEmpty(), test.ShouldBeTrue)
}

func TestGetFeaturesFatalBeforeCompute(t *testing.T) {
	sm := newTestSubmap(t)
	defer func() {
		r := recover()
		test.That(t, r, test.ShouldNotBeNil)
	}()
	sm.GetFeatures()
}

func TestComputeFeaturesPopulatesFeatures(t *testing.T) {
	sm := newTestSubmap(t)
	scan := pointcloud.New()
	for i := 0; i < 10; i++ {
		test.That(t, scan.Set(r3.Vector{X: float64(i) * 0.1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	}
	_, err := sm.InsertScan(scan, scan, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, sm.ComputeFeatures(0), test.ShouldBeNil)
	res := sm.GetFeatures()
	rows, cols := res.Descriptors.Dims()
	test.That(t, rows, test.ShouldEqual, res.Sparse.Size())
	test.That(t, cols, test.ShouldEqual, 33)
}

func TestComputeFeaturesGatedByMinSecondsBetweenFeatureComputation(t *testing.T) {
	params := testParams()
	params.Submaps.MinSecondsBetweenFeatureComputation = 5
	sm, err := New("submap-1", "map-1", params, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	scan := pointcloud.New()
	for i := 0; i < 10; i++ {
		test.That(t, scan.Set(r3.Vector{X: float64(i) * 0.1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	}
	_, err = sm.InsertScan(scan, scan, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, sm.ComputeFeatures(0), test.ShouldBeNil)
	first := sm.GetFeatures()

	// Back-to-back call within the configured interval is a no-op: the
	// cached feature result (and the object it points to) is unchanged.
	test.That(t, sm.ComputeFeatures(1_000_000_000), test.ShouldBeNil)
	second := sm.GetFeatures()
	test.That(t, second.Descriptors == first.Descriptors, test.ShouldBeTrue)

	// Past the interval, a subsequent call recomputes.
	test.That(t, sm.ComputeFeatures(6_000_000_000), test.ShouldBeNil)
}

func TestComputeSubmapCenterIsMeanPosition(t *testing.T) {
	sm := newTestSubmap(t)
	scan := pointcloud.New()
	test.That(t, scan.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	test.That(t, scan.Set(r3.Vector{X: 2, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	_, err := sm.InsertScan(scan, scan, spatialmath.NewZeroPose(), 0, true)
	test.That(t, err, test.ShouldBeNil)

	center := sm.ComputeSubmapCenter()
	test.That(t, center.Point().X, test.ShouldAlmostEqual, 1.0, 1e-9)
}
