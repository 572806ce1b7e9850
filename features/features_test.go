package features

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/submap/pointcloud"
)

func planeCloud() pointcloud.PointCloud {
	pc := pointcloud.New()
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			p := r3.Vector{X: float64(i) * 0.1, Y: float64(j) * 0.1, Z: 0}
			_ = pc.Set(p, nil)
		}
	}
	return pc
}

func defaultTestParams() Params {
	return Params{
		FeatureVoxelSize:       0.05,
		NormalEstimationRadius: 0.3,
		NormalKnn:              10,
		FeatureRadius:          0.3,
		FeatureKnn:             10,
	}
}

func TestComputeProducesOneDescriptorPerSparsePoint(t *testing.T) {
	res := Compute(planeCloud(), defaultTestParams())
	rows, cols := res.Descriptors.Dims()
	test.That(t, rows, test.ShouldEqual, res.Sparse.Size())
	test.That(t, cols, test.ShouldEqual, descriptorDims)
}

func TestComputeOrientsNormalsTowardOrigin(t *testing.T) {
	res := Compute(planeCloud(), defaultTestParams())
	res.Sparse.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if pointcloud.HasNormal(d) {
			view := r3.Vector{}.Sub(p)
			test.That(t, d.NormalVector().Dot(view), test.ShouldBeGreaterThanOrEqualTo, -1e-9)
		}
		return true
	})
}

func TestComputeEmptyCloudYieldsNoDescriptors(t *testing.T) {
	res := Compute(pointcloud.New(), defaultTestParams())
	test.That(t, res.Sparse.Size(), test.ShouldEqual, 0)
	rows, _ := res.Descriptors.Dims()
	test.That(t, rows, test.ShouldEqual, 0)
}

func TestBinClampsOutOfRange(t *testing.T) {
	test.That(t, bin(-5, -1, 1), test.ShouldEqual, 0)
	test.That(t, bin(5, -1, 1), test.ShouldEqual, histBins-1)
}
