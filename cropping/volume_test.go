package cropping

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/submap/pointcloud"
	"go.viam.com/submap/spatialmath"
)

func makeLineCloud(t *testing.T) pointcloud.PointCloud {
	t.Helper()
	pc := pointcloud.New()
	for i := -5; i <= 5; i++ {
		test.That(t, pc.Set(r3.Vector{X: float64(i)}, nil), test.ShouldBeNil)
	}
	return pc
}

func TestSphereCrop(t *testing.T) {
	v, err := New(Sphere, Params{Radius: 2.5})
	test.That(t, err, test.ShouldBeNil)
	pc := makeLineCloud(t)
	out := v.Crop(pc)
	test.That(t, out.Size(), test.ShouldEqual, 5) // -2,-1,0,1,2
}

func TestBoundaryInclusive(t *testing.T) {
	v, err := New(Sphere, Params{Radius: 2.0})
	test.That(t, err, test.ShouldBeNil)
	pc := pointcloud.New()
	test.That(t, pc.Set(r3.Vector{X: 2.0}, nil), test.ShouldBeNil)
	test.That(t, v.Crop(pc).Size(), test.ShouldEqual, 1)
}

func TestSetPoseShiftsVolume(t *testing.T) {
	v, err := New(Sphere, Params{Radius: 1.0})
	test.That(t, err, test.ShouldBeNil)
	v.SetPose(spatialmath.NewPoseFromPoint(r3.Vector{X: 3}))
	pc := makeLineCloud(t)
	out := v.Crop(pc)
	test.That(t, out.Size(), test.ShouldEqual, 3) // 2,3,4
}

func TestIndicesWithinSorted(t *testing.T) {
	v, err := New(MaxRadius, Params{Radius: 1.5})
	test.That(t, err, test.ShouldBeNil)
	pc := makeLineCloud(t)
	idxs := v.IndicesWithin(pc)
	test.That(t, len(idxs) > 0, test.ShouldBeTrue)
	for i := 1; i < len(idxs); i++ {
		test.That(t, idxs[i] > idxs[i-1], test.ShouldBeTrue)
	}
}

func TestCylinderZBounds(t *testing.T) {
	v, err := New(Cylinder, Params{Radius: 5, MinZ: 0, MaxZ: 2})
	test.That(t, err, test.ShouldBeNil)
	pc := pointcloud.New()
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 1}, nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 5}, nil), test.ShouldBeNil)
	out := v.Crop(pc)
	test.That(t, out.Size(), test.ShouldEqual, 1)
}
