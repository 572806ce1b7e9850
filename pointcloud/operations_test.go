package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/submap/spatialmath"
)

func TestTransform(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 0, Z: 0}, withNormal(nil, r3.Vector{X: 1, Y: 0, Z: 0})), test.ShouldBeNil)

	tform := spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	out := Transform(pc, tform)
	test.That(t, out.Size(), test.ShouldEqual, 1)
	d, ok := out.At(2, 0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.NormalVector(), test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 0})
}

func TestAppend(t *testing.T) {
	a := New()
	test.That(t, a.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	b := New()
	test.That(t, b.Set(r3.Vector{X: 1, Y: 0, Z: 0}, nil), test.ShouldBeNil)

	merged, err := Append(a, b)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merged.Size(), test.ShouldEqual, 2)
}

func TestSelectByIndex(t *testing.T) {
	pc := New()
	for i := 0; i < 5; i++ {
		test.That(t, pc.Set(r3.Vector{X: float64(i)}, nil), test.ShouldBeNil)
	}
	out := SelectByIndex(pc, []int{0, 2, 4})
	test.That(t, out.Size(), test.ShouldEqual, 3)
}

func TestCentroid(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 2, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	c := Centroid(pc)
	test.That(t, c, test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 0})

	empty := New()
	test.That(t, Centroid(empty), test.ShouldResemble, r3.Vector{})
}
