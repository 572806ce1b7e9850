package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()

	p0 := NewVector(0, 0, 0)
	d0 := NewValueData(5)
	test.That(t, pc.Set(p0, d0), test.ShouldBeNil)

	d, got := pc.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d, test.ShouldResemble, d0)

	_, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeFalse)

	p1 := NewVector(1, 0, 1)
	d1 := NewValueData(17)
	test.That(t, pc.Set(p1, d1), test.ShouldBeNil)

	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, CloudContains(pc, 1, 1, 1), test.ShouldBeFalse)
	test.That(t, CloudContains(pc, 1, 0, 1), test.ShouldBeTrue)
}

func TestPointCloudSetOutOfRange(t *testing.T) {
	pc := New()
	err := pc.Set(r3.Vector{X: maxPreciseFloat64 + 1, Y: 0, Z: 0}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "x component")

	err = pc.Set(r3.Vector{X: 0, Y: minPreciseFloat64 - 1, Z: 0}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "y component")
}

func TestPointCloudIterateBatches(t *testing.T) {
	pc := New()
	for i := 0; i < 10; i++ {
		test.That(t, pc.Set(NewVector(float64(i), 0, 0), nil), test.ShouldBeNil)
	}
	count := 0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		count++
		return true
	})
	test.That(t, count, test.ShouldEqual, 10)

	total := 0
	for batch := 0; batch < 3; batch++ {
		pc.Iterate(3, batch, func(p r3.Vector, d Data) bool {
			total++
			return true
		})
	}
	test.That(t, total, test.ShouldEqual, 10)
}

func TestUnset(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(1, 1, 1), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(2, 2, 2), nil), test.ShouldBeNil)
	pc.Unset(1, 1, 1)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
	test.That(t, CloudContains(pc, 1, 1, 1), test.ShouldBeFalse)
	test.That(t, CloudContains(pc, 2, 2, 2), test.ShouldBeTrue)
}

func TestRemoveIndices(t *testing.T) {
	pc := New()
	for i := 0; i < 5; i++ {
		test.That(t, pc.Set(NewVector(float64(i), 0, 0), nil), test.ShouldBeNil)
	}
	out := RemoveIndices(pc, []int{1, 3})
	test.That(t, out.Size(), test.ShouldEqual, 3)
	test.That(t, CloudContains(out, 1, 0, 0), test.ShouldBeFalse)
	test.That(t, CloudContains(out, 3, 0, 0), test.ShouldBeFalse)
	test.That(t, CloudContains(out, 0, 0, 0), test.ShouldBeTrue)
}
