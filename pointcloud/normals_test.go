package pointcloud

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestEstimateNormalsOnPlane(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	for i := 0; i < 200; i++ {
		p := r3.Vector{X: rand.Float64(), Y: rand.Float64(), Z: 0}
		test.That(t, pc.Set(p, nil), test.ShouldBeNil)
	}
	out := EstimateNormals(pc, 10)
	d, ok := out.At(0, 0, 0)
	_ = ok
	test.That(t, d, test.ShouldNotBeNil)
	if HasNormal(d) {
		n := d.NormalVector()
		test.That(t, n.Z*n.Z, test.ShouldBeGreaterThan, 0.9)
	}
}

func TestEstimateNormalsTooFewPoints(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	out := EstimateNormals(pc, 10)
	d, _ := out.At(0, 0, 0)
	test.That(t, HasNormal(d), test.ShouldBeFalse)
}

func TestNormalizeNormals(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 0}, withNormal(nil, r3.Vector{X: 2, Y: 0, Z: 0})), test.ShouldBeNil)
	out := NormalizeNormals(pc)
	d, _ := out.At(0, 0, 0)
	test.That(t, d.NormalVector().Norm(), test.ShouldAlmostEqual, 1.0)
}

func TestOrientNormalsTowardsCameraLocation(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 0, Z: 0}, withNormal(nil, r3.Vector{X: -1, Y: 0, Z: 0})), test.ShouldBeNil)
	out := OrientNormalsTowardsCameraLocation(pc, r3.Vector{X: 0, Y: 0, Z: 0})
	d, _ := out.At(1, 0, 0)
	n := d.NormalVector()
	test.That(t, n.X, test.ShouldBeLessThan, 0)
}
