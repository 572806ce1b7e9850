package spatialmath

import "github.com/golang/geo/r3"

// NormalizeVector rescales v to unit length. The zero vector is returned
// unchanged.
func NormalizeVector(v r3.Vector) r3.Vector {
	n := v.Norm()
	if n < 1e-12 {
		return v
	}
	return v.Mul(1 / n)
}
