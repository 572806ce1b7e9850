package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/submap/spatialmath"
)

// EstimateNormals returns a new PointCloud with each point's normal fit to
// the local plane spanned by its knn nearest neighbors (self included) via
// PCA: the normal is the eigenvector of the neighborhood's covariance
// matrix with the smallest eigenvalue. No normal is fitted for points with
// fewer than 3 neighbors; they keep their existing attributes unchanged
// (including any normal they already carried).
func EstimateNormals(pc PointCloud, knn int) PointCloud {
	kd := NewKDTree(pc)
	out := NewWithPrealloc(pc.Size())
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		neighbors := kd.KNearestNeighbors(p, knn, true)
		normal, ok := planeNormal(neighbors)
		newD := d
		if ok {
			newD = withNormal(d, normal)
		}
		_ = out.Set(p, newD)
		return true
	})
	return out
}

// planeNormal fits a plane to the given neighborhood via the smallest
// eigenvector of the position covariance matrix. Reports false if fewer
// than 3 points are given.
func planeNormal(neighbors []*PointAndData) (r3.Vector, bool) {
	if len(neighbors) < 3 {
		return r3.Vector{}, false
	}
	var mean r3.Vector
	for _, n := range neighbors {
		mean = mean.Add(n.P)
	}
	mean = mean.Mul(1 / float64(len(neighbors)))

	var cxx, cxy, cxz, cyy, cyz, czz float64
	for _, n := range neighbors {
		d := n.P.Sub(mean)
		cxx += d.X * d.X
		cxy += d.X * d.Y
		cxz += d.X * d.Z
		cyy += d.Y * d.Y
		cyz += d.Y * d.Z
		czz += d.Z * d.Z
	}
	cov := mat.NewSymDense(3, []float64{
		cxx, cxy, cxz,
		cxy, cyy, cyz,
		cxz, cyz, czz,
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return r3.Vector{}, false
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	minIdx := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[minIdx] {
			minIdx = i
		}
	}
	normal := r3.Vector{
		X: vecs.At(0, minIdx),
		Y: vecs.At(1, minIdx),
		Z: vecs.At(2, minIdx),
	}
	return spatialmath.NormalizeVector(normal), true
}

// NormalizeNormals returns a new PointCloud with every present normal
// rescaled to unit length.
func NormalizeNormals(pc PointCloud) PointCloud {
	out := NewWithPrealloc(pc.Size())
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		newD := d
		if HasNormal(d) {
			newD = withNormal(d, spatialmath.NormalizeVector(d.NormalVector()))
		}
		_ = out.Set(p, newD)
		return true
	})
	return out
}

// OrientNormalsTowardsCameraLocation returns a new PointCloud with every
// present normal flipped, if needed, so that it has a non-negative dot
// product with (cameraLocation - point).
func OrientNormalsTowardsCameraLocation(pc PointCloud, cameraLocation r3.Vector) PointCloud {
	out := NewWithPrealloc(pc.Size())
	pc.Iterate(1, 0, func(p r3.Vector, d Data) bool {
		newD := d
		if HasNormal(d) {
			n := d.NormalVector()
			view := cameraLocation.Sub(p)
			if n.Dot(view) < 0 {
				n = n.Mul(-1)
			}
			newD = withNormal(d, n)
		}
		_ = out.Set(p, newD)
		return true
	})
	return out
}
