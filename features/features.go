// Package features implements the place-recognition feature extractor
// (C6): sparse downsample, normal orientation, and FPFH-style descriptor
// computation.
package features

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/submap/pointcloud"
)

// descriptorDims is the length of the FPFH-family descriptor per point:
// three 11-bin angular histograms (SPFH components), concatenated.
const descriptorDims = 33

const histBins = 11

// Params configures feature extraction, per spec §4.6.
type Params struct {
	FeatureVoxelSize       float64
	NormalEstimationRadius float64
	NormalKnn              int
	FeatureRadius          float64
	FeatureKnn             int
}

// Result is the output of Compute: a sparse point cloud (with oriented
// normals) and its paired descriptor matrix, shaped (|sparse|, 33). An
// empty sparse cloud is paired with an empty matrix of zero rows and columns.
type Result struct {
	Sparse      pointcloud.PointCloud
	Descriptors *mat.Dense
}

// Compute runs the full pipeline: voxel-downsample world-frame cloud,
// estimate normals via hybrid radius+knn, normalize, orient toward world
// origin, then compute a 33-dim FPFH-family descriptor per sparse point
// using a second hybrid radius+knn neighborhood. Idempotent modulo
// floating-point tie-break ordering, per spec.
func Compute(worldCloud pointcloud.PointCloud, params Params) Result {
	sparse := pointcloud.VoxelDownsample(worldCloud, params.FeatureVoxelSize)

	kd := pointcloud.NewKDTree(sparse)
	withNormals := pointcloud.NewWithPrealloc(sparse.Size())
	sparse.Iterate(1, 0, func(p r3.Vector, d pointcloud.Data) bool {
		neighbors := kd.HybridNeighbors(p, params.NormalEstimationRadius, params.NormalKnn)
		normal, ok := fitPlaneNormal(neighbors)
		newD := d
		if ok {
			newD = pointcloud.NewNormalData(normal)
		}
		_ = withNormals.Set(p, newD)
		return true
	})
	sparse = pointcloud.NormalizeNormals(withNormals)
	sparse = pointcloud.OrientNormalsTowardsCameraLocation(sparse, r3.Vector{})

	n := sparse.Size()
	if n == 0 {
		return Result{Sparse: sparse, Descriptors: &mat.Dense{}}
	}
	descriptors := mat.NewDense(n, descriptorDims, nil)
	kd = pointcloud.NewKDTree(sparse)
	points := pointcloud.Points(sparse)
	for i := range points {
		pd := points[i]
		neighbors := kd.HybridNeighbors(pd.P, params.FeatureRadius, params.FeatureKnn)
		hist := spfh(&pd, neighbors)
		descriptors.SetRow(i, hist)
	}
	return Result{Sparse: sparse, Descriptors: descriptors}
}

// fitPlaneNormal is shared with pointcloud.EstimateNormals's covariance
// approach; reimplemented locally to keep the feature pipeline independent
// of map-building normal estimation parameters.
func fitPlaneNormal(neighbors []*pointcloud.PointAndData) (r3.Vector, bool) {
	if len(neighbors) < 3 {
		return r3.Vector{}, false
	}
	var mean r3.Vector
	for _, nb := range neighbors {
		mean = mean.Add(nb.P)
	}
	mean = mean.Mul(1 / float64(len(neighbors)))

	var cxx, cxy, cxz, cyy, cyz, czz float64
	for _, nb := range neighbors {
		d := nb.P.Sub(mean)
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
	n := r3.Vector{X: vecs.At(0, minIdx), Y: vecs.At(1, minIdx), Z: vecs.At(2, minIdx)}
	norm := n.Norm()
	if norm < 1e-12 {
		return r3.Vector{}, false
	}
	return n.Mul(1 / norm), true
}

// spfh computes the simplified point feature histogram for center against
// its neighbors: three histograms of the classic FPFH angular triplet
// (alpha, phi, theta), each binned into histBins bins, concatenated.
func spfh(center *pointcloud.PointAndData, neighbors []*pointcloud.PointAndData) []float64 {
	out := make([]float64, descriptorDims)
	if !pointcloud.HasNormal(center.D) || len(neighbors) == 0 {
		return out
	}
	nCenter := center.D.NormalVector()

	var alphaHist, phiHist, thetaHist [histBins]float64
	count := 0
	for _, nb := range neighbors {
		if nb.P == center.P || !pointcloud.HasNormal(nb.D) {
			continue
		}
		diff := nb.P.Sub(center.P)
		dist := diff.Norm()
		if dist < 1e-9 {
			continue
		}
		u := nCenter
		dir := diff.Mul(1 / dist)
		v := u.Cross(dir)
		vNorm := v.Norm()
		if vNorm < 1e-9 {
			continue
		}
		v = v.Mul(1 / vNorm)
		w := u.Cross(v)
		nNb := nb.D.NormalVector()

		alpha := v.Dot(nNb)
		phi := u.Dot(dir)
		theta := math.Atan2(w.Dot(nNb), u.Dot(nNb))

		alphaHist[bin(alpha, -1, 1)]++
		phiHist[bin(phi, -1, 1)]++
		thetaHist[bin(theta, -math.Pi, math.Pi)]++
		count++
	}
	if count == 0 {
		return out
	}
	for i := 0; i < histBins; i++ {
		out[i] = alphaHist[i] / float64(count)
		out[histBins+i] = phiHist[i] / float64(count)
		out[2*histBins+i] = thetaHist[i] / float64(count)
	}
	return out
}

func bin(v, lo, hi float64) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	frac := (v - lo) / (hi - lo)
	idx := int(frac * float64(histBins))
	if idx >= histBins {
		idx = histBins - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
