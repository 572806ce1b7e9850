package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// KDTree is a static k-d tree over a PointCloud snapshot, used for nearest-
// neighbor queries by normal estimation (C1) and the feature extractor (C6).
type KDTree struct {
	cloud PointCloud
	root  *kdNode
}

type kdNode struct {
	point PointAndData
	axis  int
	left  *kdNode
	right *kdNode
}

// NewKDTree builds a static k-d tree over the current contents of cloud.
// NewKDTree also satisfies the PointCloud interface by delegating
// mutation/query calls to the wrapped cloud. NearestNeighbor walks the tree
// and sees Set/Unset calls made after construction only after a call to
// Rebuild; KNearestNeighbors and RadiusNearestNeighbors scan the wrapped
// cloud directly.
func NewKDTree(cloud PointCloud) *KDTree {
	kd := &KDTree{cloud: cloud}
	kd.Rebuild()
	return kd
}

// Rebuild reconstructs the tree from the current contents of the wrapped
// cloud. Called automatically by NewKDTree; exposed so callers that mutate
// the wrapped cloud via Set/Unset can refresh query results.
func (kd *KDTree) Rebuild() {
	points := Points(kd.cloud)
	kd.root = build(points, 0)
}

func build(points []PointAndData, depth int) *kdNode {
	if len(points) == 0 {
		return nil
	}
	axis := depth % 3
	sort.Slice(points, func(i, j int) bool {
		return axisValue(points[i].P, axis) < axisValue(points[j].P, axis)
	})
	mid := len(points) / 2
	node := &kdNode{point: points[mid], axis: axis}
	node.left = build(points[:mid], depth+1)
	node.right = build(points[mid+1:], depth+1)
	return node
}

func axisValue(p r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// Set inserts p into the wrapped cloud. The tree is not incrementally
// updated; call Rebuild to pick up the change in subsequent queries.
func (kd *KDTree) Set(p r3.Vector, d Data) error {
	return kd.cloud.Set(p, d)
}

// Size delegates to the wrapped cloud.
func (kd *KDTree) Size() int { return kd.cloud.Size() }

// At delegates to the wrapped cloud.
func (kd *KDTree) At(x, y, z float64) (Data, bool) { return kd.cloud.At(x, y, z) }

// Unset removes the point from the wrapped cloud. Like Set, it does not
// update the tree; call Rebuild to pick up the change.
func (kd *KDTree) Unset(x, y, z float64) { kd.cloud.Unset(x, y, z) }

// Iterate delegates to the wrapped cloud.
func (kd *KDTree) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	kd.cloud.Iterate(numBatches, myBatch, fn)
}

// NearestNeighbor returns the closest point to pt, its Data, the distance,
// and whether the tree is non-empty.
func (kd *KDTree) NearestNeighbor(pt r3.Vector) (r3.Vector, Data, float64, bool) {
	if kd.root == nil {
		return r3.Vector{}, nil, 0, false
	}
	best := kd.root
	bestDist := pt.Sub(kd.root.point.P).Norm2()
	searchNearest(kd.root, pt, 0, &best, &bestDist)
	return best.point.P, best.point.D, pt.Sub(best.point.P).Norm(), true
}

func searchNearest(n *kdNode, pt r3.Vector, depth int, best **kdNode, bestDist *float64) {
	if n == nil {
		return
	}
	d := pt.Sub(n.point.P).Norm2()
	if d < *bestDist {
		*bestDist = d
		*best = n
	}
	diff := axisValue(pt, n.axis) - axisValue(n.point.P, n.axis)
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	searchNearest(near, pt, depth+1, best, bestDist)
	if diff*diff < *bestDist {
		searchNearest(far, pt, depth+1, best, bestDist)
	}
}

// KNearestNeighbors returns up to k closest points to pt, sorted by
// increasing distance. includeSelf controls whether a point at exactly pt
// is included in the results.
func (kd *KDTree) KNearestNeighbors(pt r3.Vector, k int, includeSelf bool) []*PointAndData {
	all := Points(kd.cloud)
	type scored struct {
		pd   PointAndData
		dist float64
	}
	scoredPts := make([]scored, 0, len(all))
	for _, pd := range all {
		if !includeSelf && pd.P == pt {
			continue
		}
		scoredPts = append(scoredPts, scored{pd, pt.Sub(pd.P).Norm2()})
	}
	sort.Slice(scoredPts, func(i, j int) bool { return scoredPts[i].dist < scoredPts[j].dist })
	if k > len(scoredPts) {
		k = len(scoredPts)
	}
	out := make([]*PointAndData, 0, k)
	for i := 0; i < k; i++ {
		pd := scoredPts[i].pd
		out = append(out, &pd)
	}
	return out
}

// RadiusNearestNeighbors returns every point within radius of pt, sorted by
// increasing distance. includeSelf controls whether a point at exactly pt
// is included in the results.
func (kd *KDTree) RadiusNearestNeighbors(pt r3.Vector, radius float64, includeSelf bool) []*PointAndData {
	all := Points(kd.cloud)
	type scored struct {
		pd   PointAndData
		dist float64
	}
	scoredPts := make([]scored, 0)
	for _, pd := range all {
		if !includeSelf && pd.P == pt {
			continue
		}
		d2 := pt.Sub(pd.P).Norm2()
		if math.Sqrt(d2) <= radius {
			scoredPts = append(scoredPts, scored{pd, d2})
		}
	}
	sort.Slice(scoredPts, func(i, j int) bool { return scoredPts[i].dist < scoredPts[j].dist })
	out := make([]*PointAndData, 0, len(scoredPts))
	for _, s := range scoredPts {
		pd := s.pd
		out = append(out, &pd)
	}
	return out
}

// HybridNeighbors returns the neighbors of pt within radius, capped to at
// most knn results (closest first) — the hybrid radius+knn query used by
// normal estimation and the feature extractor.
func (kd *KDTree) HybridNeighbors(pt r3.Vector, radius float64, knn int) []*PointAndData {
	within := kd.RadiusNearestNeighbors(pt, radius, true)
	if knn > 0 && len(within) > knn {
		within = within[:knn]
	}
	return within
}

// ToKDTree is an alias constructor for building a tree from an existing
// cloud ahead of a registration step.
func ToKDTree(cloud PointCloud) *KDTree {
	return NewKDTree(cloud)
}

// StatisticalOutlierFilter returns a filter function that removes points
// whose mean distance to their meanK nearest neighbors exceeds the cloud-
// wide mean by more than stdDevThresh standard deviations.
func StatisticalOutlierFilter(meanK int, stdDevThresh float64) (func(PointCloud) (PointCloud, error), error) {
	if meanK <= 0 {
		return nil, errors.Errorf("argument meanK must be a positive int, got %d", meanK)
	}
	if stdDevThresh <= 0 {
		return nil, errors.Errorf("argument stdDevThresh must be a positive float, got %.2f", stdDevThresh)
	}
	return func(pc PointCloud) (PointCloud, error) {
		kd, ok := pc.(*KDTree)
		if !ok {
			kd = NewKDTree(pc)
		}
		points := Points(kd.cloud)
		meanDists := make([]float64, len(points))
		for i, pd := range points {
			neighbors := kd.KNearestNeighbors(pd.P, meanK+1, false)
			if len(neighbors) == 0 {
				continue
			}
			var sum float64
			for _, n := range neighbors {
				sum += pd.P.Sub(n.P).Norm()
			}
			meanDists[i] = sum / float64(len(neighbors))
		}
		mean, std := meanAndStd(meanDists)
		threshold := mean + stdDevThresh*std
		out := New()
		for i, pd := range points {
			if meanDists[i] <= threshold {
				if err := out.Set(pd.P, pd.D); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}, nil
}

func meanAndStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
