package neighbors

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/YuminosukeSato/uboost/core/parallel"
)

// KDTree searches with a k-d tree built over the partition members.
// Queries run in parallel; the tree is read-only once built.
type KDTree struct {
	// Threshold is the number of queries below which search runs on the
	// calling goroutine. Zero means 256.
	Threshold int
}

// Find implements Searcher.
func (s KDTree) Find(points [][]float64, mask []bool, k int) (Groups, error) {
	members, err := validate("KDTree.Find", points, mask, k)
	if err != nil {
		return nil, err
	}

	list := make(indexedPoints, len(members))
	for c, m := range members {
		list[c] = indexedPoint{coords: points[m], index: m}
	}
	tree := kdtree.New(list, false)

	threshold := s.Threshold
	if threshold <= 0 {
		threshold = 256
	}

	groups := make(Groups, len(points))
	parallel.ParallelizeWithThreshold(len(points), threshold, func(start, end int) {
		for i := start; i < end; i++ {
			groups[i] = nearest(tree, indexedPoint{coords: points[i], index: -1}, k)
		}
	})
	return groups, nil
}

// nearest returns the k nearest members of q. Every member at the k-th
// distance is collected in a second pass so that ties resolve by index.
func nearest(tree *kdtree.Tree, q indexedPoint, k int) []int {
	keeper := kdtree.NewNKeeper(k)
	tree.NearestSet(keeper, q)
	kth := keeper.Heap[len(keeper.Heap)-1].Dist

	within := kdtree.NewDistKeeper(kth)
	tree.NearestSet(within, q)

	cands := make([]candidate, 0, len(within.Heap))
	for _, c := range within.Heap {
		if c.Comparable == nil {
			continue
		}
		cands = append(cands, candidate{index: c.Comparable.(indexedPoint).index, dist: c.Dist})
	}
	return nearestOf(cands, k)
}

// indexedPoint is a kdtree.Comparable that remembers its sample index.
type indexedPoint struct {
	coords []float64
	index  int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(indexedPoint).coords[d]
}

func (p indexedPoint) Dims() int { return len(p.coords) }

func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return squaredDistance(p.coords, c.(indexedPoint).coords)
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int                { return plane{indexedPoints: p, Dim: d}.Pivot() }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane orders points along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	indexedPoints
}

func (p plane) Less(i, j int) bool {
	return p.indexedPoints[i].coords[p.Dim] < p.indexedPoints[j].coords[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
