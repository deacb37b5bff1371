package neighbors

import (
	"github.com/YuminosukeSato/uboost/core/parallel"
)

// BruteForce compares every query with every partition member.
// It is exact and is used for small inputs and to cross-check KDTree.
type BruteForce struct{}

// Find implements Searcher.
func (BruteForce) Find(points [][]float64, mask []bool, k int) (Groups, error) {
	members, err := validate("BruteForce.Find", points, mask, k)
	if err != nil {
		return nil, err
	}

	groups := make(Groups, len(points))
	parallel.ParallelizeWithThreshold(len(points), 256, func(start, end int) {
		cands := make([]candidate, len(members))
		for i := start; i < end; i++ {
			for c, m := range members {
				cands[c] = candidate{index: m, dist: squaredDistance(points[i], points[m])}
			}
			groups[i] = nearestOf(cands, k)
		}
	})
	return groups, nil
}
