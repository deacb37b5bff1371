// Package neighbors finds, for every sample, its k nearest samples inside a
// chosen partition of the sample set, measured in the space of the uniform
// variables. The result feeds the coefficient matrices of the uniformity loss.
package neighbors

import (
	"sort"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// Groups holds k neighbor indices for every sample. Row i lists the
// neighbors of sample i from nearest to farthest.
type Groups [][]int

// K returns the group size, or 0 for empty groups.
func (g Groups) K() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Searcher finds the k nearest neighbors of every point among the points
// selected by mask. Distances are Euclidean; ties are broken by the lower
// index; a point inside the partition is its own nearest neighbor.
type Searcher interface {
	Find(points [][]float64, mask []bool, k int) (Groups, error)
}

// SameLabelGroups builds label-pure neighbor groups. Neighbors are first
// searched among background samples for everyone, then the rows of signal
// samples are replaced by their neighbors among signal samples.
func SameLabelGroups(points [][]float64, isSignal []bool, k int, searcher Searcher) (Groups, error) {
	if len(isSignal) != len(points) {
		return nil, errors.NewDimensionError("neighbors.SameLabelGroups", len(points), len(isSignal), 0)
	}
	isBackground := make([]bool, len(isSignal))
	for i, s := range isSignal {
		isBackground[i] = !s
	}

	knnSignal, err := searcher.Find(points, isSignal, k)
	if err != nil {
		return nil, errors.Wrap(err, "signal partition")
	}
	groups, err := searcher.Find(points, isBackground, k)
	if err != nil {
		return nil, errors.Wrap(err, "background partition")
	}
	for i, s := range isSignal {
		if s {
			groups[i] = knnSignal[i]
		}
	}
	return groups, nil
}

func validate(op string, points [][]float64, mask []bool, k int) ([]int, error) {
	if len(mask) != len(points) {
		return nil, errors.NewDimensionError(op, len(points), len(mask), 0)
	}
	if k <= 0 {
		return nil, errors.NewValueErrorf(op, "number of neighbors must be positive, got %d", k)
	}
	var members []int
	for i, in := range mask {
		if in {
			members = append(members, i)
		}
	}
	if len(members) < k {
		return nil, errors.NewValueErrorf(op, "partition has %d samples, fewer than k=%d", len(members), k)
	}
	if len(points) > 0 {
		dims := len(points[0])
		for _, p := range points {
			if len(p) != dims {
				return nil, errors.NewDimensionError(op, dims, len(p), 1)
			}
		}
	}
	return members, nil
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}

type candidate struct {
	index int
	dist  float64
}

// nearestOf sorts candidates by (distance, index) and returns the first k indices.
func nearestOf(cands []candidate, k int) []int {
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		return cands[a].index < cands[b].index
	})
	out := make([]int, k)
	for j := range out {
		out[j] = cands[j].index
	}
	return out
}
