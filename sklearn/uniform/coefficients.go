package uniform

import (
	"github.com/YuminosukeSato/uboost/core/sparse"
	"github.com/YuminosukeSato/uboost/neighbors"
)

// SimpleCoefficients builds the N×N matrix whose row i counts the members of
// the neighbor group of sample i: (i, knn[i][j]) += 1 for every j.
func SimpleCoefficients(groups neighbors.Groups) *sparse.CSR {
	n, k := len(groups), groups.K()
	b := sparse.NewBuilder(n, n)
	b.Grow(n * k)
	for i, group := range groups {
		for _, j := range group {
			b.Add(i, j, 1)
		}
	}
	return b.Build()
}

// PairwiseCoefficients builds the N·k×N matrix with one row per
// (sample, neighbor) pair: row i·k+j has (i) += 1 and (knn[i][j]) += 1.
func PairwiseCoefficients(groups neighbors.Groups) *sparse.CSR {
	n, k := len(groups), groups.K()
	b := sparse.NewBuilder(n*k, n)
	b.Grow(2 * n * k)
	for i, group := range groups {
		for j, neighbor := range group {
			row := i*k + j
			b.Add(row, i, 1)
			b.Add(row, neighbor, 1)
		}
	}
	return b.Build()
}
