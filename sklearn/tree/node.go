package tree

import (
	"gonum.org/v1/gonum/mat"
)

// Leaf marks a node without children in Node.Feature.
const Leaf = -1

// Node is one node of a fitted tree, stored in a flat slice. Children are
// indices into the same slice. Samples with X[Feature] <= Threshold go left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int

	// Value is the regression output (length 1) or the weighted class
	// distribution (length nClasses) of the node.
	Value []float64

	Impurity         float64
	NSamples         int
	WeightedNSamples float64
	Depth            int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature == Leaf }

// apply returns the index of the leaf reached by row.
func apply(nodes []Node, row []float64) int {
	i := 0
	for !nodes[i].IsLeaf() {
		if row[nodes[i].Feature] <= nodes[i].Threshold {
			i = nodes[i].Left
		} else {
			i = nodes[i].Right
		}
	}
	return i
}

func depthOf(nodes []Node) int {
	d := 0
	for i := range nodes {
		if nodes[i].Depth > d {
			d = nodes[i].Depth
		}
	}
	return d
}

func leavesOf(nodes []Node) []int {
	var leaves []int
	for i := range nodes {
		if nodes[i].IsLeaf() {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

// rowMajor returns X as a contiguous row-major slice without copying when possible.
func rowMajor(X mat.Matrix) (data []float64, n, f int) {
	n, f = X.Dims()
	if d, ok := X.(*mat.Dense); ok {
		raw := d.RawMatrix()
		if raw.Stride == f {
			return raw.Data[:n*f], n, f
		}
	}
	data = make([]float64, n*f)
	for i := 0; i < n; i++ {
		for j := 0; j < f; j++ {
			data[i*f+j] = X.At(i, j)
		}
	}
	return data, n, f
}

func column(X mat.Matrix) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = X.At(i, 0)
	}
	return out
}
