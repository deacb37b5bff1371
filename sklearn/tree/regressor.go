package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor on weighted squared error.
// Gradient boosting fits one per stage to the negative gradient and then
// overwrites its leaf values with the loss-specific update.
//
// Exported fields make a fitted tree gob-encodable.
type DecisionTreeRegressor struct {
	Nodes     []Node
	NFeatures int

	params
}

// NewDecisionTreeRegressor creates a new decision tree regressor
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{params: newParams("squared_error", opts)}
}

// Fit trains the tree with unit weights.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return t.FitWeighted(X, y, nil)
}

// FitWeighted trains the tree. Samples with zero weight are ignored, which
// is how out-of-bag samples are excluded during subsampled boosting.
func (t *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if err := t.params.validate("squared_error"); err != nil {
		return err
	}
	data, nSamples, nFeatures := rowMajor(X)
	target, err := checkTarget("DecisionTreeRegressor.Fit", nSamples, y)
	if err != nil {
		return err
	}
	w, err := checkWeights("DecisionTreeRegressor.Fit", nSamples, sampleWeight)
	if err != nil {
		return err
	}
	samples := positiveWeightSamples(w)
	if len(samples) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeRegressor.Fit: all sample weights are zero")
	}

	g := newGrower(t.params, &squaredError{y: target, w: w}, data, nFeatures)
	t.Nodes = g.build(samples)
	t.NFeatures = nFeatures
	return nil
}

func (t *DecisionTreeRegressor) checkInput(op string, X mat.Matrix) error {
	if len(t.Nodes) == 0 {
		return errors.NewNotFittedError("DecisionTreeRegressor", op)
	}
	if _, c := X.Dims(); c != t.NFeatures {
		return errors.NewDimensionError("DecisionTreeRegressor."+op, t.NFeatures, c, 1)
	}
	return nil
}

// Apply returns the index of the leaf node each row of X falls into.
func (t *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if err := t.checkInput("Apply", X); err != nil {
		return nil, err
	}
	data, n, f := rowMajor(X)
	leaves := make([]int, n)
	for i := range leaves {
		leaves[i] = apply(t.Nodes, data[i*f:(i+1)*f])
	}
	return leaves, nil
}

// Predict returns an N×1 matrix of leaf values.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	leaves, err := t.Apply(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), 1, nil)
	for i, leaf := range leaves {
		out.Set(i, 0, t.Nodes[leaf].Value[0])
	}
	return out, nil
}

// Leaves returns the indices of all leaf nodes.
func (t *DecisionTreeRegressor) Leaves() []int { return leavesOf(t.Nodes) }

// LeafValue returns the output of a leaf.
func (t *DecisionTreeRegressor) LeafValue(leaf int) float64 { return t.Nodes[leaf].Value[0] }

// SetLeafValue overwrites the output of a leaf.
func (t *DecisionTreeRegressor) SetLeafValue(leaf int, v float64) {
	if !t.Nodes[leaf].IsLeaf() {
		panic(errors.NewValueErrorf("DecisionTreeRegressor.SetLeafValue", "node %d is not a leaf", leaf))
	}
	t.Nodes[leaf].Value[0] = v
}

// GetDepth returns the depth of the fitted tree.
func (t *DecisionTreeRegressor) GetDepth() int { return depthOf(t.Nodes) }

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} { return t.params.getParams() }

var (
	_ model.Classifier     = (*DecisionTreeClassifier)(nil)
	_ model.WeightedFitter = (*DecisionTreeClassifier)(nil)
	_ model.WeightedFitter = (*DecisionTreeRegressor)(nil)
)
