package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

func separableData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{
		0, 0, 0, 0, // lower left
		1, 1, 1, 1, // upper right
	})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X, y := separableData()

	dt := NewDecisionTreeClassifier(
		WithCriterion("gini"),
		WithMaxDepth(5),
	)
	require.NoError(t, dt.Fit(X, y))

	predictions, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	testPreds, err := dt.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))
	assert.Equal(t, []int{0, 1}, dt.Classes())
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)

	rows, cols := probas.Dims()
	require.Equal(t, 6, rows)
	require.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			assert.GreaterOrEqual(t, probas.At(i, j), 0.0)
			assert.LessOrEqual(t, probas.At(i, j), 1.0)
			sum += probas.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestDecisionTreeClassifier_Score(t *testing.T) {
	// XOR-like: class 0 when both features are low or both high
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(
		WithMaxDepth(5),
		WithMinSamplesLeaf(1),
	)
	require.NoError(t, dt.Fit(X, y))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.nClasses_)

	predictions, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y.RawMatrix().Data, mat.Col(nil, 0, predictions))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, cols := probas.Dims()
	assert.Equal(t, 3, cols)
}

func TestDecisionTreeClassifier_Entropy(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDecisionTreeClassifier_SampleWeights(t *testing.T) {
	// two overlapping points; weights decide which label wins the leaf
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 1, 0, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWeighted(X, y, []float64{1, 3, 3, 1}))

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 0.0, pred.At(1, 0))

	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, proba.At(0, 1), 1e-12)

	err = dt.FitWeighted(X, y, []float64{1, 1})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	err = dt.FitWeighted(X, y, []float64{0, 0, 0, 0})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	importances := dt.GetFeatureImportances()
	require.Len(t, importances, 3)
	assert.Greater(t, importances[0], importances[1])
	assert.Greater(t, importances[0], importances[2])

	sum := 0.0
	for _, imp := range importances {
		sum += imp
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetDepth(), 2)
}

func TestDecisionTreeClassifier_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(
		WithMinSamplesSplit(5),
		WithMinSamplesLeaf(2),
	)
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetNLeaves(), 5)
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	}))
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)

	assert.Error(t, dt.SetParams(map[string]interface{}{"max_depth": "deep"}))
	assert.Error(t, dt.SetParams(map[string]interface{}{"splitter": "best"}))
}

func TestDecisionTreeClassifier_InvalidParams(t *testing.T) {
	X, y := separableData()
	tests := []struct {
		name string
		opt  Option
	}{
		{"criterion", WithCriterion("squared_error")},
		{"max_depth", WithMaxDepth(-1)},
		{"min_samples_split", WithMinSamplesSplit(1)},
		{"min_samples_leaf", WithMinSamplesLeaf(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDecisionTreeClassifier(tt.opt).Fit(X, y)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
		})
	}
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = dt.PredictProba(X)
	assert.Error(t, err)
}

func TestDecisionTreeClassifier_WrongFeatureCount(t *testing.T) {
	X, y := separableData()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 10, 10, 10})

	reg := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, reg.Fit(X, y))

	assert.Equal(t, 1, reg.GetDepth())
	require.Len(t, reg.Leaves(), 2)
	assert.Equal(t, 3.5, reg.Nodes[0].Threshold)

	pred, err := reg.Predict(mat.NewDense(2, 1, []float64{2.5, 100}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 10.0, pred.At(1, 0))
}

func TestDecisionTreeRegressor_WeightedMean(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 1, 1})
	y := mat.NewDense(3, 1, []float64{0, 3, 100})

	reg := NewDecisionTreeRegressor()
	// zero weight excludes the outlier entirely
	require.NoError(t, reg.FitWeighted(X, y, []float64{2, 1, 0}))

	require.Len(t, reg.Nodes, 1)
	assert.InDelta(t, 1.0, reg.LeafValue(0), 1e-12)
	assert.Equal(t, 2, reg.Nodes[0].NSamples)
}

func TestDecisionTreeRegressor_ApplyAndSetLeafValue(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	y := mat.NewDense(4, 1, []float64{-1, -1, 1, 1})

	reg := NewDecisionTreeRegressor()
	require.NoError(t, reg.Fit(X, y))

	leaves, err := reg.Apply(X)
	require.NoError(t, err)
	assert.Equal(t, leaves[0], leaves[1])
	assert.Equal(t, leaves[2], leaves[3])
	assert.NotEqual(t, leaves[0], leaves[2])

	reg.SetLeafValue(leaves[0], 42)
	pred, err := reg.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 42.0, pred.At(1, 0))
	assert.Equal(t, 1.0, pred.At(3, 0))

	assert.Panics(t, func() { reg.SetLeafValue(0, 1) })
}

func TestDecisionTreeRegressor_FitsSmoothTarget(t *testing.T) {
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		X.Set(i, 0, x)
		X.Set(i, 1, float64(i%7))
		y.Set(i, 0, math.Sin(4*x))
	}

	reg := NewDecisionTreeRegressor(WithMaxDepth(6), WithMinSamplesLeaf(2))
	require.NoError(t, reg.Fit(X, y))

	pred, err := reg.Predict(X)
	require.NoError(t, err)
	mse := 0.0
	for i := 0; i < n; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		mse += d * d
	}
	assert.Less(t, mse/float64(n), 5e-3)
	for _, leaf := range reg.Leaves() {
		assert.GreaterOrEqual(t, reg.Nodes[leaf].NSamples, 2)
	}
}

func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	_, err := NewDecisionTreeRegressor().Apply(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestDecisionTreeRegressor_Gob(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	y := mat.NewDense(4, 1, []float64{-1, -1, 1, 1})
	reg := NewDecisionTreeRegressor()
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(reg))
	var restored DecisionTreeRegressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&restored))

	want, _ := reg.Predict(X)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
