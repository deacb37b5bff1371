package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// DecisionTreeClassifier is a CART classifier with gini or entropy splits
// and optional sample weights. It is the weak learner of AdaBoostClassifier.
type DecisionTreeClassifier struct {
	state *model.StateManager
	params

	nodes               []Node
	nClasses_           int
	classes_            []int
	featureImportances_ []float64
}

// NewDecisionTreeClassifier creates a new decision tree classifier
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		state:  model.NewStateManager(),
		params: newParams("gini", opts),
	}
}

// Fit trains the decision tree with unit weights.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted trains the decision tree. Samples with zero weight are ignored.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.params.validate("gini", "entropy"); err != nil {
		return err
	}
	data, nSamples, nFeatures := rowMajor(X)
	labels, err := checkTarget("DecisionTreeClassifier.Fit", nSamples, y)
	if err != nil {
		return err
	}
	w, err := checkWeights("DecisionTreeClassifier.Fit", nSamples, sampleWeight)
	if err != nil {
		return err
	}

	dt.classes_ = uniqueLabels(labels)
	dt.nClasses_ = len(dt.classes_)
	encoded := make([]int, nSamples)
	for i, label := range labels {
		encoded[i] = sort.SearchInts(dt.classes_, int(label))
	}

	samples := positiveWeightSamples(w)
	if len(samples) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeClassifier.Fit: all sample weights are zero")
	}

	crit := &giniOrEntropy{y: encoded, w: w, nClasses: dt.nClasses_, entropy: dt.criterion == "entropy"}
	g := newGrower(dt.params, crit, data, nFeatures)
	dt.nodes = g.build(samples)
	dt.featureImportances_ = g.importances

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// Predict makes predictions for input data
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	predictions := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		predictions.Set(i, 0, float64(dt.classes_[argmax(proba.RawRowView(i))]))
	}
	return predictions, nil
}

// PredictProba returns the weighted class distribution of the leaf each sample reaches.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return dt.predictProba("PredictProba", X)
}

func (dt *DecisionTreeClassifier) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier."+method, X); err != nil {
		return nil, err
	}

	data, n, f := rowMajor(X)
	probas := mat.NewDense(n, dt.nClasses_, nil)
	for i := 0; i < n; i++ {
		leaf := apply(dt.nodes, data[i*f:(i+1)*f])
		probas.SetRow(i, dt.nodes[leaf].Value)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracy(predictions, y)
}

// Classes returns the sorted class labels seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int { return depthOf(dt.nodes) }

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return len(leavesOf(dt.nodes)) }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} { return dt.params.getParams() }

// SetParams updates hyperparameters by their snake_case names.
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}

func checkTarget(op string, nSamples int, y mat.Matrix) ([]float64, error) {
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return nil, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return column(y), nil
}

func checkWeights(op string, nSamples int, w []float64) ([]float64, error) {
	if w == nil {
		w = make([]float64, nSamples)
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}
	if len(w) != nSamples {
		return nil, errors.NewDimensionError(op, nSamples, len(w), 0)
	}
	for _, v := range w {
		if v < 0 {
			return nil, errors.NewValueErrorf(op, "sample weights must be non-negative, got %v", v)
		}
	}
	return w, nil
}

func positiveWeightSamples(w []float64) []int {
	samples := make([]int, 0, len(w))
	for i, v := range w {
		if v > 0 {
			samples = append(samples, i)
		}
	}
	return samples
}

func uniqueLabels(y []float64) []int {
	seen := make(map[int]bool)
	for _, v := range y {
		seen[int(v)] = true
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}

func accuracy(predictions, y mat.Matrix) (float64, error) {
	n, _ := predictions.Dims()
	if yRows, _ := y.Dims(); yRows != n {
		return 0, errors.NewDimensionError("Score", n, yRows, 0)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
