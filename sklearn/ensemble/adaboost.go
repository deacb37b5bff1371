package ensemble

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
	"github.com/YuminosukeSato/uboost/sklearn/tree"
)

// AdaBoostClassifier is discrete multi-class AdaBoost (SAMME) over
// DecisionTreeClassifier learners. It has no notion of uniformity and serves
// as the baseline the uniform losses are compared against.
type AdaBoostClassifier struct {
	state *model.StateManager
	params

	classes_          []int
	estimators_       []*tree.DecisionTreeClassifier
	estimatorWeights_ []float64
	estimatorErrors_  []float64
}

// NewAdaBoostClassifier creates a classifier with 50 stumps and learning rate 1
// unless overridden.
func NewAdaBoostClassifier(opts ...Option) *AdaBoostClassifier {
	p := params{
		nEstimators:     50,
		learningRate:    1,
		maxDepth:        1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &AdaBoostClassifier{state: model.NewStateManager(), params: p}
}

// Fit trains the ensemble with unit weights.
func (ab *AdaBoostClassifier) Fit(X, y mat.Matrix) error {
	return ab.FitWeighted(X, y, nil)
}

// FitWeighted trains the ensemble starting from the given sample weights.
func (ab *AdaBoostClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "AdaBoostClassifier.Fit")
	start := time.Now()

	if ab.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be greater than 0", ab.nEstimators)
	}
	if ab.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be greater than 0", ab.learningRate)
	}

	n, nFeatures := X.Dims()
	if r, _ := y.Dims(); r != n {
		return errors.NewDimensionError("AdaBoostClassifier.Fit", n, r, 0)
	}
	w := make([]float64, n)
	if sampleWeight == nil {
		copy(w, ones(n))
	} else if len(sampleWeight) != n {
		return errors.NewDimensionError("AdaBoostClassifier.Fit", n, len(sampleWeight), 0)
	} else {
		copy(w, sampleWeight)
	}
	total := sum(w)
	if total <= 0 {
		return errors.NewValueErrorf("AdaBoostClassifier.Fit", "sample weights must sum to a positive value")
	}
	for i := range w {
		w[i] /= total
	}

	classes, _ := encodeLabels(y)
	K := float64(len(classes))
	if len(classes) < 2 {
		return errors.NewValueErrorf("AdaBoostClassifier.Fit", "needs samples of at least 2 classes, got %d", len(classes))
	}

	logger := log.GetLoggerWithName("ensemble.adaboost").With(log.ModelNameKey, "AdaBoostClassifier")
	logger.Info("Training started",
		log.OperationKey, "fit",
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		log.StagesKey, ab.nEstimators,
	)

	ab.estimators_ = nil
	ab.estimatorWeights_ = nil
	ab.estimatorErrors_ = nil

	for iboost := 0; iboost < ab.nEstimators; iboost++ {
		t := tree.NewDecisionTreeClassifier(
			tree.WithMaxDepth(ab.maxDepth),
			tree.WithMinSamplesSplit(ab.minSamplesSplit),
			tree.WithMinSamplesLeaf(ab.minSamplesLeaf),
		)
		if err := t.FitWeighted(X, y, w); err != nil {
			return errors.Wrapf(err, "stage %d", iboost)
		}
		pred, err := t.Predict(X)
		if err != nil {
			return err
		}

		incorrect := make([]bool, n)
		var estErr, sw float64
		for i := 0; i < n; i++ {
			incorrect[i] = pred.At(i, 0) != y.At(i, 0)
			if incorrect[i] {
				estErr += w[i]
			}
			sw += w[i]
		}
		estErr /= sw

		if estErr <= 0 {
			ab.appendStage(t, 1, 0)
			logger.Debug("Perfect fit, stopping early", log.IterationKey, iboost)
			break
		}
		if estErr >= 1-1/K {
			if len(ab.estimators_) == 0 {
				return errors.NewModelError("AdaBoostClassifier.Fit", "fit",
					errors.New("base classifier is worse than random"))
			}
			errors.Warn(errors.NewEarlyStoppingWarning("AdaBoostClassifier", iboost,
				"learner error reached 1 - 1/n_classes"))
			break
		}

		alpha := ab.learningRate * (math.Log((1-estErr)/estErr) + math.Log(K-1))
		ab.appendStage(t, alpha, estErr)
		logger.Debug("Stage fitted", log.IterationKey, iboost, "error", estErr, "alpha", alpha)

		if iboost == ab.nEstimators-1 {
			break
		}
		for i := range w {
			if incorrect[i] && w[i] > 0 {
				w[i] *= math.Exp(alpha)
			}
		}
		total := sum(w)
		if total <= 0 {
			break
		}
		for i := range w {
			w[i] /= total
		}
	}

	ab.classes_ = classes
	ab.state.SetDimensions(nFeatures, n)
	ab.state.SetFitted()

	logger.Info("Training completed",
		log.OperationKey, "fit",
		log.StagesKey, len(ab.estimators_),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (ab *AdaBoostClassifier) appendStage(t *tree.DecisionTreeClassifier, weight, err float64) {
	ab.estimators_ = append(ab.estimators_, t)
	ab.estimatorWeights_ = append(ab.estimatorWeights_, weight)
	ab.estimatorErrors_ = append(ab.estimatorErrors_, err)
}

// stagedVotes returns the alpha-weighted one-hot votes after every stage, or
// only after the last one.
func (ab *AdaBoostClassifier) stagedVotes(method string, X mat.Matrix, finalOnly bool) ([]*mat.Dense, []float64, error) {
	if err := ab.state.RequireFitted("AdaBoostClassifier", method); err != nil {
		return nil, nil, err
	}
	if err := ab.state.CheckFeatures("AdaBoostClassifier."+method, X); err != nil {
		return nil, nil, err
	}

	n, _ := X.Dims()
	votes := mat.NewDense(n, len(ab.classes_), nil)
	var staged []*mat.Dense
	var norms []float64
	norm := 0.0
	for m, t := range ab.estimators_ {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, nil, err
		}
		alpha := ab.estimatorWeights_[m]
		for i := 0; i < n; i++ {
			k := classIndex(ab.classes_, int(pred.At(i, 0)))
			votes.Set(i, k, votes.At(i, k)+alpha)
		}
		norm += alpha
		if !finalOnly {
			staged = append(staged, mat.DenseCopyOf(votes))
			norms = append(norms, norm)
		}
	}
	if finalOnly {
		return []*mat.Dense{votes}, []float64{norm}, nil
	}
	return staged, norms, nil
}

// votesToProba applies softmax(votes / norm / (K-1)).
func (ab *AdaBoostClassifier) votesToProba(votes *mat.Dense, norm float64) *mat.Dense {
	K := float64(len(ab.classes_))
	scaled := mat.DenseCopyOf(votes)
	scaled.Scale(1/(norm*(K-1)), scaled)
	return LinkSoftmax.Proba(scaled, len(ab.classes_))
}

// PredictProba returns N×nClasses class probabilities.
func (ab *AdaBoostClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	votes, norms, err := ab.stagedVotes("PredictProba", X, true)
	if err != nil {
		return nil, err
	}
	return ab.votesToProba(votes[0], norms[0]), nil
}

// StagedPredictProba returns the class probabilities after every stage.
func (ab *AdaBoostClassifier) StagedPredictProba(X mat.Matrix) ([]*mat.Dense, error) {
	votes, norms, err := ab.stagedVotes("StagedPredictProba", X, false)
	if err != nil {
		return nil, err
	}
	out := make([]*mat.Dense, len(votes))
	for t := range votes {
		out[t] = ab.votesToProba(votes[t], norms[t])
	}
	return out, nil
}

// Predict returns the class with the largest weighted vote.
func (ab *AdaBoostClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	votes, _, err := ab.stagedVotes("Predict", X, true)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(votes[0], ab.classes_), nil
}

// Score returns the mean accuracy on X, y.
func (ab *AdaBoostClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := ab.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (ab *AdaBoostClassifier) Classes() []int {
	return append([]int(nil), ab.classes_...)
}

// EstimatorWeights returns the alpha of every fitted learner.
func (ab *AdaBoostClassifier) EstimatorWeights() []float64 {
	return append([]float64(nil), ab.estimatorWeights_...)
}

// EstimatorErrors returns the weighted training error of every fitted learner.
func (ab *AdaBoostClassifier) EstimatorErrors() []float64 {
	return append([]float64(nil), ab.estimatorErrors_...)
}

// GetParams returns the hyperparameters.
func (ab *AdaBoostClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      ab.nEstimators,
		"learning_rate":     ab.learningRate,
		"max_depth":         ab.maxDepth,
		"min_samples_split": ab.minSamplesSplit,
		"min_samples_leaf":  ab.minSamplesLeaf,
	}
}

func classIndex(classes []int, label int) int {
	for k, c := range classes {
		if c == label {
			return k
		}
	}
	return 0
}

var (
	_ model.Classifier           = (*AdaBoostClassifier)(nil)
	_ model.WeightedFitter       = (*AdaBoostClassifier)(nil)
	_ model.StagedProbaPredictor = (*AdaBoostClassifier)(nil)
)
