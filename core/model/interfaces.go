// Package model defines the estimator contracts shared by the tree, ensemble
// and report packages, plus fitted-state bookkeeping and gob persistence.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は N×1 のラベル列。
	Fit(X, y mat.Matrix) error
}

// WeightedFitter is a Fitter that accepts per-sample weights.
// A nil weight slice means all ones.
type WeightedFitter interface {
	Fitter
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict returns an N×1 matrix of predicted labels.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaPredictor returns class probabilities, one column per class in
// ascending label order.
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// StagedProbaPredictor returns class probabilities after every stage of an
// additive ensemble. Element t holds the ensemble made of the first t+1 learners.
type StagedProbaPredictor interface {
	StagedPredictProba(X mat.Matrix) ([]*mat.Dense, error)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy on the given data.
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier combines the interfaces every classifier in a report must satisfy.
type Classifier interface {
	Fitter
	Predictor
	ProbaPredictor

	// Classes returns the unique classes seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
