package ensemble

import (
	"fmt"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// LossName is a key of the named loss registry.
type LossName string

// Registry keys.
const (
	Deviance          LossName = "deviance"
	Exponential       LossName = "exponential"
	LeastSquaresLoss  LossName = "ls"
	LeastAbsoluteLoss LossName = "lad"
	Huber             LossName = "huber"
	Quantile          LossName = "quantile"
)

// LossSpec selects the loss of a GradientBoostingClassifier: either a
// ready-made LossFunction or a registry name resolved against the class
// count at fit time.
type LossSpec struct {
	custom LossFunction
	name   LossName
}

// CustomLoss uses loss as is.
func CustomLoss(loss LossFunction) LossSpec { return LossSpec{custom: loss} }

// NamedLoss looks name up in the registry.
func NamedLoss(name LossName) LossSpec { return LossSpec{name: name} }

// IsCustom reports whether s carries a LossFunction instance.
func (s LossSpec) IsCustom() bool { return s.name == "" }

func (s LossSpec) String() string {
	if s.IsCustom() {
		return fmt.Sprintf("%T", s.custom)
	}
	return string(s.name)
}

// resolve returns the loss for nClasses. Huber and quantile take alpha.
func (s LossSpec) resolve(nClasses int, alpha float64) (LossFunction, error) {
	if s.IsCustom() {
		if s.custom == nil {
			return nil, errors.NewValidationError("loss", "custom loss must not be nil", nil)
		}
		if k := s.custom.K(); k != 1 && k != nClasses {
			return nil, errors.NewValidationError("loss",
				fmt.Sprintf("fits %d trees per stage for %d classes", k, nClasses), s.String())
		}
		if c, ok := s.custom.(ClassCounter); ok && c.NClasses() != nClasses {
			return nil, errors.NewUnsupportedConfigurationError("GradientBoostingClassifier.Fit",
				fmt.Sprintf("%s supports %d classes, got %d", s.String(), c.NClasses(), nClasses))
		}
		return s.custom, nil
	}
	switch s.name {
	case Deviance:
		if nClasses > 2 {
			return NewMultinomialDeviance(nClasses)
		}
		return NewBinomialDeviance(nClasses)
	case Exponential:
		return NewExponentialLoss(nClasses)
	case LeastSquaresLoss:
		return &LeastSquares{}, nil
	case LeastAbsoluteLoss:
		return &LeastAbsoluteDeviation{}, nil
	case Huber:
		return &HuberLoss{Alpha: alpha}, nil
	case Quantile:
		return &QuantileLoss{Alpha: alpha}, nil
	}
	return nil, errors.NewValidationError("loss", "not supported", string(s.name))
}

// params holds the hyperparameters shared by both ensembles. Fields that an
// ensemble does not use are ignored by it.
type params struct {
	nEstimators     int
	learningRate    float64
	loss            LossSpec
	subsample       float64
	alpha           float64
	init            InitEstimator
	initSet         bool
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	randomState     uint64
}

// Option configures an ensemble.
type Option func(*params)

// WithNEstimators sets the number of boosting stages.
func WithNEstimators(n int) Option {
	return func(p *params) { p.nEstimators = n }
}

// WithLearningRate sets the shrinkage applied to every stage.
func WithLearningRate(lr float64) Option {
	return func(p *params) { p.learningRate = lr }
}

// WithLoss sets the loss of a GradientBoostingClassifier.
func WithLoss(loss LossSpec) Option {
	return func(p *params) { p.loss = loss }
}

// WithSubsample sets the fraction of samples drawn without replacement for every stage.
func WithSubsample(fraction float64) Option {
	return func(p *params) { p.subsample = fraction }
}

// WithAlpha sets the quantile of the huber and quantile losses.
func WithAlpha(alpha float64) Option {
	return func(p *params) { p.alpha = alpha }
}

// WithInit replaces the loss's own init estimator.
func WithInit(est InitEstimator) Option {
	return func(p *params) {
		p.init = est
		p.initSet = true
	}
}

// WithMaxDepth limits the depth of every tree; 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *params) { p.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum leaf size.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithRandomState seeds subsampling.
func WithRandomState(seed uint64) Option {
	return func(p *params) { p.randomState = seed }
}

// checkParams validates the boosting hyperparameters and resolves the loss
// and init estimator, in that order, before any fitting happens.
func (p *params) checkParams(nClasses int) (LossFunction, InitEstimator, error) {
	if p.nEstimators <= 0 {
		return nil, nil, errors.NewValidationError("n_estimators", "must be greater than 0", p.nEstimators)
	}
	if p.learningRate <= 0 {
		return nil, nil, errors.NewValidationError("learning_rate", "must be greater than 0", p.learningRate)
	}
	loss, err := p.loss.resolve(nClasses, p.alpha)
	if err != nil {
		return nil, nil, err
	}
	if p.subsample <= 0 || p.subsample > 1 {
		return nil, nil, errors.NewValidationError("subsample", "must be in (0,1]", p.subsample)
	}
	initEst := p.init
	if !p.initSet {
		initEst = loss.InitEstimator()
	}
	if initEst == nil {
		return nil, nil, errors.NewValidationError("init", "must be a valid estimator", nil)
	}
	if !(0 < p.alpha && p.alpha < 1) {
		return nil, nil, errors.NewValidationError("alpha", "must be in (0.0, 1.0)", p.alpha)
	}
	return loss, initEst, nil
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.nEstimators,
		"learning_rate":     p.learningRate,
		"loss":              p.loss.String(),
		"subsample":         p.subsample,
		"alpha":             p.alpha,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"random_state":      p.randomState,
	}
}
