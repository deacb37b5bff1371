// Package ensemble implements stage-wise gradient boosting over regression
// trees with a pluggable loss, and discrete SAMME AdaBoost as an
// unconstrained baseline.
//
// A loss is anything implementing LossFunction. The named losses of the
// registry (deviance, exponential, ls, lad, huber, quantile) live here; the
// uniformity-aware kNN losses live in package uniform and are passed in via
// CustomLoss.
package ensemble

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// LossFunction is the capability set the boosting driver depends on.
//
// y holds class indices 0..nClasses-1 as float64, pred is the N×K raw score
// matrix and w the sample weights (never nil when called by the driver).
type LossFunction interface {
	// K is the number of trees fitted per stage.
	K() int

	// Loss returns the scalar training loss.
	Loss(y []float64, pred *mat.Dense, w []float64) float64

	// NegativeGradient returns the residual for score column k.
	NegativeGradient(y []float64, pred *mat.Dense, k int) []float64

	// InitEstimator returns the constant-score estimator fitted before stage 0.
	InitEstimator() InitEstimator

	// NewStage captures whatever the leaf update of one stage needs from the
	// predictions before that stage.
	NewStage(y []float64, pred *mat.Dense, w []float64, k int) LeafStage
}

// LeafStage computes terminal-region values for one stage.
type LeafStage interface {
	// LeafValue returns the value of the leaf whose in-bag samples are marked
	// in region. residual is the negative gradient the tree was fitted to.
	LeafValue(region []bool, residual []float64) float64
}

// ProbaLinker is implemented by losses that map scores to probabilities
// with something other than the default link.
type ProbaLinker interface {
	ProbaLink() Link
}

// sampleChecker is implemented by losses bound to a fixed training set.
type sampleChecker interface {
	CheckSamples(n int) error
}

// ClassCounter is implemented by custom losses that only support a fixed
// number of classes.
type ClassCounter interface {
	NClasses() int
}

// Link converts raw scores to class probabilities.
type Link string

const (
	// LinkSigmoid maps a single score column with the logistic function.
	LinkSigmoid Link = "sigmoid"
	// LinkSoftmax maps K score columns with the softmax.
	LinkSoftmax Link = "softmax"
	// LinkExponential maps a single score s to expit(2s).
	LinkExponential Link = "exponential"
	// LinkClip treats a single score as the probability of class 1, clipped to [0, 1].
	LinkClip Link = "clip"
)

// defaultLink returns the link used when loss does not implement ProbaLinker.
func defaultLink(loss LossFunction) Link {
	if l, ok := loss.(ProbaLinker); ok {
		return l.ProbaLink()
	}
	if loss.K() == 1 {
		return LinkSigmoid
	}
	return LinkSoftmax
}

// Proba converts an N×K score matrix to N×nClasses probabilities.
func (l Link) Proba(scores *mat.Dense, nClasses int) *mat.Dense {
	n, k := scores.Dims()
	proba := mat.NewDense(n, nClasses, nil)
	for i := 0; i < n; i++ {
		if k == 1 {
			var p float64
			s := scores.At(i, 0)
			switch l {
			case LinkExponential:
				p = errors.Expit(2 * s)
			case LinkClip:
				p = errors.ClipValue(s, 0, 1)
			default:
				p = errors.Expit(s)
			}
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		row := scores.RawRowView(i)
		norm := errors.LogSumExp(row)
		for j := 0; j < k; j++ {
			proba.Set(i, j, math.Exp(row[j]-norm))
		}
	}
	return proba
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

// BinomialDeviance is the logistic loss for two classes; one tree per stage.
type BinomialDeviance struct{}

// NewBinomialDeviance fails unless nClasses is 2.
func NewBinomialDeviance(nClasses int) (*BinomialDeviance, error) {
	if nClasses != 2 {
		return nil, errors.NewUnsupportedConfigurationError("BinomialDeviance",
			"requires 2 classes")
	}
	return &BinomialDeviance{}, nil
}

func (*BinomialDeviance) K() int { return 1 }

// Loss is twice the weighted mean negative log-likelihood.
func (*BinomialDeviance) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	var total, sw float64
	for i, yi := range y {
		p := pred.At(i, 0)
		total += w[i] * (yi*p - errors.LogAddExp(0, p))
		sw += w[i]
	}
	return -2 * total / sw
}

func (*BinomialDeviance) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	res := make([]float64, len(y))
	for i, yi := range y {
		res[i] = yi - errors.Expit(pred.At(i, 0))
	}
	return res
}

func (*BinomialDeviance) InitEstimator() InitEstimator { return &LogOddsEstimator{} }

func (*BinomialDeviance) NewStage(y []float64, _ *mat.Dense, w []float64, _ int) LeafStage {
	return &newtonStage{y: y, w: w, scale: 1}
}

// newtonStage takes one Newton-Raphson step for deviance losses:
// sum(w*residual) / sum(w*p*(1-p)), where p = y - residual.
type newtonStage struct {
	y     []float64
	w     []float64
	scale float64
}

func (s *newtonStage) LeafValue(region []bool, residual []float64) float64 {
	var num, den float64
	for i, in := range region {
		if !in {
			continue
		}
		r := residual[i]
		num += s.w[i] * r
		den += s.w[i] * (s.y[i] - r) * (1 - s.y[i] + r)
	}
	if math.Abs(den) < 1e-150 {
		return 0
	}
	return s.scale * num / den
}

// MultinomialDeviance is the softmax cross-entropy for K > 2 classes; K trees per stage.
type MultinomialDeviance struct {
	nClasses int
}

// NewMultinomialDeviance fails for fewer than 3 classes.
func NewMultinomialDeviance(nClasses int) (*MultinomialDeviance, error) {
	if nClasses < 3 {
		return nil, errors.NewUnsupportedConfigurationError("MultinomialDeviance",
			"requires more than 2 classes")
	}
	return &MultinomialDeviance{nClasses: nClasses}, nil
}

func (l *MultinomialDeviance) K() int { return l.nClasses }

func (l *MultinomialDeviance) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	var total, sw float64
	for i, yi := range y {
		row := pred.RawRowView(i)
		total += w[i] * (errors.LogSumExp(row) - row[int(yi)])
		sw += w[i]
	}
	return total / sw
}

func (l *MultinomialDeviance) NegativeGradient(y []float64, pred *mat.Dense, k int) []float64 {
	res := make([]float64, len(y))
	for i, yi := range y {
		row := pred.RawRowView(i)
		res[i] = -math.Exp(row[k] - errors.LogSumExp(row))
		if int(yi) == k {
			res[i]++
		}
	}
	return res
}

func (l *MultinomialDeviance) InitEstimator() InitEstimator {
	return &PriorProbabilityEstimator{NClasses: l.nClasses}
}

func (l *MultinomialDeviance) NewStage(y []float64, _ *mat.Dense, w []float64, k int) LeafStage {
	yk := make([]float64, len(y))
	for i, yi := range y {
		if int(yi) == k {
			yk[i] = 1
		}
	}
	return &newtonStage{y: yk, w: w, scale: float64(l.nClasses-1) / float64(l.nClasses)}
}

// ExponentialLoss is the AdaBoost loss exp(-(2y-1)*score) for two classes.
type ExponentialLoss struct{}

// NewExponentialLoss fails unless nClasses is 2.
func NewExponentialLoss(nClasses int) (*ExponentialLoss, error) {
	if nClasses != 2 {
		return nil, errors.NewUnsupportedConfigurationError("ExponentialLoss",
			"requires 2 classes")
	}
	return &ExponentialLoss{}, nil
}

func (*ExponentialLoss) K() int { return 1 }

func (*ExponentialLoss) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	var total, sw float64
	for i, yi := range y {
		total += w[i] * math.Exp(-(2*yi-1)*pred.At(i, 0))
		sw += w[i]
	}
	return total / sw
}

func (*ExponentialLoss) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	res := make([]float64, len(y))
	for i, yi := range y {
		ys := 2*yi - 1
		res[i] = ys * math.Exp(-ys*pred.At(i, 0))
	}
	return res
}

func (*ExponentialLoss) InitEstimator() InitEstimator { return &LogOddsEstimator{Scale: 0.5} }

func (*ExponentialLoss) ProbaLink() Link { return LinkExponential }

func (*ExponentialLoss) NewStage(y []float64, pred *mat.Dense, w []float64, _ int) LeafStage {
	return &exponentialStage{y: y, pred: pred, w: w}
}

type exponentialStage struct {
	y    []float64
	pred *mat.Dense
	w    []float64
}

func (s *exponentialStage) LeafValue(region []bool, _ []float64) float64 {
	var num, den float64
	for i, in := range region {
		if !in {
			continue
		}
		ys := 2*s.y[i] - 1
		e := s.w[i] * math.Exp(-ys*s.pred.At(i, 0))
		num += ys * e
		den += e
	}
	if den == 0 {
		return 0
	}
	return num / den
}
