// Package uniform implements the kNN-aware exponential losses that make a
// gradient boosting classifier's efficiency flat along chosen uniform
// variables.
//
// A KnnLoss couples the margins of neighboring same-label samples through a
// sparse coefficient matrix M:
//
//	loss = Σ w0 ⊙ exp(-M·(ys ⊙ pred)),   ys = 2y - 1
//
// so a sample whose neighborhood is misclassified is pushed together with it.
// Plug it into ensemble.GradientBoostingClassifier with ensemble.CustomLoss.
package uniform

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/sparse"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/sklearn/ensemble"
)

// leafEpsilon keeps the leaf update finite when no row touches the leaf.
const leafEpsilon = 1e-10

// KnnLoss is the exponential loss over neighbor-group aggregated margins.
// It is read-only after construction and safe to share between goroutines.
type KnnLoss struct {
	m  *sparse.CSR
	mt *sparse.CSR
	w0 []float64
}

// NewKnnLoss wraps the coefficient matrix m (rows × N). initialWeights has
// one weight per row of m; nil means all ones. Only binary problems are
// supported.
func NewKnnLoss(nClasses int, m *sparse.CSR, initialWeights []float64) (*KnnLoss, error) {
	if nClasses != 2 {
		return nil, errors.NewUnsupportedConfigurationError("uniform.NewKnnLoss",
			"only 2 classes supported")
	}
	if m == nil {
		return nil, errors.NewValueError("uniform.NewKnnLoss", "coefficient matrix is nil")
	}
	rows, _ := m.Dims()
	if initialWeights == nil {
		initialWeights = make([]float64, rows)
		for i := range initialWeights {
			initialWeights[i] = 1
		}
	} else if len(initialWeights) != rows {
		return nil, errors.NewValueErrorf("uniform.NewKnnLoss",
			"got %d initial weights for %d matrix rows", len(initialWeights), rows)
	}
	return &KnnLoss{
		m:  m,
		mt: m.T(),
		w0: append([]float64(nil), initialWeights...),
	}, nil
}

// Coefficients returns the coefficient matrix.
func (l *KnnLoss) Coefficients() *sparse.CSR { return l.m }

// InitialWeights returns a copy of the per-row weights.
func (l *KnnLoss) InitialWeights() []float64 { return append([]float64(nil), l.w0...) }

// K is always 1: one tree per stage.
func (l *KnnLoss) K() int { return 1 }

// NClasses is always 2.
func (l *KnnLoss) NClasses() int { return 2 }

// CheckSamples reports whether the loss was built for n samples.
func (l *KnnLoss) CheckSamples(n int) error {
	if _, cols := l.m.Dims(); cols != n {
		return errors.NewDimensionError("uniform.KnnLoss", cols, n, 0)
	}
	return nil
}

// signedMargins returns ys ⊙ pred[:, 0]. Mismatched sizes panic with a
// DimensionError; the boosting driver turns that into an error.
func (l *KnnLoss) signedMargins(y []float64, pred *mat.Dense) (ys, margins []float64) {
	_, cols := l.m.Dims()
	if r, _ := pred.Dims(); len(y) != cols || r != cols {
		panic(errors.NewDimensionError("uniform.KnnLoss", cols, len(y), 0))
	}
	ys = make([]float64, len(y))
	margins = make([]float64, len(y))
	for i, yi := range y {
		ys[i] = 2*yi - 1
		margins[i] = ys[i] * pred.At(i, 0)
	}
	return ys, margins
}

// exponents returns w0 ⊙ exp(-M·(ys ⊙ pred)).
func (l *KnnLoss) exponents(margins []float64) []float64 {
	e := l.m.MulVec(margins)
	for r, v := range e {
		e[r] = l.w0[r] * math.Exp(-v)
	}
	return e
}

// Loss returns Σ w0 ⊙ exp(-M·(ys ⊙ pred)). Sample weights are not used;
// weighting happens through the initial row weights.
func (l *KnnLoss) Loss(y []float64, pred *mat.Dense, _ []float64) float64 {
	_, margins := l.signedMargins(y, pred)
	return floats.Sum(l.exponents(margins))
}

// NegativeGradient returns ys ⊙ Mᵗ·(w0 ⊙ exp(-M·(ys ⊙ pred))).
func (l *KnnLoss) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	ys, margins := l.signedMargins(y, pred)
	grad := l.mt.MulVec(l.exponents(margins))
	floats.Mul(grad, ys)
	return grad
}

// InitEstimator starts from the log-odds of the class balance.
func (l *KnnLoss) InitEstimator() ensemble.InitEstimator {
	return &ensemble.LogOddsEstimator{}
}

// NewStage computes the exponents of the predictions before the stage, shared
// by every leaf update of that stage.
func (l *KnnLoss) NewStage(y []float64, pred *mat.Dense, _ []float64, _ int) ensemble.LeafStage {
	ys, margins := l.signedMargins(y, pred)
	return &Stage{loss: l, ys: ys, exponents: l.exponents(margins)}
}

// Stage is the per-stage leaf context of a KnnLoss.
type Stage struct {
	loss      *KnnLoss
	ys        []float64
	exponents []float64
}

// Exponents returns w0 ⊙ exp(-M·(ys ⊙ pred)) for the stage's predictions.
func (s *Stage) Exponents() []float64 { return append([]float64(nil), s.exponents...) }

// LeafValue returns Σ(e ⊙ z) / (Σ(e ⊙ z²) + 1e-10) with z = M·(region ⊙ ys).
func (s *Stage) LeafValue(region []bool, _ []float64) float64 {
	indicator := make([]float64, len(s.ys))
	for i, in := range region {
		if in {
			indicator[i] = s.ys[i]
		}
	}
	z := s.loss.m.MulVec(indicator)
	var num, den float64
	for r, zr := range z {
		if zr == 0 {
			continue
		}
		num += s.exponents[r] * zr
		den += s.exponents[r] * zr * zr
	}
	return num / (den + leafEpsilon)
}

var (
	_ ensemble.LossFunction = (*KnnLoss)(nil)
	_ ensemble.LeafStage    = (*Stage)(nil)
)
