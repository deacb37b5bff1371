package ensemble

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// InitEstimator produces the constant scores every ensemble starts from.
type InitEstimator interface {
	// Fit computes the scores from class indices y and sample weights w.
	Fit(y, w []float64) error

	// Scores returns one constant per score column.
	Scores() []float64
}

// LogOddsEstimator predicts Scale * log(p / (1 - p)) for the weighted share p of class 1.
// A zero Scale means 1.
type LogOddsEstimator struct {
	Scale float64
	prior float64
}

func (e *LogOddsEstimator) Fit(y, w []float64) error {
	var pos, neg float64
	for i, yi := range y {
		if yi > 0.5 {
			pos += w[i]
		} else {
			neg += w[i]
		}
	}
	if pos == 0 || neg == 0 {
		return errors.NewValueErrorf("LogOddsEstimator.Fit", "y contains a single class")
	}
	scale := e.Scale
	if scale == 0 {
		scale = 1
	}
	e.prior = scale * math.Log(pos/neg)
	return nil
}

func (e *LogOddsEstimator) Scores() []float64 { return []float64{e.prior} }

// PriorProbabilityEstimator predicts the log of the weighted class priors.
type PriorProbabilityEstimator struct {
	NClasses int
	priors   []float64
}

func (e *PriorProbabilityEstimator) Fit(y, w []float64) error {
	counts := make([]float64, e.NClasses)
	total := 0.0
	for i, yi := range y {
		k := int(yi)
		if k < 0 || k >= e.NClasses {
			return errors.NewValueErrorf("PriorProbabilityEstimator.Fit", "class index %d out of range", k)
		}
		counts[k] += w[i]
		total += w[i]
	}
	e.priors = make([]float64, e.NClasses)
	for k, c := range counts {
		e.priors[k] = errors.StabilizeLog(c / total)
	}
	return nil
}

func (e *PriorProbabilityEstimator) Scores() []float64 { return append([]float64(nil), e.priors...) }

// MeanEstimator predicts the weighted mean of y.
type MeanEstimator struct {
	mean float64
}

func (e *MeanEstimator) Fit(y, w []float64) error {
	var num, den float64
	for i, yi := range y {
		num += w[i] * yi
		den += w[i]
	}
	if den == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MeanEstimator.Fit: zero total weight")
	}
	e.mean = num / den
	return nil
}

func (e *MeanEstimator) Scores() []float64 { return []float64{e.mean} }

// QuantileEstimator predicts the weighted Alpha-quantile of y.
type QuantileEstimator struct {
	Alpha    float64
	quantile float64
}

func (e *QuantileEstimator) Fit(y, w []float64) error {
	if len(y) == 0 {
		return errors.ErrEmptyData
	}
	e.quantile = weightedPercentile(y, w, 100*e.Alpha)
	return nil
}

func (e *QuantileEstimator) Scores() []float64 { return []float64{e.quantile} }

// weightedPercentile returns the smallest value whose cumulative weight
// reaches percentile% of the total.
func weightedPercentile(v, w []float64, percentile float64) float64 {
	if len(v) == 0 {
		return 0
	}
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	cdf := make([]float64, len(v))
	acc := 0.0
	for i, j := range idx {
		acc += w[j]
		cdf[i] = acc
	}
	target := percentile / 100 * acc
	pos := sort.SearchFloat64s(cdf, target)
	if pos >= len(idx) {
		pos = len(idx) - 1
	}
	return v[idx[pos]]
}
