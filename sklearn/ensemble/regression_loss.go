package ensemble

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Regression losses fit the label column directly; their score is read as
// the probability of class 1 (LinkClip).

// LeastSquares is the squared error loss.
type LeastSquares struct{}

func (*LeastSquares) K() int { return 1 }

func (*LeastSquares) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	var total, sw float64
	for i, yi := range y {
		d := yi - pred.At(i, 0)
		total += w[i] * d * d
		sw += w[i]
	}
	return total / sw
}

func (*LeastSquares) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	res := make([]float64, len(y))
	for i, yi := range y {
		res[i] = yi - pred.At(i, 0)
	}
	return res
}

func (*LeastSquares) InitEstimator() InitEstimator { return &MeanEstimator{} }

func (*LeastSquares) ProbaLink() Link { return LinkClip }

func (*LeastSquares) NewStage(_ []float64, _ *mat.Dense, w []float64, _ int) LeafStage {
	return meanStage{w: w}
}

// meanStage keeps the weighted mean of the residual, which is what the
// squared-error tree already predicts.
type meanStage struct{ w []float64 }

func (s meanStage) LeafValue(region []bool, residual []float64) float64 {
	var num, den float64
	for i, in := range region {
		if in {
			num += s.w[i] * residual[i]
			den += s.w[i]
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// LeastAbsoluteDeviation is the absolute error loss.
type LeastAbsoluteDeviation struct{}

func (*LeastAbsoluteDeviation) K() int { return 1 }

func (*LeastAbsoluteDeviation) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	var total, sw float64
	for i, yi := range y {
		total += w[i] * math.Abs(yi-pred.At(i, 0))
		sw += w[i]
	}
	return total / sw
}

func (*LeastAbsoluteDeviation) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	res := make([]float64, len(y))
	for i, yi := range y {
		if yi-pred.At(i, 0) > 0 {
			res[i] = 1
		} else {
			res[i] = -1
		}
	}
	return res
}

func (*LeastAbsoluteDeviation) InitEstimator() InitEstimator {
	return &QuantileEstimator{Alpha: 0.5}
}

func (*LeastAbsoluteDeviation) ProbaLink() Link { return LinkClip }

func (*LeastAbsoluteDeviation) NewStage(y []float64, pred *mat.Dense, w []float64, _ int) LeafStage {
	return &percentileStage{diff: diffs(y, pred), w: w, percentile: 50}
}

// percentileStage sets the leaf to a weighted percentile of y - pred.
type percentileStage struct {
	diff       []float64
	w          []float64
	percentile float64
}

func (s *percentileStage) LeafValue(region []bool, _ []float64) float64 {
	d, w := masked(s.diff, s.w, region)
	return weightedPercentile(d, w, s.percentile)
}

// HuberLoss is squared error below the alpha-quantile of |y - pred| and
// absolute error above it.
type HuberLoss struct {
	Alpha float64
}

func (*HuberLoss) K() int { return 1 }

func (l *HuberLoss) gamma(diff []float64) float64 {
	abs := make([]float64, len(diff))
	for i, d := range diff {
		abs[i] = math.Abs(d)
	}
	return weightedPercentile(abs, ones(len(abs)), 100*l.Alpha)
}

func (l *HuberLoss) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	diff := diffs(y, pred)
	gamma := l.gamma(diff)
	var total, sw float64
	for i, d := range diff {
		if math.Abs(d) <= gamma {
			total += w[i] * 0.5 * d * d
		} else {
			total += w[i] * gamma * (math.Abs(d) - gamma/2)
		}
		sw += w[i]
	}
	return total / sw
}

func (l *HuberLoss) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	diff := diffs(y, pred)
	gamma := l.gamma(diff)
	res := make([]float64, len(diff))
	for i, d := range diff {
		if math.Abs(d) <= gamma {
			res[i] = d
		} else {
			res[i] = gamma * sign(d)
		}
	}
	return res
}

func (*HuberLoss) InitEstimator() InitEstimator { return &MeanEstimator{} }

func (*HuberLoss) ProbaLink() Link { return LinkClip }

func (l *HuberLoss) NewStage(y []float64, pred *mat.Dense, w []float64, _ int) LeafStage {
	diff := diffs(y, pred)
	return &huberStage{diff: diff, w: w, gamma: l.gamma(diff)}
}

type huberStage struct {
	diff  []float64
	w     []float64
	gamma float64
}

func (s *huberStage) LeafValue(region []bool, _ []float64) float64 {
	d, w := masked(s.diff, s.w, region)
	if len(d) == 0 {
		return 0
	}
	median := weightedPercentile(d, w, 50)
	mean := 0.0
	for _, v := range d {
		dm := v - median
		mean += sign(dm) * math.Min(math.Abs(dm), s.gamma)
	}
	return median + mean/float64(len(d))
}

// QuantileLoss is the pinball loss at quantile Alpha.
type QuantileLoss struct {
	Alpha float64
}

func (*QuantileLoss) K() int { return 1 }

func (l *QuantileLoss) Loss(y []float64, pred *mat.Dense, w []float64) float64 {
	var total, sw float64
	for i, yi := range y {
		d := yi - pred.At(i, 0)
		if d > 0 {
			total += w[i] * l.Alpha * d
		} else {
			total -= w[i] * (1 - l.Alpha) * d
		}
		sw += w[i]
	}
	return total / sw
}

func (l *QuantileLoss) NegativeGradient(y []float64, pred *mat.Dense, _ int) []float64 {
	res := make([]float64, len(y))
	for i, yi := range y {
		if yi > pred.At(i, 0) {
			res[i] = l.Alpha
		} else {
			res[i] = l.Alpha - 1
		}
	}
	return res
}

func (l *QuantileLoss) InitEstimator() InitEstimator {
	return &QuantileEstimator{Alpha: l.Alpha}
}

func (*QuantileLoss) ProbaLink() Link { return LinkClip }

func (l *QuantileLoss) NewStage(y []float64, pred *mat.Dense, w []float64, _ int) LeafStage {
	return &percentileStage{diff: diffs(y, pred), w: w, percentile: 100 * l.Alpha}
}

func diffs(y []float64, pred *mat.Dense) []float64 {
	d := make([]float64, len(y))
	for i, yi := range y {
		d[i] = yi - pred.At(i, 0)
	}
	return d
}

func masked(v, w []float64, region []bool) ([]float64, []float64) {
	var mv, mw []float64
	for i, in := range region {
		if in {
			mv = append(mv, v[i])
			mw = append(mw, w[i])
		}
	}
	return mv, mw
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
