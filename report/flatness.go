package report

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/metrics"
	"github.com/YuminosukeSato/uboost/neighbors"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
)

// DefaultTargetEfficiencies are the signal efficiencies flatness is measured at.
var DefaultTargetEfficiencies = []float64{0.6, 0.7, 0.8, 0.9}

type evalConfig struct {
	nBins      int
	step       int
	power      float64
	label      int
	effs       []float64
	knn        int
	searcher   neighbors.Searcher
	thresholds []float64
	center     *float64
	metric     MetricFunc
}

// EvalOption configures a flatness or quality evaluation.
type EvalOption func(*evalConfig)

// WithNBins sets the number of bins per covariate. Default 20.
func WithNBins(n int) EvalOption { return func(c *evalConfig) { c.nBins = n } }

// WithStep evaluates every step-th stage of staged curves. Default 3 for
// flatness curves and 1 for learning and correlation curves.
func WithStep(step int) EvalOption { return func(c *evalConfig) { c.step = step } }

// WithPower sets the exponent of the deviation penalty. Default 2, and 1 for
// CvMCurves.
func WithPower(power float64) EvalOption { return func(c *evalConfig) { c.power = power } }

// WithLabel selects the class whose efficiency is measured. Default 1.
func WithLabel(label int) EvalOption { return func(c *evalConfig) { c.label = label } }

// WithTargetEfficiencies overrides DefaultTargetEfficiencies.
func WithTargetEfficiencies(effs ...float64) EvalOption {
	return func(c *evalConfig) { c.effs = append([]float64(nil), effs...) }
}

// WithKNN sets the neighbour group size of SDEKnnCurves. Default 30.
func WithKNN(k int) EvalOption { return func(c *evalConfig) { c.knn = k } }

// WithSearcher sets the neighbour search of SDEKnnCurves. Default neighbors.KDTree.
func WithSearcher(s neighbors.Searcher) EvalOption { return func(c *evalConfig) { c.searcher = s } }

// WithThresholds sets the probability cuts of Correlation.
func WithThresholds(cuts ...float64) EvalOption {
	return func(c *evalConfig) { c.thresholds = append([]float64(nil), cuts...) }
}

// WithCenter makes CorrelationCurves correlate with |x - center| instead of x.
func WithCenter(center float64) EvalOption { return func(c *evalConfig) { c.center = &center } }

// WithMetric sets the metric of LearningCurves and ComputeMetrics. Default
// metrics.ROCAUC.
func WithMetric(m MetricFunc) EvalOption { return func(c *evalConfig) { c.metric = m } }

// MetricFunc scores a probability column against 0/1 labels.
type MetricFunc func(yTrue, score, sampleWeight []float64) (float64, error)

func newEvalConfig(step int, opts []EvalOption) (*evalConfig, error) {
	c := &evalConfig{
		nBins:      20,
		step:       step,
		power:      2,
		label:      1,
		effs:       DefaultTargetEfficiencies,
		knn:        30,
		searcher:   neighbors.KDTree{},
		thresholds: []float64{0.2, 0.4, 0.5, 0.6, 0.8},
		metric:     metrics.ROCAUC,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.nBins < 1:
		return nil, errors.NewValidationError("n_bins", "must be positive", c.nBins)
	case c.step < 1:
		return nil, errors.NewValidationError("step", "must be positive", c.step)
	case c.power <= 0 || math.IsNaN(c.power):
		return nil, errors.NewValidationError("power", "must be positive", c.power)
	case len(c.effs) == 0:
		return nil, errors.NewValidationError("target_efficiencies", "must not be empty", c.effs)
	case c.knn < 1:
		return nil, errors.NewValidationError("knn", "must be positive", c.knn)
	case c.searcher == nil:
		return nil, errors.NewValidationError("searcher", "must not be nil", nil)
	case c.metric == nil:
		return nil, errors.NewValidationError("metric", "must not be nil", nil)
	}
	for _, e := range c.effs {
		if e <= 0 || e >= 1 {
			return nil, errors.NewValidationError("target_efficiencies", "must lie in (0, 1)", e)
		}
	}
	return c, nil
}

// binnedMetric builds the per-stage function shared by the bin-based curves.
func (p *Predictions) binnedMetric(vars []string, c *evalConfig,
	stat func(col []float64, mask []bool, bins []int) (float64, error)) (func(*mat.Dense) (float64, error), error) {
	mask := p.labelMask(c.label)
	bins, err := p.ComputeBinIndices(vars, c.nBins, mask)
	if err != nil {
		return nil, err
	}
	return func(proba *mat.Dense) (float64, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return 0, err
		}
		return stat(col, mask, bins)
	}, nil
}

func (p *Predictions) logCurve(name string, vars []string, out interface{ Stages() []int }) {
	p.logger.Debug("Curve computed",
		"curve", name,
		log.UniformVariablesKey, vars,
		log.StagesKey, len(out.Stages()),
	)
}

// MSECurves is the staged mean squared deviation of per-bin efficiency from
// the target efficiencies (metrics.ComputeMSEEOnBins).
func (p *Predictions) MSECurves(vars []string, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(3, opts)
	if err != nil {
		return nil, err
	}
	fn, err := p.binnedMetric(vars, c, func(col []float64, mask []bool, bins []int) (float64, error) {
		return metrics.ComputeMSEEOnBins(col, mask, bins, c.effs, c.power, p.sampleWeight)
	})
	if err != nil {
		return nil, err
	}
	out, err := MapOnStagedProba(p, fn, c.step)
	if err != nil {
		return nil, err
	}
	p.logCurve("mse", vars, out)
	return out, nil
}

// SDECurves is the staged standard deviation of per-bin efficiency
// (metrics.ComputeSDEOnBins).
func (p *Predictions) SDECurves(vars []string, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(3, opts)
	if err != nil {
		return nil, err
	}
	fn, err := p.binnedMetric(vars, c, func(col []float64, mask []bool, bins []int) (float64, error) {
		return metrics.ComputeSDEOnBins(col, mask, bins, c.effs, c.power, p.checkedWeight)
	})
	if err != nil {
		return nil, err
	}
	out, err := MapOnStagedProba(p, fn, c.step)
	if err != nil {
		return nil, err
	}
	p.logCurve("sde", vars, out)
	return out, nil
}

// SDEKnnCurves is SDECurves over neighbour groups of the selected class in
// the covariate space instead of bins (metrics.ComputeSDEOnGroups). The
// neighbour search runs once; the cost is in the groups, so keep WithKNN small
// on large samples.
func (p *Predictions) SDEKnnCurves(vars []string, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(3, opts)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		if !p.frame.Has(v) {
			return nil, errors.NewValueErrorf("SDEKnnCurves", "variable %q is not in the dataset", v)
		}
	}
	mask := p.labelMask(c.label)
	points, err := p.frame.Points(vars)
	if err != nil {
		return nil, err
	}
	all, err := neighbors.SameLabelGroups(points, mask, c.knn, c.searcher)
	if err != nil {
		return nil, err
	}
	var groups [][]int
	for i, m := range mask {
		if m {
			groups = append(groups, all[i])
		}
	}

	fn := func(proba *mat.Dense) (float64, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return 0, err
		}
		return metrics.ComputeSDEOnGroups(col, mask, groups, c.effs, c.power, p.sampleWeight)
	}
	out, err := MapOnStagedProba(p, fn, c.step)
	if err != nil {
		return nil, err
	}
	p.logCurve("sde_knn", vars, out)
	return out, nil
}

// TheilCurves is the staged Theil index of per-bin efficiency
// (metrics.ComputeTheilOnBins).
func (p *Predictions) TheilCurves(vars []string, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(3, opts)
	if err != nil {
		return nil, err
	}
	fn, err := p.binnedMetric(vars, c, func(col []float64, mask []bool, bins []int) (float64, error) {
		return metrics.ComputeTheilOnBins(col, mask, bins, c.effs, p.checkedWeight)
	})
	if err != nil {
		return nil, err
	}
	out, err := MapOnStagedProba(p, fn, c.step)
	if err != nil {
		return nil, err
	}
	p.logCurve("theil", vars, out)
	return out, nil
}

// CvMCurves is the staged bin-based Cramér–von Mises flatness of the selected
// class raised to the given power (default 1; 0.5 compares with SDE).
func (p *Predictions) CvMCurves(vars []string, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(3, append([]EvalOption{WithPower(1)}, opts...))
	if err != nil {
		return nil, err
	}
	fn, err := p.binnedMetric(vars, c, func(col []float64, mask []bool, bins []int) (float64, error) {
		var pred, w []float64
		var masked []int
		for i, m := range mask {
			if m {
				pred = append(pred, col[i])
				masked = append(masked, bins[i])
				w = append(w, p.checkedWeight[i])
			}
		}
		cvm, err := metrics.BinBasedCvM(pred, masked, w)
		if err != nil {
			return 0, err
		}
		return math.Pow(cvm, c.power), nil
	})
	if err != nil {
		return nil, err
	}
	out, err := MapOnStagedProba(p, fn, c.step)
	if err != nil {
		return nil, err
	}
	p.logCurve("cvm", vars, out)
	return out, nil
}

// ComputeMSE evaluates metrics.ComputeMSEEOnBins on selected stages; nil
// stages means the final predictions.
func (p *Predictions) ComputeMSE(vars []string, stages []int, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(1, opts)
	if err != nil {
		return nil, err
	}
	fn, err := p.binnedMetric(vars, c, func(col []float64, mask []bool, bins []int) (float64, error) {
		return metrics.ComputeMSEEOnBins(col, mask, bins, c.effs, c.power, p.sampleWeight)
	})
	if err != nil {
		return nil, err
	}
	return MapOnStages(p, fn, stages)
}

// Efficiency returns, per classifier and selected stage, the per-bin signal
// efficiency at every target efficiency: Value[e][b] is the efficiency of
// bin b at cut e. Bins are laid out as in ComputeBinIndices, so with two
// covariates a slice reshapes to nBins×nBins row-major.
func (p *Predictions) Efficiency(vars []string, stages []int, opts ...EvalOption) (*Staged[[][]float64], error) {
	c, err := newEvalConfig(1, opts)
	if err != nil {
		return nil, err
	}
	if len(vars) == 0 || len(vars) > maxBinningVars {
		return nil, errors.NewValueErrorf("Efficiency", "efficiency maps support 1 or %d variables, got %d", maxBinningVars, len(vars))
	}
	mask := p.labelMask(c.label)
	bins, err := p.ComputeBinIndices(vars, c.nBins, mask)
	if err != nil {
		return nil, err
	}
	totalBins := 1
	for range vars {
		totalBins *= c.nBins
	}
	var maskedBins []int
	var maskedW []float64
	for i, m := range mask {
		if m {
			maskedBins = append(maskedBins, bins[i])
			maskedW = append(maskedW, p.checkedWeight[i])
		}
	}

	fn := func(proba *mat.Dense) ([][]float64, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return nil, err
		}
		var signal []float64
		for i, m := range mask {
			if m {
				signal = append(signal, col[i])
			}
		}
		cuts, err := metrics.ComputeCutsForEfficiencies(c.effs, mask, col, p.checkedWeight)
		if err != nil {
			return nil, err
		}
		out := make([][]float64, len(cuts))
		for e, cut := range cuts {
			if out[e], err = metrics.ComputeBinEfficiencies(signal, maskedBins, cut, maskedW, totalBins); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return MapOnStages(p, fn, stages)
}
