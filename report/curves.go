package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/uboost/metrics"
	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// binaryTarget is 1 where y == label and 0 elsewhere.
func (p *Predictions) binaryTarget(label int) []float64 {
	out := make([]float64, len(p.y))
	for i, v := range p.y {
		if v == float64(label) {
			out[i] = 1
		}
	}
	return out
}

// LearningCurves evaluates a quality metric (ROC AUC by default) of the
// selected class on every step-th stage.
func (p *Predictions) LearningCurves(opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(1, opts)
	if err != nil {
		return nil, err
	}
	yTrue := p.binaryTarget(c.label)
	return MapOnStagedProba(p, func(proba *mat.Dense) (float64, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return 0, err
		}
		return c.metric(yTrue, col, p.sampleWeight)
	}, c.step)
}

// ComputeMetrics evaluates a quality metric (ROC AUC by default) on selected
// stages; nil stages means the final predictions.
func (p *Predictions) ComputeMetrics(stages []int, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(1, opts)
	if err != nil {
		return nil, err
	}
	yTrue := p.binaryTarget(c.label)
	return MapOnStages(p, func(proba *mat.Dense) (float64, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return 0, err
		}
		return c.metric(yTrue, col, p.sampleWeight)
	}, stages)
}

// CorrelationCurves is the staged Pearson correlation, over samples of the
// selected class, between a variable (or its distance to WithCenter) and the
// prediction mapped through its own weighted CDF.
func (p *Predictions) CorrelationCurves(varName string, opts ...EvalOption) (*Staged[float64], error) {
	c, err := newEvalConfig(1, opts)
	if err != nil {
		return nil, err
	}
	values, err := p.frame.Column(varName)
	if err != nil {
		return nil, err
	}
	mask := p.labelMask(c.label)
	var data, weight []float64
	for i, m := range mask {
		if !m {
			continue
		}
		x := values[i]
		if c.center != nil {
			x = math.Abs(x - *c.center)
		}
		data = append(data, x)
		weight = append(weight, p.checkedWeight[i])
	}
	if len(data) < 2 {
		return nil, errors.NewValueError("CorrelationCurves", "fewer than two samples of the selected class")
	}

	return MapOnStagedProba(p, func(proba *mat.Dense) (float64, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return 0, err
		}
		pred := make([]float64, 0, len(data))
		for i, m := range mask {
			if m {
				pred = append(pred, col[i])
			}
		}
		normalize, err := metrics.BuildNormalizer(pred, weight)
		if err != nil {
			return 0, err
		}
		for i, v := range pred {
			pred[i] = normalize(v)
		}
		return stat.Correlation(pred, data, nil), nil
	}, c.step)
}

// CorrelationPoint is the mean of the variable in one bin and the efficiency
// of the selected class there at each threshold.
type CorrelationPoint struct {
	X            float64
	Efficiencies []float64
}

// Correlation bins a variable over all samples and reports, per selected
// stage, the efficiency (metrics.EfficiencyScore) of the selected class in
// every non-empty bin for each probability threshold.
func (p *Predictions) Correlation(varName string, stages []int, opts ...EvalOption) (*Staged[[]CorrelationPoint], error) {
	c, err := newEvalConfig(1, opts)
	if err != nil {
		return nil, err
	}
	if len(c.thresholds) == 0 {
		return nil, errors.NewValidationError("thresholds", "must not be empty", c.thresholds)
	}
	bins, err := p.ComputeBinIndices([]string{varName}, c.nBins, nil)
	if err != nil {
		return nil, err
	}
	values, err := p.frame.Column(varName)
	if err != nil {
		return nil, err
	}
	members := make([][]int, c.nBins)
	for i, b := range bins {
		members[b] = append(members[b], i)
	}
	yTrue := p.binaryTarget(c.label)

	return MapOnStages(p, func(proba *mat.Dense) ([]CorrelationPoint, error) {
		col, err := column(proba, c.label)
		if err != nil {
			return nil, err
		}
		var out []CorrelationPoint
		for _, idx := range members {
			if len(idx) == 0 {
				continue
			}
			x := make([]float64, len(idx))
			y := make([]float64, len(idx))
			w := make([]float64, len(idx))
			for j, i := range idx {
				x[j] = values[i]
				y[j] = yTrue[i]
				w[j] = p.checkedWeight[i]
			}
			pt := CorrelationPoint{X: stat.Mean(x, nil), Efficiencies: make([]float64, len(c.thresholds))}
			for t, cut := range c.thresholds {
				passed := make([]bool, len(idx))
				for j, i := range idx {
					passed[j] = col[i] > cut
				}
				if pt.Efficiencies[t], err = metrics.EfficiencyScore(y, passed, w); err != nil {
					return nil, err
				}
			}
			out = append(out, pt)
		}
		return out, nil
	}, stages)
}

// PrintMSE writes ComputeMSE on the selected stages as a table, one row per
// stage and one column per classifier.
func (p *Predictions) PrintMSE(w io.Writer, vars []string, stages []int, opts ...EvalOption) error {
	result, err := p.ComputeMSE(vars, stages, opts...)
	if err != nil {
		return err
	}
	return WriteTable(w, "Staged MSE variation", result)
}

// WriteTable renders a staged scalar result with one row per stage. Stages
// missing for a classifier are left blank.
func WriteTable(w io.Writer, title string, result *Staged[float64]) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "stage")
	for _, name := range result.Names() {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)
	for _, stage := range result.Stages() {
		fmt.Fprint(tw, StageName(stage))
		for _, name := range result.Names() {
			series, _ := result.Get(name)
			if v, ok := series.At(stage); ok {
				fmt.Fprintf(tw, "\t%.6f", v)
			} else {
				fmt.Fprint(tw, "\t")
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
