package report

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/dataset"
	"github.com/YuminosukeSato/uboost/metrics"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
)

// FinalStage marks the prediction of the whole ensemble rather than a
// numbered stage. Its display name is "result".
const FinalStage = -1

// StageName renders a stage index for tables.
func StageName(stage int) string {
	if stage == FinalStage {
		return "result"
	}
	return strconv.Itoa(stage)
}

// Point is one stage of a per-classifier series.
type Point[T any] struct {
	Stage int
	Value T
}

// Series is ordered by stage.
type Series[T any] []Point[T]

// Stages lists the stage indices of the series.
func (s Series[T]) Stages() []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Stage
	}
	return out
}

// Values lists the values of the series.
func (s Series[T]) Values() []T {
	out := make([]T, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// At returns the value recorded for stage.
func (s Series[T]) At(stage int) (T, bool) {
	for _, p := range s {
		if p.Stage == stage {
			return p.Value, true
		}
	}
	var zero T
	return zero, false
}

// Staged maps classifier names to series, keeping the classifiers' order.
// Classifiers without a series are absent.
type Staged[T any] struct {
	names  []string
	series map[string]Series[T]
}

func newStaged[T any]() *Staged[T] {
	return &Staged[T]{series: make(map[string]Series[T])}
}

func (s *Staged[T]) set(name string, series Series[T]) {
	if _, ok := s.series[name]; !ok {
		s.names = append(s.names, name)
	}
	s.series[name] = series
}

// Names returns the classifiers present, in collection order.
func (s *Staged[T]) Names() []string { return append([]string(nil), s.names...) }

// Get returns the series of one classifier.
func (s *Staged[T]) Get(name string) (Series[T], bool) {
	series, ok := s.series[name]
	return series, ok
}

// Stages returns the union of stages over all classifiers in ascending
// order, with FinalStage first.
func (s *Staged[T]) Stages() []int {
	seen := make(map[int]bool)
	var out []int
	for _, name := range s.names {
		for _, p := range s.series[name] {
			if !seen[p.Stage] {
				seen[p.Stage] = true
				out = append(out, p.Stage)
			}
		}
	}
	sort.Ints(out)
	return out
}

// Predictions holds the predictions of a set of classifiers on one test
// sample and evaluates them stage by stage.
type Predictions struct {
	classifiers *Classifiers
	frame       *dataset.Frame
	y           []float64
	// sampleWeight is the caller's weight, nil when absent.
	sampleWeight []float64
	// checkedWeight is sampleWeight with nil replaced by ones.
	checkedWeight []float64
	final         map[string]*mat.Dense
	// staged is nil in low-memory mode.
	staged    map[string][]*mat.Dense
	lowMemory bool
	logger    log.Logger
}

// NewPredictions computes predictions of every classifier on frame. In
// low-memory mode only final probabilities are kept and staged ones are
// recomputed on demand; otherwise every stage of classifiers implementing
// model.StagedProbaPredictor is cached, the last stage doubling as the final
// prediction.
func NewPredictions(classifiers *Classifiers, frame *dataset.Frame, y, sampleWeight []float64, lowMemory bool) (p *Predictions, err error) {
	defer errors.Recover(&err, "report.NewPredictions")
	const op = "report.NewPredictions"
	if classifiers == nil || classifiers.Len() == 0 {
		return nil, errors.NewValueError(op, "no classifiers")
	}
	if frame == nil {
		return nil, errors.NewValueError(op, "nil frame")
	}
	n := frame.Len()
	if len(y) != n {
		return nil, errors.NewDimensionError(op, n, len(y), 0)
	}
	checked, err := metrics.CheckSampleWeight(op, n, sampleWeight)
	if err != nil {
		return nil, err
	}

	p = &Predictions{
		classifiers:   classifiers,
		frame:         frame,
		y:             append([]float64(nil), y...),
		checkedWeight: checked,
		final:         make(map[string]*mat.Dense, classifiers.Len()),
		lowMemory:     lowMemory,
		logger:        log.GetLoggerWithName("report").With(log.OperationKey, "test_on"),
	}
	if sampleWeight != nil {
		p.sampleWeight = append([]float64(nil), sampleWeight...)
	}
	if !lowMemory {
		p.staged = make(map[string][]*mat.Dense)
	}

	X := frame.Matrix()
	for _, name := range classifiers.names {
		clf := classifiers.models[name]
		if !lowMemory {
			if sp, ok := clf.(model.StagedProbaPredictor); ok {
				stages, err := sp.StagedPredictProba(X)
				if err != nil {
					return nil, errors.Wrapf(err, "classifier %s", name)
				}
				if len(stages) > 0 {
					p.staged[name] = stages
					p.final[name] = stages[len(stages)-1]
					continue
				}
			}
		}
		proba, err := clf.PredictProba(X)
		if err != nil {
			return nil, errors.Wrapf(err, "classifier %s", name)
		}
		p.final[name] = mat.DenseCopyOf(proba)
	}
	p.logger.Debug("Predictions computed",
		log.SamplesKey, n,
		"classifiers", classifiers.Len(),
		"low_memory", lowMemory,
	)
	return p, nil
}

// Names returns the classifier names in collection order.
func (p *Predictions) Names() []string { return p.classifiers.Names() }

// Labels returns the test labels.
func (p *Predictions) Labels() []float64 { return append([]float64(nil), p.y...) }

// Final returns the final probabilities of one classifier.
func (p *Predictions) Final(name string) (*mat.Dense, bool) {
	proba, ok := p.final[name]
	return proba, ok
}

// stagedProba returns every stage per classifier supporting staged
// prediction, from the cache or freshly computed in low-memory mode.
func (p *Predictions) stagedProba() (*Staged[*mat.Dense], error) {
	out := newStaged[*mat.Dense]()
	X := p.frame.Matrix()
	for _, name := range p.classifiers.names {
		var stages []*mat.Dense
		if p.staged != nil {
			stages = p.staged[name]
		} else if sp, ok := p.classifiers.models[name].(model.StagedProbaPredictor); ok {
			var err error
			if stages, err = sp.StagedPredictProba(X); err != nil {
				return nil, errors.Wrapf(err, "classifier %s", name)
			}
		}
		if stages == nil {
			continue
		}
		series := make(Series[*mat.Dense], len(stages))
		for i, proba := range stages {
			series[i] = Point[*mat.Dense]{Stage: i, Value: proba}
		}
		out.set(name, series)
	}
	return out, nil
}

// Stages selects predictions by stage. nil selects the final prediction of
// every classifier under FinalStage. An explicit list selects only those
// stages, in ascending order, from classifiers with staged support; stages a
// classifier does not have are absent from its series.
func (p *Predictions) Stages(stages []int) (*Staged[*mat.Dense], error) {
	if stages == nil {
		out := newStaged[*mat.Dense]()
		for _, name := range p.classifiers.names {
			out.set(name, Series[*mat.Dense]{{Stage: FinalStage, Value: p.final[name]}})
		}
		return out, nil
	}
	wanted := make(map[int]bool, len(stages))
	for _, s := range stages {
		wanted[s] = true
	}
	all, err := p.stagedProba()
	if err != nil {
		return nil, err
	}
	out := newStaged[*mat.Dense]()
	for _, name := range all.names {
		var series Series[*mat.Dense]
		for _, pt := range all.series[name] {
			if wanted[pt.Stage] {
				series = append(series, Point[*mat.Dense]{Stage: pt.Stage, Value: mat.DenseCopyOf(pt.Value)})
			}
		}
		out.set(name, series)
	}
	return out, nil
}

// MapOnStages applies fn to the selected stages (see Predictions.Stages) of
// every classifier.
func MapOnStages[T any](p *Predictions, fn func(proba *mat.Dense) (T, error), stages []int) (*Staged[T], error) {
	selected, err := p.Stages(stages)
	if err != nil {
		return nil, err
	}
	return mapStaged(selected, fn)
}

// MapOnStagedProba applies fn to every step-th stage of each classifier with
// staged support, that is stages step-1, 2*step-1, and so on.
func MapOnStagedProba[T any](p *Predictions, fn func(proba *mat.Dense) (T, error), step int) (*Staged[T], error) {
	if step < 1 {
		return nil, errors.NewValueErrorf("report.MapOnStagedProba", "step must be positive, got %d", step)
	}
	all, err := p.stagedProba()
	if err != nil {
		return nil, err
	}
	thinned := newStaged[*mat.Dense]()
	for _, name := range all.names {
		var series Series[*mat.Dense]
		for _, pt := range all.series[name] {
			if (pt.Stage+1)%step == 0 {
				series = append(series, pt)
			}
		}
		thinned.set(name, series)
	}
	return mapStaged(thinned, fn)
}

func mapStaged[T any](in *Staged[*mat.Dense], fn func(*mat.Dense) (T, error)) (*Staged[T], error) {
	out := newStaged[T]()
	for _, name := range in.names {
		src := in.series[name]
		series := make(Series[T], 0, len(src))
		for _, pt := range src {
			v, err := fn(pt.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "classifier %s stage %s", name, StageName(pt.Stage))
			}
			series = append(series, Point[T]{Stage: pt.Stage, Value: v})
		}
		out.set(name, series)
	}
	return out, nil
}

// column extracts the probability column of label, which doubles as the
// column index.
func column(proba *mat.Dense, label int) ([]float64, error) {
	_, c := proba.Dims()
	if label < 0 || label >= c {
		return nil, errors.NewValueErrorf("report", "label %d has no probability column (%d columns)", label, c)
	}
	return mat.Col(nil, label, proba), nil
}

// labelMask is y == label.
func (p *Predictions) labelMask(label int) []bool {
	mask := make([]bool, len(p.y))
	for i, v := range p.y {
		mask[i] = v == float64(label)
	}
	return mask
}
