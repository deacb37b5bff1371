// Package report trains a named collection of classifiers on the same data and
// evaluates them stage by stage: staged probability extraction, binning over
// chosen covariates, and flatness and quality series that a plot would be
// drawn from.
package report

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/core/parallel"
	"github.com/YuminosukeSato/uboost/dataset"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
)

// Classifiers is an insertion-ordered collection of named classifiers that
// are trained together and then tested on the same sample set.
type Classifiers struct {
	names   []string
	models  map[string]model.Classifier
	workers int
}

// NewClassifiers returns an empty collection. workers bounds concurrent fits;
// 0 means parallel.DefaultWorkers and 1 trains sequentially.
func NewClassifiers(workers int) *Classifiers {
	if workers == 0 {
		workers = parallel.DefaultWorkers()
	}
	return &Classifiers{models: make(map[string]model.Classifier), workers: workers}
}

// Add appends a classifier under a unique name.
func (c *Classifiers) Add(name string, clf model.Classifier) error {
	if clf == nil {
		return errors.NewValueErrorf("Classifiers.Add", "classifier %q is nil", name)
	}
	if _, dup := c.models[name]; dup {
		return errors.NewValueErrorf("Classifiers.Add", "duplicate classifier name %q", name)
	}
	c.names = append(c.names, name)
	c.models[name] = clf
	return nil
}

// Names returns classifier names in insertion order.
func (c *Classifiers) Names() []string { return append([]string(nil), c.names...) }

// Get returns the classifier registered under name.
func (c *Classifiers) Get(name string) (model.Classifier, bool) {
	clf, ok := c.models[name]
	return clf, ok
}

// Len returns the number of classifiers.
func (c *Classifiers) Len() int { return len(c.names) }

// Fit trains every classifier on the same data. Fits run concurrently on at
// most the configured number of workers; the collection keeps its insertion
// order whatever the completion order. A non-nil sampleWeight requires every
// classifier to implement model.WeightedFitter. The first failure cancels the
// fits that have not started yet.
func (c *Classifiers) Fit(ctx context.Context, frame *dataset.Frame, y, sampleWeight []float64) error {
	if c.Len() == 0 {
		return errors.NewValueError("Classifiers.Fit", "no classifiers to train")
	}
	n, nFeatures := frame.Dims()
	if len(y) != n {
		return errors.NewDimensionError("Classifiers.Fit", n, len(y), 0)
	}
	if sampleWeight != nil && len(sampleWeight) != n {
		return errors.NewDimensionError("Classifiers.Fit", n, len(sampleWeight), 0)
	}
	if sampleWeight != nil {
		for _, name := range c.names {
			if _, ok := c.models[name].(model.WeightedFitter); !ok {
				return errors.NewUnsupportedConfigurationError("Classifiers.Fit",
					"classifier "+name+" does not accept sample weights")
			}
		}
	}

	X := frame.Matrix()
	Y := mat.NewDense(n, 1, append([]float64(nil), y...))
	logger := log.GetLoggerWithName("report").With(log.OperationKey, "fit")
	logger.Info("Training started",
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		"classifiers", c.Len(),
	)

	start := time.Now()
	_, err := parallel.Map(ctx, c.workers, c.Len(), func(_ context.Context, i int) (struct{}, error) {
		name := c.names[i]
		clf := c.models[name]
		clfStart := time.Now()
		var err error
		if sampleWeight != nil {
			err = clf.(model.WeightedFitter).FitWeighted(X, Y, sampleWeight)
		} else {
			err = clf.Fit(X, Y)
		}
		if err != nil {
			return struct{}{}, errors.Wrapf(err, "classifier %s", name)
		}
		logger.Info("Classifier trained",
			log.EstimatorIDKey, name,
			log.DurationMsKey, time.Since(clfStart).Milliseconds(),
		)
		return struct{}{}, nil
	})
	if err != nil {
		logger.Error("Training failed", err)
		return err
	}

	logger.Info("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		"parallel", c.workers > 1,
	)
	return nil
}

// TestOn computes predictions of every classifier on a test sample.
func (c *Classifiers) TestOn(frame *dataset.Frame, y, sampleWeight []float64, lowMemory bool) (*Predictions, error) {
	return NewPredictions(c, frame, y, sampleWeight, lowMemory)
}
