package uniform

import (
	"fmt"
	"math"
	"time"

	"github.com/YuminosukeSato/uboost/core/sparse"
	"github.com/YuminosukeSato/uboost/dataset"
	"github.com/YuminosukeSato/uboost/neighbors"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
)

type config struct {
	searcher       neighbors.Searcher
	initialWeights []float64
}

// Option configures the kNN loss builders.
type Option func(*config)

// WithSearcher replaces the default KD-tree neighbor search.
func WithSearcher(s neighbors.Searcher) Option {
	return func(c *config) { c.searcher = s }
}

// WithInitialWeights sets one weight per coefficient-matrix row.
func WithInitialWeights(w []float64) Option {
	return func(c *config) { c.initialWeights = w }
}

// NewSimpleKnnLoss builds a KnnLoss whose matrix has one row per sample,
// summing the margins of its knn same-label neighbors in the space of
// uniformVars.
//
// Labels are read as integer classes the way GradientBoostingClassifier
// encodes them: the larger of the two classes is the signal. A third class
// fails with ErrUnsupportedConfiguration.
func NewSimpleKnnLoss(frame *dataset.Frame, y []float64, uniformVars []string, knn int, opts ...Option) (*KnnLoss, error) {
	return newKnnLoss("Simple", SimpleCoefficients, frame, y, uniformVars, knn, opts)
}

// NewPairwiseKnnLoss builds a KnnLoss whose matrix has one row per
// (sample, neighbor) pair, summing the two margins.
func NewPairwiseKnnLoss(frame *dataset.Frame, y []float64, uniformVars []string, knn int, opts ...Option) (*KnnLoss, error) {
	return newKnnLoss("Pairwise", PairwiseCoefficients, frame, y, uniformVars, knn, opts)
}

func newKnnLoss(kind string, coefficients func(neighbors.Groups) *sparse.CSR,
	frame *dataset.Frame, y []float64, uniformVars []string, knn int, opts []Option) (*KnnLoss, error) {
	cfg := config{searcher: neighbors.KDTree{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	start := time.Now()

	if frame.Len() != len(y) {
		return nil, errors.NewDimensionError("uniform.New"+kind+"KnnLoss", frame.Len(), len(y), 0)
	}
	points, err := frame.Points(uniformVars)
	if err != nil {
		return nil, err
	}
	isSignal, err := signalMask(y)
	if err != nil {
		return nil, errors.Wrapf(err, "uniform.New%sKnnLoss", kind)
	}
	groups, err := neighbors.SameLabelGroups(points, isSignal, knn, cfg.searcher)
	if err != nil {
		return nil, err
	}
	m := coefficients(groups)

	rows, _ := m.Dims()
	log.GetLoggerWithName("uniform").Debug("Coefficient matrix built",
		"kind", kind,
		log.SamplesKey, len(y),
		log.NeighborsKey, knn,
		log.UniformVariablesKey, uniformVars,
		"rows", rows,
		"nnz", m.NNZ(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return NewKnnLoss(2, m, cfg.initialWeights)
}

// signalMask marks the samples of the larger class.
func signalMask(y []float64) ([]bool, error) {
	lo, hi := math.MaxInt, math.MinInt
	seen := make(map[int]struct{}, 2)
	for _, v := range y {
		c := int(v)
		seen[c] = struct{}{}
		if len(seen) > 2 {
			return nil, errors.NewUnsupportedConfigurationError("signalMask",
				fmt.Sprintf("only 2 classes supported, got %d, %d and %d", lo, hi, c))
		}
		lo, hi = min(lo, c), max(hi, c)
	}
	mask := make([]bool, len(y))
	for i, v := range y {
		mask[i] = len(seen) == 2 && int(v) == hi
	}
	return mask, nil
}
