package ensemble

import (
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
	"github.com/YuminosukeSato/uboost/sklearn/tree"
)

// GradientBoostingClassifier fits an additive model of regression trees,
// one per score column per stage, each fitted to the negative gradient of
// the loss and then given loss-specific leaf values.
type GradientBoostingClassifier struct {
	state *model.StateManager
	params

	loss_       LossFunction
	link_       Link
	classes_    []int
	initScores_ []float64
	estimators_ [][]*tree.DecisionTreeRegressor
	trainScore_ []float64
}

// NewGradientBoostingClassifier creates a classifier with deviance loss,
// 100 stages, learning rate 0.1 and depth-3 trees unless overridden.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	p := params{
		nEstimators:     100,
		learningRate:    0.1,
		loss:            NamedLoss(Deviance),
		subsample:       1,
		alpha:           0.9,
		maxDepth:        3,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &GradientBoostingClassifier{state: model.NewStateManager(), params: p}
}

// Fit trains the ensemble with unit weights.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	return gb.FitWeighted(X, y, nil)
}

// FitWeighted trains the ensemble.
func (gb *GradientBoostingClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")
	start := time.Now()

	n, nFeatures := X.Dims()
	if n == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GradientBoostingClassifier.Fit")
	}
	if r, _ := y.Dims(); r != n {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", n, r, 0)
	}
	w := sampleWeight
	if w == nil {
		w = ones(n)
	} else if len(w) != n {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", n, len(w), 0)
	}

	classes, yEnc := encodeLabels(y)
	if len(classes) < 2 {
		return errors.NewValueErrorf("GradientBoostingClassifier.Fit", "needs samples of at least 2 classes, got %d", len(classes))
	}
	loss, initEst, err := gb.checkParams(len(classes))
	if err != nil {
		return err
	}
	if c, ok := loss.(sampleChecker); ok {
		if err := c.CheckSamples(n); err != nil {
			return err
		}
	}

	logger := log.GetLoggerWithName("ensemble.gradient_boosting").With(
		log.ModelNameKey, "GradientBoostingClassifier",
		log.LossNameKey, gb.loss.String(),
	)
	logger.Info("Training started",
		log.OperationKey, "fit",
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		log.StagesKey, gb.nEstimators,
		log.LearningRateKey, gb.learningRate,
	)

	if err := initEst.Fit(yEnc, w); err != nil {
		return err
	}
	initScores := initEst.Scores()
	K := loss.K()
	if len(initScores) != K {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit: init scores", K, len(initScores), 1)
	}

	pred := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		pred.SetRow(i, initScores)
	}

	rng := rand.New(rand.NewPCG(gb.randomState, 0x5eed))
	estimators := make([][]*tree.DecisionTreeRegressor, 0, gb.nEstimators)
	trainScore := make([]float64, 0, gb.nEstimators)

	for stage := 0; stage < gb.nEstimators; stage++ {
		inBag := gb.sampleInBag(rng, n)
		trees, err := gb.fitStage(stage, X, yEnc, w, inBag, loss, pred)
		if err != nil {
			return errors.Wrapf(err, "stage %d", stage)
		}
		estimators = append(estimators, trees)

		score := loss.Loss(yEnc, pred, w)
		if err := errors.CheckScalar("GradientBoostingClassifier.Fit", score, stage); err != nil {
			return err
		}
		trainScore = append(trainScore, score)
		logger.Debug("Stage fitted", log.IterationKey, stage, log.LossKey, score)
	}

	gb.loss_ = loss
	gb.link_ = defaultLink(loss)
	gb.classes_ = classes
	gb.initScores_ = initScores
	gb.estimators_ = estimators
	gb.trainScore_ = trainScore
	gb.state.SetDimensions(nFeatures, n)
	gb.state.SetFitted()

	logger.Info("Training completed",
		log.OperationKey, "fit",
		log.LossKey, trainScore[len(trainScore)-1],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// sampleInBag draws max(1, subsample*n) samples without replacement.
func (gb *GradientBoostingClassifier) sampleInBag(rng *rand.Rand, n int) []bool {
	inBag := make([]bool, n)
	if gb.subsample >= 1 {
		for i := range inBag {
			inBag[i] = true
		}
		return inBag
	}
	m := int(gb.subsample * float64(n))
	if m < 1 {
		m = 1
	}
	for _, i := range rng.Perm(n)[:m] {
		inBag[i] = true
	}
	return inBag
}

// fitStage adds one tree per score column. Every residual and leaf update of
// the stage sees the predictions from before the stage; pred is updated in place.
// A residual with NaN or Inf entries fails the stage.
func (gb *GradientBoostingClassifier) fitStage(stage int, X mat.Matrix, y, w []float64, inBag []bool,
	loss LossFunction, pred *mat.Dense) ([]*tree.DecisionTreeRegressor, error) {
	n, K := pred.Dims()
	before := mat.DenseCopyOf(pred)

	treeWeight := make([]float64, n)
	for i := range treeWeight {
		if inBag[i] {
			treeWeight[i] = w[i]
		}
	}

	trees := make([]*tree.DecisionTreeRegressor, K)
	for k := 0; k < K; k++ {
		residual := loss.NegativeGradient(y, before, k)
		if err := errors.CheckNumericalStability("GradientBoostingClassifier.Fit", residual, stage); err != nil {
			return nil, err
		}
		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(gb.maxDepth),
			tree.WithMinSamplesSplit(gb.minSamplesSplit),
			tree.WithMinSamplesLeaf(gb.minSamplesLeaf),
		)
		if err := t.FitWeighted(X, mat.NewDense(n, 1, residual), treeWeight); err != nil {
			return nil, err
		}
		leaves, err := t.Apply(X)
		if err != nil {
			return nil, err
		}

		leafStage := loss.NewStage(y, before, w, k)
		region := make([]bool, n)
		for _, leaf := range t.Leaves() {
			for i := range region {
				region[i] = inBag[i] && leaves[i] == leaf
			}
			t.SetLeafValue(leaf, leafStage.LeafValue(region, residual))
		}

		for i, leaf := range leaves {
			pred.Set(i, k, pred.At(i, k)+gb.learningRate*t.LeafValue(leaf))
		}
		trees[k] = t
	}
	return trees, nil
}

// DecisionFunction returns the N×K raw scores of the full ensemble.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	staged, err := gb.stagedScores("DecisionFunction", X, true)
	if err != nil {
		return nil, err
	}
	return staged[0], nil
}

// StagedDecisionFunction returns the raw scores after every stage; element t
// is the ensemble after t+1 learners.
func (gb *GradientBoostingClassifier) StagedDecisionFunction(X mat.Matrix) ([]*mat.Dense, error) {
	return gb.stagedScores("StagedDecisionFunction", X, false)
}

func (gb *GradientBoostingClassifier) stagedScores(method string, X mat.Matrix, finalOnly bool) ([]*mat.Dense, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", method); err != nil {
		return nil, err
	}
	if err := gb.state.CheckFeatures("GradientBoostingClassifier."+method, X); err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	K := len(gb.initScores_)
	scores := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		scores.SetRow(i, gb.initScores_)
	}

	var staged []*mat.Dense
	for _, trees := range gb.estimators_ {
		for k, t := range trees {
			leaves, err := t.Apply(X)
			if err != nil {
				return nil, err
			}
			for i, leaf := range leaves {
				scores.Set(i, k, scores.At(i, k)+gb.learningRate*t.LeafValue(leaf))
			}
		}
		if !finalOnly {
			staged = append(staged, mat.DenseCopyOf(scores))
		}
	}
	if finalOnly {
		return []*mat.Dense{scores}, nil
	}
	return staged, nil
}

// PredictProba returns N×nClasses class probabilities.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return gb.link_.Proba(scores, len(gb.classes_)), nil
}

// StagedPredictProba returns the class probabilities after every stage.
func (gb *GradientBoostingClassifier) StagedPredictProba(X mat.Matrix) ([]*mat.Dense, error) {
	staged, err := gb.StagedDecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := make([]*mat.Dense, len(staged))
	for t, scores := range staged {
		out[t] = gb.link_.Proba(scores, len(gb.classes_))
	}
	return out, nil
}

// Predict returns the most probable class label of every sample as an N×1 matrix.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba.(*mat.Dense), gb.classes_), nil
}

// Score returns the mean accuracy on X, y.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.classes_...)
}

// TrainScore returns the training loss after every stage.
func (gb *GradientBoostingClassifier) TrainScore() []float64 {
	return append([]float64(nil), gb.trainScore_...)
}

// NEstimators returns the number of fitted stages.
func (gb *GradientBoostingClassifier) NEstimators() int { return len(gb.estimators_) }

// Loss returns the resolved loss of the last fit.
func (gb *GradientBoostingClassifier) Loss() LossFunction { return gb.loss_ }

// GetParams returns the hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} { return gb.getParams() }

// Snapshot is the gob-encodable state of a fitted GradientBoostingClassifier.
// The loss itself is not kept; only the probability link survives.
type Snapshot struct {
	Classes      []int
	InitScores   []float64
	LearningRate float64
	Trees        [][]*tree.DecisionTreeRegressor
	TrainScore   []float64
	Link         Link
	NFeatures    int
}

// Snapshot returns the fitted state for persistence with model.SaveModel.
func (gb *GradientBoostingClassifier) Snapshot() (*Snapshot, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "Snapshot"); err != nil {
		return nil, err
	}
	nFeatures, _ := gb.state.GetDimensions()
	return &Snapshot{
		Classes:      gb.Classes(),
		InitScores:   append([]float64(nil), gb.initScores_...),
		LearningRate: gb.learningRate,
		Trees:        gb.estimators_,
		TrainScore:   gb.TrainScore(),
		Link:         gb.link_,
		NFeatures:    nFeatures,
	}, nil
}

// FromSnapshot rebuilds a classifier able to predict but not to refit
// with the same loss.
func FromSnapshot(s *Snapshot) *GradientBoostingClassifier {
	gb := NewGradientBoostingClassifier(
		WithLearningRate(s.LearningRate),
		WithNEstimators(len(s.Trees)),
	)
	gb.link_ = s.Link
	gb.classes_ = append([]int(nil), s.Classes...)
	gb.initScores_ = append([]float64(nil), s.InitScores...)
	gb.estimators_ = s.Trees
	gb.trainScore_ = append([]float64(nil), s.TrainScore...)
	gb.state.SetDimensions(s.NFeatures, 0)
	gb.state.SetFitted()
	return gb
}

// encodeLabels maps the label column to indices into the sorted class list.
func encodeLabels(y mat.Matrix) ([]int, []float64) {
	n, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		seen[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	enc := make([]float64, n)
	for i := range enc {
		enc[i] = float64(sort.SearchInts(classes, int(y.At(i, 0))))
	}
	return classes, enc
}

func argmaxLabels(proba *mat.Dense, classes []int) *mat.Dense {
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		row := proba.RawRowView(i)
		best := 0
		for k := 1; k < len(row); k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

func accuracy(pred, y mat.Matrix) (float64, error) {
	n, _ := pred.Dims()
	if r, _ := y.Dims(); r != n {
		return 0, errors.NewDimensionError("Score", n, r, 0)
	}
	if n == 0 {
		return 0, errors.ErrEmptyData
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

var (
	_ model.Classifier           = (*GradientBoostingClassifier)(nil)
	_ model.WeightedFitter       = (*GradientBoostingClassifier)(nil)
	_ model.StagedProbaPredictor = (*GradientBoostingClassifier)(nil)
	_ model.Scorer               = (*GradientBoostingClassifier)(nil)
)
