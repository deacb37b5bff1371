package ensemble

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/core/model"
	"github.com/YuminosukeSato/uboost/dataset"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
)

func blobs(t *testing.T, n, features int, distance float64, seed uint64) (*mat.Dense, *mat.Dense) {
	t.Helper()
	s, err := dataset.GenerateSample(n, features, distance, seed)
	require.NoError(t, err)
	return s.Frame.Matrix(), mat.NewDense(n, 1, s.Labels)
}

func threeBlobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	centers := [][2]float64{{0, 0}, {5, 0}, {0, 5}}
	for i := 0; i < n; i++ {
		k := i % 3
		// deterministic jitter on a small grid around every center
		X.Set(i, 0, centers[k][0]+float64(i%7)/7-0.5)
		X.Set(i, 1, centers[k][1]+float64(i%5)/5-0.5)
		y.Set(i, 0, float64(k))
	}
	return X, y
}

func TestCheckParams(t *testing.T) {
	X, y := blobs(t, 40, 2, 2, 1)
	tests := []struct {
		name  string
		opts  []Option
		param string
	}{
		{"n_estimators", []Option{WithNEstimators(0)}, "n_estimators"},
		{"learning_rate", []Option{WithLearningRate(0)}, "learning_rate"},
		{"n_estimators before learning_rate", []Option{WithNEstimators(-1), WithLearningRate(-1)}, "n_estimators"},
		{"unknown loss", []Option{WithLoss(NamedLoss("hinge"))}, "loss"},
		{"nil custom loss", []Option{WithLoss(CustomLoss(nil))}, "loss"},
		{"subsample zero", []Option{WithSubsample(0)}, "subsample"},
		{"subsample above one", []Option{WithSubsample(1.5)}, "subsample"},
		{"nil init", []Option{WithInit(nil)}, "init"},
		{"alpha", []Option{WithAlpha(1)}, "alpha"},
		{"loss before subsample", []Option{WithLoss(NamedLoss("hinge")), WithSubsample(2)}, "loss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGradientBoostingClassifier(tt.opts...).Fit(X, y)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestRegistryClassCounts(t *testing.T) {
	X, y := threeBlobs(30)

	err := NewGradientBoostingClassifier(WithLoss(NamedLoss(Exponential))).Fit(X, y)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedConfiguration))

	_, err = NewBinomialDeviance(3)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedConfiguration))
	_, err = NewMultinomialDeviance(2)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedConfiguration))

	loss, err := NamedLoss(Deviance).resolve(3, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 3, loss.K())
	loss, err = NamedLoss(Deviance).resolve(2, 0.9)
	require.NoError(t, err)
	assert.IsType(t, &BinomialDeviance{}, loss)
	loss, err = NamedLoss(Huber).resolve(2, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 0.7, loss.(*HuberLoss).Alpha)
}

func TestGradientBoosting_BinaryDeviance(t *testing.T) {
	X, y := blobs(t, 400, 4, 2, 7)
	gb := NewGradientBoostingClassifier(WithNEstimators(20), WithMaxDepth(2))
	require.NoError(t, gb.Fit(X, y))

	score, err := gb.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.85)
	assert.Equal(t, []int{0, 1}, gb.Classes())
	assert.Equal(t, 20, gb.NEstimators())

	trainScore := gb.TrainScore()
	require.Len(t, trainScore, 20)
	for i := 1; i < len(trainScore); i++ {
		assert.Less(t, trainScore[i], trainScore[i-1], "stage %d", i)
	}

	proba, err := gb.PredictProba(X)
	require.NoError(t, err)
	staged, err := gb.StagedPredictProba(X)
	require.NoError(t, err)
	require.Len(t, staged, 20)
	assert.True(t, mat.EqualApprox(proba, staged[19], 1e-12))
	for i := 0; i < 400; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
	}

	scores, err := gb.DecisionFunction(X)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-scores.At(0, 0))), proba.At(0, 1), 1e-12)
}

func TestGradientBoosting_Multiclass(t *testing.T) {
	X, y := threeBlobs(90)
	gb := NewGradientBoostingClassifier(WithNEstimators(10))
	require.NoError(t, gb.Fit(X, y))

	score, err := gb.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	proba, err := gb.PredictProba(X)
	require.NoError(t, err)
	_, cols := proba.Dims()
	assert.Equal(t, 3, cols)

	staged, err := gb.StagedDecisionFunction(X)
	require.NoError(t, err)
	_, k := staged[0].Dims()
	assert.Equal(t, 3, k)
}

func TestGradientBoosting_NamedLosses(t *testing.T) {
	X, y := blobs(t, 300, 3, 2.5, 3)
	for _, name := range []LossName{Exponential, LeastSquaresLoss, LeastAbsoluteLoss, Huber, Quantile} {
		t.Run(string(name), func(t *testing.T) {
			opts := []Option{WithLoss(NamedLoss(name)), WithNEstimators(15), WithMaxDepth(2)}
			if name == Quantile {
				opts = append(opts, WithAlpha(0.5))
			}
			gb := NewGradientBoostingClassifier(opts...)
			require.NoError(t, gb.Fit(X, y))

			score, err := gb.Score(X, y)
			require.NoError(t, err)
			assert.Greater(t, score, 0.8)

			proba, err := gb.PredictProba(X)
			require.NoError(t, err)
			for i := 0; i < 300; i++ {
				assert.GreaterOrEqual(t, proba.At(i, 1), 0.0)
				assert.LessOrEqual(t, proba.At(i, 1), 1.0)
			}
		})
	}
}

func TestGradientBoosting_SubsampleIsSeeded(t *testing.T) {
	X, y := blobs(t, 200, 3, 2, 11)
	fit := func(seed uint64) []float64 {
		gb := NewGradientBoostingClassifier(WithNEstimators(5), WithSubsample(0.5), WithRandomState(seed))
		require.NoError(t, gb.Fit(X, y))
		return gb.TrainScore()
	}
	assert.Equal(t, fit(1), fit(1))
	assert.NotEqual(t, fit(1), fit(2))
}

// countingLoss wraps a loss and records how the driver calls it.
type countingLoss struct {
	LossFunction
	stages int
}

func (c *countingLoss) NewStage(y []float64, pred *mat.Dense, w []float64, k int) LeafStage {
	c.stages++
	return c.LossFunction.NewStage(y, pred, w, k)
}

func TestGradientBoosting_CustomLoss(t *testing.T) {
	X, y := blobs(t, 100, 2, 2, 5)
	loss := &countingLoss{LossFunction: &BinomialDeviance{}}
	gb := NewGradientBoostingClassifier(WithLoss(CustomLoss(loss)), WithNEstimators(7))
	require.NoError(t, gb.Fit(X, y))

	assert.Equal(t, 7, loss.stages)
	assert.Same(t, loss, gb.Loss())
	assert.Equal(t, "*ensemble.countingLoss", gb.GetParams()["loss"])
}

// nanGradientLoss breaks its gradient after the first stage.
type nanGradientLoss struct {
	BinomialDeviance
	calls int
}

func (l *nanGradientLoss) NegativeGradient(y []float64, pred *mat.Dense, k int) []float64 {
	l.calls++
	g := l.BinomialDeviance.NegativeGradient(y, pred, k)
	if l.calls > 1 {
		g[0] = math.NaN()
	}
	return g
}

func TestGradientBoosting_NonFiniteGradient(t *testing.T) {
	X, y := blobs(t, 60, 2, 2, 11)
	gb := NewGradientBoostingClassifier(WithLoss(CustomLoss(&nanGradientLoss{})), WithNEstimators(3))

	err := gb.Fit(X, y)
	require.Error(t, err)
	var numErr *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &numErr))
	assert.Equal(t, 1, numErr.Iteration)
	assert.Equal(t, 0, gb.NEstimators())
}

// binaryOnlyLoss declares that it supports two classes.
type binaryOnlyLoss struct{ BinomialDeviance }

func (binaryOnlyLoss) NClasses() int { return 2 }

func TestGradientBoosting_CustomLossClassCount(t *testing.T) {
	X, y := threeBlobs(30)
	err := NewGradientBoostingClassifier(WithLoss(CustomLoss(&binaryOnlyLoss{})), WithNEstimators(2)).Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedConfiguration))

	X2, y2 := blobs(t, 40, 2, 2, 3)
	assert.NoError(t, NewGradientBoostingClassifier(WithLoss(CustomLoss(&binaryOnlyLoss{})), WithNEstimators(2)).Fit(X2, y2))
}

func TestGradientBoosting_CustomInit(t *testing.T) {
	X, y := blobs(t, 100, 2, 2, 5)
	gb := NewGradientBoostingClassifier(WithInit(&LogOddsEstimator{Scale: 0.5}), WithNEstimators(3))
	require.NoError(t, gb.Fit(X, y))

	err := NewGradientBoostingClassifier(WithInit(&PriorProbabilityEstimator{NClasses: 2})).Fit(X, y)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestGradientBoosting_Errors(t *testing.T) {
	gb := NewGradientBoostingClassifier()
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	_, err := gb.PredictProba(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = gb.Fit(X, mat.NewDense(4, 1, []float64{1, 1, 1, 1}))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	err = gb.Fit(X, mat.NewDense(3, 1, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	err = gb.FitWeighted(X, mat.NewDense(4, 1, []float64{0, 1, 0, 1}), []float64{1})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestGradientBoosting_SnapshotRoundTrip(t *testing.T) {
	X, y := blobs(t, 120, 3, 2, 9)
	gb := NewGradientBoostingClassifier(WithNEstimators(5), WithLoss(NamedLoss(Exponential)))
	require.NoError(t, gb.Fit(X, y))

	snap, err := gb.Snapshot()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(snap, &buf))

	var restored Snapshot
	require.NoError(t, model.LoadModelFromReader(&restored, &buf))
	loaded := FromSnapshot(&restored)

	want, err := gb.PredictProba(X)
	require.NoError(t, err)
	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
	assert.Equal(t, gb.TrainScore(), loaded.TrainScore())

	_, err = NewGradientBoostingClassifier().Snapshot()
	assert.Error(t, err)
}

func TestGradientBoosting_LogsStages(t *testing.T) {
	p := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(p)
	defer log.SetProvider(log.NewZerologProvider(&bytes.Buffer{}, log.LevelInfo))

	X, y := blobs(t, 60, 2, 2, 2)
	require.NoError(t, NewGradientBoostingClassifier(WithNEstimators(3)).Fit(X, y))

	entries, err := p.Logger().GetLogEntries()
	require.NoError(t, err)
	stages := 0
	for _, e := range entries {
		if e["message"] == "Stage fitted" {
			stages++
		}
	}
	assert.Equal(t, 3, stages)
	assert.True(t, p.Logger().ContainsMessage("Training completed"))
	assert.True(t, p.Logger().ContainsField(log.ModelNameKey, "GradientBoostingClassifier"))
}

func TestInitEstimators(t *testing.T) {
	y := []float64{0, 1, 1, 1}
	w := []float64{1, 1, 1, 1}

	lo := &LogOddsEstimator{}
	require.NoError(t, lo.Fit(y, w))
	assert.InDelta(t, math.Log(3), lo.Scores()[0], 1e-12)

	half := &LogOddsEstimator{Scale: 0.5}
	require.NoError(t, half.Fit(y, w))
	assert.InDelta(t, 0.5*math.Log(3), half.Scores()[0], 1e-12)

	assert.Error(t, lo.Fit([]float64{1, 1}, []float64{1, 1}))

	prior := &PriorProbabilityEstimator{NClasses: 3}
	require.NoError(t, prior.Fit([]float64{0, 1, 1, 2}, w))
	assert.InDeltaSlice(t, []float64{math.Log(0.25), math.Log(0.5), math.Log(0.25)}, prior.Scores(), 1e-12)

	mean := &MeanEstimator{}
	require.NoError(t, mean.Fit([]float64{1, 2, 3, 10}, []float64{1, 1, 1, 0}))
	assert.InDelta(t, 2.0, mean.Scores()[0], 1e-12)

	q := &QuantileEstimator{Alpha: 0.5}
	require.NoError(t, q.Fit([]float64{5, 1, 3, 2, 4}, []float64{1, 1, 1, 1, 1}))
	assert.Equal(t, 3.0, q.Scores()[0])
}

func TestLossGradientsMatchFiniteDifference(t *testing.T) {
	y := []float64{0, 1, 1, 0, 1}
	base := []float64{0.3, -0.2, 1.1, -0.7, 0.05}
	const eps = 1e-6

	losses := map[string]LossFunction{
		"binomial":    &BinomialDeviance{},
		"exponential": &ExponentialLoss{},
		"ls":          &LeastSquares{},
	}
	for name, loss := range losses {
		t.Run(name, func(t *testing.T) {
			pred := mat.NewDense(len(y), 1, append([]float64(nil), base...))
			// unit weights so the gradient of the mean loss is the residual / n
			unit := ones(len(y))
			grad := loss.NegativeGradient(y, pred, 0)
			f0 := loss.Loss(y, pred, unit)
			for i := range y {
				pred.Set(i, 0, base[i]+eps)
				fd := (loss.Loss(y, pred, unit) - f0) / eps
				pred.Set(i, 0, base[i])

				// binomial deviance carries a factor 2, the squared loss too
				scale := float64(len(y))
				if name != "exponential" {
					scale /= 2
				}
				assert.InDelta(t, -grad[i], fd*scale, 1e-4, "coordinate %d", i)
			}
		})
	}
}

func TestMultinomialLeafValue(t *testing.T) {
	loss, err := NewMultinomialDeviance(3)
	require.NoError(t, err)
	y := []float64{0, 1, 2, 0}
	w := []float64{1, 1, 1, 1}
	pred := mat.NewDense(4, 3, nil)

	res := loss.NegativeGradient(y, pred, 0)
	assert.InDeltaSlice(t, []float64{2.0 / 3, -1.0 / 3, -1.0 / 3, 2.0 / 3}, res, 1e-12)

	stage := loss.NewStage(y, pred, w, 0)
	v := stage.LeafValue([]bool{true, false, false, true}, res)
	// (K-1)/K * sum(r) / sum(p(1-p)) = 2/3 * (4/3) / (2 * 2/9)
	assert.InDelta(t, 2.0, v, 1e-12)
}

func TestLinkProba(t *testing.T) {
	scores := mat.NewDense(2, 1, []float64{0, 1})
	p := LinkSigmoid.Proba(scores, 2)
	assert.InDelta(t, 0.5, p.At(0, 1), 1e-12)
	p = LinkExponential.Proba(scores, 2)
	assert.InDelta(t, 1/(1+math.Exp(-2)), p.At(1, 1), 1e-12)
	p = LinkClip.Proba(mat.NewDense(2, 1, []float64{-0.3, 1.4}), 2)
	assert.Equal(t, 0.0, p.At(0, 1))
	assert.Equal(t, 1.0, p.At(1, 1))

	soft := LinkSoftmax.Proba(mat.NewDense(1, 3, []float64{1, 1, 1}), 3)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, soft.RawRowView(0), 1e-12)
}
