package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "uboost: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "uboost: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"))

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("KnnLoss.Loss", 10, 7, 0)

	assert.Equal(t, "uboost: KnnLoss.Loss: dimension mismatch on axis 0 (rows). Expected 10, got 7", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 10, dimErr.Expected)
	assert.True(t, Is(err, ErrInvalidArgument))
	assert.False(t, Is(err, ErrInvalidConfiguration))
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("GradientBoostingClassifier", "Predict")

	want := "uboost: GradientBoostingClassifier: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		others []error
	}{
		{
			name:   "value error is invalid argument",
			err:    NewValueError("ComputeBinIndices", "too many uniform variables"),
			kind:   ErrInvalidArgument,
			others: []error{ErrInvalidConfiguration, ErrUnsupportedConfiguration},
		},
		{
			name:   "validation error is invalid configuration",
			err:    NewValidationError("learning_rate", "must be greater than 0", -0.1),
			kind:   ErrInvalidConfiguration,
			others: []error{ErrInvalidArgument, ErrUnsupportedConfiguration},
		},
		{
			name:   "unsupported configuration",
			err:    NewUnsupportedConfigurationError("NewKnnLoss", "only two classes are supported"),
			kind:   ErrUnsupportedConfiguration,
			others: []error{ErrInvalidArgument, ErrInvalidConfiguration},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Is(tt.err, tt.kind))
			assert.True(t, Is(Wrap(tt.err, "context"), tt.kind), "kind must survive wrapping")
			for _, other := range tt.others {
				assert.False(t, Is(tt.err, other))
			}
		})
	}
}

func TestNewValueErrorf(t *testing.T) {
	err := NewValueErrorf("Frame.Column", "no column named %q", "mass")
	assert.Equal(t, `uboost: Frame.Column: no column named "mass"`, err.Error())

	var valErr *ValueError
	assert.True(t, As(err, &valErr))
}

func TestWarnings(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewUndefinedMetricWarning("roc_auc", "only one class present", 0.5))
	Warn(NewEarlyStoppingWarning("AdaBoostClassifier", 3, "zero training error"))

	require.Len(t, got, 2)
	assert.Contains(t, got[0].Error(), "'roc_auc' is ill-defined")
	assert.Equal(t, "AdaBoostClassifier stopped boosting at stage 3: zero training error", got[1].Error())
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Predict: expected 10, got 0")
}

func TestNumericalInstabilityError(t *testing.T) {
	err := CheckNumericalStability("loss", []float64{1, 2, 3, 4, 5, 6, 7}, 3)
	assert.NoError(t, err)

	err = CheckScalar("loss", 1.0/zero(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numerical instability detected in loss at iteration 4")

	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 4, numErr.Iteration)
}

func TestNumericalHelpers(t *testing.T) {
	assert.InDelta(t, 0.5, Expit(0), 1e-15)
	assert.InDelta(t, 1.0, Expit(800), 1e-15)
	assert.InDelta(t, 0.0, Expit(-800), 1e-15)
	assert.InDelta(t, 2.0, LogAddExp(2, -1000), 1e-12)
	assert.InDelta(t, LogSumExp([]float64{1, 2}), LogAddExp(1, 2), 1e-12)
	assert.Equal(t, 1.0, ClipValue(3, 0, 1))
	assert.Less(t, StabilizeLog(0), -20.0)
}

func zero() float64 { return 0 }
