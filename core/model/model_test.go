package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

type fittedThing struct {
	State  *StateManager
	Scores []float64
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("Thing", "Predict")
	require.Error(t, err)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	s.SetDimensions(3, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("Thing", "Predict"))
	assert.NoError(t, s.CheckFeatures("Thing.Predict", mat.NewDense(2, 3, nil)))

	err = s.CheckFeatures("Thing.Predict", mat.NewDense(2, 4, nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	s.Reset()
	assert.False(t, s.IsFitted())
	nFeatures, nSamples := s.GetDimensions()
	assert.Zero(t, nFeatures)
	assert.Zero(t, nSamples)
}

func TestPersistenceRoundTrip(t *testing.T) {
	state := NewStateManager()
	state.SetDimensions(2, 10)
	state.SetFitted()
	in := fittedThing{State: state, Scores: []float64{0.25, -1}}

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&in, &buf))

	var out fittedThing
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.True(t, out.State.IsFitted())
	assert.Equal(t, in.Scores, out.Scores)

	path := filepath.Join(t.TempDir(), "thing.gob")
	require.NoError(t, SaveModel(&in, path))
	var fromFile fittedThing
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, 10, fromFile.State.NSamples)

	assert.Error(t, LoadModel(&fromFile, filepath.Join(t.TempDir(), "missing.gob")))
}
