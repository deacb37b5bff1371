package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/uboost/dataset"
	"github.com/YuminosukeSato/uboost/pkg/log"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Data.TrainSamples = 200
	cfg.Data.TestSamples = 200
	cfg.Data.Features = 2
	cfg.Boosting.NEstimators = 4
	cfg.AdaBoost.NEstimators = 4
	cfg.Report.Step = 2
	cfg.Report.Stages = []int{1, 3}
	cfg.Workers = 2
	return cfg
}

func TestRunTrain(t *testing.T) {
	log.SetProvider(log.NewTestLoggerProvider(log.LevelInfo))
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo)) })

	out := filepath.Join(t.TempDir(), "proba.npy")
	var buf bytes.Buffer
	require.NoError(t, runTrain(context.Background(), &buf, smallConfig(), out))

	text := buf.String()
	for _, want := range []string{"Accuracy", "ROC AUC", "Staged SDE", "Staged MSE variation", uniformName, adaBoostName} {
		assert.Contains(t, text, want)
	}

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	proba, err := dataset.ReadNpy(f)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 200, r)
	assert.Equal(t, 2, c)
}

func TestRunTrainPairwiseLowMemory(t *testing.T) {
	cfg := smallConfig()
	cfg.Uniform.Loss = "pairwise"
	cfg.Uniform.Variables = []string{"column0", "column1"}
	cfg.Report.LowMemory = true
	cfg.Report.NBins = 4

	var buf bytes.Buffer
	require.NoError(t, runTrain(context.Background(), &buf, cfg, ""))
	assert.Contains(t, buf.String(), "Staged SDE")
}

func TestRunTrainUnknownVariable(t *testing.T) {
	cfg := smallConfig()
	cfg.Uniform.Variables = []string{"mass"}
	assert.Error(t, runTrain(context.Background(), &bytes.Buffer{}, cfg, ""))
}

func TestCheckScaledIdentity(t *testing.T) {
	worst, err := checkScaledIdentity(500, 3, 1e-6)
	require.NoError(t, err)
	assert.Less(t, worst, 1e-4)

	_, err = checkScaledIdentity(0, 3, 1e-6)
	assert.Error(t, err)
}

func TestCheckGradientCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"check-gradient", "--size", "100", "--log-level", "warn"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "max |gradient - finite difference|")
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo)) })

	assert.NoError(t, setupLogging("debug", "zerolog"))
	assert.NoError(t, setupLogging("warn", "slog"))
	assert.Error(t, setupLogging("loud", "zerolog"))
	assert.Error(t, setupLogging("info", "text"))
}
