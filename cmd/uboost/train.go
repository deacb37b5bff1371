package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/dataset"
	"github.com/YuminosukeSato/uboost/metrics"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
	"github.com/YuminosukeSato/uboost/report"
	"github.com/YuminosukeSato/uboost/sklearn/ensemble"
	"github.com/YuminosukeSato/uboost/sklearn/uniform"
)

const (
	uniformName  = "uGB"
	adaBoostName = "AdaBoost"
)

// runTrain fits both classifiers on the training sample and writes the
// quality and flatness tables of the test sample to w.
func runTrain(ctx context.Context, w io.Writer, cfg Config, outPath string) error {
	logger := log.GetLoggerWithName("cli").With(log.OperationKey, "train")
	start := time.Now()

	train, test, err := loadSamples(cfg.Data)
	if err != nil {
		return err
	}
	logger.Info("Data ready",
		log.SamplesKey, train.Frame.Len(),
		"test_samples", test.Frame.Len(),
		log.UniformVariablesKey, cfg.Uniform.Variables,
	)

	classifiers, err := buildClassifiers(cfg, train)
	if err != nil {
		return err
	}
	if err := classifiers.Fit(ctx, train.Frame, train.Labels, nil); err != nil {
		return err
	}
	preds, err := classifiers.TestOn(test.Frame, test.Labels, nil, cfg.Report.LowMemory)
	if err != nil {
		return err
	}
	if err := writeReport(w, preds, cfg); err != nil {
		return err
	}

	if outPath != "" {
		final, ok := preds.Final(uniformName)
		if !ok {
			return errors.NewValueErrorf("train", "no predictions for %s", uniformName)
		}
		if err := dataset.SaveNpy(outPath, final); err != nil {
			return err
		}
		logger.Info("Probabilities written", "path", outPath)
	}
	logger.Info("Run completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// loadSamples reads the .npy files named in cfg or generates a train and a
// test sample from consecutive seeds.
func loadSamples(cfg DataConfig) (train, test *dataset.Sample, err error) {
	if cfg.TrainFeatures != "" {
		if train, err = dataset.LoadSample(cfg.TrainFeatures, cfg.TrainLabels, cfg.Columns); err != nil {
			return nil, nil, errors.Wrap(err, "train sample")
		}
		if test, err = dataset.LoadSample(cfg.TestFeatures, cfg.TestLabels, cfg.Columns); err != nil {
			return nil, nil, errors.Wrap(err, "test sample")
		}
		return train, test, nil
	}
	if train, err = dataset.GenerateSample(cfg.TrainSamples, cfg.Features, cfg.Distance, cfg.Seed); err != nil {
		return nil, nil, err
	}
	if test, err = dataset.GenerateSample(cfg.TestSamples, cfg.Features, cfg.Distance, cfg.Seed+1); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// buildClassifiers pairs gradient boosting on the uniform KNN loss with plain
// AdaBoost as the reference.
func buildClassifiers(cfg Config, train *dataset.Sample) (*report.Classifiers, error) {
	build := uniform.NewSimpleKnnLoss
	if cfg.Uniform.Loss == "pairwise" {
		build = uniform.NewPairwiseKnnLoss
	}
	loss, err := build(train.Frame, train.Labels, cfg.Uniform.Variables, cfg.Uniform.KNN)
	if err != nil {
		return nil, err
	}

	b := cfg.Boosting
	gb := ensemble.NewGradientBoostingClassifier(
		ensemble.WithLoss(ensemble.CustomLoss(loss)),
		ensemble.WithNEstimators(b.NEstimators),
		ensemble.WithLearningRate(b.LearningRate),
		ensemble.WithMaxDepth(b.MaxDepth),
		ensemble.WithMinSamplesSplit(b.MinSamplesSplit),
		ensemble.WithSubsample(b.Subsample),
		ensemble.WithRandomState(b.RandomState),
	)
	ada := ensemble.NewAdaBoostClassifier(
		ensemble.WithNEstimators(cfg.AdaBoost.NEstimators),
		ensemble.WithLearningRate(cfg.AdaBoost.LearningRate),
	)

	classifiers := report.NewClassifiers(cfg.Workers)
	if err := classifiers.Add(uniformName, gb); err != nil {
		return nil, err
	}
	if err := classifiers.Add(adaBoostName, ada); err != nil {
		return nil, err
	}
	return classifiers, nil
}

// writeReport prints final accuracy and ROC AUC, staged SDE and the MSE
// variation on the configured stages.
func writeReport(w io.Writer, preds *report.Predictions, cfg Config) error {
	vars := cfg.Uniform.Variables
	r := cfg.Report

	accuracy, err := preds.ComputeMetrics(nil, report.WithMetric(thresholdAccuracy))
	if err != nil {
		return err
	}
	if err := report.WriteTable(w, "Accuracy", accuracy); err != nil {
		return err
	}
	auc, err := preds.ComputeMetrics(nil)
	if err != nil {
		return err
	}
	if err := writeSection(w, "ROC AUC", auc); err != nil {
		return err
	}

	flatness := []report.EvalOption{
		report.WithNBins(r.NBins),
		report.WithTargetEfficiencies(r.TargetEfficiencies...),
	}
	sde, err := preds.SDECurves(vars, append(flatness, report.WithStep(r.Step))...)
	if err != nil {
		return err
	}
	if err := writeSection(w, "Staged SDE", sde); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	var stages []int
	if len(r.Stages) > 0 {
		stages = r.Stages
	}
	return preds.PrintMSE(w, vars, stages, flatness...)
}

func writeSection(w io.Writer, title string, result *report.Staged[float64]) error {
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return report.WriteTable(w, title, result)
}

// thresholdAccuracy is the accuracy of score > 0.5 against the 0/1 target.
func thresholdAccuracy(yTrue, score, _ []float64) (float64, error) {
	pred := make([]float64, len(score))
	for i, s := range score {
		if s > 0.5 {
			pred[i] = 1
		}
	}
	return metrics.Accuracy(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(pred), pred))
}
