// Package uboost provides uniformity-aware gradient boosting for Go and the
// tooling to measure how flat a classifier's efficiency is along chosen
// variables.
//
// Ordinary boosting happily learns from any variable that separates the
// classes. When some variables (a mass, a time, a position) must not shape
// the selection efficiency, the losses in sklearn/uniform penalise a
// non-uniform response using the k nearest neighbours of every sample in
// those variables, and the report package quantifies the result stage by
// stage.
//
// # Quick Start
//
//	train, _ := dataset.GenerateSample(1000, 3, 0.6, 42)
//	test, _ := dataset.GenerateSample(1000, 3, 0.6, 43)
//
//	loss, err := uniform.NewSimpleKnnLoss(train.Frame, train.Labels, []string{"column0"}, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	classifiers := report.NewClassifiers(0)
//	classifiers.Add("uGB", ensemble.NewGradientBoostingClassifier(
//	    ensemble.WithLoss(ensemble.CustomLoss(loss)),
//	))
//	classifiers.Add("AdaBoost", ensemble.NewAdaBoostClassifier())
//	if err := classifiers.Fit(ctx, train.Frame, train.Labels, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	preds, _ := classifiers.TestOn(test.Frame, test.Labels, nil, false)
//	sde, _ := preds.SDECurves([]string{"column0"})
//	report.WriteTable(os.Stdout, "SDE", sde)
//
// # Packages
//
//   - dataset: named-column frames, the synthetic sample and .npy I/O
//   - neighbors: same-class k nearest neighbour groups (KD-tree, brute force)
//   - core/sparse: CSR matrices for the neighbour coefficient matrix
//   - sklearn/tree: weighted CART trees used as boosting stages
//   - sklearn/ensemble: gradient boosting with pluggable losses, AdaBoost
//   - sklearn/uniform: the KNN uniformity losses and a gradient check
//   - metrics: ROC AUC, efficiencies and the flatness metrics (SDE, Theil, CvM)
//   - report: trains classifier collections and evaluates them per stage
//   - cmd/uboost: command line front end
package uboost
