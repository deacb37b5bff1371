package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// AUC は二値ラベルとスコアから ROC 曲線下面積を計算する
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	truth, pred, err := vectors("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ROCAUC(truth, pred, nil)
}

// ROCAUC is the sample-weighted area under the ROC curve of score against
// binary labels in {0, 1}. A nil weight slice means all ones. When only one
// class is present the area is undefined; an UndefinedMetricWarning is
// emitted and 0.5 returned.
func ROCAUC(yTrue, score, sampleWeight []float64) (float64, error) {
	const op = "ROCAUC"
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError(op, "empty input")
	}
	if len(score) != n {
		return 0, errors.NewDimensionError(op, n, len(score), 0)
	}
	w, err := CheckSampleWeight(op, n, sampleWeight)
	if err != nil {
		return 0, err
	}

	classes := make([]bool, n)
	var pos, neg float64
	for i, v := range yTrue {
		switch v {
		case 1:
			classes[i] = true
			pos += w[i]
		case 0:
			neg += w[i]
		default:
			return 0, errors.NewValueErrorf(op, "labels must be 0 or 1, got %v", v)
		}
	}
	if pos == 0 || neg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(op, "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	y := append([]float64(nil), score...)
	stat.SortWeightedLabeled(y, classes, w)
	tpr, fpr, _ := stat.ROC(nil, y, classes, w)

	// 台形則
	var area float64
	for i := 1; i < len(fpr); i++ {
		area += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2
	}
	return area, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	truth, pred, err := vectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var correct int
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth)), nil
}

// EfficiencyScore is the weighted share of positive samples (label 1) that
// are also predicted positive, i.e. weighted recall.
func EfficiencyScore(yTrue []float64, yPred []bool, sampleWeight []float64) (float64, error) {
	const op = "EfficiencyScore"
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	w, err := CheckSampleWeight(op, len(yTrue), sampleWeight)
	if err != nil {
		return 0, err
	}
	var passed, total float64
	for i, y := range yTrue {
		if y != 1 {
			continue
		}
		total += w[i]
		if yPred[i] {
			passed += w[i]
		}
	}
	if total == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(op, "no positive samples", 0))
		return 0, nil
	}
	return passed / total, nil
}

// CheckSampleWeight returns a private copy of w, or all ones when w is nil.
// Negative weights are rejected.
func CheckSampleWeight(op string, n int, w []float64) ([]float64, error) {
	out := make([]float64, n)
	if w == nil {
		for i := range out {
			out[i] = 1
		}
		return out, nil
	}
	if len(w) != n {
		return nil, errors.NewDimensionError(op, n, len(w), 0)
	}
	for i, v := range w {
		if v < 0 || math.IsNaN(v) {
			return nil, errors.NewValueErrorf(op, "sample weight %d is %v", i, v)
		}
		out[i] = v
	}
	return out, nil
}

func vectors(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	truth := make([]float64, n)
	pred := make([]float64, n)
	for i := 0; i < n; i++ {
		truth[i] = yTrue.AtVec(i)
		pred[i] = yPred.AtVec(i)
	}
	return truth, pred, nil
}
