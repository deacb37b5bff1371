package dataset

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// Sample is a labelled frame.
type Sample struct {
	Frame  *Frame
	Labels []float64
}

// GenerateSample draws n samples with nFeatures columns from two unit-variance
// Gaussian blobs: signal (label 1) centred at +distance/2 on every axis and
// background (label 0) at -distance/2. Labels alternate so both classes are
// equally represented.
func GenerateSample(n, nFeatures int, distance float64, seed uint64) (*Sample, error) {
	if n < 2 {
		return nil, errors.NewValueErrorf("dataset.GenerateSample", "need at least 2 samples, got %d", n)
	}
	if nFeatures < 1 {
		return nil, errors.NewValueErrorf("dataset.GenerateSample", "need at least 1 feature, got %d", nFeatures)
	}

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	blobs := [2]distuv.Normal{
		{Mu: -distance / 2, Sigma: 1, Src: src},
		{Mu: distance / 2, Sigma: 1, Src: src},
	}
	data := mat.NewDense(n, nFeatures, nil)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		label := i % 2
		labels[i] = float64(label)
		for j := 0; j < nFeatures; j++ {
			data.Set(i, j, blobs[label].Rand())
		}
	}

	frame, err := NewFrame(data, nil)
	if err != nil {
		return nil, err
	}
	return &Sample{Frame: frame, Labels: labels}, nil
}
