package report

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/uboost/metrics"
	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// maxBinningVars is the largest covariate subset that can be binned.
const maxBinningVars = 2

// ComputeBinIndices bins every sample over one or two covariates. Each
// covariate's range over the masked samples is split into nBins equal-width
// bins; samples outside the mask are binned with the same edges, values
// beyond the range landing in the first or last bin. With two covariates the
// id is row-major, i0*nBins + i1. A nil mask selects every sample.
func (p *Predictions) ComputeBinIndices(vars []string, nBins int, mask []bool) ([]int, error) {
	columns, ranges, err := p.binningRanges("ComputeBinIndices", vars, nBins, mask)
	if err != nil {
		return nil, err
	}
	limits := make([][]float64, len(vars))
	for axis, r := range ranges {
		edges := floats.Span(make([]float64, nBins+1), r[0], r[1])
		limits[axis] = edges[1:nBins]
	}
	return metrics.ComputeBinIndices(columns, limits)
}

// ComputeBinCenters returns, per covariate, the nBins midpoints of the bins
// used by ComputeBinIndices.
func (p *Predictions) ComputeBinCenters(vars []string, nBins int, mask []bool) ([][]float64, error) {
	_, ranges, err := p.binningRanges("ComputeBinCenters", vars, nBins, mask)
	if err != nil {
		return nil, err
	}
	centers := make([][]float64, len(vars))
	for axis, r := range ranges {
		points := floats.Span(make([]float64, 2*nBins+1), r[0], r[1])
		c := make([]float64, nBins)
		for i := range c {
			c[i] = points[2*i+1]
		}
		centers[axis] = c
	}
	return centers, nil
}

// binningRanges validates the request and returns the covariate columns and
// their [min, max] over the masked samples.
func (p *Predictions) binningRanges(op string, vars []string, nBins int, mask []bool) ([][]float64, [][2]float64, error) {
	if len(vars) == 0 || len(vars) > maxBinningVars {
		return nil, nil, errors.NewValueErrorf(op, "binning supports 1 or %d variables, got %d", maxBinningVars, len(vars))
	}
	if nBins < 1 {
		return nil, nil, errors.NewValueErrorf(op, "nBins must be positive, got %d", nBins)
	}
	mask, err := p.checkMask(op, mask)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range vars {
		if !p.frame.Has(v) {
			return nil, nil, errors.NewValueErrorf(op, "variable %q is not in the dataset", v)
		}
	}
	columns, err := p.frame.Columns(vars)
	if err != nil {
		return nil, nil, err
	}

	ranges := make([][2]float64, len(vars))
	for axis, col := range columns {
		var selected []float64
		for i, m := range mask {
			if m {
				selected = append(selected, col[i])
			}
		}
		if len(selected) == 0 {
			return nil, nil, errors.NewValueError(op, "mask selects no samples")
		}
		ranges[axis] = [2]float64{floats.Min(selected), floats.Max(selected)}
	}
	return columns, ranges, nil
}

func (p *Predictions) checkMask(op string, mask []bool) ([]bool, error) {
	if mask == nil {
		all := make([]bool, len(p.y))
		for i := range all {
			all[i] = true
		}
		return all, nil
	}
	if len(mask) != len(p.y) {
		return nil, errors.NewDimensionError(op, len(p.y), len(mask), 0)
	}
	return mask, nil
}
