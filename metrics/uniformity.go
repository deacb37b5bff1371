package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// theilFloor は対数の引数の下限
const theilFloor = 1e-10

// WeightedPercentile returns, for each p in percentiles (fractions in [0, 1]),
// the weighted percentile of values. Each sample is placed at the midpoint of
// its weight mass, (cumsum(w) - w/2) / sum(w), and the result is linearly
// interpolated between neighbouring samples, clamped to the extreme values.
func WeightedPercentile(values, percentiles, sampleWeight []float64) ([]float64, error) {
	const op = "WeightedPercentile"
	if len(values) == 0 {
		return nil, errors.NewValueError(op, "empty input")
	}
	w, err := CheckSampleWeight(op, len(values), sampleWeight)
	if err != nil {
		return nil, err
	}
	x := append([]float64(nil), values...)
	stat.SortWeighted(x, w)

	total := floats.Sum(w)
	if total <= 0 {
		return nil, errors.NewValueError(op, "sample weights sum to zero")
	}
	pos := make([]float64, len(w))
	floats.CumSum(pos, w)
	for i := range pos {
		pos[i] = (pos[i] - w[i]/2) / total
	}

	out := make([]float64, len(percentiles))
	for i, p := range percentiles {
		out[i] = interp(p, pos, x)
	}
	return out, nil
}

// interp は numpy.interp と同じく端点でクランプする線形補間
func interp(p float64, xp, fp []float64) float64 {
	if p <= xp[0] {
		return fp[0]
	}
	last := len(xp) - 1
	if p >= xp[last] {
		return fp[last]
	}
	j := sort.SearchFloat64s(xp, p)
	if xp[j] == p {
		return fp[j]
	}
	x0, x1 := xp[j-1], xp[j]
	if x1 == x0 {
		return fp[j]
	}
	return fp[j-1] + (fp[j]-fp[j-1])*(p-x0)/(x1-x0)
}

// ComputeBDTCut returns the score threshold at which the weighted fraction of
// signal samples scoring above it equals targetEfficiency. The cut is
// non-increasing in targetEfficiency.
func ComputeBDTCut(targetEfficiency float64, isSignal []bool, yPred, sampleWeight []float64) (float64, error) {
	cuts, err := ComputeCutsForEfficiencies([]float64{targetEfficiency}, isSignal, yPred, sampleWeight)
	if err != nil {
		return 0, err
	}
	return cuts[0], nil
}

// ComputeCutsForEfficiencies is ComputeBDTCut for several target efficiencies
// sharing one sort of the signal scores.
func ComputeCutsForEfficiencies(targetEfficiencies []float64, isSignal []bool, yPred, sampleWeight []float64) ([]float64, error) {
	const op = "ComputeBDTCut"
	if len(isSignal) != len(yPred) {
		return nil, errors.NewDimensionError(op, len(yPred), len(isSignal), 0)
	}
	w, err := CheckSampleWeight(op, len(yPred), sampleWeight)
	if err != nil {
		return nil, err
	}
	var pred, weight []float64
	for i, s := range isSignal {
		if s {
			pred = append(pred, yPred[i])
			weight = append(weight, w[i])
		}
	}
	if len(pred) == 0 {
		return nil, errors.NewValueError(op, "no samples selected by mask")
	}
	percentiles := make([]float64, len(targetEfficiencies))
	for i, e := range targetEfficiencies {
		if e < 0 || e > 1 {
			return nil, errors.NewValueErrorf(op, "target efficiency %v outside [0, 1]", e)
		}
		percentiles[i] = 1 - e
	}
	return WeightedPercentile(pred, percentiles, weight)
}

// ComputeBinIndices assigns every sample a bin id from per-variable interior
// edges. Axis indices come from a left-side search (a value equal to an edge
// falls in the lower bin) and are combined row-major, so with two variables of
// n bins each the id is i0*n + i1.
func ComputeBinIndices(columns, limits [][]float64) ([]int, error) {
	const op = "ComputeBinIndices"
	if len(columns) == 0 {
		return nil, errors.NewValueError(op, "no variables given")
	}
	if len(limits) != len(columns) {
		return nil, errors.NewDimensionError(op, len(columns), len(limits), 1)
	}
	n := len(columns[0])
	result := make([]int, n)
	for axis, col := range columns {
		if len(col) != n {
			return nil, errors.NewDimensionError(op, n, len(col), 0)
		}
		edges := limits[axis]
		if !sort.Float64sAreSorted(edges) {
			return nil, errors.NewValueErrorf(op, "bin limits of axis %d are not sorted", axis)
		}
		for i, v := range col {
			result[i] = result[i]*(len(edges)+1) + sort.SearchFloat64s(edges, v)
		}
	}
	return result, nil
}

// ComputeBinWeights sums sample weights per bin. The result has at least
// minLength entries.
func ComputeBinWeights(binIndices []int, sampleWeight []float64, minLength int) ([]float64, error) {
	const op = "ComputeBinWeights"
	w, err := CheckSampleWeight(op, len(binIndices), sampleWeight)
	if err != nil {
		return nil, err
	}
	return bincount(op, binIndices, w, minLength)
}

// ComputeBinEfficiencies returns, per bin, the weighted share of samples with
// score strictly above cut. Empty bins get efficiency 0.
func ComputeBinEfficiencies(yScore []float64, binIndices []int, cut float64, sampleWeight []float64, minLength int) ([]float64, error) {
	const op = "ComputeBinEfficiencies"
	if len(yScore) != len(binIndices) {
		return nil, errors.NewDimensionError(op, len(binIndices), len(yScore), 0)
	}
	w, err := CheckSampleWeight(op, len(yScore), sampleWeight)
	if err != nil {
		return nil, err
	}
	total, err := bincount(op, binIndices, w, minLength)
	if err != nil {
		return nil, err
	}
	passed := make([]float64, len(w))
	for i, s := range yScore {
		if s > cut {
			passed[i] = w[i]
		}
	}
	eff, err := bincount(op, binIndices, passed, len(total))
	if err != nil {
		return nil, err
	}
	for b := range eff {
		if total[b] > 0 {
			eff[b] /= total[b]
		}
	}
	return eff, nil
}

// ComputeGroupEfficiencies returns, per group of sample indices, the weighted
// share of members with score strictly above cut.
func ComputeGroupEfficiencies(yScore []float64, groups [][]int, cut float64, sampleWeight []float64) ([]float64, error) {
	const op = "ComputeGroupEfficiencies"
	w, err := CheckSampleWeight(op, len(yScore), sampleWeight)
	if err != nil {
		return nil, err
	}
	eff := make([]float64, len(groups))
	for g, members := range groups {
		var passed, total float64
		for _, j := range members {
			if j < 0 || j >= len(yScore) {
				return nil, errors.NewValueErrorf(op, "group %d references sample %d of %d", g, j, len(yScore))
			}
			total += w[j]
			if yScore[j] > cut {
				passed += w[j]
			}
		}
		if total > 0 {
			eff[g] = passed / total
		}
	}
	return eff, nil
}

// ComputeMSEEOnBins is the mean, over target efficiencies, of the
// bin-weighted average |binEff - target|^power, computed on masked samples.
// Cuts are taken from the masked scores so that the global masked efficiency
// equals each target.
func ComputeMSEEOnBins(yPred []float64, mask []bool, binIndices []int, targetEfficiencies []float64, power float64, sampleWeight []float64) (float64, error) {
	const op = "ComputeMSEEOnBins"
	b, err := maskBinned(op, yPred, mask, binIndices, sampleWeight, targetEfficiencies)
	if err != nil {
		return 0, err
	}
	var result float64
	for i, cut := range b.cuts {
		eff, err := ComputeBinEfficiencies(b.pred, b.bins, cut, b.weight, len(b.binWeights))
		if err != nil {
			return 0, err
		}
		target := targetEfficiencies[i]
		var dev float64
		for j, e := range eff {
			dev += b.binWeights[j] * math.Pow(math.Abs(e-target), power)
		}
		result += dev / b.totalWeight
	}
	return result / float64(len(b.cuts)), nil
}

// ComputeSDEOnBins is the standard deviation of bin efficiencies around their
// weighted mean, generalised to the given power and averaged over target
// efficiencies: (mean_e sum_b w_b |eff_b - mean(eff)|^power / sum w)^(1/power).
func ComputeSDEOnBins(yPred []float64, mask []bool, binIndices []int, targetEfficiencies []float64, power float64, sampleWeight []float64) (float64, error) {
	const op = "ComputeSDEOnBins"
	b, err := maskBinned(op, yPred, mask, binIndices, sampleWeight, targetEfficiencies)
	if err != nil {
		return 0, err
	}
	var result float64
	for _, cut := range b.cuts {
		eff, err := ComputeBinEfficiencies(b.pred, b.bins, cut, b.weight, len(b.binWeights))
		if err != nil {
			return 0, err
		}
		result += weightedDeviation(eff, b.binWeights, power)
	}
	return math.Pow(result/float64(len(b.cuts)), 1/power), nil
}

// ComputeSDEOnGroups is ComputeSDEOnBins over neighbour groups instead of
// bins. Groups hold indices into the full sample arrays; each group weighs
// the sum of its members' weights. Cuts come from the masked scores.
func ComputeSDEOnGroups(yPred []float64, mask []bool, groups [][]int, targetEfficiencies []float64, power float64, sampleWeight []float64) (float64, error) {
	const op = "ComputeSDEOnGroups"
	if len(targetEfficiencies) == 0 {
		return 0, errors.NewValueError(op, "no target efficiencies")
	}
	if len(groups) == 0 {
		return 0, errors.NewValueError(op, "no groups")
	}
	w, err := CheckSampleWeight(op, len(yPred), sampleWeight)
	if err != nil {
		return 0, err
	}
	cuts, err := ComputeCutsForEfficiencies(targetEfficiencies, mask, yPred, w)
	if err != nil {
		return 0, err
	}
	groupWeights := make([]float64, len(groups))
	for g, members := range groups {
		for _, j := range members {
			if j >= 0 && j < len(w) {
				groupWeights[g] += w[j]
			}
		}
	}
	var result float64
	for _, cut := range cuts {
		eff, err := ComputeGroupEfficiencies(yPred, groups, cut, w)
		if err != nil {
			return 0, err
		}
		result += weightedDeviation(eff, groupWeights, power)
	}
	return math.Pow(result/float64(len(cuts)), 1/power), nil
}

// ComputeTheilOnBins averages, over target efficiencies, the bin-weighted
// Theil index of bin efficiencies. Zero means perfectly flat.
func ComputeTheilOnBins(yPred []float64, mask []bool, binIndices []int, targetEfficiencies []float64, sampleWeight []float64) (float64, error) {
	const op = "ComputeTheilOnBins"
	b, err := maskBinned(op, yPred, mask, binIndices, sampleWeight, targetEfficiencies)
	if err != nil {
		return 0, err
	}
	var result float64
	for _, cut := range b.cuts {
		eff, err := ComputeBinEfficiencies(b.pred, b.bins, cut, b.weight, len(b.binWeights))
		if err != nil {
			return 0, err
		}
		result += theil(eff, b.binWeights)
	}
	return result / float64(len(b.cuts)), nil
}

// BinBasedCvM is the bin-weighted Cramér–von Mises distance between each
// bin's weighted score distribution and the global one. Unlike the other
// flatness statistics it takes already masked arrays.
func BinBasedCvM(yPred []float64, binIndices []int, sampleWeight []float64) (float64, error) {
	const op = "BinBasedCvM"
	if len(yPred) == 0 {
		return 0, errors.NewValueError(op, "empty input")
	}
	if len(binIndices) != len(yPred) {
		return 0, errors.NewDimensionError(op, len(yPred), len(binIndices), 0)
	}
	w, err := CheckSampleWeight(op, len(yPred), sampleWeight)
	if err != nil {
		return 0, err
	}
	binWeights, err := bincount(op, binIndices, w, 0)
	if err != nil {
		return 0, err
	}
	total := floats.Sum(w)
	if total <= 0 {
		return 0, errors.NewValueError(op, "sample weights sum to zero")
	}

	global := append([]float64(nil), yPred...)
	globalW := append([]float64(nil), w...)
	stat.SortWeighted(global, globalW)
	globalF := cdfAt(global, globalW, global)

	var result float64
	for bin, bw := range binWeights {
		if bw <= 0 {
			continue
		}
		var local, localW []float64
		for i, b := range binIndices {
			if b == bin {
				local = append(local, yPred[i])
				localW = append(localW, w[i])
			}
		}
		stat.SortWeighted(local, localW)
		localF := cdfAt(local, localW, global)
		var cvm float64
		for i := range global {
			d := globalF[i] - localF[i]
			cvm += globalW[i] * d * d
		}
		result += bw * cvm
	}
	return result / total, nil
}

// BuildNormalizer returns the weighted empirical CDF of signal as a function,
// linearly interpolated between samples. It maps predictions onto [0, 1] so
// that correlation curves of different classifiers are comparable.
func BuildNormalizer(signal, sampleWeight []float64) (func(float64) float64, error) {
	const op = "BuildNormalizer"
	if len(signal) == 0 {
		return nil, errors.NewValueError(op, "empty input")
	}
	w, err := CheckSampleWeight(op, len(signal), sampleWeight)
	if err != nil {
		return nil, err
	}
	x := append([]float64(nil), signal...)
	stat.SortWeighted(x, w)
	cum := make([]float64, len(w))
	floats.CumSum(cum, w)
	total := cum[len(cum)-1]
	if total <= 0 {
		return nil, errors.NewValueError(op, "sample weights sum to zero")
	}
	floats.Scale(1/total, cum)
	return func(v float64) float64 { return interp(v, x, cum) }, nil
}

// binned holds the masked view shared by the bin-based statistics.
type binned struct {
	pred, weight []float64
	bins         []int
	binWeights   []float64
	totalWeight  float64
	cuts         []float64
}

func maskBinned(op string, yPred []float64, mask []bool, binIndices []int, sampleWeight, targetEfficiencies []float64) (*binned, error) {
	n := len(yPred)
	if len(mask) != n {
		return nil, errors.NewDimensionError(op, n, len(mask), 0)
	}
	if len(binIndices) != n {
		return nil, errors.NewDimensionError(op, n, len(binIndices), 0)
	}
	if len(targetEfficiencies) == 0 {
		return nil, errors.NewValueError(op, "no target efficiencies")
	}
	w, err := CheckSampleWeight(op, n, sampleWeight)
	if err != nil {
		return nil, err
	}
	b := &binned{}
	for i, m := range mask {
		if m {
			b.pred = append(b.pred, yPred[i])
			b.weight = append(b.weight, w[i])
			b.bins = append(b.bins, binIndices[i])
		}
	}
	if len(b.pred) == 0 {
		return nil, errors.NewValueError(op, "no samples selected by mask")
	}
	if b.binWeights, err = bincount(op, b.bins, b.weight, 0); err != nil {
		return nil, err
	}
	b.totalWeight = floats.Sum(b.binWeights)
	if b.totalWeight <= 0 {
		return nil, errors.NewValueError(op, "masked sample weights sum to zero")
	}
	ones := make([]bool, len(b.pred))
	for i := range ones {
		ones[i] = true
	}
	if b.cuts, err = ComputeCutsForEfficiencies(targetEfficiencies, ones, b.pred, b.weight); err != nil {
		return nil, err
	}
	return b, nil
}

func bincount(op string, bins []int, w []float64, minLength int) ([]float64, error) {
	size := minLength
	for _, b := range bins {
		if b < 0 {
			return nil, errors.NewValueErrorf(op, "negative bin index %d", b)
		}
		if b+1 > size {
			size = b + 1
		}
	}
	out := make([]float64, size)
	for i, b := range bins {
		out[b] += w[i]
	}
	return out, nil
}

// weightedDeviation は sum w|a - mean_w(a)|^p / sum w
func weightedDeviation(a, w []float64, power float64) float64 {
	total := floats.Sum(w)
	if total <= 0 {
		return 0
	}
	mean := stat.Mean(a, w)
	var dev float64
	for i, v := range a {
		dev += w[i] * math.Pow(math.Abs(v-mean), power)
	}
	return dev / total
}

func theil(x, w []float64) float64 {
	mean := stat.Mean(x, w)
	if mean <= 0 {
		return 0
	}
	var total, sum float64
	for i, v := range x {
		normed := math.Max(v/mean, theilFloor)
		sum += w[i] * normed * math.Log(normed)
		total += w[i]
	}
	return sum / total
}

// cdfAt evaluates the weighted CDF of sorted x at ascending points, counting
// mass at values <= point.
func cdfAt(x, w, points []float64) []float64 {
	total := floats.Sum(w)
	out := make([]float64, len(points))
	var j int
	var acc float64
	for i, p := range points {
		for j < len(x) && x[j] <= p {
			acc += w[j]
			j++
		}
		out[i] = acc / total
	}
	return out
}
