package tree

import (
	"math"
	"sort"
)

// criterion evaluates node statistics and candidate splits over weighted samples.
type criterion interface {
	// node returns the value, impurity and total weight of samples.
	node(samples []int) (value []float64, impurity, weight float64)

	// bestSplit scans samples sorted by their feature values xs and returns
	// the position pos (left child = sorted[:pos]) with the lowest weighted
	// child impurity. Only positions where xs changes are candidates.
	bestSplit(sorted []int, xs []float64, minLeaf int) (pos int, childImpurity float64, found bool)
}

// pureImpurity absorbs rounding in the variance of constant targets.
const pureImpurity = 1e-12

// grower builds a tree depth first into a flat node slice.
type grower struct {
	p           params
	crit        criterion
	X           []float64
	nFeatures   int
	totalWeight float64

	nodes       []Node
	importances []float64
}

func newGrower(p params, crit criterion, X []float64, nFeatures int) *grower {
	return &grower{
		p:           p,
		crit:        crit,
		X:           X,
		nFeatures:   nFeatures,
		importances: make([]float64, nFeatures),
	}
}

func (g *grower) build(samples []int) []Node {
	_, _, g.totalWeight = g.crit.node(samples)
	g.grow(samples, 0)

	sum := 0.0
	for _, imp := range g.importances {
		sum += imp
	}
	if sum > 0 {
		for i := range g.importances {
			g.importances[i] /= sum
		}
	}
	return g.nodes
}

func (g *grower) grow(samples []int, depth int) int {
	value, impurity, weight := g.crit.node(samples)
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Feature:          Leaf,
		Left:             -1,
		Right:            -1,
		Value:            value,
		Impurity:         impurity,
		NSamples:         len(samples),
		WeightedNSamples: weight,
		Depth:            depth,
	})

	if g.shouldStop(len(samples), impurity, depth) {
		return idx
	}

	feature, threshold, childImpurity, found := g.findSplit(samples)
	if !found {
		return idx
	}
	decrease := weight / g.totalWeight * (impurity - childImpurity)
	if decrease < g.p.minImpurityDecrease {
		return idx
	}

	nLeft := g.partition(samples, feature, threshold)
	g.importances[feature] += weight * (impurity - childImpurity)

	left := g.grow(samples[:nLeft], depth+1)
	right := g.grow(samples[nLeft:], depth+1)

	node := &g.nodes[idx]
	node.Feature = feature
	node.Threshold = threshold
	node.Left = left
	node.Right = right
	return idx
}

func (g *grower) shouldStop(nSamples int, impurity float64, depth int) bool {
	if g.p.maxDepth > 0 && depth >= g.p.maxDepth {
		return true
	}
	if nSamples < g.p.minSamplesSplit || nSamples < 2*g.p.minSamplesLeaf {
		return true
	}
	// pure node
	return impurity <= pureImpurity
}

func (g *grower) findSplit(samples []int) (feature int, threshold, childImpurity float64, found bool) {
	sorted := make([]int, len(samples))
	xs := make([]float64, len(samples))
	childImpurity = math.Inf(1)
	feature = Leaf

	for f := 0; f < g.nFeatures; f++ {
		copy(sorted, samples)
		sort.Slice(sorted, func(a, b int) bool {
			return g.X[sorted[a]*g.nFeatures+f] < g.X[sorted[b]*g.nFeatures+f]
		})
		for k, s := range sorted {
			xs[k] = g.X[s*g.nFeatures+f]
		}

		pos, imp, ok := g.crit.bestSplit(sorted, xs, g.p.minSamplesLeaf)
		if !ok || imp >= childImpurity {
			continue
		}
		childImpurity = imp
		feature = f
		threshold = (xs[pos-1] + xs[pos]) / 2
		// midpoint of adjacent floats can round up onto the right value
		if threshold >= xs[pos] {
			threshold = xs[pos-1]
		}
		found = true
	}
	return feature, threshold, childImpurity, found
}

// partition moves samples going left to the front and returns their count.
func (g *grower) partition(samples []int, feature int, threshold float64) int {
	i, j := 0, len(samples)-1
	for i <= j {
		if g.X[samples[i]*g.nFeatures+feature] <= threshold {
			i++
			continue
		}
		samples[i], samples[j] = samples[j], samples[i]
		j--
	}
	return i
}

// giniOrEntropy scores weighted class counts for the classifier.
type giniOrEntropy struct {
	y        []int
	w        []float64
	nClasses int
	entropy  bool
}

func (c *giniOrEntropy) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	imp := 0.0
	if c.entropy {
		for _, cnt := range counts {
			if cnt > 0 {
				p := cnt / total
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	sumSquared := 0.0
	for _, cnt := range counts {
		p := cnt / total
		sumSquared += p * p
	}
	return 1 - sumSquared
}

func (c *giniOrEntropy) node(samples []int) ([]float64, float64, float64) {
	counts := make([]float64, c.nClasses)
	total := 0.0
	for _, s := range samples {
		counts[c.y[s]] += c.w[s]
		total += c.w[s]
	}
	imp := c.impurity(counts, total)
	if total > 0 {
		for k := range counts {
			counts[k] /= total
		}
	}
	return counts, imp, total
}

func (c *giniOrEntropy) bestSplit(sorted []int, xs []float64, minLeaf int) (int, float64, bool) {
	right := make([]float64, c.nClasses)
	left := make([]float64, c.nClasses)
	total := 0.0
	for _, s := range sorted {
		right[c.y[s]] += c.w[s]
		total += c.w[s]
	}

	best, bestPos, found := math.Inf(1), 0, false
	wLeft := 0.0
	for pos := 1; pos < len(sorted); pos++ {
		s := sorted[pos-1]
		left[c.y[s]] += c.w[s]
		right[c.y[s]] -= c.w[s]
		wLeft += c.w[s]

		if xs[pos] <= xs[pos-1] || pos < minLeaf || len(sorted)-pos < minLeaf {
			continue
		}
		wRight := total - wLeft
		imp := (wLeft*c.impurity(left, wLeft) + wRight*c.impurity(right, wRight)) / total
		if imp < best {
			best, bestPos, found = imp, pos, true
		}
	}
	return bestPos, best, found
}

// squaredError scores weighted variance for the regressor.
type squaredError struct {
	y []float64
	w []float64
}

func (c *squaredError) node(samples []int) ([]float64, float64, float64) {
	var sw, swy, swyy float64
	for _, s := range samples {
		sw += c.w[s]
		swy += c.w[s] * c.y[s]
		swyy += c.w[s] * c.y[s] * c.y[s]
	}
	if sw <= 0 {
		return []float64{0}, 0, 0
	}
	mean := swy / sw
	return []float64{mean}, math.Max(swyy/sw-mean*mean, 0), sw
}

func (c *squaredError) bestSplit(sorted []int, xs []float64, minLeaf int) (int, float64, bool) {
	var total, totalY, totalYY float64
	for _, s := range sorted {
		total += c.w[s]
		totalY += c.w[s] * c.y[s]
		totalYY += c.w[s] * c.y[s] * c.y[s]
	}

	best, bestPos, found := math.Inf(1), 0, false
	var wl, yl, yyl float64
	for pos := 1; pos < len(sorted); pos++ {
		s := sorted[pos-1]
		wl += c.w[s]
		yl += c.w[s] * c.y[s]
		yyl += c.w[s] * c.y[s] * c.y[s]

		if xs[pos] <= xs[pos-1] || pos < minLeaf || len(sorted)-pos < minLeaf {
			continue
		}
		wr, yr, yyr := total-wl, totalY-yl, totalYY-yyl
		if wl <= 0 || wr <= 0 {
			continue
		}
		// sum of within-child squared deviations, divided by total weight
		imp := (yyl - yl*yl/wl + yyr - yr*yr/wr) / total
		if imp < best {
			best, bestPos, found = imp, pos, true
		}
	}
	return bestPos, best, found
}
