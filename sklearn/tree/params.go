package tree

import (
	"fmt"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// params holds the growth limits shared by the classifier and the regressor.
type params struct {
	criterion           string  // "gini"/"entropy" for classification, "squared_error" for regression
	maxDepth            int     // 0 = unlimited
	minSamplesSplit     int     // minimum samples to split a node
	minSamplesLeaf      int     // minimum samples in a leaf
	minImpurityDecrease float64 // minimum weighted impurity decrease for a split
}

// Option configures a decision tree.
type Option func(*params)

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) Option {
	return func(p *params) {
		p.criterion = criterion
	}
}

// WithMaxDepth sets the maximum tree depth (0 = unlimited)
func WithMaxDepth(depth int) Option {
	return func(p *params) {
		p.maxDepth = depth
	}
}

// WithMinSamplesSplit sets minimum samples to split
func WithMinSamplesSplit(n int) Option {
	return func(p *params) {
		p.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) {
		p.minSamplesLeaf = n
	}
}

// WithMinImpurityDecrease sets the minimum impurity decrease a split must achieve
func WithMinImpurityDecrease(v float64) Option {
	return func(p *params) {
		p.minImpurityDecrease = v
	}
}

func newParams(criterion string, opts []Option) params {
	p := params{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p params) validate(allowed ...string) error {
	ok := false
	for _, c := range allowed {
		if p.criterion == c {
			ok = true
		}
	}
	switch {
	case !ok:
		return errors.NewValidationError("criterion", fmt.Sprintf("must be one of %v", allowed), p.criterion)
	case p.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.maxDepth)
	case p.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.minSamplesSplit)
	case p.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.minSamplesLeaf)
	case p.minImpurityDecrease < 0:
		return errors.NewValidationError("min_impurity_decrease", "must be >= 0", p.minImpurityDecrease)
	}
	return nil
}

func (p params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             p.criterion,
		"max_depth":             p.maxDepth,
		"min_samples_split":     p.minSamplesSplit,
		"min_samples_leaf":      p.minSamplesLeaf,
		"min_impurity_decrease": p.minImpurityDecrease,
	}
}

func (p *params) setParams(values map[string]interface{}) error {
	for key, value := range values {
		var ok bool
		switch key {
		case "criterion":
			p.criterion, ok = value.(string)
		case "max_depth":
			p.maxDepth, ok = value.(int)
		case "min_samples_split":
			p.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			p.minSamplesLeaf, ok = value.(int)
		case "min_impurity_decrease":
			p.minImpurityDecrease, ok = value.(float64)
		default:
			return errors.NewValueErrorf("SetParams", "unknown parameter %q", key)
		}
		if !ok {
			return errors.NewValueErrorf("SetParams", "parameter %q has wrong type %T", key, value)
		}
	}
	return nil
}
