// Package dataset holds the sample set used for training and evaluation: a
// dense feature matrix with named columns, plus .npy input/output and the
// two-blob generator used by the self-tests.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// Frame is an ordered set of samples with named float64 columns.
// It never copies on read; callers must not mutate the returned matrices.
type Frame struct {
	data  *mat.Dense
	names []string
	index map[string]int
}

// NewFrame wraps data with the given column names. nil names yields
// DefaultColumnNames.
func NewFrame(data *mat.Dense, names []string) (*Frame, error) {
	if data == nil || data.IsEmpty() {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.NewFrame")
	}
	_, c := data.Dims()
	if names == nil {
		names = DefaultColumnNames(c)
	}
	if len(names) != c {
		return nil, errors.NewDimensionError("dataset.NewFrame", c, len(names), 1)
	}
	index := make(map[string]int, c)
	for j, name := range names {
		if _, dup := index[name]; dup {
			return nil, errors.NewValueErrorf("dataset.NewFrame", "duplicate column name %q", name)
		}
		index[name] = j
	}
	return &Frame{data: data, names: append([]string(nil), names...), index: index}, nil
}

// DefaultColumnNames returns column0, column1, ...
func DefaultColumnNames(n int) []string {
	names := make([]string, n)
	for j := range names {
		names[j] = fmt.Sprintf("column%d", j)
	}
	return names
}

// Dims returns the number of samples and columns.
func (f *Frame) Dims() (n, c int) { return f.data.Dims() }

// Len returns the number of samples.
func (f *Frame) Len() int {
	n, _ := f.data.Dims()
	return n
}

// Names returns a copy of the column names.
func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// Has reports whether a column with the given name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Matrix returns the underlying feature matrix.
func (f *Frame) Matrix() *mat.Dense { return f.data }

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValueErrorf("Frame.Column", "no column named %q", name)
	}
	return mat.Col(nil, j, f.data), nil
}

// Columns returns the named columns as one slice per column.
// A missing name yields an InvalidArgument error.
func (f *Frame) Columns(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for k, name := range names {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		cols[k] = col
	}
	return cols, nil
}

// Points returns the named columns as one point per sample.
func (f *Frame) Points(names []string) ([][]float64, error) {
	cols, err := f.Columns(names)
	if err != nil {
		return nil, err
	}
	n := f.Len()
	points := make([][]float64, n)
	flat := make([]float64, n*len(cols))
	for i := range points {
		p := flat[i*len(cols) : (i+1)*len(cols) : (i+1)*len(cols)]
		for k, col := range cols {
			p[k] = col[i]
		}
		points[i] = p
	}
	return points, nil
}

// Subset returns a frame holding the given rows in order.
func (f *Frame) Subset(rows []int) (*Frame, error) {
	_, c := f.data.Dims()
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Frame.Subset")
	}
	sub := mat.NewDense(len(rows), c, nil)
	for k, i := range rows {
		sub.SetRow(k, f.data.RawRowView(i))
	}
	return NewFrame(sub, f.names)
}
