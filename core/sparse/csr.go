// Package sparse provides an immutable compressed-sparse-row matrix and the
// builder used to assemble it from (row, col, value) increments.
package sparse

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// CSR is an immutable sparse matrix in compressed-sparse-row layout.
// It is safe for concurrent readers.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64

	tOnce sync.Once
	t     *CSR
}

// Builder accumulates additive entries. Repeated (i, j) pairs are summed by Build.
type Builder struct {
	rows, cols int
	entries    []entry
}

type entry struct {
	row, col int
	val      float64
}

// NewBuilder returns a builder for a rows×cols matrix.
func NewBuilder(rows, cols int) *Builder {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("sparse: negative dimension %d×%d", rows, cols))
	}
	return &Builder{rows: rows, cols: cols}
}

// Grow reserves space for n more entries.
func (b *Builder) Grow(n int) {
	if cap(b.entries)-len(b.entries) < n {
		entries := make([]entry, len(b.entries), len(b.entries)+n)
		copy(entries, b.entries)
		b.entries = entries
	}
}

// Add increments element (i, j) by v. It panics if (i, j) is out of range.
func (b *Builder) Add(i, j int, v float64) {
	if i < 0 || i >= b.rows || j < 0 || j >= b.cols {
		panic(fmt.Sprintf("sparse: index (%d, %d) out of range for %d×%d", i, j, b.rows, b.cols))
	}
	b.entries = append(b.entries, entry{row: i, col: j, val: v})
}

// Build sums duplicates, drops explicit zeros and returns the matrix.
// The builder can keep being used; later Adds do not affect the result.
func (b *Builder) Build() *CSR {
	entries := make([]entry, len(b.entries))
	copy(entries, b.entries)
	sort.Slice(entries, func(x, y int) bool {
		if entries[x].row != entries[y].row {
			return entries[x].row < entries[y].row
		}
		return entries[x].col < entries[y].col
	})

	m := &CSR{
		rows:   b.rows,
		cols:   b.cols,
		indptr: make([]int, b.rows+1),
	}
	m.indices = make([]int, 0, len(entries))
	m.data = make([]float64, 0, len(entries))
	for k := 0; k < len(entries); {
		e := entries[k]
		sum := 0.0
		for k < len(entries) && entries[k].row == e.row && entries[k].col == e.col {
			sum += entries[k].val
			k++
		}
		if sum == 0 {
			continue
		}
		m.indices = append(m.indices, e.col)
		m.data = append(m.data, sum)
		m.indptr[e.row+1]++
	}
	for i := 0; i < b.rows; i++ {
		m.indptr[i+1] += m.indptr[i]
	}
	return m
}

// Identity returns the n×n identity matrix scaled by alpha.
func Identity(n int, alpha float64) *CSR {
	b := NewBuilder(n, n)
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.Add(i, i, alpha)
	}
	return b.Build()
}

// Dims returns the number of rows and columns.
func (m *CSR) Dims() (r, c int) { return m.rows, m.cols }

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.data) }

// At returns element (i, j).
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	cols := m.indices[m.indptr[i]:m.indptr[i+1]]
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return m.data[m.indptr[i]+k]
	}
	return 0
}

// Row calls fn for every stored entry of row i in column order.
func (m *CSR) Row(i int, fn func(j int, v float64)) {
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		fn(m.indices[k], m.data[k])
	}
}

// RowNNZ returns the number of stored entries in row i.
func (m *CSR) RowNNZ(i int) int { return m.indptr[i+1] - m.indptr[i] }

// RowSum returns the sum of row i.
func (m *CSR) RowSum(i int) float64 {
	s := 0.0
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		s += m.data[k]
	}
	return s
}

// MulVec returns m·x. It panics with a DimensionError if len(x) != cols.
func (m *CSR) MulVec(x []float64) []float64 {
	dst := make([]float64, m.rows)
	if err := m.MulVecTo(dst, x); err != nil {
		panic(err)
	}
	return dst
}

// MulVecTo stores m·x into dst. It returns a DimensionError if the lengths
// of dst or x do not match the matrix.
func (m *CSR) MulVecTo(dst, x []float64) error {
	if len(x) != m.cols {
		return errors.NewDimensionError("CSR.MulVec", m.cols, len(x), 1)
	}
	if len(dst) != m.rows {
		return errors.NewDimensionError("CSR.MulVec", m.rows, len(dst), 0)
	}
	for i := 0; i < m.rows; i++ {
		s := 0.0
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			s += m.data[k] * x[m.indices[k]]
		}
		dst[i] = s
	}
	return nil
}

// T returns the transpose. It is computed on first use and cached.
func (m *CSR) T() *CSR {
	m.tOnce.Do(func() {
		t := &CSR{
			rows:    m.cols,
			cols:    m.rows,
			indptr:  make([]int, m.cols+1),
			indices: make([]int, len(m.indices)),
			data:    make([]float64, len(m.data)),
		}
		for _, j := range m.indices {
			t.indptr[j+1]++
		}
		for j := 0; j < m.cols; j++ {
			t.indptr[j+1] += t.indptr[j]
		}
		next := make([]int, m.cols)
		copy(next, t.indptr[:m.cols])
		// rows are visited in order so every transposed row stays sorted
		for i := 0; i < m.rows; i++ {
			for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
				j := m.indices[k]
				t.indices[next[j]] = i
				t.data[next[j]] = m.data[k]
				next[j]++
			}
		}
		t.t = m
		t.tOnce.Do(func() {})
		m.t = t
	})
	return m.t
}

// Scale returns a new matrix alpha·m.
func (m *CSR) Scale(alpha float64) *CSR {
	s := &CSR{
		rows:    m.rows,
		cols:    m.cols,
		indptr:  append([]int(nil), m.indptr...),
		indices: append([]int(nil), m.indices...),
		data:    make([]float64, len(m.data)),
	}
	for k, v := range m.data {
		s.data[k] = alpha * v
	}
	return s
}

// ToDense converts the matrix to a gonum dense matrix.
func (m *CSR) ToDense() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		m.Row(i, func(j int, v float64) { d.Set(i, j, v) })
	}
	return d
}
