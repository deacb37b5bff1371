package dataset

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

func TestFrameColumns(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
	f, err := NewFrame(data, []string{"mass", "pt"})
	require.NoError(t, err)

	n, c := f.Dims()
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, c)
	assert.True(t, f.Has("pt"))
	assert.False(t, f.Has("eta"))

	col, err := f.Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, col)

	points, err := f.Points([]string{"pt", "mass"})
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 2}, points[1])

	_, err = f.Columns([]string{"mass", "eta"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestNewFrameValidation(t *testing.T) {
	data := mat.NewDense(2, 2, nil)

	_, err := NewFrame(data, []string{"a"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewFrame(data, []string{"a", "a"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewFrame(nil, nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	f, err := NewFrame(data, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"column0", "column1"}, f.Names())
}

func TestSubset(t *testing.T) {
	data := mat.NewDense(3, 1, []float64{5, 6, 7})
	f, err := NewFrame(data, nil)
	require.NoError(t, err)

	sub, err := f.Subset([]int{2, 0})
	require.NoError(t, err)
	col, _ := sub.Column("column0")
	assert.Equal(t, []float64{7, 5}, col)
}

func TestGenerateSample(t *testing.T) {
	s, err := GenerateSample(2000, 3, 2, 42)
	require.NoError(t, err)
	require.Equal(t, 2000, s.Frame.Len())
	require.Len(t, s.Labels, 2000)

	var sig, bg []float64
	col, _ := s.Frame.Column("column1")
	for i, y := range s.Labels {
		if y == 1 {
			sig = append(sig, col[i])
		} else {
			bg = append(bg, col[i])
		}
	}
	assert.Len(t, sig, 1000)
	assert.InDelta(t, 1.0, stat.Mean(sig, nil), 0.15)
	assert.InDelta(t, -1.0, stat.Mean(bg, nil), 0.15)
	assert.InDelta(t, 1.0, stat.StdDev(sig, nil), 0.15)

	again, err := GenerateSample(2000, 3, 2, 42)
	require.NoError(t, err)
	assert.True(t, mat.Equal(s.Frame.Matrix(), again.Frame.Matrix()))

	_, err = GenerateSample(1, 3, 2, 42)
	assert.Error(t, err)
}

func TestNpyRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	var buf bytes.Buffer
	require.NoError(t, WriteNpy(&buf, m))
	got, err := ReadNpy(&buf)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))

	dir := t.TempDir()
	xPath := filepath.Join(dir, "x.npy")
	yPath := filepath.Join(dir, "y.npy")
	require.NoError(t, SaveNpy(xPath, m))
	require.NoError(t, SaveNpy(yPath, []float64{0, 1}))

	s, err := LoadSample(xPath, yPath, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, s.Labels)
	assert.True(t, s.Frame.Has("c"))

	require.NoError(t, SaveNpy(yPath, []float64{0, 1, 1}))
	_, err = LoadSample(xPath, yPath, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
