package dataset

import (
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// ReadNpy reads a two-dimensional float64 array.
func ReadNpy(r io.Reader) (*mat.Dense, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "dataset.ReadNpy")
	}
	if len(npy.Header.Descr.Shape) != 2 {
		return nil, errors.NewValueErrorf("dataset.ReadNpy", "expected a 2-d array, got shape %v", npy.Header.Descr.Shape)
	}
	m := &mat.Dense{}
	if err := npy.Read(m); err != nil {
		return nil, errors.Wrap(err, "dataset.ReadNpy")
	}
	return m, nil
}

// ReadNpyVector reads a one-dimensional float64 array such as labels or weights.
func ReadNpyVector(r io.Reader) ([]float64, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "dataset.ReadNpyVector")
	}
	var v []float64
	if err := npy.Read(&v); err != nil {
		return nil, errors.Wrap(err, "dataset.ReadNpyVector")
	}
	return v, nil
}

// WriteNpy writes m (a *mat.Dense or a []float64) in .npy format.
func WriteNpy(w io.Writer, m interface{}) error {
	if err := npyio.Write(w, m); err != nil {
		return errors.Wrap(err, "dataset.WriteNpy")
	}
	return nil
}

// LoadSample reads a feature matrix and a label vector from .npy files.
// nil names yields DefaultColumnNames.
func LoadSample(featuresPath, labelsPath string, names []string) (*Sample, error) {
	data, err := readFile(featuresPath, ReadNpy)
	if err != nil {
		return nil, err
	}
	labels, err := readFile(labelsPath, ReadNpyVector)
	if err != nil {
		return nil, err
	}
	if n, _ := data.Dims(); n != len(labels) {
		return nil, errors.NewDimensionError("dataset.LoadSample", n, len(labels), 0)
	}
	frame, err := NewFrame(data, names)
	if err != nil {
		return nil, err
	}
	return &Sample{Frame: frame, Labels: labels}, nil
}

// SaveNpy writes m to path.
func SaveNpy(path string, m interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "dataset.SaveNpy")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "dataset.SaveNpy")
		}
	}()
	return WriteNpy(f, m)
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return read(f)
}
