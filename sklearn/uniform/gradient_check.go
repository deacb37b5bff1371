package uniform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/sklearn/ensemble"
)

// CheckGradient compares the analytic negative gradient of loss at pred with
// a central finite difference of step eps and returns the largest absolute
// disagreement over all coordinates. A correct loss returns a value close to 0.
func CheckGradient(loss ensemble.LossFunction, y, pred []float64, eps float64) (float64, error) {
	if len(y) != len(pred) {
		return 0, errors.NewDimensionError("uniform.CheckGradient", len(y), len(pred), 0)
	}
	if eps <= 0 {
		return 0, errors.NewValueErrorf("uniform.CheckGradient", "eps must be positive, got %v", eps)
	}

	var worst float64
	err := errors.SafeExecute("uniform.CheckGradient", func() error {
		n := len(pred)
		w := make([]float64, n)
		for i := range w {
			w[i] = 1
		}
		p := mat.NewDense(n, 1, append([]float64(nil), pred...))
		negGrad := loss.NegativeGradient(y, p, 0)

		for i := 0; i < n; i++ {
			p.Set(i, 0, pred[i]+eps)
			up := loss.Loss(y, p, w)
			p.Set(i, 0, pred[i]-eps)
			down := loss.Loss(y, p, w)
			p.Set(i, 0, pred[i])

			fd := (up - down) / (2 * eps)
			worst = math.Max(worst, math.Abs(negGrad[i]+fd))
		}
		return nil
	})
	return worst, err
}
