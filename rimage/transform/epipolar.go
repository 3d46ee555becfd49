package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
)

// EpipolarResiduals computes the algebraic epipolar residual p^T·F·q of every correspondence.
// p and q hold n points each as interleaved x,y coordinates and are homogenized as (x, y, 1);
// f is the 3x3 fundamental matrix in row-major order. The same function backs the validator
// and EpipolarLoss so both agree to the bit.
func EpipolarResiduals[T constraints.Float](p, q, f []T) ([]T, error) {
	if err := checkEpipolarInputs(p, q, f); err != nil {
		return nil, err
	}
	n := len(p) / 2
	residuals := make([]T, n)
	for i := 0; i < n; i++ {
		fq := mulHomogeneous(f, q[2*i], q[2*i+1])
		residuals[i] = p[2*i]*fq[0] + p[2*i+1]*fq[1] + fq[2]
	}
	return residuals, nil
}

// MeanAbsEpipolarResidual returns the mean of |p^T·F·q| over all correspondences.
func MeanAbsEpipolarResidual[T constraints.Float](p, q, f []T) (T, error) {
	residuals, err := EpipolarResiduals(p, q, f)
	if err != nil {
		return 0, err
	}
	return meanAbs(residuals), nil
}

// EpipolarLossResult is the value of the mean absolute epipolar residual together with its
// gradient with respect to each input, laid out like the inputs.
type EpipolarLossResult[T constraints.Float] struct {
	Value T
	GradP []T
	GradQ []T
	GradF []T
}

// EpipolarLoss evaluates the mean absolute epipolar residual as a loss term. The gradient uses
// sign(0) = 0 as the subgradient of |r| at zero.
func EpipolarLoss[T constraints.Float](p, q, f []T) (*EpipolarLossResult[T], error) {
	residuals, err := EpipolarResiduals(p, q, f)
	if err != nil {
		return nil, err
	}
	n := len(residuals)
	res := &EpipolarLossResult[T]{
		Value: meanAbs(residuals),
		GradP: make([]T, len(p)),
		GradQ: make([]T, len(q)),
		GradF: make([]T, 9),
	}
	if n == 0 {
		return res, nil
	}
	scale := 1 / T(n)
	for i, r := range residuals {
		s := sign(r) * scale
		if s == 0 {
			continue
		}
		ph := [3]T{p[2*i], p[2*i+1], 1}
		qh := [3]T{q[2*i], q[2*i+1], 1}
		// d(p^T F q)/dp = F q, d/dq = F^T p, d/dF = p q^T
		fq := mulHomogeneous(f, qh[0], qh[1])
		res.GradP[2*i] = s * fq[0]
		res.GradP[2*i+1] = s * fq[1]
		for c := 0; c < 2; c++ {
			res.GradQ[2*i+c] = s * (f[c]*ph[0] + f[3+c]*ph[1] + f[6+c]*ph[2])
		}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				res.GradF[3*a+b] += s * ph[a] * qh[b]
			}
		}
	}
	return res, nil
}

// FlattenPoints lays out points as interleaved x,y coordinates.
func FlattenPoints(pts []r2.Point) []float64 {
	return lo.FlatMap(pts, func(pt r2.Point, _ int) []float64 {
		return []float64{pt.X, pt.Y}
	})
}

// FlattenMatrix returns the row-major elements of a 3x3 matrix.
func FlattenMatrix(m mat.Matrix) ([]float64, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("expected a 3x3 matrix, got %dx%d", r, c)
	}
	out := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out, nil
}

// EpipolarResidualsForPoints is EpipolarResiduals over r2 points and a gonum matrix.
func EpipolarResidualsForPoints(pts1, pts2 []r2.Point, f mat.Matrix) ([]float64, error) {
	flatF, err := FlattenMatrix(f)
	if err != nil {
		return nil, err
	}
	return EpipolarResiduals(FlattenPoints(pts1), FlattenPoints(pts2), flatF)
}

// helpers

func checkEpipolarInputs[T constraints.Float](p, q, f []T) error {
	if len(f) != 9 {
		return errors.Errorf("fundamental matrix must have 9 elements, got %d", len(f))
	}
	if len(p)%2 != 0 || len(q)%2 != 0 {
		return errors.Errorf("points must be interleaved x,y pairs, got lengths %d and %d", len(p), len(q))
	}
	if len(p) != len(q) {
		return errors.Errorf("sets of points p and q must have the same number of elements, got %d and %d",
			len(p)/2, len(q)/2)
	}
	return nil
}

// mulHomogeneous returns F·(x, y, 1).
func mulHomogeneous[T constraints.Float](f []T, x, y T) [3]T {
	return [3]T{
		f[0]*x + f[1]*y + f[2],
		f[3]*x + f[4]*y + f[5],
		f[6]*x + f[7]*y + f[8],
	}
}

func meanAbs[T constraints.Float](values []T) T {
	if len(values) == 0 {
		return T(math.NaN())
	}
	var sum T
	for _, v := range values {
		if v < 0 {
			sum -= v
		} else {
			sum += v
		}
	}
	return sum / T(len(values))
}

func sign[T constraints.Float](v T) T {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
