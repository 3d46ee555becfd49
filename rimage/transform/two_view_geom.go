// Package transform provides the two-view geometry relating posed pinhole cameras.
package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned when a matrix that must be inverted is singular or too badly
// conditioned to invert.
var ErrSingularMatrix = errors.New("matrix is singular")

// NewSingularMatrixError wraps ErrSingularMatrix with the name of the offending matrix.
func NewSingularMatrixError(name string, cause error) error {
	if cause == nil {
		return errors.Wrapf(ErrSingularMatrix, "cannot invert %s", name)
	}
	return errors.Wrapf(ErrSingularMatrix, "cannot invert %s: %v", name, cause)
}

// SkewMatrix returns the skew symmetric matrix of x, such that SkewMatrix(x)·v == x×v for
// every 3-vector v.
func SkewMatrix(x r3.Vector) *mat.Dense {
	skew := mat.NewDense(3, 3, nil)
	skew.Set(0, 1, -x.Z)
	skew.Set(0, 2, x.Y)
	skew.Set(1, 0, x.Z)
	skew.Set(1, 2, -x.X)
	skew.Set(2, 0, -x.Y)
	skew.Set(2, 1, x.X)
	return skew
}

// GetEssentialMatrixFromRT returns the essential matrix [t]x·R of a relative rotation and translation.
func GetEssentialMatrixFromRT(rot, translation *mat.Dense) (*mat.Dense, error) {
	if r, c := rot.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("rotation must be 3x3, got %dx%d", r, c)
	}
	t, err := denseToVector(translation)
	if err != nil {
		return nil, err
	}
	var essMat mat.Dense
	essMat.Mul(SkewMatrix(t), rot)
	return &essMat, nil
}

// FundamentalMatrixFromRT returns the fundamental matrix K^-T·[t]x·R·K^-1 relating pixels of the
// reference view (left) to pixels of the local view (right) for a shared camera matrix k.
func FundamentalMatrixFromRT(rot, translation, k *mat.Dense) (*mat.Dense, error) {
	essMat, err := GetEssentialMatrixFromRT(rot, translation)
	if err != nil {
		return nil, err
	}
	return FundamentalMatrixFromEssential(essMat, k)
}

// FundamentalMatrixFromEssential returns K^-T·E·K^-1. The order matters: swapping the factors
// yields the transposed mapping.
func FundamentalMatrixFromEssential(essMat, k *mat.Dense) (*mat.Dense, error) {
	if r, c := essMat.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("essential matrix must be 3x3, got %dx%d", r, c)
	}
	kInv, err := invert(k, "camera matrix")
	if err != nil {
		return nil, err
	}
	var fundMat mat.Dense
	fundMat.Mul(kInv.T(), essMat)
	fundMat.Mul(&fundMat, kInv)
	return &fundMat, nil
}

// helpers

// invert returns the inverse of a square matrix, failing with ErrSingularMatrix when gonum
// reports the matrix as singular or ill-conditioned.
func invert(m mat.Matrix, name string) (*mat.Dense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.Errorf("%s must be square, got %dx%d", name, r, c)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, NewSingularMatrixError(name, err)
	}
	return &inv, nil
}

// denseToVector reads a 3x1 (or 1x3) matrix as an r3.Vector.
func denseToVector(m mat.Matrix) (r3.Vector, error) {
	r, c := m.Dims()
	switch {
	case r == 3 && c == 1:
		return r3.Vector{X: m.At(0, 0), Y: m.At(1, 0), Z: m.At(2, 0)}, nil
	case r == 1 && c == 3:
		return r3.Vector{X: m.At(0, 0), Y: m.At(0, 1), Z: m.At(0, 2)}, nil
	default:
		return r3.Vector{}, errors.Errorf("expected a 3-vector, got %dx%d", r, c)
	}
}

// vectorToDense returns v as a 3x1 column matrix.
func vectorToDense(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 1, []float64{v.X, v.Y, v.Z})
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
