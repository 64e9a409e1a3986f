// Package param contains the parameter containers passed between the
// simulator, the fitter, and the reporter. A Set is used both as ground
// truth (simulator input) and as an estimate (fitter output).
package param

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind discriminates the shape of a Value.
type Kind int

// Value kinds.
const (
	KindScalar Kind = iota
	KindVector
	KindMatrix
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindMatrix:
		return "matrix"
	default:
		return "unknown"
	}
}

// Value holds a single parameter: a scalar, a vector, or a matrix.
// Values are immutable once constructed; constructors copy their input.
type Value struct {
	kind   Kind
	scalar float64
	vector []float64
	matrix *mat.Dense
}

// Scalar constructs a scalar Value.
func Scalar(v float64) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Vector constructs a vector Value from a copy of v.
func Vector(v []float64) Value {
	c := make([]float64, len(v))
	copy(c, v)
	return Value{kind: KindVector, vector: c}
}

// Matrix constructs a matrix Value from a copy of m.
func Matrix(m mat.Matrix) Value {
	d := mat.DenseCopyOf(m)
	return Value{kind: KindMatrix, matrix: d}
}

// Kind reports the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// Scalar returns the scalar payload. It is only meaningful for KindScalar.
func (v Value) Scalar() float64 { return v.scalar }

// Vector returns a copy of the vector payload.
func (v Value) Vector() []float64 {
	c := make([]float64, len(v.vector))
	copy(c, v.vector)
	return c
}

// Matrix returns a copy of the matrix payload, or nil for non-matrix values.
func (v Value) Matrix() *mat.Dense {
	if v.matrix == nil {
		return nil
	}
	return mat.DenseCopyOf(v.matrix)
}

// Len returns the number of scalar slots the value occupies.
func (v Value) Len() int {
	switch v.kind {
	case KindScalar:
		return 1
	case KindVector:
		return len(v.vector)
	case KindMatrix:
		r, c := v.matrix.Dims()
		return r * c
	default:
		return 0
	}
}

// Set maps parameter names to values.
type Set map[string]Value

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, v := range s {
		switch v.kind {
		case KindScalar:
			out[name] = Scalar(v.scalar)
		case KindVector:
			out[name] = Vector(v.vector)
		case KindMatrix:
			out[name] = Matrix(v.matrix)
		}
	}
	return out
}

// Scalar fetches a scalar parameter by name.
func (s Set) Scalar(name string) (float64, error) {
	v, ok := s[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	if v.kind != KindScalar {
		return 0, fmt.Errorf("%w: %s is %s, want scalar", ErrInvalidParameter, name, v.kind)
	}
	return v.scalar, nil
}

// Vector fetches a vector parameter by name.
func (s Set) Vector(name string) ([]float64, error) {
	v, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	if v.kind != KindVector {
		return nil, fmt.Errorf("%w: %s is %s, want vector", ErrInvalidParameter, name, v.kind)
	}
	return v.Vector(), nil
}

// Matrix fetches a matrix parameter by name.
func (s Set) Matrix(name string) (*mat.Dense, error) {
	v, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	if v.kind != KindMatrix {
		return nil, fmt.Errorf("%w: %s is %s, want matrix", ErrInvalidParameter, name, v.kind)
	}
	return v.Matrix(), nil
}

// symmetryTol bounds the allowed asymmetry when validating covariance input.
const symmetryTol = 1e-9

// CheckCovariance verifies that m is a symmetric positive-definite matrix,
// i.e. usable as a covariance. Symmetry is checked entrywise, definiteness
// via a Cholesky factorization.
func CheckCovariance(m mat.Matrix) error {
	r, c := m.Dims()
	if r != c {
		return fmt.Errorf("%w: covariance must be square, got %dx%d", ErrInvalidParameter, r, c)
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > symmetryTol {
				return fmt.Errorf("%w: covariance not symmetric at (%d,%d)", ErrInvalidParameter, i, j)
			}
		}
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return fmt.Errorf("%w: covariance not positive definite", ErrInvalidParameter)
	}
	return nil
}

// CheckSimplex verifies that v is a proportion vector: entries nonnegative
// and summing to one within tol.
func CheckSimplex(v []float64, tol float64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty proportion vector", ErrInvalidParameter)
	}
	sum := 0.0
	for i, x := range v {
		if x < 0 || math.IsNaN(x) {
			return fmt.Errorf("%w: proportion[%d] = %g is negative", ErrInvalidParameter, i, x)
		}
		sum += x
	}
	if math.Abs(sum-1) > tol {
		return fmt.Errorf("%w: proportions sum to %g, want 1", ErrInvalidParameter, sum)
	}
	return nil
}

// CheckPositive verifies that a scale-like scalar is strictly positive and finite.
func CheckPositive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s = %g must be strictly positive", ErrInvalidParameter, name, v)
	}
	return nil
}
