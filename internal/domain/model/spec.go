// Package model defines structured model specifications the fitter can
// validate before running: parameter declarations with constraints plus a
// log-posterior, instead of an opaque model text block.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/param"
)

// Constraint declares the support of a parameter block. Violating a
// declared constraint makes the objective ill-defined, so every
// declaration carries one explicitly.
type Constraint int

// Supported constraints.
const (
	// Unconstrained parameters take any real value.
	Unconstrained Constraint = iota
	// Positive parameters are strictly positive (variances, scales).
	Positive
	// UnitSimplex rows are nonnegative and sum to one (proportions).
	UnitSimplex
	// Covariance blocks are symmetric positive-definite matrices.
	Covariance
)

// String returns a human-readable constraint name.
func (c Constraint) String() string {
	switch c {
	case Unconstrained:
		return "unconstrained"
	case Positive:
		return "positive"
	case UnitSimplex:
		return "simplex"
	case Covariance:
		return "covariance"
	default:
		return "unknown"
	}
}

// Decl declares one named parameter block: its shape and its constraint.
// Scalars use Rows=Cols=1, vectors Rows=1, matrices both dimensions.
type Decl struct {
	Name       string
	Constraint Constraint
	Rows       int
	Cols       int
}

// Size returns the number of scalar slots the block occupies.
func (d Decl) Size() int { return d.Rows * d.Cols }

// Spec is a validated model specification: what the parameters are, where
// they live, and how data scores against them.
type Spec interface {
	// Name identifies the model, e.g. "ar1".
	Name() string

	// Declarations validates the data shape against the model and returns
	// the parameter declarations, including latent blocks for unobserved
	// values. Fails with ErrDimensionMismatch on shape disagreement.
	Declarations(data *dataset.Dataset) ([]Decl, error)

	// Initial produces a data-informed starting point. The rng jitters
	// the start so independent chains are overdispersed.
	Initial(data *dataset.Dataset, rng *rand.Rand) (param.Set, error)

	// LogPosterior evaluates the unnormalized log posterior. Parameter
	// values outside their declared support yield math.Inf(-1).
	LogPosterior(data *dataset.Dataset, params param.Set) float64
}

// CheckDeclarations rejects malformed declaration lists: duplicate or
// empty names, non-positive shapes, or an unknown constraint.
func CheckDeclarations(decls []Decl) error {
	if len(decls) == 0 {
		return fmt.Errorf("%w: no parameter declarations", ErrInvalidSpec)
	}
	seen := make(map[string]struct{}, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			return fmt.Errorf("%w: unnamed declaration", ErrInvalidSpec)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate declaration %q", ErrInvalidSpec, d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Rows < 1 || d.Cols < 1 {
			return fmt.Errorf("%w: declaration %q has shape %dx%d", ErrInvalidSpec, d.Name, d.Rows, d.Cols)
		}
		if d.Constraint < Unconstrained || d.Constraint > Covariance {
			return fmt.Errorf("%w: declaration %q has unknown constraint", ErrInvalidSpec, d.Name)
		}
	}
	return nil
}

// FlattenNames expands declarations into one name per scalar slot, in
// declaration order: "slope" for scalars, "missing[3]" for vector slots.
func FlattenNames(decls []Decl) []string {
	var names []string
	for _, d := range decls {
		if d.Size() == 1 {
			names = append(names, d.Name)
			continue
		}
		if d.Rows == 1 {
			for j := 0; j < d.Cols; j++ {
				names = append(names, fmt.Sprintf("%s[%d]", d.Name, j))
			}
			continue
		}
		for i := 0; i < d.Rows; i++ {
			for j := 0; j < d.Cols; j++ {
				names = append(names, fmt.Sprintf("%s[%d,%d]", d.Name, i, j))
			}
		}
	}
	return names
}

// Flatten packs a parameter set into a single vector in declaration order.
func Flatten(decls []Decl, s param.Set) ([]float64, error) {
	var vec []float64
	for _, d := range decls {
		v, ok := s[d.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", param.ErrMissingParameter, d.Name)
		}
		if v.Len() != d.Size() {
			return nil, fmt.Errorf("%w: %s has %d slots, declared %d",
				param.ErrInvalidParameter, d.Name, v.Len(), d.Size())
		}
		switch v.Kind() {
		case param.KindScalar:
			vec = append(vec, v.Scalar())
		case param.KindVector:
			vec = append(vec, v.Vector()...)
		case param.KindMatrix:
			m := v.Matrix()
			r, c := m.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					vec = append(vec, m.At(i, j))
				}
			}
		}
	}
	return vec, nil
}

// Unflatten unpacks a vector back into a parameter set, the inverse of
// Flatten for matching declarations.
func Unflatten(decls []Decl, vec []float64) (param.Set, error) {
	total := 0
	for _, d := range decls {
		total += d.Size()
	}
	if len(vec) != total {
		return nil, fmt.Errorf("%w: vector has %d slots, declarations need %d",
			param.ErrInvalidParameter, len(vec), total)
	}
	out := make(param.Set, len(decls))
	at := 0
	for _, d := range decls {
		n := d.Size()
		block := vec[at : at+n]
		at += n
		switch {
		case n == 1:
			out[d.Name] = param.Scalar(block[0])
		case d.Rows == 1:
			out[d.Name] = param.Vector(block)
		default:
			m := make([]float64, n)
			copy(m, block)
			out[d.Name] = param.Matrix(matFromSlice(d.Rows, d.Cols, m))
		}
	}
	return out, nil
}
