package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/param"
)

// Mixture parameter names.
const (
	ParamProportions = "proportions"
	ParamTemplates   = "templates"
)

// updateFloor keeps multiplicative updates and Poisson means away from zero.
const updateFloor = 1e-12

// Mixture is a nonnegative factorization model for count data. Each unit
// carries a latent proportion vector on the simplex over k groups; the
// expected counts are the proportions combined with nonnegative group
// templates, and observed counts are Poisson around that expectation:
//
//	y[i,j] ~ Poisson((proportions[i,:] * templates)[j] * scale[i])
//
// The per-unit scale absorbs sequencing-depth style exposure and is
// profiled out during fitting.
type Mixture struct {
	groups int
}

// NewMixture builds a mixture spec with k latent groups.
func NewMixture(groups int) *Mixture {
	return &Mixture{groups: groups}
}

// Name identifies the model.
func (m *Mixture) Name() string { return "mixture" }

// Declarations validates the dataset shape and declares the parameter
// blocks: an n-by-k simplex-row matrix of proportions and a k-by-p
// nonnegative template matrix.
func (m *Mixture) Declarations(data *dataset.Dataset) ([]Decl, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}
	n, p := data.Len(), data.Width()
	if m.groups < 1 {
		return nil, fmt.Errorf("%w: mixture needs at least 1 group, got %d", ErrInvalidSpec, m.groups)
	}
	if n < m.groups || p < m.groups {
		return nil, fmt.Errorf("%w: %d groups cannot be resolved from %d units x %d features",
			ErrDimensionMismatch, m.groups, n, p)
	}
	return []Decl{
		{Name: ParamProportions, Constraint: UnitSimplex, Rows: n, Cols: m.groups},
		{Name: ParamTemplates, Constraint: Positive, Rows: m.groups, Cols: p},
	}, nil
}

// Initial produces a random nonnegative starting factorization.
func (m *Mixture) Initial(data *dataset.Dataset, rng *rand.Rand) (param.Set, error) {
	n, p := data.Len(), data.Width()
	total, cells := 0.0, 0
	for _, o := range data.Obs {
		for j, v := range o.Values {
			if o.IsObserved(j) {
				total += v
				cells++
			}
		}
	}
	level := 1.0
	if cells > 0 {
		level = math.Max(total/float64(cells), updateFloor)
	}
	u := func() float64 {
		if rng == nil {
			return 1
		}
		return 0.5 + rng.Float64()
	}

	w := mat.NewDense(n, m.groups, nil)
	for i := 0; i < n; i++ {
		row := make([]float64, m.groups)
		sum := 0.0
		for g := range row {
			row[g] = u()
			sum += row[g]
		}
		for g := range row {
			w.Set(i, g, row[g]/sum)
		}
	}
	h := mat.NewDense(m.groups, p, nil)
	for g := 0; g < m.groups; g++ {
		for j := 0; j < p; j++ {
			h.Set(g, j, level*u())
		}
	}
	return param.Set{
		ParamProportions: param.Matrix(w),
		ParamTemplates:   param.Matrix(h),
	}, nil
}

// LogPosterior evaluates the Poisson log likelihood over observed cells
// (flat priors on the factors within their support).
func (m *Mixture) LogPosterior(data *dataset.Dataset, params param.Set) float64 {
	w, err := params.Matrix(ParamProportions)
	if err != nil {
		return math.Inf(-1)
	}
	h, err := params.Matrix(ParamTemplates)
	if err != nil {
		return math.Inf(-1)
	}
	wr, wc := w.Dims()
	hr, hc := h.Dims()
	if wr != data.Len() || hc != data.Width() || wc != hr {
		return math.Inf(-1)
	}
	for i := 0; i < wr; i++ {
		if param.CheckSimplex(mat.Row(nil, i, w), 1e-6) != nil {
			return math.Inf(-1)
		}
	}
	var mu mat.Dense
	mu.Mul(w, h)
	lp := 0.0
	for i, o := range data.Obs {
		for j, y := range o.Values {
			if !o.IsObserved(j) {
				continue
			}
			rate := math.Max(mu.At(i, j), updateFloor)
			if rate <= 0 || y < 0 {
				return math.Inf(-1)
			}
			lg, _ := math.Lgamma(y + 1)
			lp += y*math.Log(rate) - rate - lg
		}
	}
	return lp
}

// OptimizeSelf fits the factorization by multiplicative updates that are
// monotone in the Poisson deviance (Lee-Seung KL form), restricted to
// observed cells. It returns the point estimate with proportion rows
// normalized onto the simplex, the achieved log likelihood, the number of
// iterations used, and whether the tolerance was met within the budget.
func (m *Mixture) OptimizeSelf(ctx context.Context, data *dataset.Dataset, maxIter int, tol float64, rng *rand.Rand) (param.Set, float64, int, bool, error) {
	if _, err := m.Declarations(data); err != nil {
		return nil, 0, 0, false, err
	}
	n, p, k := data.Len(), data.Width(), m.groups

	init, err := m.Initial(data, rng)
	if err != nil {
		return nil, 0, 0, false, err
	}
	w, _ := init.Matrix(ParamProportions)
	h, _ := init.Matrix(ParamTemplates)

	v := mat.NewDense(n, p, nil)
	observed := make([][]bool, n)
	for i, o := range data.Obs {
		observed[i] = make([]bool, p)
		for j, y := range o.Values {
			if o.IsObserved(j) {
				v.Set(i, j, y)
				observed[i][j] = true
			}
		}
	}

	var mu mat.Dense
	objective := func() float64 {
		mu.Mul(w, h)
		lp := 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				if !observed[i][j] {
					continue
				}
				rate := math.Max(mu.At(i, j), updateFloor)
				y := v.At(i, j)
				lg, _ := math.Lgamma(y + 1)
				lp += y*math.Log(rate) - rate - lg
			}
		}
		return lp
	}

	prev := objective()
	converged := false
	iters := 0
	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return nil, 0, iters, false, ctx.Err()
		default:
		}
		iters = iter + 1

		// W update.
		mu.Mul(w, h)
		for i := 0; i < n; i++ {
			for g := 0; g < k; g++ {
				num, den := 0.0, 0.0
				for j := 0; j < p; j++ {
					if !observed[i][j] {
						continue
					}
					num += h.At(g, j) * v.At(i, j) / math.Max(mu.At(i, j), updateFloor)
					den += h.At(g, j)
				}
				if den > 0 {
					w.Set(i, g, math.Max(w.At(i, g)*num/den, updateFloor))
				}
			}
		}

		// H update.
		mu.Mul(w, h)
		for g := 0; g < k; g++ {
			for j := 0; j < p; j++ {
				num, den := 0.0, 0.0
				for i := 0; i < n; i++ {
					if !observed[i][j] {
						continue
					}
					num += w.At(i, g) * v.At(i, j) / math.Max(mu.At(i, j), updateFloor)
					den += w.At(i, g)
				}
				if den > 0 {
					h.Set(g, j, math.Max(h.At(g, j)*num/den, updateFloor))
				}
			}
		}

		cur := objective()
		if math.Abs(cur-prev) <= tol*(math.Abs(prev)+1) {
			prev = cur
			converged = true
			break
		}
		prev = cur
	}

	// Normalize proportion rows onto the simplex; the per-unit scale the
	// normalization removes is exactly the profiled exposure.
	theta := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := mat.Row(nil, i, w)
		sum := 0.0
		for _, x := range row {
			sum += x
		}
		for g, x := range row {
			theta.Set(i, g, x/sum)
		}
	}
	point := param.Set{
		ParamProportions: param.Matrix(theta),
		ParamTemplates:   param.Matrix(h),
	}
	return point, prev, iters, converged, nil
}

// matFromSlice builds a dense matrix backed by data, row-major.
func matFromSlice(rows, cols int, data []float64) *mat.Dense {
	return mat.NewDense(rows, cols, data)
}
