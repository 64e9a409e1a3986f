package simulate

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
)

// Mixture simulation parameter names, beyond the model's own.
const (
	ParamConcentration = "concentration"
	ParamExposure      = "exposure"
)

// Mixture generates n units of count data from a latent-proportion
// factorization. Per unit it draws a proportion vector on the simplex
// from a Dirichlet, combines it with the group templates to form expected
// counts, and draws observed counts from a Poisson noise model around
// that expectation.
//
// Required parameters: "templates" (groups-by-features, nonnegative) and
// "concentration" (Dirichlet weights, strictly positive). "exposure"
// scales expected totals and defaults to 1.
//
// The returned truth set is the input parameters augmented with the
// realized per-unit "proportions" matrix, which the reporter compares
// against inferred proportions.
func Mixture(params param.Set, n int, opts ...Option) (*dataset.Dataset, param.Set, error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: observation count %d", param.ErrInvalidParameter, n)
	}
	templates, err := params.Matrix(model.ParamTemplates)
	if err != nil {
		return nil, nil, err
	}
	alpha, err := params.Vector(ParamConcentration)
	if err != nil {
		return nil, nil, err
	}
	exposure := 1.0
	if _, ok := params[ParamExposure]; ok {
		if exposure, err = params.Scalar(ParamExposure); err != nil {
			return nil, nil, err
		}
		if err := param.CheckPositive(ParamExposure, exposure); err != nil {
			return nil, nil, err
		}
	}

	k, p := templates.Dims()
	if len(alpha) != k {
		return nil, nil, fmt.Errorf("%w: concentration has %d groups, templates %d",
			param.ErrInvalidParameter, len(alpha), k)
	}
	for _, a := range alpha {
		if err := param.CheckPositive(ParamConcentration, a); err != nil {
			return nil, nil, err
		}
	}
	for g := 0; g < k; g++ {
		for j := 0; j < p; j++ {
			if templates.At(g, j) < 0 {
				return nil, nil, fmt.Errorf("%w: template (%d,%d) is negative",
					param.ErrInvalidParameter, g, j)
			}
		}
	}

	gen := newGenerator(opts...)
	rng := rand.New(rand.NewPCG(gen.seed, gen.seed))
	dir := distmv.NewDirichlet(alpha, rng)

	columns := make([]string, p)
	for j := range columns {
		columns[j] = fmt.Sprintf("feature_%d", j)
	}
	ds := dataset.New(columns, false)

	proportions := mat.NewDense(n, k, nil)
	theta := make([]float64, k)
	for i := 0; i < n; i++ {
		dir.Rand(theta)
		proportions.SetRow(i, theta)

		values := make([]float64, p)
		for j := 0; j < p; j++ {
			mu := 0.0
			for g := 0; g < k; g++ {
				mu += theta[g] * templates.At(g, j)
			}
			mu *= exposure
			if mu > 0 {
				values[j] = distuv.Poisson{Lambda: mu, Src: rng}.Rand()
			}
		}
		if err := ds.Append(dataset.Observation{Index: float64(i), Values: values}); err != nil {
			return nil, nil, err
		}
	}

	truth := params.Clone()
	truth[model.ParamProportions] = param.Matrix(proportions)
	return ds, truth, nil
}
