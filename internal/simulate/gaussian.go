package simulate

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/param"
)

// Gaussian cross-section parameter names.
const (
	ParamMean       = "mean"
	ParamCovariance = "covariance"
)

// GaussianCrossSection generates n exchangeable multivariate-normal
// samples. The covariance parameter must be symmetric positive-definite;
// otherwise generation fails before any draw is made.
func GaussianCrossSection(params param.Set, n int, opts ...Option) (*dataset.Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: observation count %d", param.ErrInvalidParameter, n)
	}
	mu, err := params.Vector(ParamMean)
	if err != nil {
		return nil, err
	}
	cov, err := params.Matrix(ParamCovariance)
	if err != nil {
		return nil, err
	}
	if err := param.CheckCovariance(cov); err != nil {
		return nil, err
	}
	d := len(mu)
	if r, _ := cov.Dims(); r != d {
		return nil, fmt.Errorf("%w: mean has %d dims, covariance %d", param.ErrInvalidParameter, d, r)
	}

	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sym.SetSym(i, j, (cov.At(i, j)+cov.At(j, i))/2)
		}
	}

	g := newGenerator(opts...)
	rng := rand.New(rand.NewPCG(g.seed, g.seed))
	normal, ok := distmv.NewNormal(mu, sym, rng)
	if !ok {
		return nil, fmt.Errorf("%w: covariance not positive definite", param.ErrInvalidParameter)
	}

	columns := make([]string, d)
	for j := range columns {
		columns[j] = fmt.Sprintf("x_%d", j)
	}
	ds := dataset.New(columns, false)
	buf := make([]float64, d)
	for i := 0; i < n; i++ {
		normal.Rand(buf)
		values := make([]float64, d)
		copy(values, buf)
		if err := ds.Append(dataset.Observation{Index: float64(i), Values: values}); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
