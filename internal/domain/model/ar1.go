package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/param"
)

// AR(1) parameter names.
const (
	ParamIntercept  = "intercept"
	ParamSlope      = "slope"
	ParamNoiseSigma = "noise_sigma"
	ParamMissing    = "missing"
)

// Weakly informative prior scales for the AR(1) parameters.
const (
	ar1InterceptPriorSD = 10.0
	ar1SlopePriorSD     = 1.0
	ar1SigmaPriorSD     = 5.0
)

// AR1 is a first-order autoregressive model with intercept:
//
//	y[t] ~ Normal(intercept + slope*y[t-1], noise_sigma)
//
// conditioned on the first observation. Unobserved responses become
// latent parameters, so the likelihood only ever scores transitions whose
// endpoints are defined, and missingness is marginalized by sampling.
type AR1 struct {
	column string
}

// NewAR1 builds an AR(1) spec over the named response column ("y" when
// empty).
func NewAR1(column string) *AR1 {
	if column == "" {
		column = "y"
	}
	return &AR1{column: column}
}

// Name identifies the model.
func (m *AR1) Name() string { return "ar1" }

// Declarations validates the dataset shape and declares the parameters,
// including one latent slot per unobserved response.
func (m *AR1) Declarations(data *dataset.Dataset) ([]Decl, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}
	if !data.TimeSeries {
		return nil, fmt.Errorf("%w: ar1 requires a time series dataset", ErrDimensionMismatch)
	}
	if data.Len() < 3 {
		return nil, fmt.Errorf("%w: ar1 needs at least 3 observations, got %d", ErrDimensionMismatch, data.Len())
	}
	if _, _, err := data.Column(m.column); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}
	decls := []Decl{
		{Name: ParamIntercept, Constraint: Unconstrained, Rows: 1, Cols: 1},
		{Name: ParamSlope, Constraint: Unconstrained, Rows: 1, Cols: 1},
		{Name: ParamNoiseSigma, Constraint: Positive, Rows: 1, Cols: 1},
	}
	if miss := data.MissingCount(); miss > 0 {
		decls = append(decls, Decl{Name: ParamMissing, Constraint: Unconstrained, Rows: 1, Cols: miss})
	}
	return decls, nil
}

// Initial produces a data-informed starting point: the lag-1 sample
// autocorrelation for the slope and residual-like scales, jittered by rng
// so chains start overdispersed.
func (m *AR1) Initial(data *dataset.Dataset, rng *rand.Rand) (param.Set, error) {
	y, observed, err := data.Column(m.column)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}
	var obs []float64
	for i, v := range y {
		if observed[i] {
			obs = append(obs, v)
		}
	}
	mean := stat.Mean(obs, nil)
	sd := math.Sqrt(stat.Variance(obs, nil))
	if sd == 0 || math.IsNaN(sd) {
		sd = 1
	}

	// Lag-1 autocorrelation over adjacent observed pairs.
	var prev, cur []float64
	for t := 1; t < len(y); t++ {
		if observed[t] && observed[t-1] {
			prev = append(prev, y[t-1])
			cur = append(cur, y[t])
		}
	}
	phi := 0.0
	if len(prev) >= 2 {
		phi = stat.Correlation(prev, cur, nil)
		if math.IsNaN(phi) {
			phi = 0
		}
	}

	jitter := func(scale float64) float64 {
		if rng == nil {
			return 0
		}
		return (rng.Float64()*2 - 1) * scale
	}
	set := param.Set{
		ParamIntercept:  param.Scalar(mean*(1-phi) + jitter(0.5*sd)),
		ParamSlope:      param.Scalar(clamp(phi+jitter(0.2), -0.99, 0.99)),
		ParamNoiseSigma: param.Scalar(sd * math.Exp(jitter(0.3))),
	}
	if miss := data.MissingCount(); miss > 0 {
		fill := make([]float64, miss)
		for i := range fill {
			fill[i] = mean + jitter(sd)
		}
		set[ParamMissing] = param.Vector(fill)
	}
	return set, nil
}

// LogPosterior evaluates the unnormalized log posterior. Latent values
// replace the unobserved responses before the transition densities are
// accumulated.
func (m *AR1) LogPosterior(data *dataset.Dataset, params param.Set) float64 {
	c, err := params.Scalar(ParamIntercept)
	if err != nil {
		return math.Inf(-1)
	}
	phi, err := params.Scalar(ParamSlope)
	if err != nil {
		return math.Inf(-1)
	}
	sigma, err := params.Scalar(ParamNoiseSigma)
	if err != nil || !(sigma > 0) {
		return math.Inf(-1)
	}

	y, observed, err := data.Column(m.column)
	if err != nil {
		return math.Inf(-1)
	}
	if miss := data.MissingCount(); miss > 0 {
		latent, err := params.Vector(ParamMissing)
		if err != nil || len(latent) != miss {
			return math.Inf(-1)
		}
		k := 0
		for t := range y {
			if !observed[t] {
				y[t] = latent[k]
				k++
			}
		}
	}

	obsDist := distuv.Normal{Sigma: sigma}
	lp := 0.0
	for t := 1; t < len(y); t++ {
		obsDist.Mu = c + phi*y[t-1]
		lp += obsDist.LogProb(y[t])
	}

	// Weakly informative priors.
	lp += distuv.Normal{Mu: 0, Sigma: ar1InterceptPriorSD}.LogProb(c)
	lp += distuv.Normal{Mu: 0, Sigma: ar1SlopePriorSD}.LogProb(phi)
	lp += distuv.Normal{Mu: 0, Sigma: ar1SigmaPriorSD}.LogProb(sigma) // half-normal up to a constant
	return lp
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
