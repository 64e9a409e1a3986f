package simulate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
)

// AR1 generates n sequential observations from a first-order
// autoregressive process with intercept. Each observation depends on the
// previous state plus an independent noise draw; the first observation is
// the initial state, either supplied via WithInitialState or drawn from
// the stationary distribution.
func AR1(params param.Set, n int, opts ...Option) (*dataset.Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: observation count %d", param.ErrInvalidParameter, n)
	}
	c, err := params.Scalar(model.ParamIntercept)
	if err != nil {
		return nil, err
	}
	phi, err := params.Scalar(model.ParamSlope)
	if err != nil {
		return nil, err
	}
	sigma, err := params.Scalar(model.ParamNoiseSigma)
	if err != nil {
		return nil, err
	}
	if err := param.CheckPositive(model.ParamNoiseSigma, sigma); err != nil {
		return nil, err
	}

	g := newGenerator(opts...)
	rng := rand.New(rand.NewPCG(g.seed, g.seed))
	noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: rng}

	state := 0.0
	switch {
	case g.initial != nil:
		state = *g.initial
	case math.Abs(phi) < 1:
		// Stationary distribution of the process.
		stationary := distuv.Normal{
			Mu:    c / (1 - phi),
			Sigma: sigma / math.Sqrt(1-phi*phi),
			Src:   rng,
		}
		state = stationary.Rand()
	default:
		state = c + noise.Rand()
	}

	ds := dataset.New([]string{g.column}, true)
	for t := 0; t < n; t++ {
		if t > 0 {
			state = c + phi*state + noise.Rand()
		}
		obs := dataset.Observation{Index: float64(t), Values: []float64{state}}
		if _, hidden := g.missing[t]; hidden {
			obs.Observed = []bool{false}
		}
		if err := ds.Append(obs); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
