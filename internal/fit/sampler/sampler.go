// Package sampler implements a single adaptive random-walk Metropolis
// chain over a generic log-density target. Chains are independent: each
// owns its pseudo-random stream, state, and output buffer, so callers may
// run any number of them concurrently and join before computing
// between-chain diagnostics.
package sampler

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Adaptation constants. Step scales adapt per coordinate during warmup in
// batches, targeting the coordinate-wise optimal acceptance rate, and are
// frozen afterwards so the retained draws come from a fixed kernel.
const (
	adaptBatch       = 50
	targetAcceptance = 0.44
	maxAdaptStep     = 0.1
)

// Result holds one chain's retained draws and bookkeeping. Draws are in
// the target's working space, one slice per retained iteration.
type Result struct {
	ID             int
	Seed           uint64
	Draws          [][]float64
	AcceptanceRate float64
	Completed      bool
	Elapsed        time.Duration
}

// Run executes one chain against target from init. The first warmup
// iterations adapt the proposal and are discarded; the remaining
// iterations are retained. Cancellation is honored between iterations:
// a cancelled chain returns what it has with Completed=false, and callers
// must not treat such a chain as a usable posterior sample.
func Run(ctx context.Context, target func([]float64) float64, init []float64, opts ...Option) Result {
	cfg := newConfig(opts...)
	start := time.Now()
	res := Result{ID: cfg.id, Seed: cfg.seed}

	dim := len(init)
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^seedMix))

	x := make([]float64, dim)
	copy(x, init)
	lp := target(x)
	if math.IsNaN(lp) {
		lp = math.Inf(-1)
	}

	scales := make([]float64, dim)
	for i := range scales {
		scales[i] = cfg.initialScale
	}
	batchAccepts := make([]int, dim)

	total := cfg.warmup + cfg.iterations
	res.Draws = make([][]float64, 0, cfg.iterations)
	var accepted, proposed int

	for iter := 0; iter < total; iter++ {
		select {
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return res
		default:
		}

		warming := iter < cfg.warmup

		// One Metropolis-within-Gibbs sweep.
		for i := 0; i < dim; i++ {
			old := x[i]
			x[i] = old + rng.NormFloat64()*scales[i]
			lpNew := target(x)
			if math.IsNaN(lpNew) {
				lpNew = math.Inf(-1)
			}
			if math.Log(rng.Float64()) < lpNew-lp {
				lp = lpNew
				if warming {
					batchAccepts[i]++
				} else {
					accepted++
				}
			} else {
				x[i] = old
			}
			if !warming {
				proposed++
			}
		}

		if warming && (iter+1)%adaptBatch == 0 {
			delta := math.Min(maxAdaptStep, 1/math.Sqrt(float64(iter+1)))
			for i := range scales {
				rate := float64(batchAccepts[i]) / adaptBatch
				if rate > targetAcceptance {
					scales[i] *= math.Exp(delta)
				} else {
					scales[i] *= math.Exp(-delta)
				}
				batchAccepts[i] = 0
			}
		}

		if !warming {
			draw := make([]float64, dim)
			copy(draw, x)
			res.Draws = append(res.Draws, draw)
		}
	}

	if proposed > 0 {
		res.AcceptanceRate = float64(accepted) / float64(proposed)
	}
	res.Completed = true
	res.Elapsed = time.Since(start)
	return res
}
