// Package optimizer implements a deterministic derivative-free local
// search (compass/pattern search) used by the fitter's optimize mode to
// climb a log-posterior to a stationary point.
package optimizer

import (
	"context"
	"math"
)

// Default search configuration constants.
const (
	defaultMaxIterations = 2000
	defaultTolerance     = 1e-8
	defaultInitialStep   = 0.5
	stepShrink           = 0.5
)

// Result reports the outcome of a local search.
type Result struct {
	// X is the best point found, in the caller's working space.
	X []float64
	// Objective is the target value at X.
	Objective float64
	// Iterations is the number of sweeps performed.
	Iterations int
	// Converged reports whether the step size fell below the tolerance
	// within the iteration budget. A false value is a reportable outcome,
	// not a crash: the caller decides whether to retry.
	Converged bool
}

// Option applies a configuration option to a search.
type Option func(*config)

// WithMaxIterations bounds the number of coordinate sweeps.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithTolerance sets the convergence step-size tolerance.
func WithTolerance(tol float64) Option {
	return func(c *config) {
		if tol > 0 {
			c.tolerance = tol
		}
	}
}

// WithInitialStep sets the starting step size per coordinate.
func WithInitialStep(s float64) Option {
	return func(c *config) {
		if s > 0 {
			c.initialStep = s
		}
	}
}

type config struct {
	maxIterations int
	tolerance     float64
	initialStep   float64
}

func newConfig(opts ...Option) *config {
	c := &config{
		maxIterations: defaultMaxIterations,
		tolerance:     defaultTolerance,
		initialStep:   defaultInitialStep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Maximize climbs target from init by compass search: each sweep probes
// +/- step along every coordinate and keeps improvements; when a sweep
// yields none, all steps shrink. The search is fully deterministic.
// Cancellation is honored between sweeps and surfaces as ctx.Err().
func Maximize(ctx context.Context, target func([]float64) float64, init []float64, opts ...Option) (Result, error) {
	cfg := newConfig(opts...)
	dim := len(init)

	x := make([]float64, dim)
	copy(x, init)
	best := target(x)
	if math.IsNaN(best) {
		best = math.Inf(-1)
	}

	steps := make([]float64, dim)
	for i := range steps {
		steps[i] = cfg.initialStep
	}

	res := Result{}
	for iter := 0; iter < cfg.maxIterations; iter++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Iterations = iter + 1

		improved := false
		for i := 0; i < dim; i++ {
			old := x[i]
			for _, dir := range [2]float64{1, -1} {
				x[i] = old + dir*steps[i]
				v := target(x)
				if !math.IsNaN(v) && v > best {
					best = v
					improved = true
					old = x[i]
					break
				}
				x[i] = old
			}
		}

		if !improved {
			maxStep := 0.0
			for i := range steps {
				steps[i] *= stepShrink
				maxStep = math.Max(maxStep, steps[i])
			}
			if maxStep < cfg.tolerance {
				res.Converged = true
				break
			}
		}
	}

	res.X = x
	res.Objective = best
	return res, nil
}
