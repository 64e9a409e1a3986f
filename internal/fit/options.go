package fit

import (
	"github.com/sclaridg/bio-610B/pkg/logger"
)

// Default fitter configuration constants.
const (
	defaultChains        = 4
	defaultIterations    = 2000
	defaultWarmup        = 1000
	defaultMaxOptIter    = 5000
	defaultTolerance     = 1e-8
	defaultSeed          = 1
	chainSeedStride      = 0x9e3779b9
)

// Option applies a configuration option to the Fitter.
type Option func(*Fitter)

// WithChains sets the number of independent sampling chains.
func WithChains(n int) Option {
	return func(f *Fitter) {
		if n > 0 {
			f.chains = n
		}
	}
}

// WithIterations sets the retained iterations per chain.
func WithIterations(n int) Option {
	return func(f *Fitter) {
		if n > 0 {
			f.iterations = n
		}
	}
}

// WithWarmup sets the discarded warmup iterations per chain.
func WithWarmup(n int) Option {
	return func(f *Fitter) {
		if n >= 0 {
			f.warmup = n
		}
	}
}

// WithSeed sets the base seed; chain c derives its own stream from it.
func WithSeed(seed uint64) Option {
	return func(f *Fitter) {
		f.seed = seed
	}
}

// WithMaxOptimizerIterations bounds the optimize-mode iteration budget.
func WithMaxOptimizerIterations(n int) Option {
	return func(f *Fitter) {
		if n > 0 {
			f.maxOptIterations = n
		}
	}
}

// WithTolerance sets the optimize-mode convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(f *Fitter) {
		if tol > 0 {
			f.tolerance = tol
		}
	}
}

// WithLogger sets a custom logger for the fitter.
func WithLogger(l logger.Logger) Option {
	return func(f *Fitter) {
		if l != nil {
			f.log = l
		}
	}
}
