// Package fit produces posterior samples or point estimates of unknown
// parameters from observed data and a validated model specification.
// Structural errors (bad dimensions, undeclared constraints) fail fast at
// construction; statistical quality issues (non-convergence) are carried
// on the result as warnings, never raised as crashes.
package fit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
	"github.com/sclaridg/bio-610B/internal/fit/optimizer"
	"github.com/sclaridg/bio-610B/internal/fit/sampler"
	"github.com/sclaridg/bio-610B/pkg/logger"
	"github.com/sclaridg/bio-610B/pkg/metrics"
)

// Mode selects how the fitter explores the posterior.
type Mode string

// Fitting modes.
const (
	ModeSample   Mode = "sample"
	ModeOptimize Mode = "optimize"
)

// Chain holds one sampling chain's retained draws in constrained space,
// tagged by chain identity. An incomplete chain was cancelled mid-run;
// its draws must not enter posterior summaries.
type Chain struct {
	ID             int
	Seed           uint64
	Draws          [][]float64
	AcceptanceRate float64
	Completed      bool
	Elapsed        time.Duration
}

// Result is the fitter's output, consumed read-only by the reporter.
type Result struct {
	RunID string
	Model string
	Mode  Mode

	Decls []model.Decl
	Names []string

	// Sample mode.
	Chains     []Chain
	Warmup     int
	Iterations int

	// Optimize mode.
	Point         param.Set
	Objective     float64
	OptIterations int
	Converged     bool

	// Warning carries non-fatal quality issues such as ErrNotConverged.
	Warning error

	Elapsed time.Duration
}

// CompletedChains returns the chains that ran to completion.
func (r *Result) CompletedChains() []Chain {
	var out []Chain
	for _, c := range r.Chains {
		if c.Completed {
			out = append(out, c)
		}
	}
	return out
}

// selfOptimizer is implemented by specs that carry their own specialized
// deterministic search (e.g. multiplicative updates for factorizations).
type selfOptimizer interface {
	OptimizeSelf(ctx context.Context, data *dataset.Dataset, maxIter int, tol float64, rng *rand.Rand) (param.Set, float64, int, bool, error)
}

// Fitter binds a model specification to a dataset. Construction validates
// the declarations and the data shape; a constructed Fitter can run both
// modes repeatedly.
type Fitter struct {
	spec  model.Spec
	data  *dataset.Dataset
	decls []model.Decl
	names []string

	chains           int
	iterations       int
	warmup           int
	maxOptIterations int
	tolerance        float64
	seed             uint64

	log logger.Logger
}

// New constructs a Fitter, failing fast on dimension mismatches, malformed
// declarations, or an initial point that violates its declared support.
func New(spec model.Spec, data *dataset.Dataset, opts ...Option) (*Fitter, error) {
	decls, err := spec.Declarations(data)
	if err != nil {
		return nil, err
	}
	if err := model.CheckDeclarations(decls); err != nil {
		return nil, err
	}

	f := &Fitter{
		spec:             spec,
		data:             data,
		decls:            decls,
		names:            model.FlattenNames(decls),
		chains:           defaultChains,
		iterations:       defaultIterations,
		warmup:           defaultWarmup,
		maxOptIterations: defaultMaxOptIter,
		tolerance:        defaultTolerance,
		seed:             defaultSeed,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("fit")
	}

	init, err := spec.Initial(data, nil)
	if err != nil {
		return nil, err
	}
	if err := checkSupport(decls, init); err != nil {
		return nil, err
	}
	return f, nil
}

// Names returns the flattened parameter names in declaration order.
func (f *Fitter) Names() []string { return f.names }

// Decls returns the validated parameter declarations.
func (f *Fitter) Decls() []model.Decl { return f.decls }

// Sample runs f.chains independent Metropolis chains concurrently and
// assembles their retained draws. Chains share no mutable state; the only
// join point is the barrier before the result is assembled. On
// cancellation the partial chains are returned marked incomplete together
// with the context error.
func (f *Fitter) Sample(ctx context.Context) (*Result, error) {
	start := time.Now()
	for _, d := range f.decls {
		if d.Constraint == model.UnitSimplex || d.Constraint == model.Covariance {
			return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedConstraint, d.Name, d.Constraint)
		}
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Model:      f.spec.Name(),
		Mode:       ModeSample,
		Decls:      f.decls,
		Names:      f.names,
		Warmup:     f.warmup,
		Iterations: f.iterations,
		Chains:     make([]Chain, f.chains),
	}

	metrics.UpdateActiveChains(f.chains)
	defer metrics.UpdateActiveChains(0)

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < f.chains; c++ {
		g.Go(func() error {
			chainSeed := f.seed + uint64(c+1)*chainSeedStride
			rng := rand.New(rand.NewPCG(chainSeed, chainSeed))

			init, err := f.spec.Initial(f.data, rng)
			if err != nil {
				return err
			}
			vec, err := model.Flatten(f.decls, init)
			if err != nil {
				return err
			}
			working := toWorking(f.decls, vec)

			target := func(z []float64) float64 {
				x := fromWorking(f.decls, z)
				set, err := model.Unflatten(f.decls, x)
				if err != nil {
					return math.Inf(-1)
				}
				return f.spec.LogPosterior(f.data, set) + logJacobian(f.decls, z)
			}

			out := sampler.Run(gctx, target, working,
				sampler.WithID(c),
				sampler.WithSeed(chainSeed),
				sampler.WithIterations(f.iterations),
				sampler.WithWarmup(f.warmup),
			)

			// Back-transform retained draws to constrained space.
			for i, draw := range out.Draws {
				out.Draws[i] = fromWorking(f.decls, draw)
			}
			res.Chains[c] = Chain{
				ID:             out.ID,
				Seed:           out.Seed,
				Draws:          out.Draws,
				AcceptanceRate: out.AcceptanceRate,
				Completed:      out.Completed,
				Elapsed:        out.Elapsed,
			}

			metrics.ObserveChainDuration(out.Elapsed.Seconds())
			metrics.RecordSamplerIterations(f.warmup + len(out.Draws))
			if out.Completed {
				metrics.RecordChainCompleted()
				metrics.ObserveAcceptanceRate(out.AcceptanceRate)
			} else {
				metrics.RecordChainIncomplete()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		f.log.Warn(ctx, "sampling cancelled; chains are incomplete",
			logger.String("run_id", res.RunID))
		return res, err
	}
	f.log.Debug(ctx, "sampling finished",
		logger.String("run_id", res.RunID),
		logger.Int("chains", f.chains),
		logger.Int("iterations", f.iterations),
	)
	return res, nil
}

// Optimize performs a deterministic local search to a stationary point of
// the log posterior. A miss of the tolerance within the budget is carried
// as a warning on the result, not returned as an error.
func (f *Fitter) Optimize(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID: uuid.NewString(),
		Model: f.spec.Name(),
		Mode:  ModeOptimize,
		Decls: f.decls,
		Names: f.names,
	}
	metrics.RecordOptimizerRun()

	rng := rand.New(rand.NewPCG(f.seed, f.seed))
	if so, ok := f.spec.(selfOptimizer); ok {
		point, objective, iters, converged, err := so.OptimizeSelf(ctx, f.data, f.maxOptIterations, f.tolerance, rng)
		if err != nil {
			return nil, err
		}
		res.Point = point
		res.Objective = objective
		res.OptIterations = iters
		res.Converged = converged
	} else {
		init, err := f.spec.Initial(f.data, rng)
		if err != nil {
			return nil, err
		}
		vec, err := model.Flatten(f.decls, init)
		if err != nil {
			return nil, err
		}
		target := func(z []float64) float64 {
			set, err := model.Unflatten(f.decls, fromWorking(f.decls, z))
			if err != nil {
				return math.Inf(-1)
			}
			return f.spec.LogPosterior(f.data, set)
		}
		out, err := optimizer.Maximize(ctx, target, toWorking(f.decls, vec),
			optimizer.WithMaxIterations(f.maxOptIterations),
			optimizer.WithTolerance(f.tolerance),
		)
		if err != nil {
			return nil, err
		}
		point, err := model.Unflatten(f.decls, fromWorking(f.decls, out.X))
		if err != nil {
			return nil, err
		}
		res.Point = point
		res.Objective = out.Objective
		res.OptIterations = out.Iterations
		res.Converged = out.Converged
	}

	metrics.ObserveOptimizerIterations(res.OptIterations)
	if !res.Converged {
		res.Warning = ErrNotConverged
		metrics.RecordOptimizerNonConverged()
		f.log.Warn(ctx, "optimization missed tolerance",
			logger.String("run_id", res.RunID),
			logger.Int("iterations", res.OptIterations),
		)
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// checkSupport verifies that a parameter set satisfies the declared
// constraints: strictly positive scales, simplex rows, SPD covariances.
func checkSupport(decls []model.Decl, s param.Set) error {
	for _, d := range decls {
		v, ok := s[d.Name]
		if !ok {
			return fmt.Errorf("%w: %s", param.ErrMissingParameter, d.Name)
		}
		switch d.Constraint {
		case model.Positive:
			switch v.Kind() {
			case param.KindScalar:
				if err := param.CheckPositive(d.Name, v.Scalar()); err != nil {
					return err
				}
			default:
				m := valueSlots(v)
				for _, x := range m {
					if err := param.CheckPositive(d.Name, x); err != nil {
						return err
					}
				}
			}
		case model.UnitSimplex:
			m, err := s.Matrix(d.Name)
			if err != nil {
				return err
			}
			r, _ := m.Dims()
			for i := 0; i < r; i++ {
				row := make([]float64, d.Cols)
				for j := range row {
					row[j] = m.At(i, j)
				}
				if err := param.CheckSimplex(row, 1e-9); err != nil {
					return err
				}
			}
		case model.Covariance:
			m, err := s.Matrix(d.Name)
			if err != nil {
				return err
			}
			if err := param.CheckCovariance(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func valueSlots(v param.Value) []float64 {
	switch v.Kind() {
	case param.KindScalar:
		return []float64{v.Scalar()}
	case param.KindVector:
		return v.Vector()
	case param.KindMatrix:
		m := v.Matrix()
		r, c := m.Dims()
		out := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out = append(out, m.At(i, j))
			}
		}
		return out
	default:
		return nil
	}
}

// toWorking maps constrained values to the sampler's unconstrained
// working space: Positive slots move to the log scale.
func toWorking(decls []model.Decl, vec []float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)
	at := 0
	for _, d := range decls {
		n := d.Size()
		if d.Constraint == model.Positive {
			for i := at; i < at+n; i++ {
				out[i] = math.Log(vec[i])
			}
		}
		at += n
	}
	return out
}

// fromWorking inverts toWorking.
func fromWorking(decls []model.Decl, vec []float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)
	at := 0
	for _, d := range decls {
		n := d.Size()
		if d.Constraint == model.Positive {
			for i := at; i < at+n; i++ {
				out[i] = math.Exp(vec[i])
			}
		}
		at += n
	}
	return out
}

// logJacobian is the log absolute determinant of the working-to-
// constrained map: the sum of the working values of Positive slots.
func logJacobian(decls []model.Decl, working []float64) float64 {
	lj := 0.0
	at := 0
	for _, d := range decls {
		n := d.Size()
		if d.Constraint == model.Positive {
			for i := at; i < at+n; i++ {
				lj += working[i]
			}
		}
		at += n
	}
	return lj
}
