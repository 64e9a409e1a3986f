// Package service orchestrates the experiment workflow: repeated
// simulate-fit-summarize trials against a known ground truth, with the
// coverage rate across trials as the calibration metric.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/sclaridg/bio-610B/internal/adapters/export"
	"github.com/sclaridg/bio-610B/internal/diagnostics"
	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	"github.com/sclaridg/bio-610B/internal/domain/model"
	"github.com/sclaridg/bio-610B/internal/domain/param"
	"github.com/sclaridg/bio-610B/internal/fit"
	"github.com/sclaridg/bio-610B/internal/simulate"
	"github.com/sclaridg/bio-610B/pkg/logger"
	"github.com/sclaridg/bio-610B/pkg/metrics"
)

// trialSeedStride separates the random streams of consecutive trials.
const trialSeedStride = 0x9e3779b97f4a7c15

// Known model names.
const (
	ModelAR1     = "ar1"
	ModelMixture = "mixture"
)

// ErrUnknownModel marks a model name the service cannot run.
var ErrUnknownModel = errors.New("unknown model")

// Service runs one experiment: a batch of independent trials, each
// simulating a dataset from ground truth, fitting it, and scoring the fit
// against the truth. Trials share no mutable state and run concurrently
// up to the configured limit.
type Service struct {
	modelName string
	mode      fit.Mode

	trials      int
	concurrency int

	observations int
	features     int
	groups       int
	missingRate  float64

	chains           int
	iterations       int
	warmup           int
	maxOptIterations int
	tolerance        float64
	seed             uint64

	nominalInterval float64
	rhatThreshold   float64

	truth         map[string]float64
	concentration float64
	exposure      float64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithModel selects the generative model to exercise.
func WithModel(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.modelName = name
		}
	}
}

// WithMode selects the fitting mode.
func WithMode(mode fit.Mode) Option {
	return func(s *Service) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// WithTrials sets the number of simulate-fit-summarize rounds.
func WithTrials(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.trials = n
		}
	}
}

// WithConcurrency bounds how many trials run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithObservations sets the simulated observation count per trial.
func WithObservations(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.observations = n
		}
	}
}

// WithShape sets the mixture dimensions: features per unit and latent groups.
func WithShape(features, groups int) Option {
	return func(s *Service) {
		if features > 0 {
			s.features = features
		}
		if groups > 0 {
			s.groups = groups
		}
	}
}

// WithMissingRate masks roughly this fraction of observations as
// unobserved after simulation.
func WithMissingRate(rate float64) Option {
	return func(s *Service) {
		if rate >= 0 && rate < 1 {
			s.missingRate = rate
		}
	}
}

// WithSampling configures sample mode: chain count, retained iterations,
// and warmup per chain.
func WithSampling(chains, iterations, warmup int) Option {
	return func(s *Service) {
		if chains > 0 {
			s.chains = chains
		}
		if iterations > 0 {
			s.iterations = iterations
		}
		if warmup >= 0 {
			s.warmup = warmup
		}
	}
}

// WithOptimization configures optimize mode: iteration budget and tolerance.
func WithOptimization(maxIterations int, tolerance float64) Option {
	return func(s *Service) {
		if maxIterations > 0 {
			s.maxOptIterations = maxIterations
		}
		if tolerance > 0 {
			s.tolerance = tolerance
		}
	}
}

// WithSeed sets the base seed; each trial derives its own stream from it.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithNominalInterval sets the reporter's credible-interval mass.
func WithNominalInterval(p float64) Option {
	return func(s *Service) {
		if p > 0 && p < 1 {
			s.nominalInterval = p
		}
	}
}

// WithRhatThreshold sets the reporter's convergence threshold.
func WithRhatThreshold(t float64) Option {
	return func(s *Service) {
		if t > 1 {
			s.rhatThreshold = t
		}
	}
}

// WithTruth overrides scalar ground-truth parameters by name.
func WithTruth(truth map[string]float64) Option {
	return func(s *Service) {
		if len(truth) > 0 {
			s.truth = truth
		}
	}
}

// WithMixtureSimulation sets the Dirichlet concentration of the simulated
// proportions and the mean per-unit exposure.
func WithMixtureSimulation(concentration, exposure float64) Option {
	return func(s *Service) {
		if concentration > 0 {
			s.concentration = concentration
		}
		if exposure > 0 {
			s.exposure = exposure
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service with defaults: a single sampling trial of the
// autoregressive model.
func New(opts ...Option) *Service {
	s := &Service{
		modelName:        ModelAR1,
		mode:             fit.ModeSample,
		trials:           1,
		concurrency:      runtime.NumCPU(),
		observations:     100,
		features:         40,
		groups:           3,
		chains:           4,
		iterations:       2000,
		warmup:           1000,
		maxOptIterations: 5000,
		tolerance:        1e-8,
		seed:             1,
		nominalInterval:  0.90,
		rhatThreshold:    1.1,
		truth: map[string]float64{
			model.ParamIntercept:  5,
			model.ParamSlope:      0.2,
			model.ParamNoiseSigma: 0.5,
		},
		concentration: 1.0,
		exposure:      50,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Run executes the experiment and assembles the JSON-ready report. A
// failed trial is recorded and counted, not fatal; cancellation aborts
// the whole run.
func (s *Service) Run(ctx context.Context) (*export.Report, error) {
	start := time.Now()
	metrics.RecordExperiment()
	s.logger.Info(ctx, "starting experiment",
		logger.String("model", s.modelName),
		logger.String("mode", string(s.mode)),
		logger.Int("trials", s.trials),
	)

	results := make([]export.TrialReport, s.trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for t := 0; t < s.trials; t++ {
		g.Go(func() error {
			tr, err := s.runTrial(gctx, t)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				metrics.RecordTrialError()
				s.logger.Error(gctx, "trial failed", logger.Int("trial", t), logger.Error(err))
				results[t] = export.TrialReport{Trial: t, Warning: err.Error()}
				return nil
			}
			metrics.RecordTrial()
			results[t] = *tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &export.Report{
		GeneratedAt: time.Now().UTC(),
		Model:       s.modelName,
		Mode:        string(s.mode),
		Seed:        s.seed,
		Trials:      s.trials,
		Seconds:     time.Since(start).Seconds(),
		Results:     results,
	}
	s.aggregate(rep)
	s.logger.Info(ctx, "experiment finished",
		logger.Int("completed", rep.Completed),
		logger.Int("failed", rep.Failed),
		logger.Float64("coverage", rep.Aggregate.Coverage),
		logger.Float64("mean_abs_error", rep.Aggregate.MeanAbsError),
	)
	return rep, nil
}

// runTrial performs one simulate-fit-summarize round.
func (s *Service) runTrial(ctx context.Context, trial int) (*export.TrialReport, error) {
	start := time.Now()
	trialSeed := s.seed + uint64(trial)*trialSeedStride

	spec, data, truth, err := s.simulateTrial(trialSeed)
	if err != nil {
		return nil, err
	}

	fitter, err := fit.New(spec, data,
		fit.WithChains(s.chains),
		fit.WithIterations(s.iterations),
		fit.WithWarmup(s.warmup),
		fit.WithMaxOptimizerIterations(s.maxOptIterations),
		fit.WithTolerance(s.tolerance),
		fit.WithSeed(trialSeed),
		fit.WithLogger(s.logger.Named("fit")),
	)
	if err != nil {
		return nil, err
	}

	var res *fit.Result
	if s.mode == fit.ModeOptimize {
		res, err = fitter.Optimize(ctx)
	} else {
		res, err = fitter.Sample(ctx)
	}
	if err != nil {
		return nil, err
	}

	diagOpts := []diagnostics.Option{
		diagnostics.WithNominalInterval(s.nominalInterval),
		diagnostics.WithRhatThreshold(s.rhatThreshold),
	}
	if s.modelName == ModelMixture {
		diagOpts = append(diagOpts,
			diagnostics.WithExchangeableColumns(model.ParamProportions),
			diagnostics.WithExchangeableRows(model.ParamTemplates),
		)
	}
	sum, err := diagnostics.Summarize(res, truth, diagOpts...)
	if err != nil {
		return nil, err
	}

	tr := &export.TrialReport{
		Trial:   trial,
		RunID:   res.RunID,
		Seconds: time.Since(start).Seconds(),
		Summary: sum,
	}
	if sum.Warning != nil {
		tr.Warning = sum.Warning.Error()
	}
	if s.modelName == ModelMixture && res.Mode == fit.ModeOptimize {
		est, err := res.Point.Matrix(model.ParamProportions)
		if err != nil {
			return nil, err
		}
		truthProps, err := truth.Matrix(model.ParamProportions)
		if err != nil {
			return nil, err
		}
		corr, _, err := diagnostics.MatchedCorrelation(est, truthProps)
		if err != nil {
			return nil, err
		}
		tr.MatchedCorrelation = corr
	}
	return tr, nil
}

// simulateTrial builds the trial's model spec, simulated dataset, and
// ground truth for the configured model.
func (s *Service) simulateTrial(seed uint64) (model.Spec, *dataset.Dataset, param.Set, error) {
	switch s.modelName {
	case ModelAR1:
		truth := param.Set{
			model.ParamIntercept:  param.Scalar(s.truthValue(model.ParamIntercept, 5)),
			model.ParamSlope:      param.Scalar(s.truthValue(model.ParamSlope, 0.2)),
			model.ParamNoiseSigma: param.Scalar(s.truthValue(model.ParamNoiseSigma, 0.5)),
		}
		opts := []simulate.Option{simulate.WithSeed(seed)}
		if s.missingRate > 0 {
			opts = append(opts, simulate.WithMissingIndices(missingIndices(s.observations, s.missingRate)))
		}
		data, err := simulate.AR1(truth, s.observations, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		return model.NewAR1(""), data, truth, nil

	case ModelMixture:
		params := param.Set{
			model.ParamTemplates:        param.Matrix(blockTemplates(s.groups, s.features)),
			simulate.ParamConcentration: param.Vector(constantVector(s.groups, s.concentration)),
			simulate.ParamExposure:      param.Scalar(s.exposure),
		}
		data, truth, err := simulate.Mixture(params, s.observations, simulate.WithSeed(seed))
		if err != nil {
			return nil, nil, nil, err
		}
		return model.NewMixture(s.groups), data, truth, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrUnknownModel, s.modelName)
	}
}

func (s *Service) truthValue(name string, fallback float64) float64 {
	if v, ok := s.truth[name]; ok {
		return v
	}
	return fallback
}

// aggregate pools per-trial summaries into calibration statistics.
func (s *Service) aggregate(rep *export.Report) {
	var (
		coverageSum, maeSum, corrSum float64
		coverageN, maeN, corrN       int
		notConverged                 int
	)
	for _, tr := range rep.Results {
		if tr.Summary == nil {
			rep.Failed++
			continue
		}
		rep.Completed++
		if tr.Summary.HasTruth {
			maeSum += tr.Summary.MeanAbsError
			maeN++
			if tr.Summary.Mode == fit.ModeSample {
				coverageSum += tr.Summary.Coverage
				coverageN++
			}
		}
		if len(tr.Summary.NotConverged) > 0 {
			notConverged++
		}
		if tr.MatchedCorrelation != 0 {
			corrSum += tr.MatchedCorrelation
			corrN++
		}
	}
	if coverageN > 0 {
		rep.Aggregate.Coverage = coverageSum / float64(coverageN)
	}
	if maeN > 0 {
		rep.Aggregate.MeanAbsError = maeSum / float64(maeN)
	}
	if corrN > 0 {
		rep.Aggregate.MatchedCorrelation = corrSum / float64(corrN)
	}
	if rep.Completed > 0 {
		rep.Aggregate.NotConvergedRate = float64(notConverged) / float64(rep.Completed)
	}
}

// missingIndices spreads roughly rate*n masked observations evenly over
// 1..n-1, keeping the initial state observed.
func missingIndices(n int, rate float64) []int {
	step := int(1 / rate)
	if step < 2 {
		step = 2
	}
	var out []int
	for i := step; i < n; i += step {
		out = append(out, i)
	}
	return out
}

// blockTemplates builds well-separated group templates: each group loads
// strongly on its own contiguous block of features.
func blockTemplates(k, p int) *mat.Dense {
	const (
		background = 0.2
		signal     = 5.0
	)
	m := mat.NewDense(k, p, nil)
	block := (p + k - 1) / k
	for g := 0; g < k; g++ {
		for j := 0; j < p; j++ {
			v := background
			if j/block == g {
				v = signal
			}
			m.Set(g, j, v)
		}
	}
	return m
}

func constantVector(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
