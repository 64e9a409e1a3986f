package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sclaridg/bio-610B/internal/adapters/export"
	app "github.com/sclaridg/bio-610B/internal/app"
	"github.com/sclaridg/bio-610B/internal/config"
	"github.com/sclaridg/bio-610B/internal/fit"
	"github.com/sclaridg/bio-610B/pkg/logger"
	"github.com/sclaridg/bio-610B/pkg/metrics"
)

// HTTP server timeout constants for the metrics endpoint.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Optional Prometheus endpoint for long experiments.
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			loggerInstance.Info(ctx, "serving metrics", logger.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				loggerInstance.Error(ctx, "metrics server failed", logger.Error(err))
			}
		}()
		defer srv.Close()
	}

	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithModel(cfg.Model),
		app.WithMode(fit.Mode(cfg.Mode)),
		app.WithTrials(cfg.Trials),
		app.WithConcurrency(cfg.Concurrency),
		app.WithObservations(cfg.Observations),
		app.WithShape(cfg.Features, cfg.Groups),
		app.WithMissingRate(cfg.MissingRate),
		app.WithSampling(cfg.Chains, cfg.Iterations, cfg.Warmup),
		app.WithOptimization(cfg.MaxOptIterations, cfg.Tolerance),
		app.WithSeed(cfg.Seed),
		app.WithNominalInterval(cfg.NominalInterval),
		app.WithRhatThreshold(cfg.RhatThreshold),
		app.WithTruth(cfg.Truth),
		app.WithMixtureSimulation(cfg.Concentration, cfg.Exposure),
	)

	report, err := svc.Run(ctx)
	if err != nil {
		loggerInstance.Error(ctx, "experiment failed", logger.Error(err))
		os.Exit(1)
	}

	if cfg.Output != "" {
		if err := export.WriteFile(cfg.Output, report); err != nil {
			loggerInstance.Error(ctx, "writing report failed",
				logger.String("output", cfg.Output), logger.Error(err))
			os.Exit(1)
		}
		loggerInstance.Info(ctx, "report written", logger.String("output", cfg.Output))
		return
	}
	if err := export.Write(os.Stdout, report); err != nil {
		loggerInstance.Error(ctx, "writing report failed", logger.Error(err))
		os.Exit(1)
	}
}
