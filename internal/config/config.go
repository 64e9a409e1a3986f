// Package config defines harness configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains one experiment run's configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus listen address, e.g. ":9090".
	// Empty disables the metrics endpoint.
	MetricsAddr string `koanf:"metrics_addr"`

	// Model selects the generative model: ar1 or mixture.
	Model string `koanf:"model"`

	// Mode selects the fitting mode: sample or optimize.
	Mode string `koanf:"mode"`

	// Trials is the number of repeated simulate-fit-summarize rounds.
	Trials int `koanf:"trials"`

	// Concurrency bounds how many trials run at once.
	Concurrency int `koanf:"concurrency"`

	// Observations is the number of simulated observations per trial.
	Observations int `koanf:"observations"`

	// Features and Groups size the mixture model: observations x features
	// counts explained by this many latent groups.
	Features int `koanf:"features"`
	Groups   int `koanf:"groups"`

	// MissingRate is the fraction of observations masked as unobserved
	// after simulation (autoregressive model only).
	MissingRate float64 `koanf:"missing_rate"`

	// Chains, Iterations and Warmup configure sample mode.
	Chains     int `koanf:"chains"`
	Iterations int `koanf:"iterations"`
	Warmup     int `koanf:"warmup"`

	// MaxOptIterations and Tolerance configure optimize mode.
	MaxOptIterations int     `koanf:"max_opt_iterations"`
	Tolerance        float64 `koanf:"tolerance"`

	// Seed is the base pseudo-random seed; trials and chains derive their
	// own streams from it.
	Seed uint64 `koanf:"seed"`

	// NominalInterval and RhatThreshold configure the reporter.
	NominalInterval float64 `koanf:"nominal_interval"`
	RhatThreshold   float64 `koanf:"rhat_threshold"`

	// Truth overrides the scalar ground-truth parameters used for
	// simulation, keyed by parameter name.
	Truth map[string]float64 `koanf:"truth"`

	// Concentration and Exposure configure mixture simulation: the
	// Dirichlet concentration of per-unit proportions and the mean total
	// count per unit.
	Concentration float64 `koanf:"concentration"`
	Exposure      float64 `koanf:"exposure"`

	// Output is the JSON report path. Empty writes to stdout.
	Output string `koanf:"output"`
}

// New creates a Config with defaults: a single sampling trial of the
// autoregressive model at a modest size.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Model:            "ar1",
		Mode:             "sample",
		Trials:           1,
		Concurrency:      runtime.NumCPU(),
		Observations:     100,
		Features:         40,
		Groups:           3,
		Chains:           4,
		Iterations:       2000,
		Warmup:           1000,
		MaxOptIterations: 5000,
		Tolerance:        1e-8,
		Seed:             1,
		NominalInterval:  0.90,
		RhatThreshold:    1.1,
		Truth: map[string]float64{
			"intercept":   5,
			"slope":       0.2,
			"noise_sigma": 0.5,
		},
		Concentration: 1.0,
		Exposure:      50,
	}
}
