package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if BIO610B_CONFIG is set
//  3. env (prefix BIO610B_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("BIO610B_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: BIO610B_MODEL, BIO610B_CHAINS, ...
	// Map env keys like BIO610B_MISSING_RATE -> missing_rate (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("BIO610B_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "bio610b_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Model {
	case "ar1", "mixture":
	default:
		return fmt.Errorf("%w: model %q (want ar1 or mixture)", ErrInvalidConfig, c.Model)
	}
	switch c.Mode {
	case "sample", "optimize":
	default:
		return fmt.Errorf("%w: mode %q (want sample or optimize)", ErrInvalidConfig, c.Mode)
	}
	if c.Trials < 1 {
		return fmt.Errorf("%w: trials must be positive", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	if c.Observations < 1 {
		return fmt.Errorf("%w: observations must be positive", ErrInvalidConfig)
	}
	if c.Model == "mixture" && (c.Features < 1 || c.Groups < 1) {
		return fmt.Errorf("%w: features and groups must be positive", ErrInvalidConfig)
	}
	if c.MissingRate < 0 || c.MissingRate >= 1 {
		return fmt.Errorf("%w: missing_rate %g outside [0,1)", ErrInvalidConfig, c.MissingRate)
	}
	if c.Chains < 1 || c.Iterations < 1 || c.Warmup < 0 {
		return fmt.Errorf("%w: chains and iterations must be positive, warmup nonnegative", ErrInvalidConfig)
	}
	if c.MaxOptIterations < 1 || c.Tolerance <= 0 {
		return fmt.Errorf("%w: optimizer budget and tolerance must be positive", ErrInvalidConfig)
	}
	if c.NominalInterval <= 0 || c.NominalInterval >= 1 {
		return fmt.Errorf("%w: nominal_interval %g outside (0,1)", ErrInvalidConfig, c.NominalInterval)
	}
	if c.RhatThreshold <= 1 {
		return fmt.Errorf("%w: rhat_threshold must exceed 1", ErrInvalidConfig)
	}
	return nil
}
