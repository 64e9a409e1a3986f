package sampler

// Default chain configuration constants.
const (
	defaultIterations   = 2000
	defaultWarmup       = 1000
	defaultInitialScale = 0.5

	// seedMix decorrelates the two PCG seed words.
	seedMix = 0x9e3779b97f4a7c15
)

// Option applies a configuration option to a chain run.
type Option func(*config)

// WithIterations sets the number of retained (post-warmup) iterations.
func WithIterations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithWarmup sets the number of discarded adaptation iterations.
func WithWarmup(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.warmup = n
		}
	}
}

// WithSeed sets the chain's random stream seed.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// WithID tags the chain identity carried on the result.
func WithID(id int) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithInitialScale sets the starting proposal standard deviation.
func WithInitialScale(s float64) Option {
	return func(c *config) {
		if s > 0 {
			c.initialScale = s
		}
	}
}

type config struct {
	iterations   int
	warmup       int
	seed         uint64
	id           int
	initialScale float64
}

func newConfig(opts ...Option) *config {
	c := &config{
		iterations:   defaultIterations,
		warmup:       defaultWarmup,
		seed:         1,
		initialScale: defaultInitialScale,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
