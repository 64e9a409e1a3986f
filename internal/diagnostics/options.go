package diagnostics

// Default reporter configuration constants.
const (
	defaultNominalInterval = 0.90
	defaultRhatThreshold   = 1.1
)

// Option applies a configuration option to the reporter.
type Option func(*config)

type config struct {
	nominalInterval  float64
	rhatThreshold    float64
	exchangeable     string
	exchangeableRows string
}

func newConfig(opts ...Option) *config {
	c := &config{
		nominalInterval: defaultNominalInterval,
		rhatThreshold:   defaultRhatThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithNominalInterval sets the credible-interval mass used for the
// coverage check, e.g. 0.90 for a 5th-95th percentile interval.
func WithNominalInterval(p float64) Option {
	return func(c *config) {
		if p > 0 && p < 1 {
			c.nominalInterval = p
		}
	}
}

// WithRhatThreshold sets the scale-reduction threshold above which a
// parameter is flagged as not yet converged.
func WithRhatThreshold(t float64) Option {
	return func(c *config) {
		if t > 1 {
			c.rhatThreshold = t
		}
	}
}

// WithExchangeableColumns names a matrix parameter whose columns are
// exchangeable latent components. Before the accuracy check, the ground
// truth columns of that parameter are permuted to best match the
// estimate, since raw index alignment is meaningless for such labels.
func WithExchangeableColumns(name string) Option {
	return func(c *config) {
		c.exchangeable = name
	}
}

// WithExchangeableRows names a matrix parameter whose rows are indexed by
// the same latent components as the exchangeable-columns parameter. Its
// truth rows are reordered by the permutation found for the columns.
func WithExchangeableRows(name string) Option {
	return func(c *config) {
		c.exchangeableRows = name
	}
}
