package tabular

// Default tabular format constants.
const (
	defaultComma   = ','
	defaultNAToken = "NA"
)

// Option applies a configuration option to a reader or writer.
type Option func(*config)

type config struct {
	comma       rune
	naToken     string
	indexColumn string
}

func newConfig(opts ...Option) *config {
	c := &config{
		comma:   defaultComma,
		naToken: defaultNAToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithComma sets the field delimiter, e.g. '\t' for TSV input.
func WithComma(r rune) Option {
	return func(c *config) {
		if r != 0 {
			c.comma = r
		}
	}
}

// WithNAToken sets the token marking an unobserved cell. Empty cells are
// always treated as unobserved.
func WithNAToken(tok string) Option {
	return func(c *config) {
		if tok != "" {
			c.naToken = tok
		}
	}
}

// WithIndexColumn names the column holding the observation index. Setting
// it marks the dataset as a time series with strictly increasing indices;
// without it rows are treated as exchangeable samples.
func WithIndexColumn(name string) Option {
	return func(c *config) {
		c.indexColumn = name
	}
}
