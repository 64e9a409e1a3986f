package fit

import "errors"

// Sentinel kinds for fitting errors.
var (
	// ErrNotConverged marks a search that missed its tolerance within the
	// iteration budget. Non-fatal: it travels as a warning on the result
	// alongside whatever partial estimate was reached, and the caller
	// decides whether to retry with a different initialization.
	ErrNotConverged = errors.New("convergence tolerance not met")

	// ErrUnsupportedConstraint marks a declaration the sampling kernel
	// cannot traverse; such models fit via optimize mode instead.
	ErrUnsupportedConstraint = errors.New("constraint not supported by sampler")
)
