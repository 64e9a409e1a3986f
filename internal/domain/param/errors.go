package param

import "errors"

// Sentinel kinds for parameter errors. These allow errors.Is/As from callers.
var (
	// ErrMissingParameter marks an incomplete parameter set or model
	// specification. Fatal: raised before any computation starts.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrInvalidParameter marks malformed parameter values, e.g. a
	// covariance that is not symmetric positive-definite. Fatal.
	ErrInvalidParameter = errors.New("invalid parameter")
)
