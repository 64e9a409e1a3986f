package model

import "errors"

// Sentinel kinds for model specification errors.
var (
	// ErrInvalidSpec marks a specification with malformed or undeclared
	// parameter constraints. Fatal: raised at fitter construction.
	ErrInvalidSpec = errors.New("invalid model specification")

	// ErrDimensionMismatch marks data whose shape disagrees with the
	// declared model dimensions. Fatal: raised at the fitter boundary.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
