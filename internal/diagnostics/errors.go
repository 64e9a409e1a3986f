package diagnostics

import "errors"

// Sentinel kinds for reporter errors.
var (
	// ErrNoCompletedChains means every chain was cancelled before finishing,
	// so no between-chain statistic can be computed.
	ErrNoCompletedChains = errors.New("no completed chains to summarize")

	// ErrShapeMismatch means two component matrices cannot be matched
	// because their shapes disagree.
	ErrShapeMismatch = errors.New("component shape mismatch")

	// ErrUnknownParameter means a named parameter is not present in the
	// fit's declarations.
	ErrUnknownParameter = errors.New("unknown parameter")
)
