package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrShapeMismatch  = errors.New("dataset shape mismatch")
	ErrUnorderedIndex = errors.New("time series index not strictly increasing")
	ErrUnknownColumn  = errors.New("unknown column")
)
