package tabular

import "errors"

// Sentinel kinds for tabular file errors.
var (
	// ErrNoHeader means the input had no header row to name columns.
	ErrNoHeader = errors.New("missing header row")

	// ErrBadRecord means a data row could not be parsed against the header.
	ErrBadRecord = errors.New("malformed record")

	// ErrUnknownColumn means a configured column name is not in the header.
	ErrUnknownColumn = errors.New("unknown column")
)
