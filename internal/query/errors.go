package query

import "errors"

// Parse errors. All grammar failures wrap one of these sentinels so callers
// can classify them with errors.Is before any compilation or network activity
// takes place.
var (
	// ErrInvalidRange indicates an unparsable range expression: bad scalar
	// bounds, a missing operator, or a fully-bounded interval with lo > hi.
	ErrInvalidRange = errors.New("invalid range")

	// ErrMixedGroup indicates a comma-separated argument that mixes range
	// and non-range items for the same field.
	ErrMixedGroup = errors.New("mixed range and value items")

	// ErrInvalidValue indicates a malformed scalar, order key, or change
	// query term.
	ErrInvalidValue = errors.New("invalid value")
)
