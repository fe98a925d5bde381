package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidRank     = errors.New("rank must be >= 1")
	ErrInvalidPosition = errors.New("store position must be >= 0")
	ErrMissingPath     = errors.New("chunk path is required")
)
