package network

import "errors"

var (
	ErrInvalidDescriptor = errors.New("invalid vertex descriptor")
	ErrUnknownFeature    = errors.New("unknown feature")
	ErrCycleDetected     = errors.New("cycle detected")
	ErrInvalidID         = errors.New("invalid feature id")
	ErrUnknownSortOrder  = errors.New("unknown sort order")
)
