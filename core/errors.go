package core

import "errors"

// Registration and validation failures returned by the consensus manager.
// Callers match with errors.Is; the wrapped message carries the offending
// values.
var (
	ErrStakeTooLow       = errors.New("stake below minimum")
	ErrCapacityReached   = errors.New("maximum validator count reached")
	ErrValidatorNotFound = errors.New("validator not found")
)
