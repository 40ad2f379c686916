package domain

import "errors"

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrStoreUnavailable     = errors.New("store unavailable")

	// Non-fatal kinds. These are logged, never returned from a mutation.
	ErrAuditAnomaly  = errors.New("audit anomaly")
	ErrReaperFailure = errors.New("reaper failure")
)
