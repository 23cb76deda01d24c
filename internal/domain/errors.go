package domain

import "errors"

var (
	// ErrPhaseNotFound is returned when a phase id does not resolve.
	ErrPhaseNotFound = errors.New("phase not found")
	// ErrProgressNotFound is returned when no progress record exists for a (user, phase) pair.
	ErrProgressNotFound = errors.New("progress record not found")
	// ErrAlreadyCompleted rejects a second finalize for the same (user, phase) pair.
	ErrAlreadyCompleted = errors.New("phase already completed for user")
	// ErrInvalidInput rejects malformed indices or missing required fields before any mutation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLevelingUnavailable marks a degraded leveling call; callers substitute defaults.
	ErrLevelingUnavailable = errors.New("leveling service unavailable")
)
