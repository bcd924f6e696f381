package models

import "errors"

// Error taxonomy shared by the core components. NotFound and
// InvalidOperation are surfaced to callers and never fatal;
// ValidationFailed rejects an operation before any mutation.
var (
	ErrNodeNotFound           = errors.New("node not found")
	ErrPredictionNotFound     = errors.New("prediction not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrValidationFailed       = errors.New("validation failed")

	ErrAlreadyRunning = errors.New("simulation already running")
	ErrNotRunning     = errors.New("simulation not running")
	ErrNotStopped     = errors.New("simulation must be stopped")
)
