package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures shared by the backend client,
// the challenge session and the stores.
// -----------------------------------------------------------------------------

// Task errors
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidMode  = errors.New("invalid mission")
)

// Suggestion errors
var (
	ErrScoreOutOfRange = errors.New("score out of range")
)
