// Package lifecycle implements the visa state machine: stage
// advancement, expense recording, sale, cancellation, replacement and
// arrival verification. Functions here validate preconditions and
// mutate the entity; persistence belongs to the callers.
package lifecycle

import "errors"

// Precondition violations (HTTP 400 at the route layer).
var (
	ErrWrongStage               = errors.New("visa is not in the requested stage")
	ErrStageANeedsExpense       = errors.New("stage أ requires at least one recorded expense")
	ErrDeadlinePassed           = errors.New("visa deadline has passed")
	ErrNotForSale               = errors.New("visa is not available for sale")
	ErrAlreadySold              = errors.New("a sold visa cannot be cancelled")
	ErrAlreadyReplaced          = errors.New("visa has already been replaced")
	ErrReplacementWindowExpired = errors.New("replacement window of 30 days has expired")
	ErrArrivalIneligible        = errors.New("visa is not eligible for arrival verification")
	ErrArrivalInFuture          = errors.New("arrival date cannot be in the future")
	ErrArrivalBeforeCreation    = errors.New("arrival date cannot precede visa creation")
)

// Validation failures (malformed expense fields).
var (
	ErrInvalidAmount       = errors.New("expense amount must be a positive number")
	ErrEmptyDescription    = errors.New("expense description is required")
	ErrInvalidExpenseStage = errors.New("invalid expense stage")
)
