package state

import "errors"

// Errors for stored state transitions. Replay errors are checked first
// on every entry path so a resubmission is rejected before any
// substantive validation runs.
var (
	ErrLockAlreadyExists        = errors.New("lock already exists for intent")
	ErrLockNotFound             = errors.New("lock not found")
	ErrLockNotActive            = errors.New("lock is not active")
	ErrLockNotExpired           = errors.New("lock has not expired")
	ErrLockExpired              = errors.New("lock has expired")
	ErrLockMismatch             = errors.New("lock fields do not match expectation")
	ErrUnauthorizedCanceller    = errors.New("caller may not cancel this lock")
	ErrInsufficientHubLiquidity = errors.New("insufficient hub liquidity after reservations")

	ErrIntentAlreadyFilled     = errors.New("intent already filled")
	ErrFinalizationReplay      = errors.New("finalization key already used")
	ErrPendingNotFound         = errors.New("pending deposit not found")
	ErrPendingAlreadyFinalized = errors.New("pending deposit already finalized")
)
