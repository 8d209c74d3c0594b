package services

import "errors"

// Domain errors are reported synchronously and never retried internally.
var (
	ErrNotFound = errors.New("not found")

	// Ledger
	ErrInvalidAmount        = errors.New("amount must be non-negative")
	ErrInsufficientFunds    = errors.New("insufficient balance")
	ErrDuplicateTransaction = errors.New("transaction already recorded for this source")

	// State-machine guards
	ErrAlreadyActive   = errors.New("already active")
	ErrAlreadyClosed   = errors.New("session already closed")
	ErrAlreadyClaimed  = errors.New("reward already claimed")
	ErrAlreadyReferred = errors.New("referral code already used")
	ErrNotCompleted    = errors.New("mission not completed")

	// Business-rule rejection
	ErrInvalidCode        = errors.New("invalid referral code")
	ErrSelfReferral       = errors.New("cannot refer yourself")
	ErrMissionInactive    = errors.New("mission is not active")
	ErrPremiumRequired    = errors.New("premium membership required")
	ErrNoServersAvailable = errors.New("no servers available")
	ErrInvalidTracker     = errors.New("tracker domain is required")

	// ErrSettlementFailed marks a session close that rolled back after the
	// state checks passed. The session stays active and the call may be retried.
	ErrSettlementFailed = errors.New("session settlement failed, retry")
)
