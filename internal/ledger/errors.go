package ledger

import "errors"

var (
	// ErrInsufficientFunds rejects a debit that would take the balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransition rejects a status change the lifecycle does
	// not allow, including conflicting re-decisions.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNothingToClaim rejects a claim when the source field is zero
	// or negative.
	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrNotFound is returned when the target entity does not exist.
	ErrNotFound = errors.New("not found")
)
