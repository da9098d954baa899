package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrNoSkillMatched - no registered skill scored above zero (answer with a fallback, never fatal)
	ErrNoSkillMatched = errors.New("no skill matched")

	// ErrSkillFailure - a skill reported failure; the reason is surfaced verbatim
	ErrSkillFailure = errors.New("skill failure")

	// ErrDuplicateSkillName - a skill name was registered twice (programming error at startup)
	ErrDuplicateSkillName = errors.New("duplicate skill name")

	// ErrRegistrySealed - registration attempted after the registry was sealed
	ErrRegistrySealed = errors.New("registry sealed")

	// ErrAlreadyDecided - a decision arrived for an approval that is already resolved (no-op, never retried)
	ErrAlreadyDecided = errors.New("approval already decided")

	// ErrNotPrompted - a decision arrived for an approval still held back by quiet hours
	ErrNotPrompted = errors.New("approval not prompted")

	// ErrApprovalExpired - the approval outlived its ttl and was declined on the user's behalf
	ErrApprovalExpired = errors.New("approval expired")

	// ErrDuplicateEvent - duplicate inbound message detected
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrInvalidInput - invalid input
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrConflict - conflicting concurrent update
	ErrConflict = errors.New("conflict")

	// ErrTransient - transient error (store, network, embedding provider)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
