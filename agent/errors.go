package agent

import "errors"

var (
	// ErrLimitExceeded is returned by CreateAgent when the active agent
	// count is already at maxAgents.
	ErrLimitExceeded = errors.New("agent: limit exceeded")
	// ErrTemplateNotFound is returned by CreateAgent for an unknown
	// template name.
	ErrTemplateNotFound = errors.New("agent: template not found")
	// ErrNotFound is returned by operations addressing an unknown agent id.
	ErrNotFound = errors.New("agent: not found")
	// ErrInvalidTransition is returned when an operation is attempted from
	// a status that does not allow it.
	ErrInvalidTransition = errors.New("agent: invalid status transition")
	// ErrPoolNotFound is returned by pool operations on an unknown pool id.
	ErrPoolNotFound = errors.New("agent: pool not found")
	// ErrValidation is returned when a caller-supplied value fails a
	// validation check (a Validation-class error per §7: surfaced to the
	// caller, never retried).
	ErrValidation = errors.New("agent: validation failed")
)
