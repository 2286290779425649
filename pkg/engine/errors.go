// Package engine implements the workflow instance state machine: starting
// instances, advancing ordered tasks, pausing on approval gates, and
// evaluating conditional branches.
package engine

import "errors"

// Business errors raised by engine operations. Persistence failures are not
// wrapped into these; they propagate as infrastructure faults.
var (
	// ErrForbidden indicates the caller does not own the template, lead or
	// instance it is operating on.
	ErrForbidden = errors.New("caller does not own this resource")

	// ErrActiveInstanceExists indicates an active instance already exists
	// for the template/lead pair.
	ErrActiveInstanceExists = errors.New("an active instance already exists for this template and lead")

	// ErrInvalidGateState indicates an approval decision targeted an
	// execution that is not awaiting one.
	ErrInvalidGateState = errors.New("execution is not awaiting a decision")

	// ErrTemplateInactive indicates the template is disabled and cannot
	// start new instances.
	ErrTemplateInactive = errors.New("workflow template is not active")

	// ErrIndustryMismatch indicates the lead belongs to a different
	// industry vertical than the template.
	ErrIndustryMismatch = errors.New("lead industry does not match template industry")
)

// IsForbidden checks if an error indicates a tenant ownership violation or
// an industry scope restriction.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrIndustryMismatch)
}

// IsActiveInstanceExists checks if an error indicates a duplicate active instance.
func IsActiveInstanceExists(err error) bool {
	return errors.Is(err, ErrActiveInstanceExists)
}

// IsInvalidGateState checks if an error indicates a decision on a non-awaiting execution.
func IsInvalidGateState(err error) bool {
	return errors.Is(err, ErrInvalidGateState)
}

// IsValidation checks if an error indicates a request that can never
// succeed as given (inactive template).
func IsValidation(err error) bool {
	return errors.Is(err, ErrTemplateInactive)
}
