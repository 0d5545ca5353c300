package automation

import "errors"

// Sentinel errors for the entity and configuration failure modes of step
// processing. Callers settle the communication as failed and surface these
// as error results; nothing here is retried automatically.
var (
	ErrSequenceNotFound    = errors.New("sequence not found")
	ErrSequenceInactive    = errors.New("sequence is not active")
	ErrStepNotFound        = errors.New("sequence step not found")
	ErrStepInactive        = errors.New("sequence step is not active")
	ErrTemplateNotFound    = errors.New("template not found or inactive")
	ErrContactNotFound     = errors.New("contact not found")
	ErrContactUnreachable  = errors.New("contact has no address for the step channel")
	ErrInsufficientCredits = errors.New("insufficient message credits")

	// Declared-but-unspecified business rules are rejected explicitly
	// rather than silently ignored.
	ErrConditionUnsupported      = errors.New("open/click rate step conditions are not yet supported")
	ErrLocationFilterUnsupported = errors.New("location-based audience filtering is not yet supported")
)
