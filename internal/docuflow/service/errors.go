package service

import (
	"errors"
	"fmt"
)

// ErrAccessDenied is the sentinel all denials match via errors.Is.
var ErrAccessDenied = errors.New("access denied")

// AccessDeniedError carries the evaluator's reason code alongside the
// denial so the transport can return it to the caller.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// ValidationError marks malformed input.  Validation happens before
// authorization, so these requests are never audited as access decisions.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
