// Package apperr defines the error taxonomy shared by the process and case engines.
// Every error returned by the core wraps exactly one of the sentinel kinds below so
// callers can branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructuralViolation is returned when a process definition fails graph validation
	ErrStructuralViolation = errors.New("structural violation")

	// ErrNotFound is returned when a definition, subject or case does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an action or move is not permitted from the current state
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidationFailure is returned when companion fields are missing or contradictory
	ErrValidationFailure = errors.New("validation failure")

	// ErrLockedState is returned when a mutation is attempted while the case is locked
	ErrLockedState = errors.New("locked state")

	// ErrAutomationFailure is returned when an automated side effect cannot run
	ErrAutomationFailure = errors.New("automation failure")

	// ErrConflict is returned when a concurrent writer saved the same case first
	ErrConflict = errors.New("concurrent modification")
)

// Error carries the kind plus the context a caller needs to present it.
type Error struct {
	Kind    error
	State   string
	Action  string
	Message string
	Details []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.State != "" {
		fmt.Fprintf(&sb, " (state %s)", e.State)
	}
	if len(e.Details) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Details, "; "))
	}
	return sb.String()
}

// Unwrap exposes the sentinel kind to errors.Is
func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound reports a missing resource
func NotFound(resource, id string) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %q", resource, id)}
}

// InvalidTransition reports an action that is not permitted from state
func InvalidTransition(state, action, reason string) error {
	return &Error{Kind: ErrInvalidTransition, State: state, Action: action, Message: reason}
}

// Locked reports a mutation attempted while state is locked
func Locked(state, action, unlockAction string) error {
	return &Error{
		Kind:    ErrLockedState,
		State:   state,
		Action:  action,
		Message: fmt.Sprintf("%s rejected, only %s is allowed", action, unlockAction),
	}
}

// Validation reports missing or contradictory fields
func Validation(action string, details ...string) error {
	return &Error{Kind: ErrValidationFailure, Action: action, Details: details}
}

// ValidationAt reports missing or contradictory fields on an action taken from state
func ValidationAt(state, action string, details ...string) error {
	return &Error{Kind: ErrValidationFailure, State: state, Action: action, Details: details}
}

// Structural reports every violation found in a definition
func Structural(definitionID string, details []string) error {
	return &Error{
		Kind:    ErrStructuralViolation,
		Message: fmt.Sprintf("definition %q has %d violation(s)", definitionID, len(details)),
		Details: details,
	}
}

// Automation reports a side effect whose precondition is absent
func Automation(state, action, reason string) error {
	return &Error{Kind: ErrAutomationFailure, State: state, Action: action, Message: reason}
}

// Conflict reports a stale write
func Conflict(resource, id string) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf("%s %q was modified concurrently", resource, id)}
}

// Details returns the detail list of err if it carries one
func Details(err error) []string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// StateOf returns the state recorded on err, if any
func StateOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.State
	}
	return ""
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrStructuralViolation, "structural_violation"},
	{ErrNotFound, "not_found"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrValidationFailure, "validation_failure"},
	{ErrLockedState, "locked_state"},
	{ErrAutomationFailure, "automation_failure"},
	{ErrConflict, "conflict"},
}

// KindName returns a stable label for the kind of err, "internal" when err is
// outside the taxonomy. Used as a metrics label and in API error bodies.
func KindName(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}
