package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session is absent from the
	// caller's organization scope.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRecordNotFound is returned when an incident references a clinical
	// record that does not belong to the session.
	ErrRecordNotFound = errors.New("session record not found")

	// ErrSessionNotActive is returned when a clinical sub-record is appended
	// outside the in_progress window.
	ErrSessionNotActive = errors.New("session is not in progress")

	// ErrPatientNotFound is returned when a session references a patient
	// that does not exist or is inactive.
	ErrPatientNotFound = errors.New("patient not found")
)

// InvalidInputError reports caller input that fails domain validation, so
// handlers can separate caller mistakes from persistence failures.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return e.Msg }

func invalidInputf(format string, args ...any) error {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a state-machine precondition violation,
// carrying the current and attempted operation so callers can distinguish a
// retryable conflict from a caller bug.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a %s session", e.Attempted, e.Current)
}
