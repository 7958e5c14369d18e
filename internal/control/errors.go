package control

import (
	"errors"
)

var (
	// ErrInvalidPriority rejects a submission whose priority is outside [1,4].
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidCommand rejects a submission with an empty name or a malformed parameter map.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrEmergencyActive refuses a non-exempt submission while the emergency flag is set.
	ErrEmergencyActive = errors.New("emergency stop active")

	// ErrServiceClosed refuses submissions after Close.
	ErrServiceClosed = errors.New("control service closed")

	// ErrNotFound reports that no queued or executing command matches, or that
	// nothing at all is known about the id.
	ErrNotFound = errors.New("command not found")
)

// IsValidation reports whether err rejected a submission as malformed.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPriority) || errors.Is(err, ErrInvalidCommand)
}

// IsAdmissionRefusal reports whether err refused a well-formed submission.
// Callers may wait and retry after such a refusal.
func IsAdmissionRefusal(err error) bool {
	return errors.Is(err, ErrEmergencyActive) || errors.Is(err, ErrServiceClosed)
}

func refusalReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPriority):
		return "invalid_priority"
	case errors.Is(err, ErrInvalidCommand):
		return "invalid_command"
	case errors.Is(err, ErrEmergencyActive):
		return "emergency_active"
	case errors.Is(err, ErrServiceClosed):
		return "closed"
	}
	return "unknown"
}
