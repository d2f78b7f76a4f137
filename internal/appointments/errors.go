package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrAppointmentNotFound is returned when an appointment does not exist
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrTypeNotFound is returned when an appointment type does not exist
	ErrTypeNotFound = errors.New("appointment type not found")

	// ErrInvalidDuration is returned for a non-positive requested duration
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrInvalidInterval is returned when start time is not before end time
	ErrInvalidInterval = errors.New("start time must be before end time")

	// ErrInvalidIdentifier is returned for a malformed (non-UUID) identifier
	ErrInvalidIdentifier = errors.New("identifier must be a UUID")

	// ErrBookingConflict is returned when an insert or reschedule would
	// overlap an existing active appointment for the same staff member.
	// The loser of a concurrent race receives this, never a silent
	// double-booking.
	ErrBookingConflict = errors.New("booking conflicts with an existing appointment")
)

// StateConflictError reports an illegal lifecycle transition. It carries the
// current state so callers can retry with fresh data.
type StateConflictError struct {
	Current   Status
	Requested Status
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("appointments: cannot transition from %s to %s", e.Current, e.Requested)
}

// IsStateConflict reports whether err is a lifecycle conflict.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}
