package schedule

import "errors"

var (
	// ErrInvalidTimeRange is returned when start time is not before end time
	ErrInvalidTimeRange = errors.New("start time must be before end time")

	// ErrInvalidBreakWindow is returned when a break falls outside working hours
	ErrInvalidBreakWindow = errors.New("break window must lie within working hours")

	// ErrInvalidDateRange is returned when effective-until precedes effective-from
	ErrInvalidDateRange = errors.New("end date must not precede start date")

	// ErrInvalidWeekday is returned for a day-of-week outside Mon-Sun
	ErrInvalidWeekday = errors.New("invalid day of week")

	// ErrInvalidReason is returned for an unknown time-off reason
	ErrInvalidReason = errors.New("invalid time-off reason")

	// ErrScheduleNotFound is returned when a schedule entry does not exist
	ErrScheduleNotFound = errors.New("schedule entry not found")

	// ErrTimeOffNotFound is returned when a time-off entry does not exist
	ErrTimeOffNotFound = errors.New("time-off entry not found")

	// ErrTimeOffDecided is returned when approving or rejecting an entry
	// that has already left the pending state
	ErrTimeOffDecided = errors.New("time-off request already decided")
)
