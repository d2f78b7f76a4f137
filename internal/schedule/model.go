package schedule

import (
	"time"
)

// StaffSchedule is one recurring working pattern for a staff member on one
// day of the week. Patterns are superseded, never deleted, so capacity
// computed for past dates stays accurate.
type StaffSchedule struct {
	ID              string       `json:"id"`
	StaffID         string       `json:"staff_id"`
	Weekday         time.Weekday `json:"weekday"`
	StartTime       TimeOfDay    `json:"start_time"`
	EndTime         TimeOfDay    `json:"end_time"`
	BreakStart      *TimeOfDay   `json:"break_start,omitempty"`
	BreakEnd        *TimeOfDay   `json:"break_end,omitempty"`
	MaxAppointments int          `json:"max_appointments"`
	DefaultDuration int          `json:"default_duration_minutes"`
	Active          bool         `json:"active"`
	EffectiveFrom   time.Time    `json:"effective_from"`
	EffectiveUntil  *time.Time   `json:"effective_until,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// CoversDate reports whether this pattern applies to the given calendar date.
func (s *StaffSchedule) CoversDate(date time.Time) bool {
	if s.Weekday != date.Weekday() {
		return false
	}
	if date.Before(s.EffectiveFrom) && !SameDate(date, s.EffectiveFrom) {
		return false
	}
	if s.EffectiveUntil != nil && date.After(*s.EffectiveUntil) && !SameDate(date, *s.EffectiveUntil) {
		return false
	}
	return true
}

// CreateScheduleRequest is the payload for creating a working pattern.
type CreateScheduleRequest struct {
	StaffID         string       `json:"staff_id"`
	Weekday         time.Weekday `json:"weekday"`
	StartTime       TimeOfDay    `json:"start_time"`
	EndTime         TimeOfDay    `json:"end_time"`
	BreakStart      *TimeOfDay   `json:"break_start,omitempty"`
	BreakEnd        *TimeOfDay   `json:"break_end,omitempty"`
	MaxAppointments int          `json:"max_appointments"`
	DefaultDuration int          `json:"default_duration_minutes"`
	EffectiveFrom   time.Time    `json:"effective_from"`
	EffectiveUntil  *time.Time   `json:"effective_until,omitempty"`
	Notes           string       `json:"notes,omitempty"`
}

// Validate checks the schedule invariants before any store access.
func (r *CreateScheduleRequest) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	if r.StartTime >= r.EndTime {
		return ErrInvalidTimeRange
	}
	if (r.BreakStart == nil) != (r.BreakEnd == nil) {
		return ErrInvalidBreakWindow
	}
	if r.BreakStart != nil {
		if *r.BreakStart >= *r.BreakEnd {
			return ErrInvalidBreakWindow
		}
		if *r.BreakStart < r.StartTime || *r.BreakEnd > r.EndTime {
			return ErrInvalidBreakWindow
		}
	}
	if r.EffectiveUntil != nil && r.EffectiveUntil.Before(r.EffectiveFrom) {
		return ErrInvalidDateRange
	}
	return nil
}

// TimeOffReason categorizes a time-off entry.
type TimeOffReason string

const (
	ReasonVacation TimeOffReason = "vacation"
	ReasonSick     TimeOffReason = "sick"
	ReasonMeeting  TimeOffReason = "meeting"
	ReasonTraining TimeOffReason = "training"
	ReasonPersonal TimeOffReason = "personal"
	ReasonBlocked  TimeOffReason = "blocked"
)

// Valid reports whether the reason is one of the known categories.
func (r TimeOffReason) Valid() bool {
	switch r {
	case ReasonVacation, ReasonSick, ReasonMeeting, ReasonTraining, ReasonPersonal, ReasonBlocked:
		return true
	}
	return false
}

// TimeOffStatus is the tri-state approval state of a time-off request.
type TimeOffStatus string

const (
	TimeOffPending  TimeOffStatus = "pending"
	TimeOffApproved TimeOffStatus = "approved"
	TimeOffRejected TimeOffStatus = "rejected"
)

// TimeOff is one time-off request for a staff member.
type TimeOff struct {
	ID         string        `json:"id"`
	StaffID    string        `json:"staff_id"`
	StartDate  time.Time     `json:"start_date"`
	EndDate    time.Time     `json:"end_date"`
	StartTime  *TimeOfDay    `json:"start_time,omitempty"`
	EndTime    *TimeOfDay    `json:"end_time,omitempty"`
	AllDay     bool          `json:"all_day"`
	Reason     TimeOffReason `json:"reason"`
	Status     TimeOffStatus `json:"status"`
	ApprovedBy string        `json:"approved_by,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// CoversDate reports whether the entry overlaps the given calendar date.
func (t *TimeOff) CoversDate(date time.Time) bool {
	if date.Before(t.StartDate) && !SameDate(date, t.StartDate) {
		return false
	}
	if date.After(t.EndDate) && !SameDate(date, t.EndDate) {
		return false
	}
	return true
}

// CreateTimeOffRequest is the payload for requesting time off.
type CreateTimeOffRequest struct {
	StaffID   string        `json:"staff_id"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	StartTime *TimeOfDay    `json:"start_time,omitempty"`
	EndTime   *TimeOfDay    `json:"end_time,omitempty"`
	AllDay    bool          `json:"all_day"`
	Reason    TimeOffReason `json:"reason"`
}

// Validate checks the time-off invariants.
func (r *CreateTimeOffRequest) Validate() error {
	if !r.Reason.Valid() {
		return ErrInvalidReason
	}
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	if !r.AllDay {
		if r.StartTime == nil || r.EndTime == nil {
			return ErrInvalidTimeRange
		}
		if *r.StartTime >= *r.EndTime {
			return ErrInvalidTimeRange
		}
	}
	return nil
}
