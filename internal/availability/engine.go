package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
)

// Slot is a candidate open interval for one staff member on one date.
type Slot struct {
	StaffID   string             `json:"staff_id"`
	Date      time.Time          `json:"date"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
}

// Policy controls which time-off entries reduce availability.
type Policy struct {
	// PendingTimeOffBlocks treats pending (undecided) time-off requests as
	// blocking, so a later approval can never reveal a double-booked slot.
	PendingTimeOffBlocks bool
}

// Engine computes open slots from schedules, time off, and bookings.
// Pure reads; no side effects.
type Engine struct {
	schedules schedule.Repository
	appts     appointments.Repository
	roster    staff.Repository
	policy    Policy
}

// NewEngine constructs an availability engine over the given stores.
func NewEngine(schedules schedule.Repository, appts appointments.Repository, roster staff.Repository, policy Policy) *Engine {
	return &Engine{
		schedules: schedules,
		appts:     appts,
		roster:    roster,
		policy:    policy,
	}
}

// ComputeAvailability returns every maximal free interval of at least
// durationMinutes for the staff member on the date, one slot proposal per
// free interval anchored at its start. A staff member with no resolvable
// schedule for the date yields an empty list, not an error.
func (e *Engine) ComputeAvailability(ctx context.Context, staffID string, date time.Time, durationMinutes int) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, appointments.ErrInvalidDuration
	}
	if _, err := e.roster.GetByID(ctx, staffID); err != nil {
		return nil, err
	}

	free, err := e.WorkingIntervals(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		return []Slot{}, nil
	}

	appts, err := e.appts.ListForStaffDate(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("availability: list appointments: %w", err)
	}
	for _, a := range appts {
		if !a.Active() {
			continue
		}
		free = Subtract(free, Interval{Start: a.StartTime, End: a.EndTime})
	}

	slots := []Slot{}
	for _, iv := range free {
		if iv.Minutes() < durationMinutes {
			continue
		}
		slots = append(slots, Slot{
			StaffID:   staffID,
			Date:      date,
			StartTime: iv.Start,
			EndTime:   iv.End,
		})
	}
	return slots, nil
}

// WorkingIntervals resolves the staff member's schedule for the date and
// subtracts the break window and blocking time off, yielding the intervals
// during which the member is nominally working. Booked appointments are NOT
// subtracted; the capacity manager uses this as "available minutes".
func (e *Engine) WorkingIntervals(ctx context.Context, staffID string, date time.Time) ([]Interval, error) {
	entry, err := e.schedules.ResolveForDate(ctx, staffID, date)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			return []Interval{}, nil
		}
		return nil, fmt.Errorf("availability: resolve schedule: %w", err)
	}

	free := []Interval{{Start: entry.StartTime, End: entry.EndTime}}
	if entry.BreakStart != nil && entry.BreakEnd != nil {
		free = Subtract(free, Interval{Start: *entry.BreakStart, End: *entry.BreakEnd})
	}

	timeOff, err := e.schedules.TimeOffForDate(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("availability: list time off: %w", err)
	}
	for _, t := range timeOff {
		if !e.blocks(t) {
			continue
		}
		if t.AllDay || t.StartTime == nil || t.EndTime == nil {
			return []Interval{}, nil
		}
		free = Subtract(free, Interval{Start: *t.StartTime, End: *t.EndTime})
	}
	return free, nil
}

func (e *Engine) blocks(t *schedule.TimeOff) bool {
	switch t.Status {
	case schedule.TimeOffApproved:
		return true
	case schedule.TimeOffPending:
		return e.policy.PendingTimeOffBlocks
	}
	return false
}
