// Package booking orchestrates the appointment lifecycle over the
// availability engine, slot optimizer, and capacity manager.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/availability"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/capacity"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/observability/metrics"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/scheduling"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

var (
	// ErrCheckInDateMismatch is returned when check-in is attempted on a
	// date other than the appointment's scheduled date.
	ErrCheckInDateMismatch = errors.New("check-in date mismatch")

	// ErrNoShowBeforeDate is returned when a no-show is recorded before the
	// appointment's scheduled date has arrived.
	ErrNoShowBeforeDate = errors.New("appointment date has not arrived")

	// ErrSlotUnavailable is returned when a reschedule target falls outside
	// the staff member's open availability.
	ErrSlotUnavailable = errors.New("requested slot is not available")

	// ErrMissingActor is returned when a state-changing call carries no
	// actor identifier for the audit fields.
	ErrMissingActor = errors.New("actor identifier required")
)

const defaultDurationMinutes = 30

// Service wraps the scheduling core with the appointment lifecycle.
// Construct one explicitly and pass it to callers; it holds its store
// dependencies and keeps no process-wide state.
type Service struct {
	repo      appointments.Repository
	types     appointments.TypeRepository
	roster    staff.Repository
	schedules schedule.Repository
	engine    *availability.Engine
	optimizer *scheduling.Optimizer
	capman    *capacity.Manager
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger

	now func() time.Time
}

// NewService constructs the booking service. metrics may be nil.
func NewService(
	repo appointments.Repository,
	types appointments.TypeRepository,
	roster staff.Repository,
	schedules schedule.Repository,
	engine *availability.Engine,
	optimizer *scheduling.Optimizer,
	capman *capacity.Manager,
	m *metrics.SchedulingMetrics,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		types:     types,
		roster:    roster,
		schedules: schedules,
		engine:    engine,
		optimizer: optimizer,
		capman:    capman,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// CheckAvailability is a thin pass-through to the availability engine. A
// zero duration resolves to the staff member's scheduled default, falling
// back to 30 minutes.
func (s *Service) CheckAvailability(ctx context.Context, staffID string, date time.Time, durationMinutes int) ([]availability.Slot, error) {
	if durationMinutes == 0 {
		durationMinutes = s.defaultDuration(ctx, staffID, date)
	}
	return s.engine.ComputeAvailability(ctx, staffID, date, durationMinutes)
}

func (s *Service) defaultDuration(ctx context.Context, staffID string, date time.Time) int {
	entry, err := s.schedules.ResolveForDate(ctx, staffID, date)
	if err == nil && entry.DefaultDuration > 0 {
		return entry.DefaultDuration
	}
	return defaultDurationMinutes
}

// FindOptimalSlot is a pass-through to the slot optimizer. Results are
// advisory; Book re-validates transactionally.
func (s *Service) FindOptimalSlot(ctx context.Context, criteria scheduling.Criteria) ([]*scheduling.Candidate, error) {
	start := s.now()
	candidates, err := s.optimizer.FindOptimalSlot(ctx, criteria)
	s.metrics.ObserveSlotSearch(time.Since(start).Seconds())
	return candidates, err
}

// Book creates a new appointment in the requested state. The overlap check
// happens atomically at the store, so of two concurrent bookings for the
// same slot exactly one succeeds; the other receives ErrBookingConflict.
func (s *Service) Book(ctx context.Context, req *appointments.CreateAppointmentRequest) (*appointments.Appointment, error) {
	if req.CreatedBy == "" {
		return nil, ErrMissingActor
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.roster.GetByID(ctx, req.StaffID); err != nil {
		return nil, err
	}
	if _, err := s.types.GetType(ctx, req.TypeID); err != nil {
		return nil, err
	}

	appt, err := s.repo.Create(ctx, req)
	if err != nil {
		if errors.Is(err, appointments.ErrBookingConflict) {
			s.metrics.ObserveBooking("conflict")
			s.metrics.ObserveConflict()
		} else {
			s.metrics.ObserveBooking("error")
		}
		return nil, err
	}

	s.metrics.ObserveBooking("created")
	s.capman.Invalidate(ctx, appt.StaffID, appt.Date)
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"staff_id", appt.StaffID,
		"date", appt.Date.Format("2006-01-02"),
		"created_by", req.CreatedBy,
	)
	return appt, nil
}

// Confirm moves requested -> confirmed, recording who confirmed.
func (s *Service) Confirm(ctx context.Context, id string, source appointments.ConfirmationSource, actor string) (*appointments.Appointment, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}
	if !source.Valid() {
		return nil, fmt.Errorf("booking: unknown confirmation source %q", source)
	}
	return s.transition(ctx, id, appointments.StatusConfirmed, appointments.TransitionUpdate{
		ConfirmationSource: source,
		Actor:              actor,
	})
}

// CheckIn moves confirmed -> checked_in. Rejected unless performed on the
// appointment's scheduled date.
func (s *Service) CheckIn(ctx context.Context, id string, actor string) (*appointments.Appointment, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sameDate(appt.Date, s.now()) {
		return nil, ErrCheckInDateMismatch
	}
	return s.transition(ctx, id, appointments.StatusCheckedIn, appointments.TransitionUpdate{Actor: actor})
}

// Complete moves checked_in -> completed, optionally recording an actual
// revenue override and notes. Productivity metrics use the override when
// present, else the type's expected revenue.
func (s *Service) Complete(ctx context.Context, id string, actualRevenueCents *int64, notes, actor string) (*appointments.Appointment, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}
	return s.transition(ctx, id, appointments.StatusCompleted, appointments.TransitionUpdate{
		ActualRevenueCents: actualRevenueCents,
		Notes:              notes,
		Actor:              actor,
	})
}

// Cancel moves any non-terminal state -> cancelled and frees the slot for
// the availability engine immediately.
func (s *Service) Cancel(ctx context.Context, id string, actor string) (*appointments.Appointment, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}
	return s.transition(ctx, id, appointments.StatusCancelled, appointments.TransitionUpdate{Actor: actor})
}

// MarkNoShow moves confirmed -> no_show once the scheduled date has passed
// (or is today).
func (s *Service) MarkNoShow(ctx context.Context, id string, actor string) (*appointments.Appointment, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dateOnly(s.now()).Before(dateOnly(appt.Date)) {
		return nil, ErrNoShowBeforeDate
	}
	return s.transition(ctx, id, appointments.StatusNoShow, appointments.TransitionUpdate{Actor: actor})
}

// Reschedule cancels-and-replaces atomically: the original is marked
// rescheduled and a replacement is created carrying the original's status
// forward. The new slot is validated against the availability engine first
// and re-checked transactionally at commit; on any failure the original is
// untouched.
func (s *Service) Reschedule(ctx context.Context, originalID string, staffID string, date time.Time, start, end int, notes, actor string) (*appointments.Appointment, *appointments.Appointment, error) {
	if actor == "" {
		return nil, nil, ErrMissingActor
	}
	if start >= end {
		return nil, nil, appointments.ErrInvalidInterval
	}

	original, err := s.repo.GetByID(ctx, originalID)
	if err != nil {
		return nil, nil, err
	}
	if !original.Status.CanTransition(appointments.StatusRescheduled) {
		return nil, nil, &appointments.StateConflictError{Current: original.Status, Requested: appointments.StatusRescheduled}
	}
	if staffID == "" {
		staffID = original.StaffID
	}
	if _, err := s.roster.GetByID(ctx, staffID); err != nil {
		return nil, nil, err
	}

	duration := end - start
	slots, err := s.engine.ComputeAvailability(ctx, staffID, date, duration)
	if err != nil {
		return nil, nil, err
	}
	if !slotContains(slots, start, end) {
		return nil, nil, ErrSlotUnavailable
	}

	req := &appointments.CreateAppointmentRequest{
		PatientID: original.PatientID,
		StaffID:   staffID,
		TypeID:    original.TypeID,
		Date:      date,
		StartTime: schedule.TimeOfDay(start),
		EndTime:   schedule.TimeOfDay(end),
		Notes:     notes,
		CreatedBy: actor,
		Status:    original.Status,
	}
	orig, replacement, err := s.repo.Reschedule(ctx, originalID, req)
	if err != nil {
		if errors.Is(err, appointments.ErrBookingConflict) {
			s.metrics.ObserveBooking("conflict")
			s.metrics.ObserveConflict()
		}
		return nil, nil, err
	}

	s.metrics.ObserveBooking("rescheduled")
	s.capman.Invalidate(ctx, orig.StaffID, orig.Date)
	s.capman.Invalidate(ctx, replacement.StaffID, replacement.Date)
	s.logger.Info("appointment rescheduled",
		"original_id", orig.ID,
		"replacement_id", replacement.ID,
		"actor", actor,
	)
	return orig, replacement, nil
}

// GetAppointment returns one appointment.
func (s *Service) GetAppointment(ctx context.Context, id string) (*appointments.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// transition enforces the state machine: the target must be legal from the
// current state, and the store applies the change guarded on that same
// current state so concurrent transitions lose cleanly.
func (s *Service) transition(ctx context.Context, id string, to appointments.Status, update appointments.TransitionUpdate) (*appointments.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.metrics.ObserveTransition(string(to), "error")
		return nil, err
	}
	if !appt.Status.CanTransition(to) {
		s.metrics.ObserveTransition(string(to), "conflict")
		return nil, &appointments.StateConflictError{Current: appt.Status, Requested: to}
	}

	updated, err := s.repo.Transition(ctx, id, appt.Status, to, update)
	if err != nil {
		if appointments.IsStateConflict(err) {
			s.metrics.ObserveTransition(string(to), "conflict")
		} else {
			s.metrics.ObserveTransition(string(to), "error")
		}
		return nil, err
	}

	s.metrics.ObserveTransition(string(to), "ok")
	if !to.Active() {
		// The slot is free again; any cached capacity for that day is stale.
		s.capman.Invalidate(ctx, updated.StaffID, updated.Date)
	}
	s.logger.Info("appointment transition",
		"appointment_id", id,
		"to", string(to),
		"actor", update.Actor,
	)
	return updated, nil
}

func slotContains(slots []availability.Slot, start, end int) bool {
	for _, slot := range slots {
		if int(slot.StartTime) <= start && end <= int(slot.EndTime) {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
