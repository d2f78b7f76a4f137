package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines storage for working patterns and time off.
type Repository interface {
	CreateSchedule(ctx context.Context, req *CreateScheduleRequest) (*StaffSchedule, error)
	ListSchedules(ctx context.Context, staffID string) ([]*StaffSchedule, error)
	// ResolveForDate returns the active pattern covering the date's weekday,
	// or ErrScheduleNotFound when the staff member is not scheduled that day.
	ResolveForDate(ctx context.Context, staffID string, date time.Time) (*StaffSchedule, error)

	CreateTimeOff(ctx context.Context, req *CreateTimeOffRequest) (*TimeOff, error)
	DecideTimeOff(ctx context.Context, id string, approve bool, approverID string) (*TimeOff, error)
	ListTimeOff(ctx context.Context, staffID string, from, to time.Time) ([]*TimeOff, error)
	// TimeOffForDate returns every entry overlapping the date, regardless of
	// approval state; callers apply the blocking policy.
	TimeOffForDate(ctx context.Context, staffID string, date time.Time) ([]*TimeOff, error)
}

// InMemoryRepository keeps schedules and time off in process memory.
// Used by tests and by local development without a database.
type InMemoryRepository struct {
	mu        sync.RWMutex
	schedules map[string]*StaffSchedule
	timeOff   map[string]*TimeOff
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		schedules: make(map[string]*StaffSchedule),
		timeOff:   make(map[string]*TimeOff),
	}
}

// CreateSchedule stores a new pattern, superseding any active pattern for the
// same staff+weekday whose effective range is still open.
func (r *InMemoryRepository) CreateSchedule(ctx context.Context, req *CreateScheduleRequest) (*StaffSchedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := req.EffectiveFrom.AddDate(0, 0, -1)
	for _, s := range r.schedules {
		if s.StaffID == req.StaffID && s.Weekday == req.Weekday && s.Active && s.EffectiveUntil == nil {
			until := cutoff
			s.EffectiveUntil = &until
		}
	}

	entry := &StaffSchedule{
		ID:              uuid.NewString(),
		StaffID:         req.StaffID,
		Weekday:         req.Weekday,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		BreakStart:      req.BreakStart,
		BreakEnd:        req.BreakEnd,
		MaxAppointments: req.MaxAppointments,
		DefaultDuration: req.DefaultDuration,
		Active:          true,
		EffectiveFrom:   req.EffectiveFrom,
		EffectiveUntil:  req.EffectiveUntil,
		Notes:           req.Notes,
		CreatedAt:       time.Now().UTC(),
	}
	r.schedules[entry.ID] = entry
	return entry, nil
}

// ListSchedules returns every pattern for the staff member, newest first.
func (r *InMemoryRepository) ListSchedules(ctx context.Context, staffID string) ([]*StaffSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*StaffSchedule{}
	for _, s := range r.schedules {
		if s.StaffID == staffID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveFrom.Equal(out[j].EffectiveFrom) {
			return out[i].EffectiveFrom.After(out[j].EffectiveFrom)
		}
		return out[i].Weekday < out[j].Weekday
	})
	return out, nil
}

// ResolveForDate returns the active pattern covering the date.
func (r *InMemoryRepository) ResolveForDate(ctx context.Context, staffID string, date time.Time) (*StaffSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var match *StaffSchedule
	for _, s := range r.schedules {
		if s.StaffID != staffID || !s.Active || !s.CoversDate(date) {
			continue
		}
		// Prefer the most recently effective pattern when ranges overlap.
		if match == nil || s.EffectiveFrom.After(match.EffectiveFrom) {
			match = s
		}
	}
	if match == nil {
		return nil, ErrScheduleNotFound
	}
	return match, nil
}

// CreateTimeOff stores a new pending time-off request.
func (r *InMemoryRepository) CreateTimeOff(ctx context.Context, req *CreateTimeOffRequest) (*TimeOff, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := &TimeOff{
		ID:        uuid.NewString(),
		StaffID:   req.StaffID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		AllDay:    req.AllDay,
		Reason:    req.Reason,
		Status:    TimeOffPending,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.timeOff[entry.ID] = entry
	r.mu.Unlock()
	return entry, nil
}

// DecideTimeOff approves or rejects a pending request.
func (r *InMemoryRepository) DecideTimeOff(ctx context.Context, id string, approve bool, approverID string) (*TimeOff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.timeOff[id]
	if !ok {
		return nil, ErrTimeOffNotFound
	}
	if entry.Status != TimeOffPending {
		return nil, ErrTimeOffDecided
	}
	if approve {
		entry.Status = TimeOffApproved
	} else {
		entry.Status = TimeOffRejected
	}
	entry.ApprovedBy = approverID
	return entry, nil
}

// ListTimeOff returns entries overlapping [from, to], oldest first.
func (r *InMemoryRepository) ListTimeOff(ctx context.Context, staffID string, from, to time.Time) ([]*TimeOff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*TimeOff{}
	for _, t := range r.timeOff {
		if t.StaffID != staffID {
			continue
		}
		if t.EndDate.Before(from) || t.StartDate.After(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// TimeOffForDate returns entries overlapping one calendar date.
func (r *InMemoryRepository) TimeOffForDate(ctx context.Context, staffID string, date time.Time) ([]*TimeOff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*TimeOff{}
	for _, t := range r.timeOff {
		if t.StaffID == staffID && t.CoversDate(date) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
