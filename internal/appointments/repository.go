package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
)

// Repository defines appointment storage. Create and Reschedule must enforce
// the overlap invariant atomically: no two active appointments for one staff
// member may overlap, even under concurrent writers.
type Repository interface {
	Create(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	ListForStaffDate(ctx context.Context, staffID string, date time.Time) ([]*Appointment, error)
	// ListRange returns appointments in [from, to] inclusive; staffID ""
	// means clinic-wide.
	ListRange(ctx context.Context, staffID string, from, to time.Time) ([]*Appointment, error)
	// Transition moves an appointment from one status to another; the guard
	// on the expected current status is applied atomically at the store.
	Transition(ctx context.Context, id string, from, to Status, update TransitionUpdate) (*Appointment, error)
	// Reschedule atomically marks the original rescheduled and creates the
	// replacement; on conflict nothing is committed.
	Reschedule(ctx context.Context, originalID string, req *CreateAppointmentRequest) (original, replacement *Appointment, err error)
}

// TypeRepository provides appointment-type reference data.
type TypeRepository interface {
	GetType(ctx context.Context, id string) (*AppointmentType, error)
	ListTypes(ctx context.Context) ([]*AppointmentType, error)
}

// InMemoryRepository holds appointments in process memory behind a mutex.
// The mutex makes the overlap check and insert one atomic unit, mirroring
// the transactional guarantee of the Postgres implementation.
type InMemoryRepository struct {
	mu    sync.Mutex
	appts map[string]*Appointment
}

// NewInMemoryRepository creates an empty appointment store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{appts: make(map[string]*Appointment)}
}

// Create inserts a new appointment after an overlap check under the lock.
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(req)
}

func (r *InMemoryRepository) createLocked(req *CreateAppointmentRequest) (*Appointment, error) {
	for _, a := range r.appts {
		if a.StaffID == req.StaffID && a.Active() && schedule.SameDate(a.Date, req.Date) && a.Overlaps(req.StartTime, req.EndTime) {
			return nil, ErrBookingConflict
		}
	}

	now := time.Now().UTC()
	appt := &Appointment{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		StaffID:   req.StaffID,
		TypeID:    req.TypeID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    req.Status,
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.appts[appt.ID] = appt
	return cloneAppointment(appt), nil
}

// GetByID returns one appointment.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

// ListForStaffDate returns all appointments for one staff+date, earliest first.
func (r *InMemoryRepository) ListForStaffDate(ctx context.Context, staffID string, date time.Time) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*Appointment{}
	for _, a := range r.appts {
		if a.StaffID == staffID && schedule.SameDate(a.Date, date) {
			out = append(out, cloneAppointment(a))
		}
	}
	sortAppointments(out)
	return out, nil
}

// ListRange returns appointments in [from, to] inclusive.
func (r *InMemoryRepository) ListRange(ctx context.Context, staffID string, from, to time.Time) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*Appointment{}
	for _, a := range r.appts {
		if staffID != "" && a.StaffID != staffID {
			continue
		}
		if a.Date.Before(from) && !schedule.SameDate(a.Date, from) {
			continue
		}
		if a.Date.After(to) && !schedule.SameDate(a.Date, to) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	sortAppointments(out)
	return out, nil
}

// Transition applies a guarded status change.
func (r *InMemoryRepository) Transition(ctx context.Context, id string, from, to Status, update TransitionUpdate) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, &StateConflictError{Current: a.Status, Requested: to}
	}
	a.Status = to
	if update.ConfirmationSource != "" {
		a.ConfirmationSource = update.ConfirmationSource
	}
	if update.ActualRevenueCents != nil {
		a.ActualRevenueCents = update.ActualRevenueCents
	}
	if update.Notes != "" {
		a.Notes = update.Notes
	}
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

// Reschedule marks the original rescheduled and creates the replacement as
// one atomic unit under the lock. On conflict the original is untouched.
func (r *InMemoryRepository) Reschedule(ctx context.Context, originalID string, req *CreateAppointmentRequest) (*Appointment, *Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	orig, ok := r.appts[originalID]
	if !ok {
		return nil, nil, ErrAppointmentNotFound
	}
	if !orig.Status.CanTransition(StatusRescheduled) {
		return nil, nil, &StateConflictError{Current: orig.Status, Requested: StatusRescheduled}
	}

	prevStatus := orig.Status
	orig.Status = StatusRescheduled

	replacement, err := r.createLocked(req)
	if err != nil {
		orig.Status = prevStatus
		return nil, nil, err
	}
	orig.UpdatedAt = time.Now().UTC()
	return cloneAppointment(orig), replacement, nil
}

func sortAppointments(appts []*Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		if appts[i].StartTime != appts[j].StartTime {
			return appts[i].StartTime < appts[j].StartTime
		}
		return appts[i].ID < appts[j].ID
	})
}

func cloneAppointment(a *Appointment) *Appointment {
	c := *a
	if a.ActualRevenueCents != nil {
		v := *a.ActualRevenueCents
		c.ActualRevenueCents = &v
	}
	return &c
}

// InMemoryTypeRepository holds appointment types in memory.
type InMemoryTypeRepository struct {
	mu    sync.RWMutex
	types map[string]*AppointmentType
}

// NewInMemoryTypeRepository creates an empty type catalog.
func NewInMemoryTypeRepository() *InMemoryTypeRepository {
	return &InMemoryTypeRepository{types: make(map[string]*AppointmentType)}
}

// Put adds or replaces a type.
func (r *InMemoryTypeRepository) Put(t *AppointmentType) {
	r.mu.Lock()
	r.types[t.ID] = t
	r.mu.Unlock()
}

// GetType returns one type.
func (r *InMemoryTypeRepository) GetType(ctx context.Context, id string) (*AppointmentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[id]
	if !ok {
		return nil, ErrTypeNotFound
	}
	return t, nil
}

// ListTypes returns all types ordered by ID.
func (r *InMemoryTypeRepository) ListTypes(ctx context.Context) ([]*AppointmentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*AppointmentType{}
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
