package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
)

// AppointmentType is reference data: a service the clinic offers. Immutable
// once referenced by existing appointments; edits affect future bookings only.
type AppointmentType struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	DefaultDuration      int    `json:"default_duration_minutes"`
	ExpectedRevenueCents int64  `json:"expected_revenue_cents"`
	// RequiredRole restricts which staff can serve this type; empty means any.
	RequiredRole string `json:"required_role,omitempty"`
}

// ConfirmationSource tags who confirmed an appointment.
type ConfirmationSource string

const (
	ConfirmedByPatient   ConfirmationSource = "patient"
	ConfirmedByStaff     ConfirmationSource = "staff"
	ConfirmedByAutomated ConfirmationSource = "automated"
)

// Valid reports whether the source is a known actor tag.
func (s ConfirmationSource) Valid() bool {
	switch s {
	case ConfirmedByPatient, ConfirmedByStaff, ConfirmedByAutomated:
		return true
	}
	return false
}

// Appointment is the central scheduling entity. Rows are never physically
// deleted; cancellation and reschedule are statuses, preserving history for
// productivity metrics.
type Appointment struct {
	ID                 string             `json:"id"`
	PatientID          string             `json:"patient_id"`
	StaffID            string             `json:"staff_id"`
	TypeID             string             `json:"type_id"`
	Date               time.Time          `json:"date"`
	StartTime          schedule.TimeOfDay `json:"start_time"`
	EndTime            schedule.TimeOfDay `json:"end_time"`
	Status             Status             `json:"status"`
	ConfirmationSource ConfirmationSource `json:"confirmation_source,omitempty"`
	// ActualRevenueCents stays nil until completion records an override.
	ActualRevenueCents *int64    `json:"actual_revenue_cents,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status.Active()
}

// DurationMinutes returns the booked interval length.
func (a *Appointment) DurationMinutes() int {
	return int(a.EndTime) - int(a.StartTime)
}

// Overlaps reports whether two half-open [start,end) intervals on the same
// staff+date collide.
func (a *Appointment) Overlaps(start, end schedule.TimeOfDay) bool {
	return a.StartTime < end && start < a.EndTime
}

// CreateAppointmentRequest is the payload for booking an appointment.
type CreateAppointmentRequest struct {
	PatientID string             `json:"patient_id"`
	StaffID   string             `json:"staff_id"`
	TypeID    string             `json:"type_id"`
	Date      time.Time          `json:"date"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
	Notes     string             `json:"notes,omitempty"`
	CreatedBy string             `json:"-"`

	// Status defaults to requested; reschedule may carry confirmed forward.
	Status Status `json:"-"`
}

// Validate rejects malformed input before any store access.
func (r *CreateAppointmentRequest) Validate() error {
	for _, id := range []string{r.PatientID, r.StaffID, r.TypeID} {
		if _, err := uuid.Parse(id); err != nil {
			return ErrInvalidIdentifier
		}
	}
	if r.StartTime >= r.EndTime {
		return ErrInvalidInterval
	}
	if r.Date.IsZero() {
		return ErrInvalidInterval
	}
	if r.Status == "" {
		r.Status = StatusRequested
	}
	return nil
}

// TransitionUpdate carries the optional fields a status transition records.
type TransitionUpdate struct {
	ConfirmationSource ConfirmationSource
	ActualRevenueCents *int64
	Notes              string
	Actor              string
}
