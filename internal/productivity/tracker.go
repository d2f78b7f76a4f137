// Package productivity aggregates completed-appointment metrics over a period.
package productivity

import (
	"context"
	"fmt"
	"time"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
)

// Period is an inclusive date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the range ordering.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return schedule.ErrInvalidDateRange
	}
	return nil
}

// Metrics is the productivity aggregate for one staff member (or the whole
// clinic when StaffID is empty) over a period. Rates are 0, never an error,
// when nothing was scheduled. Percentages run 0-100.
type Metrics struct {
	StaffID             string    `json:"staff_id,omitempty"`
	PeriodStart         time.Time `json:"period_start"`
	PeriodEnd           time.Time `json:"period_end"`
	Scheduled           int       `json:"scheduled"`
	Completed           int       `json:"completed"`
	NoShows             int       `json:"no_shows"`
	Cancelled           int       `json:"cancelled"`
	CompletionRate      float64   `json:"completion_rate"`
	NoShowRate          float64   `json:"no_show_rate"`
	TotalRevenueCents   int64     `json:"total_revenue_cents"`
	BookedHours         float64   `json:"booked_hours"`
	RevenuePerHourCents int64     `json:"revenue_per_hour_cents"`
}

// Tracker computes productivity metrics from the appointment store.
type Tracker struct {
	appts  appointments.Repository
	types  appointments.TypeRepository
	roster staff.Repository

	// revenueFallbackExpected substitutes the appointment type's expected
	// revenue when a completed appointment recorded no actual revenue.
	revenueFallbackExpected bool
}

// NewTracker constructs a productivity tracker.
func NewTracker(appts appointments.Repository, types appointments.TypeRepository, roster staff.Repository, revenueFallbackExpected bool) *Tracker {
	return &Tracker{
		appts:                   appts,
		types:                   types,
		roster:                  roster,
		revenueFallbackExpected: revenueFallbackExpected,
	}
}

// GetStaffMetrics aggregates one staff member's appointments over the period.
func (t *Tracker) GetStaffMetrics(ctx context.Context, staffID string, period Period) (*Metrics, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if _, err := t.roster.GetByID(ctx, staffID); err != nil {
		return nil, err
	}
	return t.aggregate(ctx, staffID, period)
}

// GetClinicMetrics aggregates all appointments over the period.
func (t *Tracker) GetClinicMetrics(ctx context.Context, period Period) (*Metrics, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return t.aggregate(ctx, "", period)
}

func (t *Tracker) aggregate(ctx context.Context, staffID string, period Period) (*Metrics, error) {
	appts, err := t.appts.ListRange(ctx, staffID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("productivity: list appointments: %w", err)
	}

	m := &Metrics{
		StaffID:     staffID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}

	var bookedMinutes int
	for _, a := range appts {
		// Rescheduled-away originals are replaced by their successor;
		// counting both would double-count the visit.
		if a.Status == appointments.StatusRescheduled {
			continue
		}
		m.Scheduled++

		switch a.Status {
		case appointments.StatusCompleted:
			m.Completed++
			bookedMinutes += a.DurationMinutes()
			revenue, err := t.completedRevenue(ctx, a)
			if err != nil {
				return nil, err
			}
			m.TotalRevenueCents += revenue
		case appointments.StatusNoShow:
			m.NoShows++
		case appointments.StatusCancelled:
			m.Cancelled++
		}
	}

	if m.Scheduled > 0 {
		m.CompletionRate = float64(m.Completed) / float64(m.Scheduled) * 100
		m.NoShowRate = float64(m.NoShows) / float64(m.Scheduled) * 100
	}
	m.BookedHours = float64(bookedMinutes) / 60
	if bookedMinutes > 0 {
		m.RevenuePerHourCents = int64(float64(m.TotalRevenueCents) / m.BookedHours)
	}
	return m, nil
}

func (t *Tracker) completedRevenue(ctx context.Context, a *appointments.Appointment) (int64, error) {
	if a.ActualRevenueCents != nil {
		return *a.ActualRevenueCents, nil
	}
	if !t.revenueFallbackExpected {
		return 0, nil
	}
	apptType, err := t.types.GetType(ctx, a.TypeID)
	if err != nil {
		return 0, fmt.Errorf("productivity: resolve type %s: %w", a.TypeID, err)
	}
	return apptType.ExpectedRevenueCents, nil
}
