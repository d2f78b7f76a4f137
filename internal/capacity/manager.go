package capacity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/availability"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/observability/metrics"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

// Snapshot is the derived capacity aggregate for one staff member on one
// date. Never independently authoritative; recomputed (or served from a
// cache invalidated on writes) from schedules, time off, and appointments.
type Snapshot struct {
	StaffID               string    `json:"staff_id"`
	Date                  time.Time `json:"date"`
	AvailableMinutes      int       `json:"available_minutes"`
	BookedMinutes         int       `json:"booked_minutes"`
	AppointmentsScheduled int       `json:"appointments_scheduled"`
	UtilizationPct        float64   `json:"utilization_pct"`
	ExpectedRevenueCents  int64     `json:"expected_revenue_cents"`
}

// UnderutilizedStaff is one staff member below the utilization threshold.
type UnderutilizedStaff struct {
	Snapshot
	// RevenuePotentialCents values the unbooked available minutes at the
	// configured average revenue per minute.
	RevenuePotentialCents int64 `json:"revenue_potential_cents"`
}

// ForecastDay is a projected utilization for one future date.
type ForecastDay struct {
	Date           time.Time `json:"date"`
	UtilizationPct float64   `json:"utilization_pct"`
	// SampleDays is how many historical same-weekday observations fed the
	// projection; 0 means no history and a 0 projection.
	SampleDays int `json:"sample_days"`
}

const forecastLookbackWeeks = 6

// Manager computes utilization and capacity aggregates.
type Manager struct {
	engine  *availability.Engine
	appts   appointments.Repository
	types   appointments.TypeRepository
	roster  staff.Repository
	cache   *SnapshotCache
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger

	// avgRevenuePerMinuteCents values unbooked capacity for ranking
	// underutilized staff.
	avgRevenuePerMinuteCents int64

	now func() time.Time
}

// NewManager constructs a capacity manager. cache and m may be nil, in which
// case every snapshot is recomputed on demand and lookups go unobserved.
func NewManager(engine *availability.Engine, appts appointments.Repository, types appointments.TypeRepository, roster staff.Repository, cache *SnapshotCache, avgRevenuePerMinuteCents int64, m *metrics.SchedulingMetrics, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		engine:                   engine,
		appts:                    appts,
		types:                    types,
		roster:                   roster,
		cache:                    cache,
		metrics:                  m,
		logger:                   logger,
		avgRevenuePerMinuteCents: avgRevenuePerMinuteCents,
		now:                      time.Now,
	}
}

// GetCapacityForDate returns the capacity snapshot for one staff+date,
// reading through the cache when one is configured.
func (m *Manager) GetCapacityForDate(ctx context.Context, staffID string, date time.Time) (*Snapshot, error) {
	if _, err := m.roster.GetByID(ctx, staffID); err != nil {
		return nil, err
	}

	if m.cache != nil {
		if snap, ok := m.cache.Get(ctx, staffID, date); ok {
			m.metrics.ObserveCacheLookup("hit")
			return snap, nil
		}
		m.metrics.ObserveCacheLookup("miss")
	}

	snap, err := m.compute(ctx, staffID, date)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, snap); err != nil {
			// Serving a fresh snapshot matters more than caching it.
			m.logger.Warn("capacity snapshot cache write failed", "staff_id", staffID, "error", err)
		}
	}
	return snap, nil
}

func (m *Manager) compute(ctx context.Context, staffID string, date time.Time) (*Snapshot, error) {
	working, err := m.engine.WorkingIntervals(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	available := availability.TotalMinutes(working)

	appts, err := m.appts.ListForStaffDate(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("capacity: list appointments: %w", err)
	}

	snap := &Snapshot{
		StaffID:          staffID,
		Date:             date,
		AvailableMinutes: available,
	}
	for _, a := range appts {
		if !a.Active() {
			continue
		}
		snap.BookedMinutes += a.DurationMinutes()
		snap.AppointmentsScheduled++
		t, err := m.types.GetType(ctx, a.TypeID)
		if err != nil {
			return nil, fmt.Errorf("capacity: resolve type %s: %w", a.TypeID, err)
		}
		snap.ExpectedRevenueCents += t.ExpectedRevenueCents
	}
	snap.UtilizationPct = utilizationPct(snap.BookedMinutes, snap.AvailableMinutes)
	return snap, nil
}

// GetCapacityRange computes one snapshot per (staff, date) across the
// inclusive date range.
func (m *Manager) GetCapacityRange(ctx context.Context, staffIDs []string, startDate, endDate time.Time) ([]*Snapshot, error) {
	if endDate.Before(startDate) {
		return nil, schedule.ErrInvalidDateRange
	}

	out := []*Snapshot{}
	for _, staffID := range staffIDs {
		for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
			snap, err := m.GetCapacityForDate(ctx, staffID, d)
			if err != nil {
				return nil, err
			}
			out = append(out, snap)
		}
	}
	return out, nil
}

// GetUnderutilizedStaff returns active staff whose utilization on the date is
// below thresholdPct. Staff with zero available minutes are excluded: not
// underutilized, just off. Sorted ascending by utilization, then descending
// by revenue potential, then by staff ID for determinism.
func (m *Manager) GetUnderutilizedStaff(ctx context.Context, date time.Time, thresholdPct float64) ([]*UnderutilizedStaff, error) {
	members, err := m.roster.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("capacity: list staff: %w", err)
	}

	out := []*UnderutilizedStaff{}
	for _, member := range members {
		snap, err := m.GetCapacityForDate(ctx, member.ID, date)
		if err != nil {
			return nil, err
		}
		if snap.AvailableMinutes == 0 || snap.UtilizationPct >= thresholdPct {
			continue
		}
		unbooked := snap.AvailableMinutes - snap.BookedMinutes
		if unbooked < 0 {
			unbooked = 0
		}
		out = append(out, &UnderutilizedStaff{
			Snapshot:              *snap,
			RevenuePotentialCents: int64(unbooked) * m.avgRevenuePerMinuteCents,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UtilizationPct != out[j].UtilizationPct {
			return out[i].UtilizationPct < out[j].UtilizationPct
		}
		if out[i].RevenuePotentialCents != out[j].RevenuePotentialCents {
			return out[i].RevenuePotentialCents > out[j].RevenuePotentialCents
		}
		return out[i].StaffID < out[j].StaffID
	})
	return out, nil
}

// ForecastCapacity projects utilization for each of the next days calendar
// days from the trailing same-weekday history. A simple clamped moving
// average: reproducible for identical history, always within [0,100].
func (m *Manager) ForecastCapacity(ctx context.Context, staffID string, days int) ([]*ForecastDay, error) {
	if days <= 0 {
		return nil, appointments.ErrInvalidDuration
	}
	if _, err := m.roster.GetByID(ctx, staffID); err != nil {
		return nil, err
	}

	today := dateOnly(m.now())
	out := []*ForecastDay{}
	for i := 1; i <= days; i++ {
		target := today.AddDate(0, 0, i)

		var sum float64
		var samples int
		for week := 1; week <= forecastLookbackWeeks; week++ {
			// Same weekday, `week` weeks back from the target date.
			hist := target.AddDate(0, 0, -7*week)
			if !hist.Before(today) {
				continue
			}
			snap, err := m.compute(ctx, staffID, hist)
			if err != nil {
				return nil, err
			}
			if snap.AvailableMinutes == 0 {
				continue
			}
			sum += snap.UtilizationPct
			samples++
		}

		day := &ForecastDay{Date: target, SampleDays: samples}
		if samples > 0 {
			day.UtilizationPct = clampPct(sum / float64(samples))
		}
		out = append(out, day)
	}
	return out, nil
}

// Invalidate drops the cached snapshot for one staff+date. Booking mutations
// call this so reads never serve a stale aggregate.
func (m *Manager) Invalidate(ctx context.Context, staffID string, date time.Time) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, staffID, date); err != nil {
		m.logger.Warn("capacity snapshot invalidation failed", "staff_id", staffID, "error", err)
	}
}

// InvalidateRange drops cached snapshots for every date in the inclusive
// range. Time-off mutations call this for the dates the entry covers.
func (m *Manager) InvalidateRange(ctx context.Context, staffID string, startDate, endDate time.Time) {
	if m.cache == nil || endDate.Before(startDate) {
		return
	}
	for d := dateOnly(startDate); !d.After(endDate); d = d.AddDate(0, 0, 1) {
		m.Invalidate(ctx, staffID, d)
	}
}

// InvalidateStaff drops every cached snapshot for the staff member. Schedule
// pattern changes call this: a superseded pattern shifts capacity on an
// open-ended set of future dates.
func (m *Manager) InvalidateStaff(ctx context.Context, staffID string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateStaff(ctx, staffID); err != nil {
		m.logger.Warn("capacity staff invalidation failed", "staff_id", staffID, "error", err)
	}
}

func utilizationPct(booked, available int) float64 {
	if available == 0 {
		return 0
	}
	return float64(booked) / float64(available) * 100
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
