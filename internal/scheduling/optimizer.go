// Package scheduling ranks open appointment slots across staff and dates.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/availability"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/capacity"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
)

// Urgency controls how far forward the optimizer searches and how heavily it
// penalizes distant dates.
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
	UrgencyLow    Urgency = "low"
)

// ErrInvalidUrgency is returned for an unknown urgency tag
var ErrInvalidUrgency = errors.New("invalid urgency")

// windowDays is monotonic with urgency: more urgent, shorter horizon.
func (u Urgency) windowDays() int {
	switch u {
	case UrgencyUrgent:
		return 2
	case UrgencyHigh:
		return 5
	case UrgencyNormal:
		return 14
	case UrgencyLow:
		return 30
	}
	return 0
}

// distancePenaltyPerDay scales the future-date penalty: urgent requests
// penalize distant slots heavily.
func (u Urgency) distancePenaltyPerDay() float64 {
	switch u {
	case UrgencyUrgent:
		return 5.0
	case UrgencyHigh:
		return 2.0
	case UrgencyNormal:
		return 0.5
	case UrgencyLow:
		return 0.2
	}
	return 0
}

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	return u.windowDays() > 0
}

// Criteria describes a slot search.
type Criteria struct {
	PatientID        string              `json:"patient_id"`
	TypeID           string              `json:"type_id"`
	PreferredDate    *time.Time          `json:"preferred_date,omitempty"`
	PreferredTime    *schedule.TimeOfDay `json:"preferred_time,omitempty"`
	PreferredStaffID string              `json:"preferred_staff_id,omitempty"`
	Urgency          Urgency             `json:"urgency"`
	DurationMinutes  int                 `json:"duration_minutes,omitempty"`
}

// Candidate is one ranked slot proposal. Its interval is exactly the
// requested duration anchored at the start of a free interval, so booking it
// verbatim reproduces the proposal.
type Candidate struct {
	StaffID   string             `json:"staff_id"`
	Date      time.Time          `json:"date"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
	Score     float64            `json:"score"`
}

// Scoring weights. Additive; tuned for ordering, not absolute meaning.
const (
	baseScore            = 50.0
	preferredStaffBonus  = 20.0
	utilizationWeight    = 0.1 // bonus = (100 - same-day utilization%) * weight
	preferredDateBonus   = 15.0
	preferredTimeBonus   = 10.0
	preferredTimeHalfMin = 30.0 // minutes of distance that halve the time bonus
	maxCandidates        = 10
)

// Optimizer searches a bounded future window and ranks open slots.
// Results are advisory: computed from a read snapshot, so the booking write
// path re-validates transactionally.
type Optimizer struct {
	engine *availability.Engine
	capman *capacity.Manager
	roster staff.Repository
	types  appointments.TypeRepository

	now func() time.Time
}

// NewOptimizer constructs a slot optimizer.
func NewOptimizer(engine *availability.Engine, capman *capacity.Manager, roster staff.Repository, types appointments.TypeRepository) *Optimizer {
	return &Optimizer{
		engine: engine,
		capman: capman,
		roster: roster,
		types:  types,
		now:    time.Now,
	}
}

// FindOptimalSlot returns up to maxCandidates ranked slots matching the
// criteria, best first. Ties break by earliest date, then earliest start,
// then staff ID, so identical inputs always rank identically.
func (o *Optimizer) FindOptimalSlot(ctx context.Context, criteria Criteria) ([]*Candidate, error) {
	if !criteria.Urgency.Valid() {
		return nil, ErrInvalidUrgency
	}

	apptType, err := o.types.GetType(ctx, criteria.TypeID)
	if err != nil {
		return nil, err
	}
	duration := criteria.DurationMinutes
	if duration == 0 {
		duration = apptType.DefaultDuration
	}
	if duration <= 0 {
		return nil, appointments.ErrInvalidDuration
	}

	candidates, err := o.candidateStaff(ctx, criteria, apptType)
	if err != nil {
		return nil, err
	}

	searchStart := dateOnly(o.now())
	if criteria.PreferredDate != nil && criteria.PreferredDate.After(searchStart) {
		searchStart = dateOnly(*criteria.PreferredDate)
	}
	windowDays := criteria.Urgency.windowDays()

	ranked := []*Candidate{}
	for dayOffset := 0; dayOffset < windowDays; dayOffset++ {
		date := searchStart.AddDate(0, 0, dayOffset)
		for _, member := range candidates {
			slots, err := o.engine.ComputeAvailability(ctx, member.ID, date, duration)
			if err != nil {
				return nil, fmt.Errorf("scheduling: availability for %s: %w", member.ID, err)
			}
			if len(slots) == 0 {
				continue
			}

			snap, err := o.capman.GetCapacityForDate(ctx, member.ID, date)
			if err != nil {
				return nil, fmt.Errorf("scheduling: capacity for %s: %w", member.ID, err)
			}

			for _, slot := range slots {
				c := &Candidate{
					StaffID:   member.ID,
					Date:      date,
					StartTime: slot.StartTime,
					EndTime:   slot.StartTime + schedule.TimeOfDay(duration),
				}
				c.Score = o.score(c, criteria, snap, dayOffset)
				ranked = append(ranked, c)
			}
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].Date.Equal(ranked[j].Date) {
			return ranked[i].Date.Before(ranked[j].Date)
		}
		if ranked[i].StartTime != ranked[j].StartTime {
			return ranked[i].StartTime < ranked[j].StartTime
		}
		return ranked[i].StaffID < ranked[j].StaffID
	})

	if len(ranked) > maxCandidates {
		ranked = ranked[:maxCandidates]
	}
	return ranked, nil
}

// candidateStaff resolves the staff set: the preferred member alone when
// given, otherwise every active member qualified for the appointment type.
func (o *Optimizer) candidateStaff(ctx context.Context, criteria Criteria, apptType *appointments.AppointmentType) ([]*staff.Member, error) {
	if criteria.PreferredStaffID != "" {
		member, err := o.roster.GetByID(ctx, criteria.PreferredStaffID)
		if err != nil {
			return nil, err
		}
		return []*staff.Member{member}, nil
	}

	members, err := o.roster.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list staff: %w", err)
	}
	qualified := []*staff.Member{}
	for _, m := range members {
		if m.QualifiedFor(apptType.RequiredRole) {
			qualified = append(qualified, m)
		}
	}
	return qualified, nil
}

// score combines the additive factors: baseline, preferred-staff bonus,
// load balancing toward underused capacity, proximity to the preferred
// date/time, and an urgency-scaled penalty for distant dates.
func (o *Optimizer) score(c *Candidate, criteria Criteria, snap *capacity.Snapshot, dayOffset int) float64 {
	score := baseScore

	if criteria.PreferredStaffID != "" && c.StaffID == criteria.PreferredStaffID {
		score += preferredStaffBonus
	}

	// Favor filling staff whose day is emptier.
	score += (100 - snap.UtilizationPct) * utilizationWeight

	if criteria.PreferredDate != nil {
		daysDiff := absDays(c.Date, dateOnly(*criteria.PreferredDate))
		score += preferredDateBonus / float64(1+daysDiff)
	}
	if criteria.PreferredTime != nil {
		minutesDiff := c.StartTime - *criteria.PreferredTime
		if minutesDiff < 0 {
			minutesDiff = -minutesDiff
		}
		score += preferredTimeBonus / (1 + float64(minutesDiff)/preferredTimeHalfMin)
	}

	score -= float64(dayOffset) * criteria.Urgency.distancePenaltyPerDay()
	return score
}

func absDays(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
