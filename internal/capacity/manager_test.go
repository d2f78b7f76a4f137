package capacity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/availability"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
)

const (
	drOne     = "33333333-3333-4333-8333-333333333333"
	drTwo     = "44444444-4444-4444-8444-444444444444"
	patientID = "11111111-1111-4111-8111-111111111111"
	consultID = "55555555-5555-4555-8555-555555555555"
)

// monday is a Monday.
var monday = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

type fixture struct {
	schedules *schedule.InMemoryRepository
	appts     *appointments.InMemoryRepository
	types     *appointments.InMemoryTypeRepository
	roster    *staff.InMemoryRepository
	manager   *Manager
}

func newFixture(t *testing.T, cache *SnapshotCache) *fixture {
	t.Helper()
	f := &fixture{
		schedules: schedule.NewInMemoryRepository(),
		appts:     appointments.NewInMemoryRepository(),
		types:     appointments.NewInMemoryTypeRepository(),
		roster:    staff.NewInMemoryRepository(),
	}
	f.roster.Put(&staff.Member{ID: drOne, Name: "Dr. One", Role: "physician", Active: true})
	f.roster.Put(&staff.Member{ID: drTwo, Name: "Dr. Two", Role: "physician", Active: true})
	f.types.Put(&appointments.AppointmentType{
		ID: consultID, Name: "Consultation", DefaultDuration: 30, ExpectedRevenueCents: 15000,
	})

	engine := availability.NewEngine(f.schedules, f.appts, f.roster, availability.Policy{PendingTimeOffBlocks: true})
	f.manager = NewManager(engine, f.appts, f.types, f.roster, cache, 250, nil, nil)
	f.manager.now = func() time.Time { return monday }
	return f
}

// addWeekSchedule gives the staff member the same hours every weekday.
func (f *fixture) addWeekSchedule(t *testing.T, staffID string, start, end schedule.TimeOfDay) {
	t.Helper()
	for wd := time.Monday; wd <= time.Friday; wd++ {
		_, err := f.schedules.CreateSchedule(context.Background(), &schedule.CreateScheduleRequest{
			StaffID:         staffID,
			Weekday:         wd,
			StartTime:       start,
			EndTime:         end,
			MaxAppointments: 16,
			DefaultDuration: 30,
			EffectiveFrom:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("addWeekSchedule: %v", err)
		}
	}
}

func (f *fixture) book(t *testing.T, staffID string, d time.Time, start, end schedule.TimeOfDay) {
	t.Helper()
	_, err := f.appts.Create(context.Background(), &appointments.CreateAppointmentRequest{
		PatientID: patientID,
		StaffID:   staffID,
		TypeID:    consultID,
		Date:      d,
		StartTime: start,
		EndTime:   end,
		CreatedBy: "test",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
}

// 480 available minutes with 360 booked is 75% utilization.
func TestGetCapacityForDate(t *testing.T) {
	f := newFixture(t, nil)
	f.addWeekSchedule(t, drOne, 540, 1020) // 8h
	// Six one-hour appointments.
	for i := 0; i < 6; i++ {
		start := schedule.TimeOfDay(540 + i*60)
		f.book(t, drOne, monday, start, start+60)
	}

	snap, err := f.manager.GetCapacityForDate(context.Background(), drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if snap.AvailableMinutes != 480 {
		t.Errorf("available = %d, want 480", snap.AvailableMinutes)
	}
	if snap.BookedMinutes != 360 {
		t.Errorf("booked = %d, want 360", snap.BookedMinutes)
	}
	if snap.AppointmentsScheduled != 6 {
		t.Errorf("scheduled = %d, want 6", snap.AppointmentsScheduled)
	}
	if snap.UtilizationPct != 75.0 {
		t.Errorf("utilization = %v, want 75.0", snap.UtilizationPct)
	}
	if snap.ExpectedRevenueCents != 6*15000 {
		t.Errorf("expected revenue = %d, want %d", snap.ExpectedRevenueCents, 6*15000)
	}
}

func TestGetCapacityForDateUnscheduledDay(t *testing.T) {
	f := newFixture(t, nil)
	// No schedule: zero available, zero utilization, no division by zero.
	snap, err := f.manager.GetCapacityForDate(context.Background(), drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if snap.AvailableMinutes != 0 || snap.UtilizationPct != 0 {
		t.Errorf("unexpected snapshot for day off: %+v", snap)
	}
}

func TestGetCapacityForDateUnknownStaff(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.manager.GetCapacityForDate(context.Background(), "77777777-7777-4777-8777-777777777777", monday); !errors.Is(err, staff.ErrStaffNotFound) {
		t.Errorf("expected ErrStaffNotFound, got %v", err)
	}
}

func TestGetCapacityRange(t *testing.T) {
	f := newFixture(t, nil)
	f.addWeekSchedule(t, drOne, 540, 1020)

	snaps, err := f.manager.GetCapacityRange(context.Background(), []string{drOne}, monday, monday.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("GetCapacityRange: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}

	if _, err := f.manager.GetCapacityRange(context.Background(), []string{drOne}, monday, monday.AddDate(0, 0, -1)); !errors.Is(err, schedule.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestGetUnderutilizedStaff(t *testing.T) {
	f := newFixture(t, nil)
	f.addWeekSchedule(t, drOne, 540, 1020) // 480 min
	f.addWeekSchedule(t, drTwo, 540, 1020)

	// drOne 75% booked, drTwo 25% booked.
	for i := 0; i < 6; i++ {
		start := schedule.TimeOfDay(540 + i*60)
		f.book(t, drOne, monday, start, start+60)
	}
	f.book(t, drTwo, monday, 540, 660)

	out, err := f.manager.GetUnderutilizedStaff(context.Background(), monday, 50)
	if err != nil {
		t.Fatalf("GetUnderutilizedStaff: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 underutilized member, got %d", len(out))
	}
	if out[0].StaffID != drTwo {
		t.Errorf("expected drTwo, got %s", out[0].StaffID)
	}
	// 360 unbooked minutes at 250 cents/min.
	if out[0].RevenuePotentialCents != 360*250 {
		t.Errorf("revenue potential = %d, want %d", out[0].RevenuePotentialCents, 360*250)
	}

	// At a 80% threshold both qualify; order is utilization ascending.
	out, err = f.manager.GetUnderutilizedStaff(context.Background(), monday, 80)
	if err != nil {
		t.Fatalf("GetUnderutilizedStaff: %v", err)
	}
	if len(out) != 2 || out[0].StaffID != drTwo || out[1].StaffID != drOne {
		t.Errorf("unexpected ordering: %v", out)
	}
}

// Staff with no schedule that day are off, not underutilized.
func TestGetUnderutilizedStaffExcludesDaysOff(t *testing.T) {
	f := newFixture(t, nil)
	f.addWeekSchedule(t, drOne, 540, 1020)
	// drTwo has no schedule at all.

	out, err := f.manager.GetUnderutilizedStaff(context.Background(), monday, 50)
	if err != nil {
		t.Fatalf("GetUnderutilizedStaff: %v", err)
	}
	if len(out) != 1 || out[0].StaffID != drOne {
		t.Errorf("expected only drOne, got %v", out)
	}
}

func TestForecastCapacity(t *testing.T) {
	f := newFixture(t, nil)
	f.addWeekSchedule(t, drOne, 540, 1020)

	// Book 50% of each of the three trailing same-weekday Tuesdays.
	target := monday.AddDate(0, 0, 1) // Tuesday
	for week := 1; week <= 3; week++ {
		hist := target.AddDate(0, 0, -7*week)
		f.book(t, drOne, hist, 540, 780) // 240 of 480 minutes
	}

	out, err := f.manager.ForecastCapacity(context.Background(), drOne, 2)
	if err != nil {
		t.Fatalf("ForecastCapacity: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 forecast days, got %d", len(out))
	}

	tue := out[0]
	if !schedule.SameDate(tue.Date, target) {
		t.Errorf("first forecast date = %v, want %v", tue.Date, target)
	}
	if tue.SampleDays != forecastLookbackWeeks {
		t.Errorf("sample days = %d, want %d", tue.SampleDays, forecastLookbackWeeks)
	}
	// Three weeks at 50%, three empty weeks at 0%.
	if tue.UtilizationPct != 25.0 {
		t.Errorf("forecast utilization = %v, want 25.0", tue.UtilizationPct)
	}
	if tue.UtilizationPct < 0 || tue.UtilizationPct > 100 {
		t.Errorf("forecast out of bounds: %v", tue.UtilizationPct)
	}

	// Identical history gives an identical projection.
	again, err := f.manager.ForecastCapacity(context.Background(), drOne, 2)
	if err != nil {
		t.Fatalf("ForecastCapacity: %v", err)
	}
	if again[0].UtilizationPct != tue.UtilizationPct {
		t.Errorf("forecast not reproducible: %v vs %v", again[0].UtilizationPct, tue.UtilizationPct)
	}

	if _, err := f.manager.ForecastCapacity(context.Background(), drOne, 0); !errors.Is(err, appointments.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration for 0 days, got %v", err)
	}
}

func TestCapacityCacheReadThroughAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSnapshotCache(client, time.Minute, nil)

	f := newFixture(t, cache)
	f.addWeekSchedule(t, drOne, 540, 1020)
	ctx := context.Background()

	first, err := f.manager.GetCapacityForDate(ctx, drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if first.BookedMinutes != 0 {
		t.Fatalf("expected empty day, got %+v", first)
	}

	// A booking behind the cache's back is invisible until invalidation.
	f.book(t, drOne, monday, 540, 600)
	stale, err := f.manager.GetCapacityForDate(ctx, drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if stale.BookedMinutes != 0 {
		t.Fatalf("expected cached snapshot, got %+v", stale)
	}

	f.manager.Invalidate(ctx, drOne, monday)
	fresh, err := f.manager.GetCapacityForDate(ctx, drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if fresh.BookedMinutes != 60 {
		t.Errorf("expected recomputed snapshot with 60 booked minutes, got %+v", fresh)
	}
}

// Time-off mutations go through the admin handler, which must drop cached
// snapshots the same way booking mutations do. Pending requests block in
// this fixture, so the request and the decision each shift capacity and
// each must invalidate on its own.
func TestTimeOffMutationsRefreshSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSnapshotCache(client, time.Minute, nil)

	f := newFixture(t, cache)
	f.addWeekSchedule(t, drOne, 540, 1020)
	ctx := context.Background()

	h := schedule.NewHandler(f.schedules, f.manager, nil)
	r := chi.NewRouter()
	r.Post("/staff/{staffID}/timeoff", h.CreateTimeOff)
	r.Post("/timeoff/{id}/decision", h.DecideTimeOff)

	warm, err := f.manager.GetCapacityForDate(ctx, drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if warm.AvailableMinutes != 480 {
		t.Fatalf("available = %d, want 480", warm.AvailableMinutes)
	}

	body := `{"start_date":"2026-05-04","end_date":"2026-05-04","all_day":true,"reason":"vacation"}`
	req := httptest.NewRequest(http.MethodPost, "/staff/"+drOne+"/timeoff", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create time off status = %d: %s", rec.Code, rec.Body.String())
	}
	var entry schedule.TimeOff
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode time off: %v", err)
	}

	blocked, err := f.manager.GetCapacityForDate(ctx, drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if blocked.AvailableMinutes != 0 {
		t.Errorf("available after pending time off = %d, want 0", blocked.AvailableMinutes)
	}

	// The zero-availability snapshot is now cached. Rejecting the request
	// restores the working day, so the decision must invalidate too.
	decision := httptest.NewRequest(http.MethodPost, "/timeoff/"+entry.ID+"/decision",
		strings.NewReader(`{"approve":false,"approver_id":"admin-1"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, decision)
	if rec.Code != http.StatusOK {
		t.Fatalf("decide time off status = %d: %s", rec.Code, rec.Body.String())
	}

	restored, err := f.manager.GetCapacityForDate(ctx, drOne, monday)
	if err != nil {
		t.Fatalf("GetCapacityForDate: %v", err)
	}
	if restored.AvailableMinutes != 480 {
		t.Errorf("available after rejection = %d, want 480", restored.AvailableMinutes)
	}
}
