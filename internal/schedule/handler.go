package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

// CapacityInvalidator drops derived capacity state after a mutation, so
// reads never serve aggregates computed from superseded schedules or stale
// time-off status.
type CapacityInvalidator interface {
	InvalidateStaff(ctx context.Context, staffID string)
	InvalidateRange(ctx context.Context, staffID string, startDate, endDate time.Time)
}

// Handler exposes schedule and time-off administration over HTTP.
type Handler struct {
	repo     Repository
	capacity CapacityInvalidator
	logger   *logging.Logger
}

// NewHandler creates a schedule HTTP handler. capacity may be nil when no
// snapshot cache is configured.
func NewHandler(repo Repository, capacity CapacityInvalidator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, capacity: capacity, logger: logger}
}

type createScheduleBody struct {
	Weekday         int        `json:"weekday"`
	StartTime       TimeOfDay  `json:"start_time"`
	EndTime         TimeOfDay  `json:"end_time"`
	BreakStart      *TimeOfDay `json:"break_start,omitempty"`
	BreakEnd        *TimeOfDay `json:"break_end,omitempty"`
	MaxAppointments int        `json:"max_appointments"`
	DefaultDuration int        `json:"default_duration_minutes"`
	EffectiveFrom   string     `json:"effective_from"`
	EffectiveUntil  string     `json:"effective_until,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// CreateSchedule handles POST /staff/{staffID}/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")

	var body createScheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	from, err := ParseDate(body.EffectiveFrom)
	if err != nil {
		http.Error(w, `{"error": "effective_from must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	var until *time.Time
	if body.EffectiveUntil != "" {
		u, err := ParseDate(body.EffectiveUntil)
		if err != nil {
			http.Error(w, `{"error": "effective_until must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		until = &u
	}

	entry, err := h.repo.CreateSchedule(r.Context(), &CreateScheduleRequest{
		StaffID:         staffID,
		Weekday:         time.Weekday(body.Weekday),
		StartTime:       body.StartTime,
		EndTime:         body.EndTime,
		BreakStart:      body.BreakStart,
		BreakEnd:        body.BreakEnd,
		MaxAppointments: body.MaxAppointments,
		DefaultDuration: body.DefaultDuration,
		EffectiveFrom:   from,
		EffectiveUntil:  until,
		Notes:           body.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	// A new pattern supersedes the old one for every future date on that
	// weekday, so drop all of the staff member's cached snapshots.
	if h.capacity != nil {
		h.capacity.InvalidateStaff(r.Context(), staffID)
	}

	h.logger.Info("schedule created", "staff_id", staffID, "weekday", body.Weekday)
	writeJSON(w, http.StatusCreated, entry)
}

// ListSchedules handles GET /staff/{staffID}/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.ListSchedules(r.Context(), chi.URLParam(r, "staffID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": entries, "count": len(entries)})
}

type createTimeOffBody struct {
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	StartTime *TimeOfDay    `json:"start_time,omitempty"`
	EndTime   *TimeOfDay    `json:"end_time,omitempty"`
	AllDay    bool          `json:"all_day"`
	Reason    TimeOffReason `json:"reason"`
}

// CreateTimeOff handles POST /staff/{staffID}/timeoff
func (h *Handler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")

	var body createTimeOffBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	start, err := ParseDate(body.StartDate)
	if err != nil {
		http.Error(w, `{"error": "start_date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	end, err := ParseDate(body.EndDate)
	if err != nil {
		http.Error(w, `{"error": "end_date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	entry, err := h.repo.CreateTimeOff(r.Context(), &CreateTimeOffRequest{
		StaffID:   staffID,
		StartDate: start,
		EndDate:   end,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		AllDay:    body.AllDay,
		Reason:    body.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Pending requests can already block availability, depending on policy.
	if h.capacity != nil {
		h.capacity.InvalidateRange(r.Context(), staffID, entry.StartDate, entry.EndDate)
	}

	h.logger.Info("time off requested", "staff_id", staffID, "reason", string(body.Reason))
	writeJSON(w, http.StatusCreated, entry)
}

// DecideTimeOff handles POST /timeoff/{id}/decision
func (h *Handler) DecideTimeOff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approve    bool   `json:"approve"`
		ApproverID string `json:"approver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if body.ApproverID == "" {
		// Admin auth propagates the token subject into the actor header.
		body.ApproverID = r.Header.Get("X-Actor-ID")
	}
	if body.ApproverID == "" {
		http.Error(w, `{"error": "approver_id required"}`, http.StatusBadRequest)
		return
	}

	entry, err := h.repo.DecideTimeOff(r.Context(), chi.URLParam(r, "id"), body.Approve, body.ApproverID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.capacity != nil {
		h.capacity.InvalidateRange(r.Context(), entry.StaffID, entry.StartDate, entry.EndDate)
	}

	h.logger.Info("time off decided", "id", entry.ID, "status", string(entry.Status), "approver", body.ApproverID)
	writeJSON(w, http.StatusOK, entry)
}

// ListTimeOff handles GET /staff/{staffID}/timeoff?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListTimeOff(w http.ResponseWriter, r *http.Request) {
	from, err := ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, `{"error": "from must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	to, err := ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, `{"error": "to must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	entries, err := h.repo.ListTimeOff(r.Context(), chi.URLParam(r, "staffID"), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time_off": entries, "count": len(entries)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrScheduleNotFound), errors.Is(err, ErrTimeOffNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "kind": "not_found"})
	case errors.Is(err, ErrTimeOffDecided):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "kind": "conflict"})
	case errors.Is(err, ErrInvalidTimeRange),
		errors.Is(err, ErrInvalidBreakWindow),
		errors.Is(err, ErrInvalidDateRange),
		errors.Is(err, ErrInvalidWeekday),
		errors.Is(err, ErrInvalidReason):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "validation"})
	default:
		h.logger.Error("schedule request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error", "kind": "store"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
