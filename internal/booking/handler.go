package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/scheduling"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

// actorHeader carries the authenticated caller's identifier; the outer
// layers authenticate, the core only records who acted.
const actorHeader = "X-Actor-ID"

// Handler exposes the booking service over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a booking HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	// CurrentStatus is set on state conflicts so callers can retry with
	// fresh data.
	CurrentStatus string `json:"current_status,omitempty"`
}

// writeError maps the core's error taxonomy onto HTTP statuses:
// validation -> 400, not found -> 404, state/booking conflict -> 409,
// everything else -> 500.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	resp.Kind = "store"

	var sc *appointments.StateConflictError
	switch {
	case errors.As(err, &sc):
		status = http.StatusConflict
		resp.Kind = "state_conflict"
		resp.CurrentStatus = string(sc.Current)
	case errors.Is(err, appointments.ErrBookingConflict),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrCheckInDateMismatch),
		errors.Is(err, ErrNoShowBeforeDate),
		errors.Is(err, schedule.ErrTimeOffDecided):
		status = http.StatusConflict
		resp.Kind = "conflict"
	case errors.Is(err, staff.ErrStaffNotFound),
		errors.Is(err, appointments.ErrAppointmentNotFound),
		errors.Is(err, appointments.ErrTypeNotFound),
		errors.Is(err, schedule.ErrScheduleNotFound),
		errors.Is(err, schedule.ErrTimeOffNotFound):
		status = http.StatusNotFound
		resp.Kind = "not_found"
	case errors.Is(err, appointments.ErrInvalidDuration),
		errors.Is(err, appointments.ErrInvalidInterval),
		errors.Is(err, appointments.ErrInvalidIdentifier),
		errors.Is(err, scheduling.ErrInvalidUrgency),
		errors.Is(err, ErrMissingActor),
		errors.Is(err, schedule.ErrInvalidTimeRange),
		errors.Is(err, schedule.ErrInvalidBreakWindow),
		errors.Is(err, schedule.ErrInvalidDateRange),
		errors.Is(err, schedule.ErrInvalidWeekday),
		errors.Is(err, schedule.ErrInvalidReason):
		status = http.StatusBadRequest
		resp.Kind = "validation"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// CheckAvailability handles GET /staff/{staffID}/availability?date=YYYY-MM-DD&duration=30
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")
	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}

	duration := 0
	if d := r.URL.Query().Get("duration"); d != "" {
		duration, err = strconv.Atoi(d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "duration must be an integer", Kind: "validation"})
			return
		}
	}

	slots, err := h.svc.CheckAvailability(r.Context(), staffID, date, duration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots, "count": len(slots)})
}

type searchRequest struct {
	PatientID        string              `json:"patient_id"`
	TypeID           string              `json:"type_id"`
	PreferredDate    string              `json:"preferred_date,omitempty"`
	PreferredTime    *schedule.TimeOfDay `json:"preferred_time,omitempty"`
	PreferredStaffID string              `json:"preferred_staff_id,omitempty"`
	Urgency          string              `json:"urgency"`
	DurationMinutes  int                 `json:"duration_minutes,omitempty"`
}

// FindOptimalSlot handles POST /appointments/search
func (h *Handler) FindOptimalSlot(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	criteria := scheduling.Criteria{
		PatientID:        req.PatientID,
		TypeID:           req.TypeID,
		PreferredTime:    req.PreferredTime,
		PreferredStaffID: req.PreferredStaffID,
		Urgency:          scheduling.Urgency(req.Urgency),
		DurationMinutes:  req.DurationMinutes,
	}
	if req.PreferredDate != "" {
		d, err := schedule.ParseDate(req.PreferredDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
			return
		}
		criteria.PreferredDate = &d
	}

	candidates, err := h.svc.FindOptimalSlot(r.Context(), criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates, "count": len(candidates)})
}

type bookRequest struct {
	PatientID string             `json:"patient_id"`
	StaffID   string             `json:"staff_id"`
	TypeID    string             `json:"type_id"`
	Date      string             `json:"date"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
	Notes     string             `json:"notes,omitempty"`
}

// Book handles POST /appointments
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(actorHeader)
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}

	appt, err := h.svc.Book(r.Context(), &appointments.CreateAppointmentRequest{
		PatientID: req.PatientID,
		StaffID:   req.StaffID,
		TypeID:    req.TypeID,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
		CreatedBy: actor,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// GetAppointment handles GET /appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Confirm handles POST /appointments/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	appt, err := h.svc.Confirm(r.Context(), chi.URLParam(r, "id"), appointments.ConfirmationSource(req.Source), r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// CheckIn handles POST /appointments/{id}/checkin
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.CheckIn(r.Context(), chi.URLParam(r, "id"), r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Complete handles POST /appointments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActualRevenueCents *int64 `json:"actual_revenue_cents,omitempty"`
		Notes              string `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	appt, err := h.svc.Complete(r.Context(), chi.URLParam(r, "id"), req.ActualRevenueCents, req.Notes, r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Cancel handles POST /appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"), r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// MarkNoShow handles POST /appointments/{id}/no-show
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.MarkNoShow(r.Context(), chi.URLParam(r, "id"), r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	StaffID   string             `json:"staff_id,omitempty"`
	Date      string             `json:"date"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
	Notes     string             `json:"notes,omitempty"`
}

// Reschedule handles POST /appointments/{id}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}

	original, replacement, err := h.svc.Reschedule(
		r.Context(),
		chi.URLParam(r, "id"),
		req.StaffID,
		date,
		int(req.StartTime),
		int(req.EndTime),
		req.Notes,
		r.Header.Get(actorHeader),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"original":    original,
		"replacement": replacement,
	})
}
