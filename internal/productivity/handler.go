package productivity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

// Handler exposes productivity metrics over HTTP.
type Handler struct {
	tracker *Tracker
	logger  *logging.Logger
}

// NewHandler creates a productivity HTTP handler.
func NewHandler(tracker *Tracker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{tracker: tracker, logger: logger}
}

// GetStaffMetrics handles GET /staff/{staffID}/metrics?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) GetStaffMetrics(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	m, err := h.tracker.GetStaffMetrics(r.Context(), chi.URLParam(r, "staffID"), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetClinicMetrics handles GET /metrics/clinic?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) GetClinicMetrics(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	m, err := h.tracker.GetClinicMetrics(r.Context(), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func parsePeriod(w http.ResponseWriter, r *http.Request) (Period, bool) {
	start, err := schedule.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, `{"error": "start must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return Period{}, false
	}
	end, err := schedule.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, `{"error": "end must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staff.ErrStaffNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "kind": "not_found"})
	case errors.Is(err, schedule.ErrInvalidDateRange):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "validation"})
	default:
		h.logger.Error("productivity request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error", "kind": "store"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
