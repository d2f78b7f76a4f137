package capacity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

// Handler exposes capacity dashboards over HTTP.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

// NewHandler creates a capacity HTTP handler.
func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// GetCapacity handles GET /staff/{staffID}/capacity?date=YYYY-MM-DD
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	snap, err := h.manager.GetCapacityForDate(r.Context(), chi.URLParam(r, "staffID"), date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetCapacityRange handles GET /capacity?staff_ids=a,b&start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) GetCapacityRange(w http.ResponseWriter, r *http.Request) {
	start, err := schedule.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, `{"error": "start must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	end, err := schedule.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, `{"error": "end must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	var staffIDs []string
	if raw := strings.TrimSpace(r.URL.Query().Get("staff_ids")); raw != "" {
		staffIDs = strings.Split(raw, ",")
	}

	snaps, err := h.manager.GetCapacityRange(r.Context(), staffIDs, start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capacity": snaps, "count": len(snaps)})
}

// GetUnderutilized handles GET /capacity/underutilized?date=YYYY-MM-DD&threshold=75
func (h *Handler) GetUnderutilized(w http.ResponseWriter, r *http.Request) {
	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	threshold := 75.0
	if t := r.URL.Query().Get("threshold"); t != "" {
		threshold, err = strconv.ParseFloat(t, 64)
		if err != nil {
			http.Error(w, `{"error": "threshold must be a number"}`, http.StatusBadRequest)
			return
		}
	}

	out, err := h.manager.GetUnderutilizedStaff(r.Context(), date, threshold)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": out, "count": len(out), "threshold_pct": threshold})
}

// Forecast handles GET /staff/{staffID}/capacity/forecast?days=7
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed <= 0 {
			http.Error(w, `{"error": "days must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		days = parsed
	}

	out, err := h.manager.ForecastCapacity(r.Context(), chi.URLParam(r, "staffID"), days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forecast": out, "days": days})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staff.ErrStaffNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "kind": "not_found"})
	case errors.Is(err, schedule.ErrInvalidDateRange):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "validation"})
	default:
		h.logger.Error("capacity request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error", "kind": "store"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
