package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/booking"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/capacity"
	httpmiddleware "github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/http/middleware"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/productivity"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	BookingHandler      *booking.Handler
	ScheduleHandler     *schedule.Handler
	CapacityHandler     *capacity.Handler
	ProductivityHandler *productivity.Handler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Staff-scoped read endpoints
	r.Route("/staff/{staffID}", func(r chi.Router) {
		if cfg.BookingHandler != nil {
			r.Get("/availability", cfg.BookingHandler.CheckAvailability)
		}
		if cfg.CapacityHandler != nil {
			r.Get("/capacity", cfg.CapacityHandler.GetCapacity)
			r.Get("/capacity/forecast", cfg.CapacityHandler.Forecast)
		}
		if cfg.ProductivityHandler != nil {
			r.Get("/metrics", cfg.ProductivityHandler.GetStaffMetrics)
		}
		if cfg.ScheduleHandler != nil {
			r.Get("/schedules", cfg.ScheduleHandler.ListSchedules)
			r.Get("/timeoff", cfg.ScheduleHandler.ListTimeOff)
		}
	})

	// Clinic-wide read endpoints
	if cfg.CapacityHandler != nil {
		r.Route("/capacity", func(r chi.Router) {
			r.Get("/", cfg.CapacityHandler.GetCapacityRange)
			r.Get("/underutilized", cfg.CapacityHandler.GetUnderutilized)
		})
	}
	if cfg.ProductivityHandler != nil {
		r.Get("/metrics/clinic", cfg.ProductivityHandler.GetClinicMetrics)
	}

	// Booking lifecycle endpoints
	if cfg.BookingHandler != nil {
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", cfg.BookingHandler.Book)
			r.Post("/search", cfg.BookingHandler.FindOptimalSlot)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.BookingHandler.GetAppointment)
				r.Post("/confirm", cfg.BookingHandler.Confirm)
				r.Post("/checkin", cfg.BookingHandler.CheckIn)
				r.Post("/complete", cfg.BookingHandler.Complete)
				r.Post("/cancel", cfg.BookingHandler.Cancel)
				r.Post("/no-show", cfg.BookingHandler.MarkNoShow)
				r.Post("/reschedule", cfg.BookingHandler.Reschedule)
			})
		})
	}

	// Admin routes (schedule management, protected by JWT)
	if cfg.AdminAuthSecret != "" && cfg.ScheduleHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/staff/{staffID}/schedules", cfg.ScheduleHandler.CreateSchedule)
			admin.Post("/staff/{staffID}/timeoff", cfg.ScheduleHandler.CreateTimeOff)
			admin.Post("/timeoff/{id}/decision", cfg.ScheduleHandler.DecideTimeOff)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
