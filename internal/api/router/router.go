// Package router wires the HTTP surface of the booking platform.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atlashealth/booking-platform/internal/appointments"
	"github.com/atlashealth/booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	MetricsHandler      http.Handler

	// HealthCheck reports readiness; nil means always healthy.
	HealthCheck func(r *http.Request) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AppointmentsHandler != nil {
		h := cfg.AppointmentsHandler
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.CreateAppointment)
			r.Post("/recurring", h.CreateRecurring)
			r.Patch("/{id}/status", h.UpdateStatus)
			r.Patch("/{id}/notes", h.UpdateNotes)
		})
		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Get("/appointments", h.ListProviderAppointments)
			r.Get("/calendar/month", h.MonthView)
			r.Get("/calendar/week", h.WeekViewHandler)
		})
	}

	return r
}

func healthHandler(check func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(r); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}
