package appointments

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlashealth/booking-platform/internal/schedule"
	"github.com/atlashealth/booking-platform/pkg/logging"
)

// Handler exposes the booking flows over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("appointments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateAppointmentRequest is the body of POST /appointments and
// POST /appointments/recurring.
type CreateAppointmentRequest struct {
	ProviderID      string `json:"provider_id"`
	ClientID        string `json:"client_id"`
	Date            string `json:"date"` // YYYY-MM-DD
	Time            string `json:"time"` // HH:MM
	DurationMinutes int    `json:"duration_minutes"`
	Cadence         string `json:"cadence,omitempty"`
	ClientNotes     string `json:"client_notes,omitempty"`
}

type conflictResponse struct {
	Error     string              `json:"error"`
	Slot      string              `json:"slot"`
	Conflicts []schedule.Conflict `json:"conflicts"`
}

// CreateAppointment handles POST /appointments. The cadence is pinned
// to single; recurring bookings go through CreateRecurring.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	h.book(w, r, schedule.CadenceSingle)
}

// CreateRecurring handles POST /appointments/recurring.
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cadence := schedule.Cadence(req.Cadence)
	if cadence != schedule.CadenceWeekly && cadence != schedule.CadenceBiweekly {
		http.Error(w, "cadence must be weekly or biweekly", http.StatusBadRequest)
		return
	}
	h.bookDecoded(w, r, req, cadence)
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request, cadence schedule.Cadence) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.bookDecoded(w, r, req, cadence)
}

func (h *Handler) bookDecoded(w http.ResponseWriter, r *http.Request, req CreateAppointmentRequest, cadence schedule.Cadence) {
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		http.Error(w, "invalid provider_id", http.StatusBadRequest)
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		http.Error(w, "invalid client_id", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Book(r.Context(), BookingRequest{
		ProviderID:      providerID,
		ClientID:        clientID,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Cadence:         cadence,
		ClientNotes:     req.ClientNotes,
	})
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) writeBookingError(w http.ResponseWriter, err error) {
	var conflict *schedule.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:     "slot unavailable",
			Slot:      conflict.Slot,
			Conflicts: conflict.Conflicts,
		})
	case errors.Is(err, ErrSlotTaken):
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "slot unavailable"})
	case errors.Is(err, schedule.ErrNoCandidates):
		http.Error(w, "no occurrences could be scheduled", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("booking failed", "error", err)
		http.Error(w, "failed to book appointment", http.StatusInternalServerError)
	}
}

// ListProviderAppointmentsResponse is the body of
// GET /providers/{providerID}/appointments.
type ListProviderAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
	Count        int           `json:"count"`
}

// ListProviderAppointments handles GET /providers/{providerID}/appointments.
func (h *Handler) ListProviderAppointments(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.providerParam(w, r)
	if !ok {
		return
	}
	appts, err := h.svc.ListProvider(r.Context(), providerID)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "provider_id", providerID)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListProviderAppointmentsResponse{
		Appointments: appts,
		Count:        len(appts),
	})
}

// MonthViewResponse is the body of the month calendar endpoint.
type MonthViewResponse struct {
	Month  string         `json:"month"`
	Counts map[string]int `json:"counts"`
}

// MonthView handles GET /providers/{providerID}/calendar/month?year=&month=.
func (h *Handler) MonthView(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.providerParam(w, r)
	if !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1 {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}
	monthKey := fmt.Sprintf("%04d-%02d", year, month)

	counts, err := h.svc.MonthView(r.Context(), providerID, monthKey)
	if err != nil {
		h.logger.Error("failed to build month view", "error", err, "provider_id", providerID)
		http.Error(w, "failed to build month view", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, MonthViewResponse{Month: monthKey, Counts: counts})
}

// WeekViewHandler handles GET /providers/{providerID}/calendar/week?date=.
func (h *Handler) WeekViewHandler(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.providerParam(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	view, err := h.svc.WeekView(r.Context(), providerID, date)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to build week view", "error", err, "provider_id", providerID)
		http.Error(w, "failed to build week view", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateStatusRequest is the body of PATCH /appointments/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /appointments/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Transition(r.Context(), id, Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, ErrSlotTaken):
			http.Error(w, "slot unavailable", http.StatusConflict)
		default:
			h.logger.Error("failed to update status", "error", err, "id", id)
			http.Error(w, "failed to update status", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// UpdateNotesRequest is the body of PATCH /appointments/{id}/notes.
// Absent fields are left unchanged.
type UpdateNotesRequest struct {
	ClientNotes   *string `json:"client_notes"`
	ProviderNotes *string `json:"provider_notes"`
}

// UpdateNotes handles PATCH /appointments/{id}/notes.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.UpdateNotes(r.Context(), id, req.ClientNotes, req.ProviderNotes); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("failed to update notes", "error", err, "id", id)
			http.Error(w, "failed to update notes", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) providerParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
