package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/atlashealth/booking-platform/internal/observability/metrics"
	"github.com/atlashealth/booking-platform/internal/schedule"
	"github.com/atlashealth/booking-platform/pkg/logging"
)

var tracer = otel.Tracer("atlas.internal.appointments")

// ErrInvalidTransition rejects a status change out of a terminal
// state or into an unknown one.
var ErrInvalidTransition = errors.New("appointments: invalid status transition")

// ErrInvalidRequest rejects a booking request with missing or
// malformed fields before it reaches the scheduling core.
var ErrInvalidRequest = errors.New("appointments: invalid request")

// Repo is the persistence surface the service needs.
type Repo interface {
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error)
	ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertDrafts(ctx context.Context, providerID, clientID uuid.UUID, drafts []schedule.Draft, clientNotes string) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetNotes(ctx context.Context, id uuid.UUID, clientNotes, providerNotes *string) error
}

// BookingRequest is one booking submission: a civil date/time anchor,
// a duration, and a cadence.
type BookingRequest struct {
	ProviderID      uuid.UUID
	ClientID        uuid.UUID
	Date            string // YYYY-MM-DD, civil
	Time            string // HH:MM, civil
	DurationMinutes int
	Cadence         schedule.Cadence
	ClientNotes     string
}

// SeriesResult reports what a booking persisted. For a truncated
// recurring series it also says where the series hit its first
// conflict, so the caller can tell the user how far it reached.
type SeriesResult struct {
	Appointments []Appointment       `json:"appointments"`
	Truncated    bool                `json:"truncated"`
	ConflictAt   string              `json:"conflict_at,omitempty"`
	Conflicts    []schedule.Conflict `json:"conflicts,omitempty"`
}

// WeekBlock is one positioned appointment in a week-view column.
type WeekBlock struct {
	AppointmentID string         `json:"appointment_id"`
	Status        string         `json:"status"`
	Start         string         `json:"start"` // HH:MM civil
	End           string         `json:"end"`
	Geometry      schedule.Block `json:"geometry"`
}

// WeekDay is one column of the week grid.
type WeekDay struct {
	DayKey string      `json:"day"`
	Blocks []WeekBlock `json:"blocks"`
}

// WeekView is the full hour-gridded week presentation.
type WeekView struct {
	Days          []WeekDay `json:"days"`
	StartHour     int       `json:"start_hour"`
	EndHour       int       `json:"end_hour"`
	PixelsPerHour int       `json:"pixels_per_hour"`
}

// Service runs the booking flows on top of the scheduling core.
//
// The conflict pre-filter here works on a snapshot read before the
// write, so two concurrent requests can both pass it. The service
// does not attempt to close that race itself; the exclusion
// constraint on the appointments table is the serialization point,
// surfaced as ErrSlotTaken.
type Service struct {
	repo     Repo
	norm     *schedule.Normalizer
	expander *schedule.Expander
	layout   *schedule.Layout
	cache    *MonthCache
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewService constructs the appointments service. cache and metrics
// may be nil.
func NewService(repo Repo, norm *schedule.Normalizer, layout *schedule.Layout, cache *MonthCache, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if norm == nil {
		panic("appointments: normalizer required")
	}
	if layout == nil {
		panic("appointments: layout required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		norm:     norm,
		expander: schedule.NewExpander(norm),
		layout:   layout,
		cache:    cache,
		metrics:  m,
		logger:   logger,
	}
}

// Book expands the request, checks every occurrence against the
// provider's current bookings, and persists what fits. Single
// bookings abort entirely on conflict; weekly and biweekly series
// keep the occurrences accepted before the first conflict.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*SeriesResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("atlas.provider_id", req.ProviderID.String()),
		attribute.String("atlas.cadence", string(req.Cadence)),
	)

	cadence := string(req.Cadence)
	if req.ProviderID == uuid.Nil || req.ClientID == uuid.Nil {
		s.metrics.ObserveAttempt(cadence, "invalid")
		return nil, fmt.Errorf("%w: provider and client ids are required", ErrInvalidRequest)
	}

	existing, err := s.repo.ListActiveByProvider(ctx, req.ProviderID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAttempt(cadence, "error")
		return nil, err
	}

	exp, err := s.expander.Expand(schedule.Request{
		ProviderID:      req.ProviderID.String(),
		ClientID:        req.ClientID.String(),
		StartDate:       req.Date,
		StartTime:       req.Time,
		DurationMinutes: req.DurationMinutes,
		Cadence:         req.Cadence,
	}, toBookings(existing))
	if err != nil {
		var conflict *schedule.ConflictError
		switch {
		case errors.As(err, &conflict):
			s.metrics.ObserveConflict()
			s.metrics.ObserveAttempt(cadence, "conflict")
			s.logger.Info("booking rejected on conflict",
				"provider_id", req.ProviderID, "slot", conflict.Slot)
			return nil, err
		case errors.Is(err, schedule.ErrNoCandidates):
			s.metrics.ObserveAttempt(cadence, "invalid")
			return nil, err
		default:
			// Malformed dates, bad durations, unknown cadences.
			s.metrics.ObserveAttempt(cadence, "invalid")
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	created, err := s.repo.InsertDrafts(ctx, req.ProviderID, req.ClientID, exp.Drafts, req.ClientNotes)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotTaken) {
			// Lost the write race: the snapshot was stale and the
			// exclusion constraint caught the overlap.
			s.metrics.ObserveConflict()
			s.metrics.ObserveAttempt(cadence, "conflict")
			return nil, err
		}
		s.metrics.ObserveAttempt(cadence, "error")
		return nil, err
	}

	s.invalidateMonths(ctx, req.ProviderID, created)

	outcome := "booked"
	if exp.Truncated {
		outcome = "partial"
	}
	s.metrics.ObserveAttempt(cadence, outcome)
	s.metrics.ObserveSeriesLength(len(created))
	s.logger.Info("booking persisted",
		"provider_id", req.ProviderID,
		"client_id", req.ClientID,
		"cadence", cadence,
		"occurrences", len(created),
		"truncated", exp.Truncated,
	)

	return &SeriesResult{
		Appointments: created,
		Truncated:    exp.Truncated,
		ConflictAt:   exp.ConflictAt,
		Conflicts:    exp.Conflicts,
	}, nil
}

// ListProvider returns every appointment of a provider.
func (s *Service) ListProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

// Get loads one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// MonthView returns per-day appointment counts for a provider month
// (monthKey YYYY-MM), enough to render an indicator per day without
// full detail. Counts come from the cache when fresh.
func (s *Service) MonthView(ctx context.Context, providerID uuid.UUID, monthKey string) (map[string]int, error) {
	if _, err := time.Parse("2006-01", monthKey); err != nil {
		return nil, fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidRequest)
	}
	if counts, ok := s.cache.Get(ctx, providerID.String(), monthKey); ok {
		return counts, nil
	}

	appts, err := s.repo.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for key, bucket := range s.layout.MonthBuckets(toBookings(appts)) {
		if len(key) >= 7 && key[:7] == monthKey {
			counts[key] = len(bucket)
		}
	}
	s.cache.Set(ctx, providerID.String(), monthKey, counts)
	return counts, nil
}

// WeekView lays the provider's appointments onto the hour grid of the
// week containing anchorDate (YYYY-MM-DD). Columns run Sunday through
// Saturday. Appointments the layout does not position (wrong day,
// malformed instants, outside the visible window) are omitted.
func (s *Service) WeekView(ctx context.Context, providerID uuid.UUID, anchorDate string) (*WeekView, error) {
	anchor, err := time.Parse("2006-01-02", anchorDate)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}

	appts, err := s.repo.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	bookings := toBookings(appts)

	weekStart := anchor.AddDate(0, 0, -int(anchor.Weekday()))
	win := s.layout.Window()
	view := &WeekView{
		Days:          make([]WeekDay, 0, 7),
		StartHour:     win.StartHour,
		EndHour:       win.EndHour,
		PixelsPerHour: win.PixelsPerHour,
	}
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		dayKey := day.Format("2006-01-02")
		col := WeekDay{DayKey: dayKey, Blocks: []WeekBlock{}}
		for _, b := range bookings {
			block, ok := s.layout.Position(b, dayKey)
			if !ok {
				continue
			}
			start, _ := s.norm.CivilOf(b.StartInstant)
			end, _ := s.norm.CivilOf(b.EndInstant)
			col.Blocks = append(col.Blocks, WeekBlock{
				AppointmentID: b.ID,
				Status:        b.Status,
				Start:         fmt.Sprintf("%02d:%02d", start.Hour, start.Minute),
				End:           fmt.Sprintf("%02d:%02d", end.Hour, end.Minute),
				Geometry:      block,
			})
		}
		view.Days = append(view.Days, col)
	}
	return view, nil
}

// Transition moves an appointment to a new lifecycle state. Cancelled
// and completed are terminal: nothing transitions out of them.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next Status) (*Appointment, error) {
	if !next.Valid() || next == StatusPending {
		return nil, fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, next)
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, appt.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	appt.Status = next
	s.invalidateMonths(ctx, appt.ProviderID, []Appointment{*appt})
	s.logger.Info("appointment status changed", "id", id, "status", next)
	return appt, nil
}

// UpdateNotes sets whichever notes were provided. Authorship is
// enforced by the access layer in front of this service.
func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, clientNotes, providerNotes *string) error {
	if clientNotes == nil && providerNotes == nil {
		return fmt.Errorf("%w: no notes provided", ErrInvalidRequest)
	}
	return s.repo.SetNotes(ctx, id, clientNotes, providerNotes)
}

func (s *Service) invalidateMonths(ctx context.Context, providerID uuid.UUID, appts []Appointment) {
	if s.cache == nil || len(appts) == 0 {
		return
	}
	months := make([]string, 0, len(appts))
	for i := range appts {
		key := s.norm.ToCivil(appts[i].StartAt).DayKey()
		months = append(months, key[:7])
	}
	s.cache.Invalidate(ctx, providerID.String(), months...)
}
