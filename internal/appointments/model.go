package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlashealth/booking-platform/internal/schedule"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
// Cancelled and completed appointments never leave their state.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Active reports whether the appointment still blocks its slot.
// Only pending and confirmed appointments participate in conflict
// detection.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment is the stored booking record. StartAt and EndAt are
// absolute instants; every displayed date or time is a civil
// projection derived from them on read.
type Appointment struct {
	ID            uuid.UUID `json:"id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	ClientID      uuid.UUID `json:"client_id"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Status        Status    `json:"status"`
	ClientNotes   string    `json:"client_notes,omitempty"`
	ProviderNotes string    `json:"provider_notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Booking renders the record in the serialized-instant shape the
// scheduling core consumes.
func (a *Appointment) Booking() schedule.Booking {
	return schedule.Booking{
		ID:           a.ID.String(),
		StartInstant: a.StartAt.UTC().Format(time.RFC3339),
		EndInstant:   a.EndAt.UTC().Format(time.RFC3339),
		Status:       string(a.Status),
	}
}

func toBookings(appts []Appointment) []schedule.Booking {
	out := make([]schedule.Booking, 0, len(appts))
	for i := range appts {
		out = append(out, appts[i].Booking())
	}
	return out
}
