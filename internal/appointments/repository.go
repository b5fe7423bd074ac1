package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlashealth/booking-platform/internal/schedule"
)

// ErrNotFound is returned when an appointment does not exist.
var ErrNotFound = errors.New("appointments: not found")

// ErrSlotTaken is returned when the database exclusion constraint
// rejects an insert. The constraint is the authoritative close of the
// check-then-write race: two requests can both pass the conflict
// pre-filter against a stale snapshot, but only one row wins here.
var ErrSlotTaken = errors.New("appointments: slot already taken")

// exclusionViolation is the SQLSTATE raised by EXCLUDE constraints.
const exclusionViolation = "23P01"

const appointmentColumns = `id, provider_id, client_id, start_at, end_at, status, client_notes, provider_notes, created_at, updated_at`

// db is the subset of pgxpool.Pool the repository needs; pgxmock
// implements it for tests.
type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides persistence for appointments.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

// ListByProvider returns every appointment of a provider ordered by
// start instant.
func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE provider_id = $1 ORDER BY start_at`,
		providerID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by provider: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListActiveByProvider returns the provider's pending and confirmed
// appointments, the only ones that block a slot.
func (r *Repository) ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE provider_id = $1 AND status IN ('pending', 'confirmed') ORDER BY start_at`,
		providerID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list active by provider: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetByID loads one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get by id: %w", err)
	}
	return appt, nil
}

// InsertDrafts persists a batch of accepted drafts in one
// transaction. Draft endpoints are naive local-time strings; the
// ::timestamp cast makes the session timezone, which startup pins to
// the clinic timezone, resolve them to absolute instants.
func (r *Repository) InsertDrafts(ctx context.Context, providerID, clientID uuid.UUID, drafts []schedule.Draft, clientNotes string) ([]Appointment, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("appointments: no drafts to insert")
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := make([]Appointment, 0, len(drafts))
	for _, d := range drafts {
		row := tx.QueryRow(ctx,
			`INSERT INTO appointments (id, provider_id, client_id, start_at, end_at, status, client_notes)
			 VALUES ($1, $2, $3, $4::timestamp, $5::timestamp, $6, $7)
			 RETURNING `+appointmentColumns,
			uuid.New(), providerID, clientID, d.StartLocal, d.EndLocal, string(StatusPending), clientNotes)
		appt, err := scanAppointment(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
				return nil, ErrSlotTaken
			}
			return nil, fmt.Errorf("appointments: insert draft: %w", err)
		}
		created = append(created, *appt)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit insert: %w", err)
	}
	return created, nil
}

// UpdateStatus sets a new lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNotes updates whichever notes fields are non-nil.
func (r *Repository) SetNotes(ctx context.Context, id uuid.UUID, clientNotes, providerNotes *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments
		 SET client_notes = COALESCE($2, client_notes),
		     provider_notes = COALESCE($3, provider_notes),
		     updated_at = now()
		 WHERE id = $1`,
		id, clientNotes, providerNotes)
	if err != nil {
		return fmt.Errorf("appointments: set notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SessionTimezone reports the timezone the database session resolves
// naive timestamps in. cmd/api asserts it equals the clinic timezone
// before serving.
func (r *Repository) SessionTimezone(ctx context.Context) (string, error) {
	var tz string
	if err := r.db.QueryRow(ctx, `SHOW TimeZone`).Scan(&tz); err != nil {
		return "", fmt.Errorf("appointments: read session timezone: %w", err)
	}
	return tz, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.ProviderID, &a.ClientID, &a.StartAt, &a.EndAt,
		&status, &a.ClientNotes, &a.ProviderNotes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan row: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate rows: %w", err)
	}
	return out, nil
}
