// Package schedule implements the scheduling core of the booking
// platform: timezone normalization, slot conflict detection,
// recurrence expansion, and calendar grid layout. Everything in this
// package is synchronous and side-effect-free; it reads appointment
// data, produces decisions and derived projections, and leaves
// persistence and rendering to its callers.
package schedule

import (
	"fmt"
	"time"
)

const (
	dayKeyLayout   = "2006-01-02"
	shortLayout    = "2006-01-02T15:04"
	storableLayout = "2006-01-02T15:04:05"
)

// CivilTime is a wall-clock timestamp projected into the deployment
// timezone. It is derived data, recomputed on every read; the stored
// absolute instant remains the source of truth. The zero value is the
// invalid sentinel produced for malformed input.
type CivilTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
}

// Valid reports whether the value carries a real projection.
func (c CivilTime) Valid() bool {
	return c.Year != 0
}

// DayKey returns the canonical YYYY-MM-DD bucket key. Two instants
// fall on the same civil day iff their day keys are equal.
func (c CivilTime) DayKey() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, c.Month, c.Day)
}

// Short renders the canonical YYYY-MM-DDTHH:MM form used for slot
// comparison. The format is zero padded and every value shares one
// timezone, so lexical order equals chronological order.
func (c CivilTime) Short() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", c.Year, c.Month, c.Day, c.Hour, c.Minute)
}

// MinuteOfDay returns minutes elapsed since civil midnight.
func (c CivilTime) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

// Normalizer converts between absolute instants and civil wall-clock
// time in one fixed IANA timezone. It is the only place in the core
// where timezone arithmetic happens.
type Normalizer struct {
	zone string
	loc  *time.Location
}

// NewNormalizer loads the deployment timezone. The zone is a single
// deployment-wide constant, not per user or per request.
func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("schedule: load timezone %q: %w", zone, err)
	}
	return &Normalizer{zone: zone, loc: loc}, nil
}

// Zone returns the IANA identifier the normalizer was built with.
func (n *Normalizer) Zone() string {
	return n.zone
}

// ParseInstant parses a serialized timestamp. RFC 3339 strings carry
// their own offset; naive YYYY-MM-DDTHH:MM:SS strings are interpreted
// in the deployment timezone, mirroring how the persistence layer is
// configured to read them. Malformed input returns ok=false, never an
// error or a panic: display paths exclude such records, the conflict
// detector fails closed on them.
func (n *Normalizer) ParseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(storableLayout, s, n.loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ToCivil projects an absolute instant onto the deployment timezone,
// rolling day, month and year boundaries as needed.
func (n *Normalizer) ToCivil(t time.Time) CivilTime {
	lt := t.In(n.loc)
	return CivilTime{
		Year:   lt.Year(),
		Month:  int(lt.Month()),
		Day:    lt.Day(),
		Hour:   lt.Hour(),
		Minute: lt.Minute(),
	}
}

// CivilOf parses a serialized instant and projects it in one step.
func (n *Normalizer) CivilOf(s string) (CivilTime, bool) {
	t, ok := n.ParseInstant(s)
	if !ok {
		return CivilTime{}, false
	}
	return n.ToCivil(t), true
}

// FromCivilToStorable renders a wall-clock time as the naive
// YYYY-MM-DDTHH:MM:SS string handed to the persistence layer. The
// final conversion back to an absolute instant is deliberately
// delegated to the database session, which is configured with the
// same timezone; duplicating offset tables here would invite drift.
// The startup check in cmd/api asserts the two zones match.
func (n *Normalizer) FromCivilToStorable(c CivilTime) string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:00", c.Year, c.Month, c.Day, c.Hour, c.Minute)
}

// DayKeyOf returns the civil day bucket key of a serialized instant.
func (n *Normalizer) DayKeyOf(s string) (string, bool) {
	c, ok := n.CivilOf(s)
	if !ok {
		return "", false
	}
	return c.DayKey(), true
}
