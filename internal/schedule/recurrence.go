package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Cadence is the repetition rule of a booking request.
type Cadence string

const (
	CadenceSingle   Cadence = "single"
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
)

// Valid reports whether the cadence is one of the known rules.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceSingle, CadenceWeekly, CadenceBiweekly:
		return true
	}
	return false
}

// StepDays returns the civil-day stride between occurrences. Zero for
// a single booking.
func (c Cadence) StepDays() int {
	switch c {
	case CadenceWeekly:
		return 7
	case CadenceBiweekly:
		return 14
	}
	return 0
}

// Request describes a booking before expansion. StartDate and
// StartTime are civil wall-clock values (YYYY-MM-DD and HH:MM) in the
// deployment timezone. Requests are consumed whole and never
// persisted.
type Request struct {
	ProviderID      string
	ClientID        string
	StartDate       string
	StartTime       string
	DurationMinutes int
	Cadence         Cadence
}

// Draft is one candidate appointment ready for persistence, with both
// endpoints rendered as storable local-time strings.
type Draft struct {
	StartLocal string
	EndLocal   string
}

// Expansion is the outcome of expanding a request: the accepted
// drafts plus, for a truncated series, where and why it stopped.
type Expansion struct {
	Drafts []Draft
	// Truncated is set when a weekly or biweekly series hit a conflict
	// after producing at least one draft. The partial series is kept:
	// the policy is book what is free and stop at the first wall.
	Truncated  bool
	ConflictAt string // short civil start of the rejected occurrence
	Conflicts  []Conflict
}

// ErrNoCandidates is returned when expansion produced nothing at all.
// An empty series is an error the caller must see, not an empty
// success.
var ErrNoCandidates = errors.New("schedule: no occurrences could be generated")

// ConflictError rejects a booking whose slot is already taken. For a
// single booking any conflict aborts the whole request; for a series
// it is returned only when the very first occurrence conflicts.
type ConflictError struct {
	Slot      string // short civil start of the rejected occurrence
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule: slot %s overlaps %d existing booking(s)", e.Slot, len(e.Conflicts))
}

// Expander generates bounded, non-conflicting candidate series from
// booking requests.
type Expander struct {
	n *Normalizer
	d *Detector
}

// NewExpander creates an expander bound to the deployment timezone.
func NewExpander(n *Normalizer) *Expander {
	if n == nil {
		panic("schedule: normalizer required")
	}
	return &Expander{n: n, d: NewDetector(n)}
}

// Expand walks the request's cadence from its anchor date and returns
// every occurrence that fits. existing must hold the provider's
// current bookings; each occurrence is checked against them before it
// is accepted.
//
// A weekly or biweekly series is bounded to the anchor's civil year:
// the loop stops as soon as an occurrence would land in the next
// year. Occurrence starts grow strictly monotonically by the cadence
// stride and the duration is constant across the series.
func (e *Expander) Expand(req Request, existing []Booking) (*Expansion, error) {
	if !req.Cadence.Valid() {
		return nil, fmt.Errorf("schedule: unknown cadence %q", req.Cadence)
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("schedule: duration must be positive, got %d", req.DurationMinutes)
	}
	cur, ok := parseCivilAnchor(req.StartDate, req.StartTime)
	if !ok {
		return nil, fmt.Errorf("schedule: malformed start date/time %q %q", req.StartDate, req.StartTime)
	}
	dur := time.Duration(req.DurationMinutes) * time.Minute

	if req.Cadence == CadenceSingle {
		start, end := civilOfAnchor(cur), civilOfAnchor(cur.Add(dur))
		if found := e.d.Conflicts(start.Short(), end.Short(), existing); len(found) > 0 {
			return nil, &ConflictError{Slot: start.Short(), Conflicts: found}
		}
		return &Expansion{Drafts: []Draft{{
			StartLocal: e.n.FromCivilToStorable(start),
			EndLocal:   e.n.FromCivilToStorable(end),
		}}}, nil
	}

	anchorYear := cur.Year()
	step := req.Cadence.StepDays()
	exp := &Expansion{}
	for cur.Year() == anchorYear {
		start, end := civilOfAnchor(cur), civilOfAnchor(cur.Add(dur))
		if found := e.d.Conflicts(start.Short(), end.Short(), existing); len(found) > 0 {
			if len(exp.Drafts) == 0 {
				return nil, &ConflictError{Slot: start.Short(), Conflicts: found}
			}
			exp.Truncated = true
			exp.ConflictAt = start.Short()
			exp.Conflicts = found
			break
		}
		exp.Drafts = append(exp.Drafts, Draft{
			StartLocal: e.n.FromCivilToStorable(start),
			EndLocal:   e.n.FromCivilToStorable(end),
		})
		cur = cur.AddDate(0, 0, step)
	}
	if len(exp.Drafts) == 0 {
		return nil, ErrNoCandidates
	}
	return exp, nil
}

// parseCivilAnchor builds a civil-arithmetic container from the
// request's date and time fields. The container uses time.UTC purely
// as a fixed-offset number space: stepping it by days or minutes is
// plain wall-clock arithmetic with no DST gaps, which is exactly how
// the series is defined (same wall-clock time every occurrence).
func parseCivilAnchor(date, clock string) (time.Time, bool) {
	d, err := time.Parse(dayKeyLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), true
}

// civilOfAnchor reads the container's components back out as a civil
// time without any zone conversion.
func civilOfAnchor(t time.Time) CivilTime {
	return CivilTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}
