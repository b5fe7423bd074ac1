package schedule

// Booking is an existing appointment as read back from storage, with
// both endpoints still in serialized instant form. Keeping the wire
// representation lets the detector handle rows whose timestamps no
// longer parse.
type Booking struct {
	ID           string
	StartInstant string
	EndInstant   string
	Status       string
}

// Conflict names an existing booking whose civil interval overlaps a
// candidate slot. Start and End are short civil strings; both are
// empty when the stored instants were malformed and the booking was
// reported conservatively rather than skipped.
type Conflict struct {
	BookingID string `json:"booking_id"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// Detector decides whether a candidate slot overlaps any of a
// provider's existing bookings. Callers are expected to pass only the
// bookings of the provider being booked.
type Detector struct {
	n *Normalizer
}

// NewDetector creates a detector bound to the deployment timezone.
func NewDetector(n *Normalizer) *Detector {
	if n == nil {
		panic("schedule: normalizer required")
	}
	return &Detector{n: n}
}

// Conflicts reports every existing booking whose civil interval
// overlaps the candidate [start, end) slot. start and end are short
// civil strings (YYYY-MM-DDTHH:MM). Overlap is the standard interval
// condition candStart < existEnd && candEnd > existStart, evaluated
// lexically; adjacent slots sharing a boundary do not overlap.
//
// A booking whose stored instants cannot be normalized is reported as
// a conflict: a row we cannot read may still be a real booking, so
// the detector fails closed instead of silently ignoring it.
func (d *Detector) Conflicts(start, end string, existing []Booking) []Conflict {
	var found []Conflict
	for _, b := range existing {
		sc, sok := d.n.CivilOf(b.StartInstant)
		ec, eok := d.n.CivilOf(b.EndInstant)
		if !sok || !eok {
			found = append(found, Conflict{BookingID: b.ID})
			continue
		}
		existStart, existEnd := sc.Short(), ec.Short()
		if start < existEnd && end > existStart {
			found = append(found, Conflict{BookingID: b.ID, Start: existStart, End: existEnd})
		}
	}
	return found
}

// HasConflict reports whether the candidate slot overlaps anything.
func (d *Detector) HasConflict(start, end string, existing []Booking) bool {
	return len(d.Conflicts(start, end, existing)) > 0
}
