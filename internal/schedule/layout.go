package schedule

import "fmt"

// Window is the visible hour range of the week grid, half open over
// [StartHour, EndHour), with the vertical scale in pixels per hour.
// Both are deployment-wide constants.
type Window struct {
	StartHour     int
	EndHour       int
	PixelsPerHour int
}

// Block is the pixel geometry of one appointment inside a week-view
// day column: offset from the top of the visible window and height,
// both scaled by the window's pixels-per-hour.
type Block struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Layout maps flat appointment lists onto the two calendar
// presentations: day buckets for the month grid and pixel blocks for
// the hour-gridded week view.
type Layout struct {
	n   *Normalizer
	win Window
}

// NewLayout validates the window and builds a layout engine.
func NewLayout(n *Normalizer, win Window) (*Layout, error) {
	if n == nil {
		return nil, fmt.Errorf("schedule: normalizer required")
	}
	if win.StartHour < 0 || win.EndHour > 24 || win.StartHour >= win.EndHour {
		return nil, fmt.Errorf("schedule: invalid hour window [%d, %d)", win.StartHour, win.EndHour)
	}
	if win.PixelsPerHour <= 0 {
		return nil, fmt.Errorf("schedule: pixels per hour must be positive, got %d", win.PixelsPerHour)
	}
	return &Layout{n: n, win: win}, nil
}

// Window returns the configured hour window.
func (l *Layout) Window() Window {
	return l.win
}

// MonthBuckets groups bookings by the civil day of their start
// instant, keyed by YYYY-MM-DD. Two bookings on different UTC dates
// land in the same bucket when the deployment timezone puts them on
// the same civil day. Bookings with malformed instants are excluded
// from bucketing entirely.
func (l *Layout) MonthBuckets(bookings []Booking) map[string][]Booking {
	buckets := make(map[string][]Booking)
	for _, b := range bookings {
		key, ok := l.n.DayKeyOf(b.StartInstant)
		if !ok {
			continue
		}
		buckets[key] = append(buckets[key], b)
	}
	return buckets
}

// Position computes the pixel geometry of a booking within the column
// for the given civil day key. ok is false when the booking is not
// positioned: it starts on a different civil day, its duration is
// non-positive even after wraparound correction, or it lies entirely
// outside the visible hour window. A booking spanning a window edge
// is clipped to the visible portion.
//
// Overlapping bookings in the same column are not repositioned
// relative to each other; each renders independently in input order.
func (l *Layout) Position(b Booking, dayKey string) (Block, bool) {
	start, sok := l.n.CivilOf(b.StartInstant)
	end, eok := l.n.CivilOf(b.EndInstant)
	if !sok || !eok {
		return Block{}, false
	}
	if start.DayKey() != dayKey {
		return Block{}, false
	}

	startMin := start.MinuteOfDay()
	duration := end.MinuteOfDay() - startMin
	if duration <= 0 {
		// A civil end at or before the civil start is either a record
		// crossing midnight or bad data. One 24-hour correction covers
		// the former; anything still non-positive is rejected.
		if end.DayKey() != start.DayKey() || end.Hour < start.Hour {
			duration += 24 * 60
		}
	}
	if duration <= 0 {
		return Block{}, false
	}

	winStart := l.win.StartHour * 60
	winEnd := l.win.EndHour * 60
	effStart := max(winStart, startMin)
	effEnd := min(winEnd, startMin+duration)
	if effEnd <= effStart {
		return Block{}, false
	}

	scale := float64(l.win.PixelsPerHour) / 60
	return Block{
		Top:    float64(effStart-winStart) * scale,
		Height: float64(effEnd-effStart) * scale,
	}, true
}
