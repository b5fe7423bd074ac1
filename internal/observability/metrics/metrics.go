package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	attemptsTotal  *prometheus.CounterVec
	conflictsTotal prometheus.Counter
	seriesLength   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "bookings",
			Name:      "attempts_total",
			Help:      "Booking attempts by cadence and outcome",
		}, []string{"cadence", "outcome"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "bookings",
			Name:      "conflicts_total",
			Help:      "Slot conflicts detected by the pre-filter",
		}),
		seriesLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "bookings",
			Name:      "series_length",
			Help:      "Occurrences persisted per recurring booking",
			Buckets:   []float64{1, 2, 4, 8, 13, 26, 52},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.conflictsTotal, m.seriesLength)
	return m
}

// ObserveAttempt records one booking attempt. outcome is one of
// booked, partial, conflict, invalid, error.
func (m *BookingMetrics) ObserveAttempt(cadence, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(cadence, outcome).Inc()
}

// ObserveConflict records a conflict reported by the detector.
func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

// ObserveSeriesLength records how many occurrences a recurring
// booking persisted.
func (m *BookingMetrics) ObserveSeriesLength(n int) {
	if m == nil {
		return
	}
	m.seriesLength.Observe(float64(n))
}
