package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for the booking flows.
type SchedulingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	bookingConflicts  prometheus.Counter
	slotSearchSeconds prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
}

// NewSchedulingMetrics registers the collectors against reg (or the default
// registerer when nil).
func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Total appointment status transitions by target state and outcome",
		}, []string{"to", "outcome"}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_conflicts_total",
			Help:      "Bookings rejected because the slot was taken concurrently",
		}),
		slotSearchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "slot_search_seconds",
			Help:      "Latency of optimal-slot searches",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "capacity",
			Name:      "snapshot_cache_lookups_total",
			Help:      "Capacity snapshot cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.bookingConflicts, m.slotSearchSeconds, m.cacheLookups)
	return m
}

// ObserveBooking records one booking attempt outcome.
func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTransition records one status transition attempt.
func (m *SchedulingMetrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
}

// ObserveConflict records a lost booking race.
func (m *SchedulingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}

// ObserveSlotSearch records the latency of one optimal-slot search.
func (m *SchedulingMetrics) ObserveSlotSearch(seconds float64) {
	if m == nil {
		return
	}
	m.slotSearchSeconds.Observe(seconds)
}

// ObserveCacheLookup records a snapshot cache hit or miss.
func (m *SchedulingMetrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
