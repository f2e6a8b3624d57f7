package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "reservations_total",
			Help:      "Reserve calls by outcome (success, conflict, invalid, error).",
		},
		[]string{"outcome"},
	)

	extensions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "extensions_total",
			Help:      "Extend calls by outcome.",
		},
		[]string{"outcome"},
	)

	releases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "releases_total",
			Help:      "Explicit reservation releases.",
		},
	)

	conversions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "conversions_total",
			Help:      "Reservations converted to bookings.",
		},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "broadcasts_total",
			Help:      "Slot availability broadcasts by state (available, held).",
		},
		[]string{"state"},
	)

	sweeperExpiries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "sweeper_expiries_total",
			Help:      "Slot holds the sweeper observed expiring.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slothold",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservations,
			extensions,
			releases,
			conversions,
			broadcasts,
			sweeperExpiries,
			httpRequests,
		)
	})
}

// IncReservation increments the reserve counter for an outcome label.
func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func IncExtension(outcome string) {
	extensions.WithLabelValues(outcome).Inc()
}

func IncRelease() {
	releases.Inc()
}

func IncConversion() {
	conversions.Inc()
}

func IncBroadcast(available bool) {
	state := "held"
	if available {
		state = "available"
	}
	broadcasts.WithLabelValues(state).Inc()
}

func IncSweeperExpiry() {
	sweeperExpiries.Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
