package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymdesk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymdesk",
			Name:      "booking_operations_total",
			Help:      "Booking state transitions by operation and result.",
		},
		[]string{"operation", "result"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymdesk",
			Name:      "payments_total",
			Help:      "Simulated payment attempts by outcome.",
		},
		[]string{"outcome"},
	)

	persistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gymdesk",
			Name:      "persistence_failures_total",
			Help:      "Writes applied in memory that failed to persist.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingOps, payments, persistenceFailures)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBookingOp records a booking operation outcome ("ok" or "error").
func IncBookingOp(operation, result string) {
	bookingOps.WithLabelValues(operation, result).Inc()
}

// IncPayment records a payment outcome ("succeeded", "declined", "error").
func IncPayment(outcome string) {
	payments.WithLabelValues(outcome).Inc()
}

// IncPersistenceFailure counts a memory-applied write the database rejected.
func IncPersistenceFailure() {
	persistenceFailures.Inc()
}
