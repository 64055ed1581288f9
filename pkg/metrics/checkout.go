package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement outcomes.
type CheckoutMetrics struct {
	placed   prometheus.Counter
	failed   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on reg. A nil reg yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warung_orders_placed_total",
		Help: "Orders committed by checkout.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warung_order_failures_total",
		Help: "Checkout attempts that did not commit, by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "warung_order_placement_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(placed, failed, duration)
	return &CheckoutMetrics{
		placed:   placed,
		failed:   failed,
		duration: duration,
	}
}

// ObservePlaced records a committed order.
func (m *CheckoutMetrics) ObservePlaced(elapsed time.Duration) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveFailed records an aborted checkout.
func (m *CheckoutMetrics) ObserveFailed(reason string, elapsed time.Duration) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(reason)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
