// Package metrics holds the Prometheus collectors for transfers and the
// public log server.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bons"

// Outcome labels for transfer results.
const (
	OutcomeCommitted = "committed"
	OutcomeCancelled = "cancelled"
	OutcomeDeclined  = "declined"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
)

var (
	registerOnce sync.Once

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "total",
			Help:      "Transfer handshakes by role and outcome.",
		},
		[]string{"role", "outcome"},
	)
	handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "handshake_duration_seconds",
			Help:      "Time from lock to commit or release.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"role", "outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds all collectors to the default registry once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(transfers, handshakeDuration, httpRequests, httpDuration)
	})
}

// Recorder receives transfer outcomes. The zero value of Nop discards them.
type Recorder interface {
	Transfer(role, outcome string, d time.Duration)
}

// Prometheus records into the package collectors.
type Prometheus struct{}

func (Prometheus) Transfer(role, outcome string, d time.Duration) {
	RecordTransfer(role, outcome, d)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Transfer(string, string, time.Duration) {}

func RecordTransfer(role, outcome string, d time.Duration) {
	Register()
	transfers.WithLabelValues(role, outcome).Inc()
	handshakeDuration.WithLabelValues(role, outcome).Observe(d.Seconds())
}

func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	Register()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(d.Seconds())
}
