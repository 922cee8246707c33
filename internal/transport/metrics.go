package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks transport activity. A nil *Metrics records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	PacketsWritten  prometheus.Counter
	PacketsRead     prometheus.Counter
	RequestDuration prometheus.Histogram
}

// NewMetrics creates transport metrics and registers them with registry
// when it is not nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletlock",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Total number of device requests by outcome",
		}, []string{"outcome"}),
		PacketsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletlock",
			Subsystem: "transport",
			Name:      "packets_written_total",
			Help:      "Total number of link packets written",
		}),
		PacketsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletlock",
			Subsystem: "transport",
			Name:      "packets_read_total",
			Help:      "Total number of link packets read",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "walletlock",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Device request latency in seconds, including user confirmation",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}

	if registry != nil {
		registry.MustRegister(m.Requests, m.PacketsWritten, m.PacketsRead, m.RequestDuration)
	}
	return m
}

// Outcome labels.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeProtocol = "protocol_error"
	outcomeIO       = "io_error"
	outcomeCanceled = "canceled"
)

func (m *Metrics) observe(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) packetWritten() {
	if m != nil {
		m.PacketsWritten.Inc()
	}
}

func (m *Metrics) packetRead() {
	if m != nil {
		m.PacketsRead.Inc()
	}
}
