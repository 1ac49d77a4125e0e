package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transport traffic. A nil *Metrics records nothing.
type Metrics struct {
	sent     *prometheus.CounterVec
	received *prometheus.CounterVec
	errors   *prometheus.CounterVec
	timeouts prometheus.Counter
}

// NewMetrics creates the transport counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngen_transport_messages_sent_total",
				Help: "Flow messages sent to remote partitions",
			},
			[]string{"transport"},
		),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngen_transport_messages_received_total",
				Help: "Flow messages received from remote partitions",
			},
			[]string{"transport"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngen_transport_errors_total",
				Help: "Failed send or receive operations",
			},
			[]string{"transport", "op"},
		),
		timeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ngen_transport_receive_timeouts_total",
				Help: "Receives abandoned after the soft wait elapsed",
			},
		),
	}
	reg.MustRegister(m.sent, m.received, m.errors, m.timeouts)
	return m
}

func (m *Metrics) Sent(transport string) {
	if m != nil {
		m.sent.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) Received(transport string) {
	if m != nil {
		m.received.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) Error(transport, op string) {
	if m != nil {
		m.errors.WithLabelValues(transport, op).Inc()
	}
}

func (m *Metrics) Timeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}
