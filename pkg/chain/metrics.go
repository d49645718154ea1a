package chain

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the Prometheus series a chain exposes, following the
// teacher's system_health_logging.go pattern of one struct field per named
// gauge/counter wired directly off the Go standard client library.
type Metrics struct {
	eventsFed          prometheus.Counter
	validationRejected prometheus.Counter
	lastOffset         prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		eventsFed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atechain_chain_events_fed_total",
			Help: "Number of events successfully appended to the chain.",
		}),
		validationRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atechain_chain_validation_rejected_total",
			Help: "Number of events rejected by authorization validation.",
		}),
		lastOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atechain_chain_last_offset",
			Help: "Offset of the most recently appended event.",
		}),
	}
}

// Register adds the chain's collectors to reg.
func (m *Metrics) Register(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{m.eventsFed, m.validationRejected, m.lastOffset} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
