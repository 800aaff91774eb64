package engine

import "github.com/prometheus/client_golang/prometheus"

// metrics are the engine's Prometheus collectors. They work unregistered;
// WithRegisterer exposes them.
type metrics struct {
	actions  *prometheus.CounterVec
	notified prometheus.Counter
	seq      prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ubi_actions_total",
			Help: "Ledger actions executed, by action and outcome.",
		}, []string{"action", "outcome"}),
		notified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ubi_notifications_total",
			Help: "Receipts delivered to action recipients after commit.",
		}),
		seq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ubi_log_seq",
			Help: "Last seq written to the action log.",
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.actions, m.notified, m.seq} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
