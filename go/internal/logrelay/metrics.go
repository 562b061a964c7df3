package logrelay

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	received  prometheus.Counter
	forwarded *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "racebot",
			Subsystem: "logrelay",
			Name:      "records_received_total",
			Help:      "GELF messages read from the socket.",
		}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "racebot",
			Subsystem: "logrelay",
			Name:      "records_forwarded_total",
			Help:      "Records written to the sink, by container.",
		}, []string{"container"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "racebot",
			Subsystem: "logrelay",
			Name:      "records_failed_total",
			Help:      "Messages that could not be read or forwarded.",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.received, m.forwarded, m.failed)
	return m
}
