package store

import "github.com/prometheus/client_golang/prometheus"

var stats = metrics{
	actions: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storesync",
		Subsystem: "store",
		Name:      "actions_total",
		Help:      "Number of committed store actions that changed state",
	}, []string{
		"store",
		"action",
	}),

	dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storesync",
		Subsystem: "store",
		Name:      "dropped_responses_total",
		Help:      "Number of load responses ignored because the server rejected them",
	}, []string{
		"store",
	}),
}

type metrics struct {
	actions *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

func init() {
	prometheus.MustRegister(stats.actions)
	prometheus.MustRegister(stats.dropped)
}

func (m *metrics) action(store, action string) {
	m.actions.WithLabelValues(store, action).Inc()
}

func (m *metrics) droppedResponse(store string) {
	m.dropped.WithLabelValues(store).Inc()
}
