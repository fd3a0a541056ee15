package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var stats = metrics{
	requests: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storesync",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Number of API calls issued, by method and response code",
	}, []string{
		"method",
		"code",
	}),

	duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storesync",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Latency of API calls, including transport failures",
		Buckets:   prometheus.DefBuckets,
	}, []string{
		"method",
	}),
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func init() {
	prometheus.MustRegister(stats.requests)
	prometheus.MustRegister(stats.duration)
}

// observe records one call. A zero status means the request never got a response.
func (m *metrics) observe(method string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
