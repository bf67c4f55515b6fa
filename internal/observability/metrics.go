package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exmdb",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total exmdb round trips by call and outcome.",
		},
		[]string{"call", "status"},
	)
	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exmdb",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "exmdb round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call", "status"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exmdb",
			Subsystem: "client",
			Name:      "frame_bytes",
			Help:      "Size of exmdb frames including the length header.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"direction"},
	)
	probeStoreUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "exmdb",
			Subsystem: "probe",
			Name:      "store_up",
			Help:      "1 when the last ping of a store succeeded.",
		},
		[]string{"store"},
	)
	probeConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exmdb",
			Subsystem: "probe",
			Name:      "connected",
			Help:      "1 while the prober holds a live exmdb connection.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exmdb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exmdb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			clientRequests, clientDuration, frameBytes,
			probeStoreUp, probeConnected,
			httpRequests, httpDuration,
		)
	})
}

// RecordRoundTrip records one client request. status is "ok", a server
// status name, or "error" for transport and decode failures.
func RecordRoundTrip(call, status string, duration time.Duration, sent, received int) {
	RegisterMetrics()
	clientRequests.WithLabelValues(call, status).Inc()
	clientDuration.WithLabelValues(call, status).Observe(duration.Seconds())
	if sent > 0 {
		frameBytes.WithLabelValues("out").Observe(float64(sent))
	}
	if received > 0 {
		frameBytes.WithLabelValues("in").Observe(float64(received))
	}
}

func RecordStoreProbe(store string, up bool) {
	RegisterMetrics()
	v := 0.0
	if up {
		v = 1
	}
	probeStoreUp.WithLabelValues(store).Set(v)
}

func SetProbeConnected(connected bool) {
	RegisterMetrics()
	if connected {
		probeConnected.Set(1)
		return
	}
	probeConnected.Set(0)
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
