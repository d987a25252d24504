package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	UploadBytes     prometheus.Histogram
}

// New creates and registers all HTTP metrics
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stmtguard_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stmtguard_upload_size_bytes",
			Help:    "Size of accepted bank statement uploads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

// ObserveRequest records one request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// ObserveUpload records the size of one statement upload.
func (m *Metrics) ObserveUpload(n int) {
	if m != nil {
		m.UploadBytes.Observe(float64(n))
	}
}
