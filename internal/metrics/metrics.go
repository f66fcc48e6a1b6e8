// Package metrics exposes Prometheus metrics for the gateway on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alexander_gateway"

// Metrics owns the registry and every gateway collector.
type Metrics struct {
	reg *prometheus.Registry

	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	operations       *prometheus.CounterVec
	uploadBytes      prometheus.Counter
	quotaRejections  prometheus.Counter
	objectStoreCalls *prometheus.CounterVec
	objectStoreTime  *prometheus.HistogramVec
}

// New creates a Metrics instance with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of inflight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests processed, by status code and method.",
		}, []string{"code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Gateway operations, by action and outcome class.",
		}, []string{"action", "outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Decoded bytes successfully written to the object store.",
		}),
		quotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Uploads rejected because they would exceed the user's quota.",
		}),
		objectStoreCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objectstore",
			Name:      "requests_total",
			Help:      "Object store calls, by operation and status code (0 for transport errors).",
		}, []string{"operation", "code"}),
		objectStoreTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "objectstore",
			Name:      "request_duration_seconds",
			Help:      "Object store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inflight,
		m.requests,
		m.latency,
		m.operations,
		m.uploadBytes,
		m.quotaRejections,
		m.objectStoreCalls,
		m.objectStoreTime,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveOperation counts one finished gateway operation.
func (m *Metrics) ObserveOperation(action, outcome string) {
	m.operations.WithLabelValues(action, outcome).Inc()
}

// ObserveUpload counts bytes of a successful upload.
func (m *Metrics) ObserveUpload(bytes int64) {
	m.uploadBytes.Add(float64(bytes))
}

// ObserveQuotaRejection counts one rejected upload.
func (m *Metrics) ObserveQuotaRejection() {
	m.quotaRejections.Inc()
}

// ObserveObjectStore implements objectstore.Recorder.
func (m *Metrics) ObserveObjectStore(operation string, statusCode int, elapsed time.Duration) {
	m.objectStoreCalls.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	m.objectStoreTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records inflight requests, request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		m.requests.WithLabelValues(code, r.Method).Inc()
		m.latency.WithLabelValues(code, r.Method).Observe(time.Since(start).Seconds())
	})
}
