// Package metrics exposes Prometheus counters for login outcomes and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances (tests) never clash.
type Metrics struct {
	registry *prometheus.Registry

	outcomes        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	enrollmentTotal *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twofactor_auth_outcomes_total",
			Help: "Login attempts by outcome status",
		}, []string{"status", "method"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twofactor_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twofactor_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		enrollmentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twofactor_enrollment_events_total",
			Help: "TOTP enrollment events by kind and result",
		}, []string{"event", "result"}), // event: enroll|confirm|disable
	}

	m.registry.MustRegister(
		m.outcomes,
		m.httpRequests,
		m.httpDuration,
		m.enrollmentTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe counts one login outcome. It satisfies service.Observer.
func (m *Metrics) Observe(out service.Outcome) {
	m.outcomes.WithLabelValues(string(out.Status), string(out.Method)).Inc()
}

// Enrollment counts one enrollment event.
func (m *Metrics) Enrollment(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.enrollmentTotal.WithLabelValues(event, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Instrument wraps next, recording requests under route. Labelling by the
// registered pattern instead of the raw path keeps cardinality bounded.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
