// Package obs carries the service's Prometheus metrics and JSON log lines.
package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "govai_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govai_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "govai_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	TimelineTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govai_timeline_transitions_total",
			Help: "Timeline events recorded, by target status.",
		},
		[]string{"status"},
	)

	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govai_assignments_total",
			Help: "Assignment ledger records written, by kind.",
		},
		[]string{"kind"},
	)

	SLABreachesOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "govai_sla_breaches_open",
		Help: "Open grievances past their SLA deadline at the last sweep.",
	})

	GatewayResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govai_gateway_results_total",
			Help: "Client gateway results, by error kind (empty on success).",
		},
		[]string{"error"},
	)

	SessionRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govai_session_refresh_total",
			Help: "Client session refresh attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	registerOnce sync.Once
)

// Init registers every collector with the default registry. Calling it more
// than once is harmless.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			TimelineTransitions, AssignmentsTotal, SLABreachesOpen,
			GatewayResults, SessionRefreshes,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

var staticSegments = map[string]struct{}{
	"auth": {}, "register": {}, "login": {}, "google": {}, "officer": {}, "refresh": {},
	"logout": {}, "me": {}, "complaints": {}, "active": {}, "archived": {}, "status": {},
	"timeline": {}, "resolve": {}, "withdraw": {}, "attachments": {}, "report": {},
	"analyze": {}, "transcribe": {}, "timeline-event": {}, "admin": {}, "assign": {},
	"reassign": {}, "reject": {}, "assignments": {}, "audit": {}, "officers": {},
	"search": {}, "stats": {}, "analytics": {}, "departments": {}, "trends": {},
	"officer-performance": {}, "audit-logs": {}, "health": {}, "ready": {}, "metrics": {},
}

// CanonicalPath replaces identifier segments with ":id" so label
// cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if _, ok := staticSegments[part]; !ok {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
