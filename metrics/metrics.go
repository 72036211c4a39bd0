// Package metrics holds the Prometheus collectors of the leave portal.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/leave-portal/leave"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leave_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_resolver_verdicts_total",
		Help: "Conflict resolver verdicts by submission path and outcome",
	}, []string{"path", "outcome"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_admin_decisions_total",
		Help: "Admin approve/reject actions by resulting status",
	}, []string{"status"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_validation_failures_total",
		Help: "Rejected submissions by validation code",
	}, []string{"code"})

	liveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leave_live_clients",
		Help: "Connected live-feed websocket clients",
	})

	storeUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leave_store_up",
		Help: "1 when the last datastore ping succeeded",
	})
)

// Recorder implements leave.Recorder on the package collectors.
type Recorder struct{}

func (Recorder) ObserveVerdict(path string, outcome leave.Outcome) {
	verdictsTotal.WithLabelValues(path, string(outcome)).Inc()
}

func (Recorder) ObserveDecision(status leave.Status) {
	decisionsTotal.WithLabelValues(string(status)).Inc()
}

func (Recorder) ObserveValidationFailure(code string) {
	validationFailures.WithLabelValues(code).Inc()
}

var _ leave.Recorder = Recorder{}

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func LiveClientConnected()    { liveClients.Inc() }
func LiveClientDisconnected() { liveClients.Dec() }

// SetStoreUp records the result of the last datastore ping.
func SetStoreUp(up bool) {
	if up {
		storeUp.Set(1)
		return
	}
	storeUp.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware instruments requests. The route label is the chi route
// pattern, so path parameters don't explode the label set.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, strconv.Itoa(ww.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades work
// behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
