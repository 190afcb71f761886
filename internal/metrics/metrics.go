// Package metrics holds the Prometheus collectors shared by the API and the edge gateway.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bazaar_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bazaar_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	authDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_auth_denials_total",
			Help: "Requests rejected by route guards, by error code.",
		},
		[]string{"code"},
	)

	edgeDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_edge_decisions_total",
			Help: "Edge gateway routing outcomes.",
		},
		[]string{"app", "outcome"},
	)

	mfaEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_mfa_events_total",
			Help: "MFA enrollment and verification outcomes.",
		},
		[]string{"method", "outcome"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bazaar_payment_webhooks_total",
			Help: "Payment webhook deliveries, by event and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			authDenials, edgeDecisions, mfaEvents, webhookEvents,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func AuthDenied(code string) {
	authDenials.WithLabelValues(code).Inc()
}

func EdgeDecision(app, outcome string) {
	edgeDecisions.WithLabelValues(app, outcome).Inc()
}

func MFAEvent(method, outcome string) {
	mfaEvents.WithLabelValues(method, outcome).Inc()
}

func WebhookEvent(event, outcome string) {
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

// Instrument records RPS, latency and in-flight requests. The route label is
// the chi pattern when one matched, so ids do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
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
