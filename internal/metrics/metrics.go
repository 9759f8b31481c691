// Package metrics provides Prometheus instrumentation for the back office.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconciliationsTotal counts ledger reconciliation steps by causal
	// event and outcome.
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokerhub_reconciliations_total",
		Help: "Ledger reconciliation steps by event and outcome",
	}, []string{"event", "outcome"})

	// RequestsDecidedTotal counts deposit/withdrawal decisions.
	RequestsDecidedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokerhub_requests_decided_total",
		Help: "Money request decisions by kind and decision",
	}, []string{"kind", "decision"})

	// NotificationsTotal counts dispatched user notifications by channel.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokerhub_notifications_total",
		Help: "User notifications dispatched by channel and outcome",
	}, []string{"channel", "outcome"})

	// WebSocketClients tracks connected websocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brokerhub_websocket_clients",
		Help: "Number of connected websocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokerhub_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brokerhub_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
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

// Hijack passes the connection takeover through to the underlying
// writer so websocket upgrades work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
