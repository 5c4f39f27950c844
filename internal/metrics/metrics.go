// Package metrics provides Prometheus instrumentation for the exchange.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersCreated counts orders created, partitioned by order type.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memestock_orders_created_total",
		Help: "Total number of orders created",
	}, []string{"type"})

	// OrdersFulfilled counts completed trades, partitioned by order type.
	OrdersFulfilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memestock_orders_fulfilled_total",
		Help: "Total number of orders fulfilled",
	}, []string{"type"})

	// OrdersCancelled counts cancelled orders.
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memestock_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	// WriteConflicts counts atomic batches rejected by a failed
	// precondition (lost races and uniqueness-guard hits).
	WriteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memestock_write_conflicts_total",
		Help: "Ledger writes rejected by a failed precondition",
	})

	// AgentActions counts scheduler ticks, partitioned by chosen action.
	AgentActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memestock_agent_actions_total",
		Help: "Agent actions executed per tick",
	}, []string{"action"})

	// TradeVolume tracks cumulative fulfilled volume in shares per symbol.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memestock_trade_volume_total",
		Help: "Cumulative fulfilled trade volume in shares",
	}, []string{"symbol"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memestock_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memestock_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memestock_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
