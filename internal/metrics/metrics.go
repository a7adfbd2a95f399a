// Package metrics provides Prometheus instrumentation for the simulation
// server.
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
)

var (
	// TurnsTotal counts completed turns.
	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "majesty_turns_total",
		Help: "Total number of simulated turns",
	})

	// TurnDuration tracks wall time per turn.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "majesty_turn_duration_seconds",
		Help:    "Turn duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	})

	// Day is the simulation's current day.
	Day = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "majesty_day",
		Help: "Current simulation day",
	})

	// ActiveMarkets tracks the number of exchange markets.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "majesty_active_markets",
		Help: "Number of markets on the exchange",
	})

	// MarketVolume tracks cumulative base-side volume per market.
	MarketVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majesty_market_volume_total",
		Help: "Cumulative traded volume on the base side of each market",
	}, []string{"pair"})

	// ArbitrageLoops counts executed arbitrage loops per home currency.
	ArbitrageLoops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majesty_arbitrage_loops_total",
		Help: "Executed triangular arbitrage loops",
	}, []string{"currency"})

	// ArbitrageProfit accumulates arbitrage profit per home currency.
	ArbitrageProfit = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majesty_arbitrage_profit_total",
		Help: "Cumulative arbitrage profit in home currency units",
	}, []string{"currency"})

	// ArbitrageYield observes profit per unit of volume for each loop.
	ArbitrageYield = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "majesty_arbitrage_yield",
		Help:    "Profit per unit of volume of executed arbitrage loops",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// Hires counts workers matched by the labor market.
	Hires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "majesty_hires_total",
		Help: "Total workers hired",
	})

	// Injected accumulates cash created per currency (subsidies, pool
	// liquidity, local sales).
	Injected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majesty_money_injected_total",
		Help: "Cash entering the economy",
	}, []string{"currency"})

	// Drained accumulates cash removed per currency.
	Drained = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majesty_money_drained_total",
		Help: "Cash leaving the economy",
	}, []string{"currency"})

	// MoneySupply is the audited total per currency after the last turn.
	MoneySupply = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "majesty_money_supply",
		Help: "Cash held per currency after the last turn",
	}, []string{"currency"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "majesty_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majesty_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "majesty_http_request_duration_seconds",
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

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
