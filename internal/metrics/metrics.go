// Package metrics exposes a Prometheus registry plus /metrics and /healthz
// endpoints shared by both binaries.
//
// Grounded on 0xtitan6-polymarket-mm/internal/api/server.go's Start/Stop
// http.Server wrapper; the dashboard's hand-rolled JSON health handler is
// replaced with prometheus/client_golang's promhttp handler plus a small
// /healthz that reports liveness only (no metric scrape cost).
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the counters and gauges shared across the bridge and
// historical services. Components record against it directly rather than
// each owning a private registry.
type Registry struct {
	FramesReceived  *prometheus.CounterVec
	FramesSent      *prometheus.CounterVec
	RestRequests    *prometheus.CounterVec
	RestCircuitOpen prometheus.Gauge
	ActiveSessions  prometheus.Gauge
	UpstreamUp      prometheus.Gauge
	TicksIngested   *prometheus.CounterVec
	BarsEmitted     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds a fresh Registry with all series registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dtc_frames_received_total",
			Help: "DTC frames received from client connections, by type.",
		}, []string{"type"}),
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dtc_frames_sent_total",
			Help: "DTC frames sent to client connections, by type.",
		}, []string{"type"}),
		RestRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rest_requests_total",
			Help: "Exchange REST requests, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		RestCircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_rest_circuit_open",
			Help: "1 when the REST queue's circuit breaker is open, else 0.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dtc_active_sessions",
			Help: "Currently registered DTC client connections.",
		}),
		UpstreamUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_ws_up",
			Help: "1 when the upstream exchange WebSocket feed is connected, else 0.",
		}),
		TicksIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "historical_ticks_ingested_total",
			Help: "Raw ticks persisted by the historical pump, by symbol.",
		}, []string{"symbol"}),
		BarsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "historical_bars_emitted_total",
			Help: "OHLCV bars emitted by the granulator, by symbol and span.",
		}, []string{"symbol", "span"}),
	}
}

// Server serves /metrics and /healthz on a dedicated port.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer wires reg's registry into a promhttp handler alongside a bare
// liveness endpoint, listening on port.
func NewServer(port int, reg *Registry, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "metrics-server"),
	}
}

// Start runs the server until Stop is called. Intended to be run in a
// goroutine.
func (s *Server) Start() error {
	s.logger.Info("metrics server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
