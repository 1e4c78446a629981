// dtc-historical — a standalone service that backfills and serves historical
// tick/OHLCV data for the symbols the live bridge trades, over the same DTC
// wire protocol (HistoricalPriceDataRequest/Response/Record).
//
// Architecture:
//
//	main.go                        — entry point: loads config, wires pump/store/server, waits for signal
//	internal/historical/ctrlfile.go   — tracks which genesis-relative hours are fully ingested
//	internal/historical/store.go      — bbolt-backed tick/bar persistence
//	internal/historical/granulator.go — online tick -> OHLCV accumulation
//	internal/historical/ingest.go     — REST backfill + live polling pump
//	internal/historical/query.go      — answers HistoricalPriceDataRequest frames from the store
//	internal/server/server.go         — DTC TCP accept loop, handshake, frame dispatch
//	internal/metrics/metrics.go       — /metrics and /healthz HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"dtc-btrex-bridge/internal/config"
	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/historical"
	"dtc-btrex-bridge/internal/metrics"
	"dtc-btrex-bridge/internal/server"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
)

var defaultSpans = []time.Duration{time.Minute, 5 * time.Minute, time.Hour, 24 * time.Hour}

func main() {
	cfgPath := pflag.String("config", "configs/historical.yaml", "path to historical service config file")
	noPump := pflag.Bool("no-pump", false, "serve queries only, skip backfill/ingestion")
	pflag.Parse()

	if p := os.Getenv("DTC_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.LoadHistorical(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}
	if *noPump {
		cfg.NoPump = true
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(newLogHandler(cfg.Logging))

	store, err := historical.OpenStore(filepath.Join(cfg.DataDir, "historical.db"))
	if err != nil {
		logger.Error("failed to open historical store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctrl, err := historical.OpenCtrlFile(filepath.Join(cfg.DataDir, "ingest.ctrl"))
	if err != nil {
		logger.Error("failed to open control file", "error", err)
		os.Exit(1)
	}

	gran := historical.NewGranulator(defaultSpans)

	auth := exchange.NewAuth(cfg.Exchange)
	client := exchange.NewClient(cfg.Exchange, auth, logger)

	reg := metrics.New()
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Port, reg, logger)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.NoPump {
		pump := historical.NewPump(client, store, ctrl, gran, logger)
		go pump.Run(ctx, cfg.Symbols, time.Minute)
	}
	go persistBars(ctx, store, gran, reg, logger)

	registry := session.NewRegistry(logger)
	queryHandler := historical.NewQueryHandler(store, gran, logger)
	dispatch := map[uint16]server.Handler{
		wire.TypeHistoricalPriceDataRequest: queryHandler.Handle,
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := server.New(addr, registry, dispatch, nil, logger)

	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("historical server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("historical service started", "port", cfg.Port, "symbols", cfg.Symbols, "no_pump", cfg.NoPump)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	if metricsSrv != nil {
		if err := metricsSrv.Stop(); err != nil {
			logger.Error("failed to stop metrics server", "error", err)
		}
	}
}

// persistBars drains the granulator's bar stream into the store and counts
// each one against the bars-emitted metric.
func persistBars(ctx context.Context, store *historical.Store, gran *historical.Granulator, reg *metrics.Registry, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-gran.Bars():
			reg.BarsEmitted.WithLabelValues(evt.Symbol, evt.Span.String()).Inc()
			if err := store.PutBar(evt.Symbol, evt.Span, evt.Bar); err != nil {
				logger.Error("persist bar failed", "symbol", evt.Symbol, "span", evt.Span, "error", err)
			}
		}
	}
}

func newLogHandler(cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
