// dtc-btrex-bridge — a DTC protocol bridge exposing a crypto exchange's
// REST/WebSocket API as a binary TCP trading feed.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	internal/market/state.go   — in-memory ticker/book/trade mirror fed by the exchange WS feed
//	internal/exchange/client.go — REST client (orders, balances, historical ticks)
//	internal/exchange/ws.go    — exchange WebSocket feed (snapshots, updates, trades)
//	internal/upstream/supervisor.go — connect/resubscribe/watchdog/reconnect loop for the WS feed
//	internal/refresher/refresher.go — periodic REST ticker poll, diffs into field-update events
//	internal/restsync/restsync.go   — single-consumer REST call queue behind a circuit breaker
//	internal/orders/orders.go       — order submit/cancel/cancel-replace against the exchange
//	internal/session/registry.go    — per-connection subscription and order/trade state
//	internal/server/server.go       — DTC TCP accept loop, handshake, frame dispatch
//	internal/handlers/handlers.go   — DTC request handlers wired into the server's dispatch table
//	internal/metrics/metrics.go     — /metrics and /healthz HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"dtc-btrex-bridge/internal/config"
	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/handlers"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/metrics"
	"dtc-btrex-bridge/internal/orders"
	"dtc-btrex-bridge/internal/refresher"
	"dtc-btrex-bridge/internal/restsync"
	"dtc-btrex-bridge/internal/server"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/upstream"
)

func main() {
	cfgPath := pflag.String("config", "configs/bridge.yaml", "path to bridge config file")
	port := pflag.Int("port", 0, "override the DTC listen port")
	pflag.Parse()

	if p := os.Getenv("DTC_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.LoadBridge(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(newLogHandler(cfg.Logging))

	auth := exchange.NewAuth(cfg.Exchange)
	client := exchange.NewClient(cfg.Exchange, auth, logger)
	feed := exchange.NewWSFeed(cfg.Exchange.WSURL, logger)

	store := market.NewStore()
	queue := restsync.New(256, logger)
	registry := session.NewRegistry(logger)
	sup := upstream.New(feed, store, registry, cfg.Timeout, logger)
	refr := refresher.New(client, store, queue, registry, cfg.UpdateClientSpan, logger)
	orderMgr := orders.New(store, client, queue, logger)
	handlerSet := handlers.New(store, client, orderMgr, queue, registry, cfg.UpdateClientSpan, logger)

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

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := server.New(addr, registry, handlerSet.Table(), nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	go sup.Run(ctx)
	go refr.Run(ctx)
	go drainRefresherEvents(ctx, refr)
	go sampleActiveSessions(ctx, registry, reg)

	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("dtc server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("dtc bridge started", "port", cfg.Port, "exchange", cfg.Exchange.RestBaseURL)

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

// drainRefresherEvents keeps Updates/FirstSeen empty. The registry broadcast
// already happened inline in the refresher when these fired; nothing else
// consumes the channels, so this just prevents them from backing up.
func drainRefresherEvents(ctx context.Context, refr *refresher.Refresher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-refr.Updates():
		case <-refr.FirstSeen():
		}
	}
}

func sampleActiveSessions(ctx context.Context, registry *session.Registry, reg *metrics.Registry) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.ActiveSessions.Set(float64(registry.Count()))
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
