// Package upstream supervises the exchange WebSocket connection (C4):
// connect, resubscribe every known symbol on every (re)connect since
// subscription ids are not stable across reconnects, watch for a silent
// feed via a watchdog timer, and reconnect with exponential backoff on any
// decode or I/O error.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange/ws.go's Run() loop
// (connect, read, exponential backoff, repeat) and generalized with a
// watchdog on top, since the teacher relies on gorilla/websocket's read
// deadline alone.
package upstream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
	"dtc-btrex-bridge/pkg/types"
)

const (
	minBackoff      = time.Second
	maxBackoff      = 30 * time.Second
	defaultWatchdog = 60 * time.Second
)

// Supervisor owns the exchange.WSFeed lifecycle and keeps the market store
// in sync with it.
type Supervisor struct {
	feed     *exchange.WSFeed
	store    *market.Store
	registry *session.Registry
	watchdog time.Duration

	lastEventAt atomic.Int64 // unix nano; 0 (epoch) suppresses the watchdog
	reconnects  atomic.Int64

	logger *slog.Logger
}

// New creates a supervisor for feed, backed by store, fanning trade and book
// events out to registry's subscribed connections, with watchdog as the
// silence timeout (0 selects the default 60s).
func New(feed *exchange.WSFeed, store *market.Store, registry *session.Registry, watchdog time.Duration, logger *slog.Logger) *Supervisor {
	if watchdog <= 0 {
		watchdog = defaultWatchdog
	}
	return &Supervisor{
		feed:     feed,
		store:    store,
		registry: registry,
		watchdog: watchdog,
		logger:   logger.With("component", "upstream-supervisor"),
	}
}

// ReconnectCount returns the number of times the feed has reconnected,
// for metrics.
func (s *Supervisor) ReconnectCount() int64 { return s.reconnects.Load() }

// Run connects and maintains the feed until ctx is cancelled, reconnecting
// with exponential backoff and resubscribing to every known symbol on each
// successful connect.
func (s *Supervisor) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndServe(ctx); err != nil {
			s.logger.Warn("upstream feed disconnected, reconnecting", "error", err, "backoff", backoff)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Supervisor) connectAndServe(ctx context.Context) error {
	if err := s.feed.Connect(ctx); err != nil {
		return err
	}
	defer s.feed.Close()

	s.reconnects.Add(1)
	s.lastEventAt.Store(0) // suppress watchdog until the first post-connect event

	if err := s.resubscribeAll(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)
	errCh := make(chan error, 1)

	go func() { defer wg.Done(); s.feed.RunPingLoop(runCtx) }()
	go func() {
		defer wg.Done()
		if err := s.feed.ReadLoop(runCtx); err != nil {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}()
	go func() { defer wg.Done(); s.consumeMarketEvents(runCtx) }()
	go func() { defer wg.Done(); s.watch(runCtx, cancel) }()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// resubscribeAll re-issues ticker and depth subscriptions for every symbol
// in the store's ticker table. The upstream API does not echo a subid
// synchronously here, so binding happens lazily: consumeMarketEvents binds
// each snapshot's subid to the symbol the snapshot carries, and later
// updates and trades are resolved through that binding.
func (s *Supervisor) resubscribeAll() error {
	symbols := s.store.KnownSymbols()
	if len(symbols) == 0 {
		return nil
	}
	if err := s.feed.Subscribe("ticker", symbols); err != nil {
		return err
	}
	if err := s.feed.Subscribe("depth", symbols); err != nil {
		return err
	}
	return nil
}

// watch fires cancel if no event has arrived within the watchdog window,
// unless lastEventAt is still at its post-connect epoch suppression value.
func (s *Supervisor) watch(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(s.watchdog / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := s.lastEventAt.Load()
			if last == 0 {
				continue // epoch suppression: no event observed yet this connection
			}
			if time.Since(time.Unix(0, last)) > s.watchdog {
				s.logger.Warn("upstream feed watchdog timeout, forcing reconnect")
				cancel()
				return
			}
		}
	}
}

func (s *Supervisor) consumeMarketEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.feed.SnapshotEvents():
			s.lastEventAt.Store(time.Now().UnixNano())
			s.store.BindDepthSub(snap.SubID, snap.Symbol)
			s.store.BindDataSub(snap.SubID, snap.Symbol)
			s.store.Book(snap.Symbol).ApplySnapshot(snap.Bids, snap.Asks)
		case upd := <-s.feed.UpdateEvents():
			s.lastEventAt.Store(time.Now().UnixNano())
			if sym, ok := s.store.SymbolForDepthSub(upd.SubID); ok {
				s.store.Book(sym).ApplyUpdate(types.BookUpdate{Side: upd.Side, Price: upd.Price, Qty: upd.Qty})
				s.registry.BroadcastDepth(sym, func(requestID int64) []byte {
					return wire.Encode(wire.TypeMarketDepthUpdateLevel, wire.EncodeMarketDepthUpdateLevel(wire.MarketDepthUpdateLevel{
						SymbolID: requestID, Side: int64(upd.Side), Price: upd.Price, Qty: upd.Qty,
					}))
				})
			}
		case tr := <-s.feed.TradeEvents():
			s.lastEventAt.Store(time.Now().UnixNano())
			if sym, ok := s.store.SymbolForDataSub(tr.SubID); ok {
				s.store.SetLatestTrade(sym, types.LatestTrade{Timestamp: tr.Timestamp, Side: tr.Side, Price: tr.Price, Qty: tr.Qty})
				atBid := int64(0)
				if tr.Side == types.Sell {
					atBid = 1
				}
				s.registry.BroadcastData(sym, func(requestID int64) []byte {
					return wire.Encode(wire.TypeMarketDataUpdateTrade, wire.EncodeMarketDataUpdateTrade(wire.MarketDataUpdateTrade{
						SymbolID: requestID, Price: tr.Price, Volume: tr.Qty, AtBid: atBid,
					}))
				})
			}
		case werr := <-s.feed.ErrorEvents():
			s.logger.Error("upstream reported error", "text", werr.Text)
		}
	}
}
