// Package refresher periodically polls the upstream ticker REST endpoint
// (C5) through RestSync (C3), diffs each symbol against the market store,
// and fans the per-field deltas and first-sightings out to subscribed DTC
// connections via the session registry.
package refresher

import (
	"context"
	"log/slog"
	"time"

	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/restsync"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
	"dtc-btrex-bridge/pkg/types"
)

const defaultInterval = 60 * time.Second

// FieldUpdate is one changed ticker field ready to relay to clients.
type FieldUpdate struct {
	Symbol string
	Field  string // "bid_ask", "low24h", "high24h", "base_volume"
	Ticker types.Ticker
}

// Refresher polls tickers through RestSync (C3), diffs the result against
// the market store, and fans each per-field delta and first-sighting out to
// subscribed DTC connections via the session registry.
type Refresher struct {
	client   *exchange.Client
	store    *market.Store
	queue    *restsync.Queue
	registry *session.Registry
	interval time.Duration
	updates  chan FieldUpdate
	firstSeen chan types.Ticker // new-symbol sightings, for security definition emission

	logger *slog.Logger
}

// New creates a Refresher polling at interval (0 selects the default 60s),
// enqueuing its REST call onto queue and broadcasting deltas through
// registry.
func New(client *exchange.Client, store *market.Store, queue *restsync.Queue, registry *session.Registry, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Refresher{
		client:    client,
		store:     store,
		queue:     queue,
		registry:  registry,
		interval:  interval,
		updates:   make(chan FieldUpdate, 256),
		firstSeen: make(chan types.Ticker, 64),
		logger:    logger.With("component", "refresher"),
	}
}

// Updates returns the channel of per-field ticker deltas.
func (r *Refresher) Updates() <-chan FieldUpdate { return r.updates }

// FirstSeen returns the channel of tickers observed for the first time —
// the trigger for emitting a security definition to send_secdefs clients.
func (r *Refresher) FirstSeen() <-chan types.Ticker { return r.firstSeen }

// Run polls until ctx is cancelled. A single failed poll is logged and
// retried on the next tick; it never stops the loop.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// pollOnce enqueues the tickers fetch onto RestSync (C3) rather than calling
// the exchange client directly, so it shares the same queue/breaker
// discipline as every other upstream call, then blocks for the result since
// the diff against the store needs it before the next tick.
func (r *Refresher) pollOnce(ctx context.Context) {
	type result struct {
		tickers []types.RESTTicker
		err     error
	}
	resCh := make(chan result, 1)
	if err := r.queue.Push(ctx, func(ctx context.Context) error {
		rest, err := r.client.Tickers(ctx)
		resCh <- result{tickers: rest, err: err}
		return err
	}); err != nil {
		r.logger.Error("enqueue tickers poll failed", "error", err)
		return
	}

	var res result
	select {
	case res = <-resCh:
	case <-ctx.Done():
		return
	}
	if res.err != nil {
		r.logger.Error("poll tickers failed", "error", res.err)
		return
	}

	now := time.Now()
	for _, rt := range res.tickers {
		next := types.Ticker{
			Symbol: rt.Symbol, Bid: rt.Bid, Ask: rt.Ask, Last: rt.Last,
			Low24h: rt.Low, High24h: rt.High, BaseVolume: rt.BaseVolume, Timestamp: now,
		}
		prev, existed := r.store.Ticker(rt.Symbol)
		r.store.SetTicker(next)

		if !existed {
			r.emitFirstSeen(next)
			continue
		}
		r.emitDeltas(prev, next)
	}
}

// emitFirstSeen fires the security-definition trigger for a newly observed
// symbol ahead of any field update, since a client needs the definition
// before it can make sense of subsequent field updates for that symbol.
func (r *Refresher) emitFirstSeen(next types.Ticker) {
	select {
	case r.firstSeen <- next:
	default:
		r.logger.Warn("first-seen channel full, dropping security definition trigger", "symbol", next.Symbol)
	}
	if r.registry != nil {
		r.registry.BroadcastSecdef(wire.Encode(wire.TypeSecurityDefinitionResponse, wire.EncodeSecurityDefinitionResponse(wire.SecurityDefinitionResponse{
			Symbol: next.Symbol, Exchange: types.MyExchange, Description: next.Symbol,
			MinPriceIncrement: types.MinPriceIncrement, CurrencyValuePerIncrement: types.CurrencyValuePerIncrement,
			IsFinal: 1, SecurityType: wire.SecurityTypeForex, PriceDisplayFormat: wire.PriceDisplayFormatDecimal8,
			HasMarketDepthData: 1,
		})))
	}
}

// emitDeltas pushes one FieldUpdate per changed ticker field. bid_ask is
// suppressed for symbols a client already has a live market-depth
// subscription on, since the depth feed already carries best-bid/ask moves
// with lower latency than a ticker poll.
func (r *Refresher) emitDeltas(prev, next types.Ticker) {
	depthCovered := r.registry != nil && r.registry.IsDepthSubscribed(next.Symbol)
	if (prev.Bid != next.Bid || prev.Ask != next.Ask) && !depthCovered {
		r.push(FieldUpdate{Symbol: next.Symbol, Field: "bid_ask", Ticker: next})
	}
	if prev.Low24h != next.Low24h {
		r.push(FieldUpdate{Symbol: next.Symbol, Field: "low24h", Ticker: next})
	}
	if prev.High24h != next.High24h {
		r.push(FieldUpdate{Symbol: next.Symbol, Field: "high24h", Ticker: next})
	}
	if prev.BaseVolume != next.BaseVolume {
		r.push(FieldUpdate{Symbol: next.Symbol, Field: "base_volume", Ticker: next})
	}
}

func (r *Refresher) push(u FieldUpdate) {
	select {
	case r.updates <- u:
	default:
		r.logger.Warn("update channel full, dropping", "symbol", u.Symbol, "field", u.Field)
	}
	if r.registry == nil {
		return
	}
	switch u.Field {
	case "bid_ask":
		r.registry.BroadcastData(u.Symbol, func(requestID int64) []byte {
			return wire.Encode(wire.TypeMarketDataUpdateBidAsk, wire.EncodeMarketDataUpdateBidAsk(wire.MarketDataUpdateBidAsk{
				SymbolID: requestID, Bid: u.Ticker.Bid, Ask: u.Ticker.Ask,
			}))
		})
	case "low24h":
		r.registry.BroadcastData(u.Symbol, func(requestID int64) []byte {
			return wire.Encode(wire.TypeMarketDataUpdateSession, wire.EncodeMarketDataUpdateSession(wire.MarketDataUpdateSession{
				SymbolID: requestID, Field: 1, Value: u.Ticker.Low24h,
			}))
		})
	case "high24h":
		r.registry.BroadcastData(u.Symbol, func(requestID int64) []byte {
			return wire.Encode(wire.TypeMarketDataUpdateSession, wire.EncodeMarketDataUpdateSession(wire.MarketDataUpdateSession{
				SymbolID: requestID, Field: 2, Value: u.Ticker.High24h,
			}))
		})
	case "base_volume":
		r.registry.BroadcastData(u.Symbol, func(requestID int64) []byte {
			return wire.Encode(wire.TypeMarketDataUpdateSession, wire.EncodeMarketDataUpdateSession(wire.MarketDataUpdateSession{
				SymbolID: requestID, Field: 3, Value: u.Ticker.BaseVolume,
			}))
		})
	}
}
