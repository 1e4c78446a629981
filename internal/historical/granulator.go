// Package historical implements the historical data service (C10): an
// online tick-to-OHLCV granulator, a bbolt-backed ordered tick store keyed
// by nanosecond timestamp, a bitset-backed ingestion control file, and the
// raw-tick/bucketed query engine the historical binary serves.
//
// Grounded on 0xtitan6-polymarket-mm/internal/market/book.go's mutex-guarded
// per-symbol state map for the granulator's bucket table, and on
// 0xtitan6-polymarket-mm/internal/exchange/client.go's REST polling shape
// for the ingestion pump (internal/historical/ingest.go). The persistence
// layer has no teacher analogue (the polymarket bot is memory-only); it is
// built on go.etcd.io/bbolt and github.com/bits-and-blooms/bitset, named in
// SPEC_FULL.md's domain stack rather than grounded on a pack example.
package historical

import (
	"sync"
	"time"

	"dtc-btrex-bridge/pkg/types"
)

// bucketKey identifies one (symbol, span) OHLCV accumulator.
type bucketKey struct {
	symbol string
	span   time.Duration
}

// Granulator accumulates ticks into OHLCV bars across a fixed set of spans,
// emitting a bar through Bars() every time a bucket rolls over or Flush is
// called for a partial bar.
type Granulator struct {
	mu      sync.Mutex
	spans   []time.Duration
	active  map[bucketKey]*types.OHLCVBar
	bars    chan BarEvent
}

// BarEvent is one completed or in-progress bar ready for persistence or
// relay to a DTC historical-price-data stream.
type BarEvent struct {
	Symbol string
	Span   time.Duration
	Bar    types.OHLCVBar
}

// NewGranulator creates a granulator that maintains bars for every span in
// spans (e.g. 1m, 5m, 1h).
func NewGranulator(spans []time.Duration) *Granulator {
	return &Granulator{
		spans:  spans,
		active: make(map[bucketKey]*types.OHLCVBar),
		bars:   make(chan BarEvent, 1024),
	}
}

// Bars returns the channel of completed or flushed bars.
func (g *Granulator) Bars() <-chan BarEvent { return g.bars }

// Ingest folds one tick into every span's active bucket. A bucket opens at
// its first tick's own timestamp (not a grid-aligned truncation) and spans
// [start, start+span-1ns]; a tick landing outside that window emits the
// current bucket as final and opens a fresh one at the tick's timestamp.
func (g *Granulator) Ingest(symbol string, tick types.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, span := range g.spans {
		key := bucketKey{symbol: symbol, span: span}
		bar, ok := g.active[key]
		if span == 0 {
			bar = &types.OHLCVBar{Start: tick.Timestamp, End: tick.Timestamp}
			applyTick(bar, tick, true)
			bar.IsFinal = true
			g.emit(symbol, span, *bar)
			continue
		}
		if ok {
			end := bar.Start.Add(span - time.Nanosecond)
			if tick.Timestamp.Before(bar.Start) || tick.Timestamp.After(end) {
				bar.IsFinal = true
				g.emit(symbol, span, *bar)
				ok = false
			}
		}
		if !ok {
			bar = &types.OHLCVBar{Start: tick.Timestamp, End: tick.Timestamp.Add(span - time.Nanosecond)}
			g.active[key] = bar
			applyTick(bar, tick, true)
			continue
		}
		applyTick(bar, tick, false)
	}
}

// Flush emits every currently open bucket as a non-final (IsFinal == false)
// snapshot, used when a client requests the in-progress bar for "now".
func (g *Granulator) Flush() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, bar := range g.active {
		snapshot := *bar
		snapshot.IsFinal = false
		g.emit(key.symbol, key.span, snapshot)
	}
}

func (g *Granulator) emit(symbol string, span time.Duration, bar types.OHLCVBar) {
	select {
	case g.bars <- BarEvent{Symbol: symbol, Span: span, Bar: bar}:
	default:
	}
}

func applyTick(bar *types.OHLCVBar, tick types.Tick, first bool) {
	if first {
		bar.Open = tick.Price
		bar.High = tick.Price
		bar.Low = tick.Price
	} else {
		if tick.Price > bar.High {
			bar.High = tick.Price
		}
		if tick.Price < bar.Low {
			bar.Low = tick.Price
		}
	}
	bar.Last = tick.Price
	bar.Volume += tick.Qty
	bar.NumTrades++
	switch tick.Side {
	case types.Buy:
		addVolume(&bar.BidVolume, tick.Qty)
	case types.Sell:
		addVolume(&bar.AskVolume, tick.Qty)
	}
}

// addVolume accumulates qty into *p, allocating it on first use so an
// untouched side stays nil (spec's "None" for a side that never traded).
func addVolume(p **float64, qty float64) {
	if *p == nil {
		v := qty
		*p = &v
		return
	}
	**p += qty
}
