package market

import (
	"sort"
	"sync"

	"dtc-btrex-bridge/pkg/types"
)

// Book is the ordered bid/ask price->quantity mirror for one symbol, fed by
// upstream market-depth snapshots and incremental updates. Bids scan
// descending, asks ascending, matching a standard limit order book.
//
// Grounded on 0xtitan6-polymarket-mm/internal/market/book.go's RWMutex
// discipline, generalized from a two-sided YES/NO snapshot pair to a
// plain bid/ask price-level map mutated level by level.
type Book struct {
	mu     sync.RWMutex
	symbol string
	bids   map[float64]float64
	asks   map[float64]float64
}

// NewBook creates an empty book for symbol.
func NewBook(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

// ApplySnapshot replaces both sides of the book wholesale.
func (b *Book) ApplySnapshot(bids, asks []types.PriceLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = make(map[float64]float64, len(bids))
	b.asks = make(map[float64]float64, len(asks))
	for _, lvl := range bids {
		if lvl.Qty > 0 {
			b.bids[lvl.Price] = lvl.Qty
		}
	}
	for _, lvl := range asks {
		if lvl.Qty > 0 {
			b.asks[lvl.Price] = lvl.Qty
		}
	}
}

// ApplyUpdate mutates a single level. Qty == 0 deletes the level.
func (b *Book) ApplyUpdate(u types.BookUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	side := b.bids
	if u.Side == types.Sell {
		side = b.asks
	}
	if u.Qty == 0 {
		delete(side, u.Price)
		return
	}
	side[u.Price] = u.Qty
}

// BestBidAsk returns the best bid and ask price levels. ok is false if
// either side is empty.
func (b *Book) BestBidAsk() (bid, ask types.PriceLevel, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return types.PriceLevel{}, types.PriceLevel{}, false
	}
	bestBid := -1.0
	for p := range b.bids {
		if p > bestBid {
			bestBid = p
		}
	}
	bestAsk := -1.0
	for p := range b.asks {
		if bestAsk < 0 || p < bestAsk {
			bestAsk = p
		}
	}
	return types.PriceLevel{Price: bestBid, Qty: b.bids[bestBid]},
		types.PriceLevel{Price: bestAsk, Qty: b.asks[bestAsk]}, true
}

// Levels returns up to depth levels per side, bids descending, asks
// ascending — the shape a market-depth snapshot message is built from.
func (b *Book) Levels(depth int) (bids, asks []types.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids = sortedLevels(b.bids, true)
	asks = sortedLevels(b.asks, false)
	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}
	return bids, asks
}

func sortedLevels(side map[float64]float64, descending bool) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(side))
	for p, q := range side {
		out = append(out, types.PriceLevel{Price: p, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// IsCrossed reports whether the best bid is >= the best ask — a condition
// that must never hold in a consistent book.
func (b *Book) IsCrossed() bool {
	bid, ask, ok := b.BestBidAsk()
	if !ok {
		return false
	}
	return bid.Price >= ask.Price
}
