package market

import (
	"testing"
	"time"

	"dtc-btrex-bridge/pkg/types"
)

func fixedTime(unixSec int64) time.Time {
	return time.Unix(unixSec, 0)
}

func TestBookApplySnapshotAndBestBidAsk(t *testing.T) {
	b := NewBook("BTC-USDT")
	b.ApplySnapshot(
		[]types.PriceLevel{{Price: 100, Qty: 1}, {Price: 99, Qty: 2}},
		[]types.PriceLevel{{Price: 101, Qty: 1}, {Price: 102, Qty: 2}},
	)

	bid, ask, ok := b.BestBidAsk()
	if !ok {
		t.Fatal("expected a bid and ask")
	}
	if bid.Price != 100 || ask.Price != 101 {
		t.Errorf("best bid/ask = %v/%v, want 100/101", bid.Price, ask.Price)
	}
	if b.IsCrossed() {
		t.Error("book should not be crossed")
	}
}

func TestBookApplyUpdateDeletesOnZeroQty(t *testing.T) {
	b := NewBook("BTC-USDT")
	b.ApplyUpdate(types.BookUpdate{Side: types.Buy, Price: 100, Qty: 5})
	b.ApplyUpdate(types.BookUpdate{Side: types.Sell, Price: 101, Qty: 5})

	bid, ask, ok := b.BestBidAsk()
	if !ok || bid.Price != 100 || ask.Price != 101 {
		t.Fatalf("unexpected book state after insert: %v %v %v", bid, ask, ok)
	}

	b.ApplyUpdate(types.BookUpdate{Side: types.Buy, Price: 100, Qty: 0})
	_, _, ok = b.BestBidAsk()
	if ok {
		t.Fatal("book should be empty on the bid side after deletion")
	}
}

func TestBookLevelsOrdering(t *testing.T) {
	b := NewBook("BTC-USDT")
	b.ApplySnapshot(
		[]types.PriceLevel{{Price: 98, Qty: 1}, {Price: 100, Qty: 1}, {Price: 99, Qty: 1}},
		[]types.PriceLevel{{Price: 103, Qty: 1}, {Price: 101, Qty: 1}, {Price: 102, Qty: 1}},
	)

	bids, asks := b.Levels(0)
	wantBids := []float64{100, 99, 98}
	wantAsks := []float64{101, 102, 103}
	for i, p := range wantBids {
		if bids[i].Price != p {
			t.Errorf("bids[%d] = %v, want %v", i, bids[i].Price, p)
		}
	}
	for i, p := range wantAsks {
		if asks[i].Price != p {
			t.Errorf("asks[%d] = %v, want %v", i, asks[i].Price, p)
		}
	}
}

func TestStoreSubBindingsAreBidirectional(t *testing.T) {
	s := NewStore()
	s.BindDataSub(42, "BTC-USDT")

	sym, ok := s.SymbolForDataSub(42)
	if !ok || sym != "BTC-USDT" {
		t.Fatalf("SymbolForDataSub = %q, %v; want BTC-USDT, true", sym, ok)
	}

	// Re-subscribing with a new subid on reconnect must not leave the old
	// subid resolvable, and must not leave two subids live for one symbol.
	s.BindDataSub(43, "BTC-USDT")
	if _, ok := s.SymbolForDataSub(42); ok {
		t.Error("stale subid 42 should no longer resolve")
	}
	sym, ok = s.SymbolForDataSub(43)
	if !ok || sym != "BTC-USDT" {
		t.Fatalf("SymbolForDataSub(43) = %q, %v; want BTC-USDT, true", sym, ok)
	}
}

func TestStoreTickerTimestampMonotonic(t *testing.T) {
	s := NewStore()
	first, _ := parseFixedTicker(1)
	s.SetTicker(first)
	second, _ := parseFixedTicker(1) // identical wall-clock timestamp
	s.SetTicker(second)

	got, ok := s.Ticker("BTC-USDT")
	if !ok {
		t.Fatal("expected ticker to be set")
	}
	if !got.Timestamp.After(first.Timestamp) {
		t.Errorf("second SetTicker with equal timestamp did not advance monotonic clock")
	}
}

func parseFixedTicker(unixSec int64) (types.Ticker, error) {
	return types.Ticker{Symbol: "BTC-USDT", Bid: 100, Ask: 101, Timestamp: fixedTime(unixSec)}, nil
}
