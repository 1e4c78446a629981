package historical

import (
	"testing"
	"time"

	"dtc-btrex-bridge/pkg/types"
)

func TestStorePutAndQueryTicksOrdered(t *testing.T) {
	s, err := OpenStore(t.TempDir() + "/hist.db")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []types.Tick{
		{Timestamp: base.Add(2 * time.Second), Price: 102, Qty: 1},
		{Timestamp: base, Price: 100, Qty: 1},
		{Timestamp: base.Add(time.Second), Price: 101, Qty: 1},
	}
	for _, tick := range ticks {
		if err := s.PutTick("BTC-USD", tick); err != nil {
			t.Fatal(err)
		}
	}

	out, err := s.QueryTicks("BTC-USD", base, base.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(out))
	}
	if out[0].Price != 100 || out[1].Price != 101 || out[2].Price != 102 {
		t.Fatalf("expected time-ordered ticks, got %+v", out)
	}
}

func TestStorePutTickResolvesTimestampCollision(t *testing.T) {
	s, err := OpenStore(t.TempDir() + "/hist.db")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.PutTick("BTC-USD", types.Tick{Timestamp: ts, Price: 100, Qty: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutTick("BTC-USD", types.Tick{Timestamp: ts, Price: 101, Qty: 1}); err != nil {
		t.Fatal(err)
	}

	out, err := s.QueryTicks("BTC-USD", ts, ts.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both colliding ticks retained, got %d", len(out))
	}
}

func TestStoreQueryBarsRoundTrip(t *testing.T) {
	s, err := OpenStore(t.TempDir() + "/hist.db")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bar := types.OHLCVBar{Start: start, End: start.Add(time.Minute), Open: 100, High: 110, Low: 95, Last: 105, Volume: 10, NumTrades: 4, IsFinal: true}
	if err := s.PutBar("BTC-USD", time.Minute, bar); err != nil {
		t.Fatal(err)
	}

	out, err := s.QueryBars("BTC-USD", time.Minute, start, start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].High != 110 {
		t.Fatalf("unexpected bars: %+v", out)
	}
}
