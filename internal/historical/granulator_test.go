package historical

import (
	"testing"
	"time"

	"dtc-btrex-bridge/pkg/types"
)

func TestGranulatorEmitsFinalBarOnRollover(t *testing.T) {
	g := NewGranulator([]time.Duration{time.Minute})
	base := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)

	g.Ingest("BTC-USD", types.Tick{Timestamp: base, Price: 100, Qty: 1})
	g.Ingest("BTC-USD", types.Tick{Timestamp: base.Add(10 * time.Second), Price: 105, Qty: 2})
	g.Ingest("BTC-USD", types.Tick{Timestamp: base.Add(time.Minute), Price: 90, Qty: 1})

	select {
	case evt := <-g.Bars():
		if !evt.Bar.IsFinal {
			t.Fatal("expected the rolled-over bucket to be final")
		}
		if evt.Bar.Open != 100 || evt.Bar.High != 105 || evt.Bar.Low != 100 || evt.Bar.Last != 105 {
			t.Fatalf("unexpected OHLC: %+v", evt.Bar)
		}
		if evt.Bar.Volume != 3 || evt.Bar.NumTrades != 2 {
			t.Fatalf("unexpected volume/trades: %+v", evt.Bar)
		}
	default:
		t.Fatal("expected a final bar to be emitted on rollover")
	}
}

func TestGranulatorAccumulatesSideVolumesSeparately(t *testing.T) {
	g := NewGranulator([]time.Duration{time.Minute})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	g.Ingest("BTC-USD", types.Tick{Timestamp: base, Price: 100, Qty: 1, Side: types.Buy})
	g.Ingest("BTC-USD", types.Tick{Timestamp: base.Add(5 * time.Second), Price: 101, Qty: 2, Side: types.Buy})
	g.Ingest("BTC-USD", types.Tick{Timestamp: base.Add(10 * time.Second), Price: 99, Qty: 4, Side: types.Sell})

	g.Flush()
	select {
	case evt := <-g.Bars():
		if evt.Bar.BidVolume == nil || *evt.Bar.BidVolume != 3 {
			t.Fatalf("expected bid_volume 3, got %+v", evt.Bar.BidVolume)
		}
		if evt.Bar.AskVolume == nil || *evt.Bar.AskVolume != 4 {
			t.Fatalf("expected ask_volume 4, got %+v", evt.Bar.AskVolume)
		}
	default:
		t.Fatal("expected a flushed snapshot")
	}
}

func TestGranulatorLeavesUntradedSideVolumeNil(t *testing.T) {
	g := NewGranulator([]time.Duration{time.Minute})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.Ingest("BTC-USD", types.Tick{Timestamp: base, Price: 100, Qty: 1, Side: types.Buy})

	g.Flush()
	select {
	case evt := <-g.Bars():
		if evt.Bar.AskVolume != nil {
			t.Fatalf("expected ask_volume to stay nil, got %v", *evt.Bar.AskVolume)
		}
	default:
		t.Fatal("expected a flushed snapshot")
	}
}

func TestGranulatorStreamsRawTicksWhenSpanIsZero(t *testing.T) {
	g := NewGranulator([]time.Duration{0})
	g.Ingest("BTC-USD", types.Tick{Timestamp: time.Now(), Price: 100, Qty: 1, Side: types.Buy})

	select {
	case evt := <-g.Bars():
		if !evt.Bar.IsFinal {
			t.Fatal("expected a zero-span tick to be emitted as an immediately final record")
		}
		if evt.Bar.Open != 100 || evt.Bar.Volume != 1 {
			t.Fatalf("unexpected raw-tick bar: %+v", evt.Bar)
		}
	default:
		t.Fatal("expected a bar for the raw tick")
	}
}

func TestGranulatorFlushEmitsNonFinalSnapshot(t *testing.T) {
	g := NewGranulator([]time.Duration{time.Minute})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.Ingest("BTC-USD", types.Tick{Timestamp: base, Price: 100, Qty: 1})

	g.Flush()
	select {
	case evt := <-g.Bars():
		if evt.Bar.IsFinal {
			t.Fatal("expected flush snapshot to be non-final")
		}
	default:
		t.Fatal("expected a flushed snapshot")
	}
}

func TestCtrlFileRoundTripsThroughSaveAndReload(t *testing.T) {
	path := t.TempDir() + "/ctrl.bin"
	c, err := OpenCtrlFile(path)
	if err != nil {
		t.Fatal(err)
	}
	hour := genesis.Add(5 * hourGranularity)
	c.MarkIngested("BTC-USD", hour)
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := OpenCtrlFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.IsIngested("BTC-USD", hour) {
		t.Fatal("expected reloaded control file to report the hour as ingested")
	}
	if reloaded.IsIngested("BTC-USD", hour.Add(hourGranularity)) {
		t.Fatal("expected an untouched hour to report as not ingested")
	}
	if reloaded.IsIngested("ETH-USD", hour) {
		t.Fatal("expected an untouched symbol to report as not ingested")
	}
}
