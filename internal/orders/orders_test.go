package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"dtc-btrex-bridge/internal/config"
	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/restsync"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
	"dtc-btrex-bridge/pkg/types"
)

type capturingWriter struct {
	frames []wire.Message
}

func (w *capturingWriter) Write(frame []byte) error {
	if len(frame) < wire.HeaderSize {
		return errors.New("short frame")
	}
	msgs, err := wire.NewDecoder().Feed(frame)
	if err != nil {
		return err
	}
	w.frames = append(w.frames, msgs...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager() (*Manager, *session.Connection, *capturingWriter) {
	store := market.NewStore()
	client := exchange.NewClient(config.ExchangeConfig{RestBaseURL: "https://example.invalid"}, exchange.NewAuth(config.ExchangeConfig{}), testLogger())
	queue := restsync.New(16, testLogger())
	mgr := New(store, client, queue, testLogger())
	w := &capturingWriter{}
	conn := session.NewConnection("127.0.0.1:1", w)
	return mgr, conn, w
}

func lastOrderUpdate(t *testing.T, w *capturingWriter) wire.OrderUpdate {
	t.Helper()
	if len(w.frames) == 0 {
		t.Fatal("expected at least one frame")
	}
	msg := w.frames[len(w.frames)-1]
	if msg.TypeID != wire.TypeOrderUpdate {
		t.Fatalf("expected order update frame, got type %d", msg.TypeID)
	}
	u, err := wire.DecodeOrderUpdate(msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestSubmitRejectsUnknownExchange(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", Exchange: "NOPE", ClientOrderID: "c1", OrderType: 2, Price1: 100, OrderQuantity: 1,
	})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status, got %d", u.Status)
	}
}

func TestSubmitRejectsLimitOrderWithoutPrice(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", ClientOrderID: "c1", OrderType: 2, Price1: 0, OrderQuantity: 1,
	})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status, got %d", u.Status)
	}
}

func TestSubmitMarketOrderRejectsWithoutTickerData(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", ClientOrderID: "c1", OrderType: 1, OrderQuantity: 1,
	})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status, got %d", u.Status)
	}
}

func TestSubmitValidLimitOrderQueuesWithoutRejecting(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", ClientOrderID: "c1", OrderType: 2, TimeInForce: 2, Price1: 100, OrderQuantity: 1,
	})
	if len(w.frames) != 0 {
		t.Fatalf("expected no synchronous frame for a valid order, got %d", len(w.frames))
	}
	if _, ok := conn.ClientOrder("c1"); !ok {
		t.Fatal("expected order cached under client order id")
	}
}

func TestSubmitRejectsUnsetTimeInForce(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", ClientOrderID: "c1", OrderType: 2, Price1: 100, OrderQuantity: 1,
	})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status for unset time in force, got %d", u.Status)
	}
}

func TestSubmitRejectsUnknownTimeInForce(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", ClientOrderID: "c1", OrderType: 2, TimeInForce: 99, Price1: 100, OrderQuantity: 1,
	})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status for unknown time in force, got %d", u.Status)
	}
}

func TestSubmitAcceptsDayMappedToGTC(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Submit(context.Background(), conn, wire.SubmitNewOrder{
		Symbol: "BTC-USD", ClientOrderID: "c1", OrderType: 2, TimeInForce: 1, Price1: 100, OrderQuantity: 1,
	})
	if len(w.frames) != 0 {
		t.Fatalf("expected Day time in force to be accepted (mapped to GTC), got %d frames", len(w.frames))
	}
	rec, ok := conn.ClientOrder("c1")
	if !ok {
		t.Fatal("expected order cached under client order id")
	}
	if rec.Request.TimeInForce != types.GTC {
		t.Fatalf("expected Day to map to GTC, got %v", rec.Request.TimeInForce)
	}
}

func TestCancelRejectsUnknownOrder(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.Cancel(context.Background(), conn, wire.CancelOrder{ClientOrderID: "missing"})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status, got %d", u.Status)
	}
}

func TestCancelReplaceRejectsMissingOrderID(t *testing.T) {
	mgr, conn, w := newTestManager()
	mgr.CancelReplace(context.Background(), conn, wire.CancelReplaceOrder{Price1: 1, OrderQuantity: 1})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status, got %d", u.Status)
	}
}

func TestCancelReplaceRejectsNonPositivePrice(t *testing.T) {
	mgr, conn, w := newTestManager()
	conn.PutOrder(&types.OpenOrderRecord{ExchangeOrderID: "ex-1", Symbol: "BTC-USD", Request: types.SubmitOrderRequest{ClientOrderID: "c1"}})
	mgr.CancelReplace(context.Background(), conn, wire.CancelReplaceOrder{ClientOrderID: "c1", Price1: 0, OrderQuantity: 1})
	u := lastOrderUpdate(t, w)
	if u.Status != int64(types.StatusRejected) {
		t.Fatalf("expected rejected status, got %d", u.Status)
	}
}
