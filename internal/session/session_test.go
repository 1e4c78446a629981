package session

import (
	"errors"
	"log/slog"
	"io"
	"testing"

	"dtc-btrex-bridge/pkg/types"
)

type recordingWriter struct {
	frames [][]byte
	fail   bool
}

func (w *recordingWriter) Write(frame []byte) error {
	if w.fail {
		return errors.New("write failed")
	}
	w.frames = append(w.frames, frame)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnectionSubscribeDataRejectsIDReassignedToDifferentSymbol(t *testing.T) {
	c := NewConnection("127.0.0.1:1", &recordingWriter{})
	if !c.SubscribeData("A-B", 1) {
		t.Fatal("first subscribe should succeed")
	}
	if c.SubscribeData("C-D", 1) {
		t.Fatal("reusing an id already bound to a different symbol should be rejected")
	}
	if !c.IsSubscribedData("A-B") {
		t.Fatal("expected original symbol to remain subscribed")
	}
	if c.IsSubscribedData("C-D") {
		t.Fatal("rejected symbol should not be recorded as subscribed")
	}
	c.UnsubscribeData("A-B")
	if c.IsSubscribedData("A-B") {
		t.Fatal("expected symbol to be unsubscribed")
	}
}

func TestConnectionSubscribeDataIdempotentUnderSameID(t *testing.T) {
	c := NewConnection("127.0.0.1:1", &recordingWriter{})
	if !c.SubscribeData("BTC-USD", 1) {
		t.Fatal("first subscribe should succeed")
	}
	if !c.SubscribeData("BTC-USD", 1) {
		t.Fatal("resubscribing the same symbol under the same id should succeed")
	}
}

func TestConnectionCredentialsImmutableOnceSet(t *testing.T) {
	c := NewConnection("127.0.0.1:1", &recordingWriter{})
	c.SetCredentials("key1", "secret1")
	c.SetCredentials("key2", "secret2")
	key, secret := c.Credentials()
	if key != "key1" || secret != "secret1" {
		t.Fatalf("expected first credentials to stick, got %s/%s", key, secret)
	}
}

func TestConnectionSendDropCounting(t *testing.T) {
	w := &recordingWriter{fail: true}
	c := NewConnection("127.0.0.1:1", w)
	if err := c.Send([]byte("frame")); err == nil {
		t.Fatal("expected send error")
	}
	if c.DroppedCount() != 1 {
		t.Fatalf("expected 1 dropped message, got %d", c.DroppedCount())
	}
}

func TestConnectionOrderIndexedByBothIDs(t *testing.T) {
	c := NewConnection("127.0.0.1:1", &recordingWriter{})
	rec := &types.OpenOrderRecord{
		ExchangeOrderID: "ex-1",
		Request:         types.SubmitOrderRequest{ClientOrderID: "client-1"},
	}
	c.PutOrder(rec)
	if _, ok := c.Order("ex-1"); !ok {
		t.Fatal("expected lookup by exchange order id")
	}
	if _, ok := c.ClientOrder("client-1"); !ok {
		t.Fatal("expected lookup by client order id")
	}
	c.RemoveOrder("ex-1")
	if _, ok := c.Order("ex-1"); ok {
		t.Fatal("expected order removed")
	}
	if _, ok := c.ClientOrder("client-1"); ok {
		t.Fatal("expected client order mirror removed")
	}
}

func TestRegistryBroadcastDataOnlyReachesSubscribers(t *testing.T) {
	r := NewRegistry(testLogger())
	w1 := &recordingWriter{}
	w2 := &recordingWriter{}
	c1 := NewConnection("a", w1)
	c2 := NewConnection("b", w2)
	c1.SubscribeData("BTC-USD", 1)
	r.Register(c1)
	r.Register(c2)

	var builtFor int64 = -1
	r.BroadcastData("BTC-USD", func(requestID int64) []byte {
		builtFor = requestID
		return []byte("frame")
	})

	if len(w1.frames) != 1 {
		t.Fatalf("expected subscriber to receive frame, got %d", len(w1.frames))
	}
	if len(w2.frames) != 0 {
		t.Fatalf("expected non-subscriber to receive nothing, got %d", len(w2.frames))
	}
	if builtFor != 1 {
		t.Fatalf("expected frame built with subscriber's request id 1, got %d", builtFor)
	}
}

func TestRegistryIsDepthSubscribedReflectsAnyConnection(t *testing.T) {
	r := NewRegistry(testLogger())
	c1 := NewConnection("a", &recordingWriter{})
	c2 := NewConnection("b", &recordingWriter{})
	r.Register(c1)
	r.Register(c2)

	if r.IsDepthSubscribed("ETH-USD") {
		t.Fatal("expected no depth subscribers yet")
	}
	c2.SubscribeDepth("ETH-USD", 7)
	if !r.IsDepthSubscribed("ETH-USD") {
		t.Fatal("expected a depth subscriber on c2 to be visible")
	}
}

func TestRegistryUnregisterRemovesConnection(t *testing.T) {
	r := NewRegistry(testLogger())
	c := NewConnection("a", &recordingWriter{})
	r.Register(c)
	if r.Count() != 1 {
		t.Fatalf("expected 1 connection, got %d", r.Count())
	}
	r.Unregister(c)
	if r.Count() != 0 {
		t.Fatalf("expected 0 connections after unregister, got %d", r.Count())
	}
	if _, ok := r.Get("a"); ok {
		t.Fatal("expected connection gone from registry")
	}
}
