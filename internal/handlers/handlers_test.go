package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"dtc-btrex-bridge/internal/config"
	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/orders"
	"dtc-btrex-bridge/internal/restsync"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
	"dtc-btrex-bridge/pkg/types"
)

// wireTestWriter is a minimal standalone protowire field encoder for
// constructing request payloads in tests, mirroring the unexported
// fieldWriter the wire package uses internally.
type wireTestWriter struct {
	buf []byte
}

func (w *wireTestWriter) putInt64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

func (w *wireTestWriter) putString(num protowire.Number, s string) {
	if s == "" {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, s)
}

type capturingWriter struct {
	frames []wire.Message
}

func (w *capturingWriter) Write(frame []byte) error {
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

// fakeExchangeServer answers the balances and margin summary endpoints the
// account-balance handler calls synchronously, so handler tests never reach
// the network or eat resty's retry backoff against a dead host.
func fakeExchangeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/balances":
			json.NewEncoder(w).Encode([]types.ExchangeBalance{{Currency: "BTC", Available: 1.5}})
		case "/margin/account/summary":
			json.NewEncoder(w).Encode([]types.MarginBalance{{Currency: "BTC", Amount: 0.5}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSet(t *testing.T) (*Set, *session.Connection, *capturingWriter) {
	t.Helper()
	srv := fakeExchangeServer(t)
	store := market.NewStore()
	client := exchange.NewClient(config.ExchangeConfig{RestBaseURL: srv.URL}, exchange.NewAuth(config.ExchangeConfig{}), testLogger())
	queue := restsync.New(16, testLogger())
	mgr := orders.New(store, client, queue, testLogger())
	registry := session.NewRegistry(testLogger())
	set := New(store, client, mgr, queue, registry, time.Hour, testLogger())
	w := &capturingWriter{}
	conn := session.NewConnection("127.0.0.1:1", w)
	return set, conn, w
}

func TestHandleMarketDataRequestRejectsWithoutTicker(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.MarketDataRequest{RequestID: 1, Symbol: "BTC-USD", Action: int64(types.ActionSubscribe)}
	msg := wire.Message{TypeID: wire.TypeMarketDataRequest, Payload: encodeMarketDataRequest(req)}
	set.handleMarketDataRequest(context.Background(), conn, msg)

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeMarketDataReject {
		t.Fatalf("expected a market data reject frame, got %+v", w.frames)
	}
}

func TestHandleMarketDataRequestSnapshotsKnownTicker(t *testing.T) {
	set, conn, w := newTestSet(t)
	set.store.SetTicker(types.Ticker{Symbol: "BTC-USD", Bid: 100, Ask: 101})

	req := wire.MarketDataRequest{RequestID: 1, Symbol: "BTC-USD", Action: int64(types.ActionSubscribe)}
	msg := wire.Message{TypeID: wire.TypeMarketDataRequest, Payload: encodeMarketDataRequest(req)}
	set.handleMarketDataRequest(context.Background(), conn, msg)

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeMarketDataSnapshot {
		t.Fatalf("expected a market data snapshot frame, got %+v", w.frames)
	}
	if !conn.IsSubscribedData("BTC-USD") {
		t.Fatal("expected subscription to be recorded")
	}
}

func TestHandleMarketDataRequestRejectsIDReassignedToDifferentSymbol(t *testing.T) {
	set, conn, w := newTestSet(t)
	set.store.SetTicker(types.Ticker{Symbol: "BTC-USD", Bid: 100, Ask: 101})
	set.store.SetTicker(types.Ticker{Symbol: "ETH-USD", Bid: 10, Ask: 11})

	first := wire.MarketDataRequest{RequestID: 1, Symbol: "BTC-USD", Action: int64(types.ActionSubscribe)}
	set.handleMarketDataRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeMarketDataRequest, Payload: encodeMarketDataRequest(first)})

	second := wire.MarketDataRequest{RequestID: 1, Symbol: "ETH-USD", Action: int64(types.ActionSubscribe)}
	set.handleMarketDataRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeMarketDataRequest, Payload: encodeMarketDataRequest(second)})

	if len(w.frames) != 2 || w.frames[1].TypeID != wire.TypeMarketDataReject {
		t.Fatalf("expected second subscribe (same id, different symbol) to be rejected, got %+v", w.frames)
	}
}

func TestHandleMarketDataRequestResubscribeUnderSameIDAndSymbolSucceeds(t *testing.T) {
	set, conn, w := newTestSet(t)
	set.store.SetTicker(types.Ticker{Symbol: "BTC-USD", Bid: 100, Ask: 101})
	req := wire.MarketDataRequest{RequestID: 1, Symbol: "BTC-USD", Action: int64(types.ActionSubscribe)}
	msg := wire.Message{TypeID: wire.TypeMarketDataRequest, Payload: encodeMarketDataRequest(req)}
	set.handleMarketDataRequest(context.Background(), conn, msg)
	set.handleMarketDataRequest(context.Background(), conn, msg)

	if len(w.frames) != 2 || w.frames[1].TypeID != wire.TypeMarketDataSnapshot {
		t.Fatalf("expected idempotent resubscribe to re-send the snapshot, got %+v", w.frames)
	}
}

func TestHandleOpenOrdersRequestSendsNoOrdersSentinel(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.OpenOrdersRequest{RequestID: 1, TradeAccount: types.TradeAccountExchange}
	msg := wire.Message{TypeID: wire.TypeOpenOrdersRequest, Payload: encodeOpenOrdersRequest(req)}
	set.handleOpenOrdersRequest(context.Background(), conn, msg)

	if len(w.frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(w.frames))
	}
	u, err := wire.DecodeOrderUpdate(w.frames[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if u.NoOrders != 1 {
		t.Fatal("expected no-orders sentinel")
	}
}

func TestHandleTradeAccountsRequestListsBothAccounts(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.TradeAccountsRequest{RequestID: 1}
	msg := wire.Message{TypeID: wire.TypeTradeAccountsRequest, Payload: encodeTradeAccountsRequest(req)}
	set.handleTradeAccountsRequest(context.Background(), conn, msg)

	if len(w.frames) != 2 {
		t.Fatalf("expected 2 trade account frames, got %d", len(w.frames))
	}
}

func TestHandleHeartbeatEchoesDroppedCount(t *testing.T) {
	set, conn, w := newTestSet(t)
	msg := wire.Message{TypeID: wire.TypeHeartbeat, Payload: wire.EncodeHeartbeat(wire.Heartbeat{})}
	set.handleHeartbeat(context.Background(), conn, msg)

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeHeartbeat {
		t.Fatalf("expected a heartbeat reply, got %+v", w.frames)
	}
}

func TestHandleLogonWithEmptyCredentialsReportsNoTrading(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.LogonRequest{HeartbeatInterval: 5}
	set.handleLogon(context.Background(), conn, wire.Message{TypeID: wire.TypeLogonRequest, Payload: encodeLogonRequest(req)})

	if len(w.frames) == 0 || w.frames[0].TypeID != wire.TypeLogonResponse {
		t.Fatalf("expected a logon response, got %+v", w.frames)
	}
	resp, err := wire.DecodeLogonResponse(w.frames[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != 1 {
		t.Fatalf("expected result=success even with no credentials, got %d", resp.Result)
	}
	if resp.TradingSupported != 0 {
		t.Fatalf("expected trading_supported=false with no credentials, got %d", resp.TradingSupported)
	}
	if resp.ResultText != "Trading disabled: No credentials" {
		t.Fatalf("unexpected result text: %q", resp.ResultText)
	}
}

func TestHandleLogonHonorsSendSecdefsBitFromRequest(t *testing.T) {
	set, conn, _ := newTestSet(t)
	set.store.SetTicker(types.Ticker{Symbol: "BTC-USD", Bid: 100, Ask: 101})
	req := wire.LogonRequest{HeartbeatInterval: 5, Integer1: 0x40}
	set.handleLogon(context.Background(), conn, wire.Message{TypeID: wire.TypeLogonRequest, Payload: encodeLogonRequest(req)})

	if !conn.SendSecdefs {
		t.Fatal("expected send_secdefs bit to set conn.SendSecdefs")
	}
}

func TestHandleSecurityDefinitionRequestRejectsUnknownSymbol(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.SecurityDefinitionForSymbolRequest{RequestID: 1, Symbol: "NOPE-USD", Exchange: types.MyExchange}
	set.handleSecurityDefinitionRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeSecurityDefinitionForSymbolRequest, Payload: encodeSecurityDefinitionForSymbolRequest(req)})

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeSecurityDefinitionReject {
		t.Fatalf("expected a security definition reject, got %+v", w.frames)
	}
	rej, err := wire.DecodeSecurityDefinitionReject(w.frames[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if rej.RejectText != "Unknown symbol NOPE-USD" {
		t.Fatalf("unexpected reject text: %q", rej.RejectText)
	}
}

func TestHandleSecurityDefinitionRequestRejectsWrongExchange(t *testing.T) {
	set, conn, w := newTestSet(t)
	set.store.SetTicker(types.Ticker{Symbol: "BTC-USD", Bid: 100, Ask: 101})
	req := wire.SecurityDefinitionForSymbolRequest{RequestID: 1, Symbol: "BTC-USD", Exchange: "OTHER"}
	set.handleSecurityDefinitionRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeSecurityDefinitionForSymbolRequest, Payload: encodeSecurityDefinitionForSymbolRequest(req)})

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeSecurityDefinitionReject {
		t.Fatalf("expected a security definition reject for mismatched exchange, got %+v", w.frames)
	}
}

func TestHandleSecurityDefinitionRequestSucceedsWithExpectedFields(t *testing.T) {
	set, conn, w := newTestSet(t)
	set.store.SetTicker(types.Ticker{Symbol: "BTC-USD", Bid: 100, Ask: 101})
	req := wire.SecurityDefinitionForSymbolRequest{RequestID: 1, Symbol: "BTC-USD", Exchange: types.MyExchange}
	set.handleSecurityDefinitionRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeSecurityDefinitionForSymbolRequest, Payload: encodeSecurityDefinitionForSymbolRequest(req)})

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeSecurityDefinitionResponse {
		t.Fatalf("expected a security definition response, got %+v", w.frames)
	}
	resp, err := wire.DecodeSecurityDefinitionResponse(w.frames[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if resp.SecurityType != wire.SecurityTypeForex || resp.PriceDisplayFormat != wire.PriceDisplayFormatDecimal8 || resp.HasMarketDepthData != 1 {
		t.Fatalf("unexpected definition fields: %+v", resp)
	}
}

func TestHandleAccountBalanceRequestWithEmptyAccountSendsBoth(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.AccountBalanceRequest{RequestID: 1}
	set.handleAccountBalanceRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeAccountBalanceRequest, Payload: encodeAccountBalanceRequest(req)})

	if len(w.frames) != 2 {
		t.Fatalf("expected 2 balance frames (exchange + margin), got %d: %+v", len(w.frames), w.frames)
	}
	first, err := wire.DecodeAccountBalanceUpdate(w.frames[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	second, err := wire.DecodeAccountBalanceUpdate(w.frames[1].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if first.TradeAccount != types.TradeAccountExchange || second.TradeAccount != types.TradeAccountMargin {
		t.Fatalf("expected exchange then margin, got %q then %q", first.TradeAccount, second.TradeAccount)
	}
}

func TestHandleAccountBalanceRequestScopedToMarginOnlySendsMargin(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.AccountBalanceRequest{RequestID: 1, TradeAccount: types.TradeAccountMargin}
	set.handleAccountBalanceRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeAccountBalanceRequest, Payload: encodeAccountBalanceRequest(req)})

	if len(w.frames) != 1 {
		t.Fatalf("expected exactly 1 balance frame, got %d: %+v", len(w.frames), w.frames)
	}
	u, err := wire.DecodeAccountBalanceUpdate(w.frames[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if u.TradeAccount != types.TradeAccountMargin {
		t.Fatalf("expected margin-only response, got %q", u.TradeAccount)
	}
}

func TestHandleAccountBalanceRequestRejectsUnknownAccount(t *testing.T) {
	set, conn, w := newTestSet(t)
	req := wire.AccountBalanceRequest{RequestID: 1, TradeAccount: "retirement"}
	set.handleAccountBalanceRequest(context.Background(), conn, wire.Message{TypeID: wire.TypeAccountBalanceRequest, Payload: encodeAccountBalanceRequest(req)})

	if len(w.frames) != 1 || w.frames[0].TypeID != wire.TypeAccountBalanceReject {
		t.Fatalf("expected an account balance reject, got %+v", w.frames)
	}
}

// Local payload encoders mirror the request-side encode functions the real
// DTC client would use; the wire package only exports Decode for request
// message types since the server never originates them.
func encodeMarketDataRequest(m wire.MarketDataRequest) []byte {
	w := wireTestWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.Symbol)
	w.putString(3, m.Exchange)
	w.putInt64(4, m.Action)
	return w.buf
}

func encodeOpenOrdersRequest(m wire.OpenOrdersRequest) []byte {
	w := wireTestWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.TradeAccount)
	return w.buf
}

func encodeTradeAccountsRequest(m wire.TradeAccountsRequest) []byte {
	w := wireTestWriter{}
	w.putInt64(1, m.RequestID)
	return w.buf
}

func encodeLogonRequest(m wire.LogonRequest) []byte {
	w := wireTestWriter{}
	w.putString(1, m.Username)
	w.putString(2, m.Password)
	w.putInt64(3, m.HeartbeatInterval)
	w.putString(4, m.TradeAccount)
	w.putInt64(5, m.Integer1)
	w.putInt64(6, m.Integer2)
	return w.buf
}

func encodeSecurityDefinitionForSymbolRequest(m wire.SecurityDefinitionForSymbolRequest) []byte {
	w := wireTestWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.Symbol)
	w.putString(3, m.Exchange)
	return w.buf
}

func encodeAccountBalanceRequest(m wire.AccountBalanceRequest) []byte {
	w := wireTestWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.TradeAccount)
	return w.buf
}
