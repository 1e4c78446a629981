// ws.go implements the raw WebSocket connection to the upstream exchange's
// public market feed: dial, subscribe, dispatch typed events. Reconnection,
// watchdog timeout and resubscribe-on-reconnect policy live one layer up in
// internal/upstream (C4); this file owns only the wire-level connection.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange/ws.go's gorilla/websocket
// dial+read-loop+ping-loop structure, stripped of the dual market/user
// channel split (this exchange has one public feed) and regrounded on
// Snapshot/Update/Trade/Error envelopes instead of Polymarket's book/
// price_change/trade/order shapes.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dtc-btrex-bridge/pkg/types"
)

const (
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	eventChanDepth = 256
)

// wireEnvelope tags the event type of one inbound WS frame.
type wireEnvelope struct {
	Type string `json:"type"`
}

type wireSnapshot struct {
	SubID  int64              `json:"subId"`
	Symbol string             `json:"symbol"`
	Bids   []types.PriceLevel `json:"bids"`
	Asks   []types.PriceLevel `json:"asks"`
}

type wireUpdate struct {
	SubID int64  `json:"subId"`
	Side  string `json:"side"`
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

type wireTrade struct {
	SubID     int64   `json:"subId"`
	Timestamp string  `json:"timestamp"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
}

type wireError struct {
	Text string `json:"text"`
}

type wireSubscribe struct {
	Operation string   `json:"operation"`
	Channel   string   `json:"channel"`
	Symbols   []string `json:"symbols"`
}

// WSFeed is a single WebSocket connection to the upstream public feed.
type WSFeed struct {
	url    string
	connMu sync.Mutex
	conn   *websocket.Conn

	snapshotCh chan types.WSSnapshot
	updateCh   chan types.WSUpdate
	tradeCh    chan types.WSTrade
	errCh      chan types.WSError

	logger *slog.Logger
}

// NewWSFeed creates an unconnected feed for wsURL.
func NewWSFeed(wsURL string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:        wsURL,
		snapshotCh: make(chan types.WSSnapshot, eventChanDepth),
		updateCh:   make(chan types.WSUpdate, eventChanDepth),
		tradeCh:    make(chan types.WSTrade, eventChanDepth),
		errCh:      make(chan types.WSError, 16),
		logger:     logger.With("component", "exchange-ws"),
	}
}

func (f *WSFeed) SnapshotEvents() <-chan types.WSSnapshot { return f.snapshotCh }
func (f *WSFeed) UpdateEvents() <-chan types.WSUpdate     { return f.updateCh }
func (f *WSFeed) TradeEvents() <-chan types.WSTrade       { return f.tradeCh }
func (f *WSFeed) ErrorEvents() <-chan types.WSError       { return f.errCh }

// Connect dials the upstream WS endpoint. The caller owns reconnect policy.
func (f *WSFeed) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	return nil
}

// Close closes the active connection, if any.
func (f *WSFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

// Subscribe requests a market-data or market-depth channel for the given
// symbols. channel is "ticker" or "depth".
func (f *WSFeed) Subscribe(channel string, symbols []string) error {
	return f.writeJSON(wireSubscribe{Operation: "subscribe", Channel: channel, Symbols: symbols})
}

// RunPingLoop sends periodic pings until ctx is cancelled or a write fails.
func (f *WSFeed) RunPingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

// ReadLoop reads and dispatches frames until the connection errors or ctx
// is cancelled, returning the terminal error.
func (f *WSFeed) ReadLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("not connected")
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *WSFeed) dispatch(data []byte) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Debug("ignoring non-json frame")
		return
	}
	switch env.Type {
	case "snapshot":
		var m wireSnapshot
		if err := json.Unmarshal(data, &m); err != nil {
			f.logger.Error("unmarshal snapshot", "error", err)
			return
		}
		select {
		case f.snapshotCh <- types.WSSnapshot{SubID: m.SubID, Symbol: m.Symbol, Bids: m.Bids, Asks: m.Asks}:
		default:
			f.logger.Warn("snapshot channel full, dropping", "symbol", m.Symbol)
		}
	case "update":
		var m wireUpdate
		if err := json.Unmarshal(data, &m); err != nil {
			f.logger.Error("unmarshal update", "error", err)
			return
		}
		side := types.Buy
		if m.Side == "sell" {
			side = types.Sell
		}
		select {
		case f.updateCh <- types.WSUpdate{SubID: m.SubID, Side: side, Price: m.Price, Qty: m.Qty}:
		default:
			f.logger.Warn("update channel full, dropping", "subid", m.SubID)
		}
	case "trade":
		var m wireTrade
		if err := json.Unmarshal(data, &m); err != nil {
			f.logger.Error("unmarshal trade", "error", err)
			return
		}
		ts, _ := time.Parse(time.RFC3339, m.Timestamp)
		side := types.Buy
		if m.Side == "sell" {
			side = types.Sell
		}
		select {
		case f.tradeCh <- types.WSTrade{SubID: m.SubID, Timestamp: ts, Side: side, Price: m.Price, Qty: m.Qty}:
		default:
			f.logger.Warn("trade channel full, dropping", "subid", m.SubID)
		}
	case "error":
		var m wireError
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		select {
		case f.errCh <- types.WSError{Text: m.Text}:
		default:
		}
	default:
		f.logger.Debug("unknown ws event type", "type", env.Type)
	}
}

func (f *WSFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *WSFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
