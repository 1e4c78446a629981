// Package session implements the DTC connection registry (C6): per-client
// subscription state, cached orders/trades/balances, and the lifecycle tied
// to TCP connect/close. A failed write is counted as a dropped message (see
// Connection.Send) and does not close the connection.
//
// Grounded on 0xtitan6-polymarket-mm/internal/api/stream.go's Hub/Client
// register-unregister-broadcast pattern, adapted from a read-only dashboard
// feed to a stateful per-connection registry carrying subscription maps and
// trading state, and on adred-codev-ws_poc/go-server-3's sharded-hub idea
// for keeping per-connection state off a single global lock.
package session

import (
	"sync"

	"dtc-btrex-bridge/pkg/types"
)

// Writer is the minimal interface a transport must satisfy to receive
// outbound wire frames. internal/server's mutex-serialized per-connection
// writer implements this.
type Writer interface {
	Write(frame []byte) error
}

// Connection is the bridge's state for one connected DTC client, keyed by
// remote address as its stable identity for the lifetime of the TCP
// connection.
type Connection struct {
	RemoteAddr string
	Writer     Writer

	apiKeyMu sync.RWMutex
	apiKey   string
	apiSecret string

	droppedMu       sync.Mutex
	droppedMessages int64

	subMu          sync.RWMutex
	dataSubs       map[string]int64 // symbol -> request id
	dataSubsByID   map[int64]string
	depthSubs      map[string]int64
	depthSubsByID  map[int64]string
	SendSecdefs    bool

	balMu           sync.RWMutex
	exchangeBalances map[string]types.ExchangeBalance
	marginBalances   map[string]types.MarginBalance

	ordersMu     sync.RWMutex
	clientOrders map[string]*types.OpenOrderRecord // keyed by client order id
	orders       map[string]*types.OpenOrderRecord // keyed by exchange order id
	trades       map[string]types.HistoricalFill   // keyed by trade id

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnection creates empty per-connection state for a freshly accepted
// TCP connection.
func NewConnection(remoteAddr string, w Writer) *Connection {
	return &Connection{
		RemoteAddr:       remoteAddr,
		Writer:           w,
		dataSubs:         make(map[string]int64),
		dataSubsByID:     make(map[int64]string),
		depthSubs:        make(map[string]int64),
		depthSubsByID:    make(map[int64]string),
		exchangeBalances: make(map[string]types.ExchangeBalance),
		marginBalances:   make(map[string]types.MarginBalance),
		clientOrders:     make(map[string]*types.OpenOrderRecord),
		orders:           make(map[string]*types.OpenOrderRecord),
		trades:           make(map[string]types.HistoricalFill),
		closed:           make(chan struct{}),
	}
}

// Close signals every timer/loop watching Done that the connection is gone.
// Safe to call more than once or concurrently.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Done returns a channel closed once the connection has gone away, for
// per-connection timers (heartbeat, account refresh) to select on instead of
// holding a back-pointer into the registry.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// SetCredentials stores the API key/secret presented at logon. Credentials
// are immutable for the life of the connection once set.
func (c *Connection) SetCredentials(key, secret string) {
	c.apiKeyMu.Lock()
	defer c.apiKeyMu.Unlock()
	if c.apiKey == "" {
		c.apiKey, c.apiSecret = key, secret
	}
}

// Credentials returns the stored API key/secret pair.
func (c *Connection) Credentials() (key, secret string) {
	c.apiKeyMu.RLock()
	defer c.apiKeyMu.RUnlock()
	return c.apiKey, c.apiSecret
}

// IncrDropped bumps the dropped-message counter (unsendable frame while the
// writer is backed up) and returns the new total.
func (c *Connection) IncrDropped() int64 {
	c.droppedMu.Lock()
	defer c.droppedMu.Unlock()
	c.droppedMessages++
	return c.droppedMessages
}

// DroppedCount returns the current dropped-message count.
func (c *Connection) DroppedCount() int64 {
	c.droppedMu.Lock()
	defer c.droppedMu.Unlock()
	return c.droppedMessages
}

// Send writes a frame, counting it as dropped (and logging via the caller)
// if the writer rejects it.
func (c *Connection) Send(frame []byte) error {
	if err := c.Writer.Write(frame); err != nil {
		c.IncrDropped()
		return err
	}
	return nil
}

// SubscribeData records a market-data subscription for symbol under
// requestID. Uniqueness is keyed on requestID, not symbol: if requestID
// already maps to a different symbol, the subscribe is rejected; otherwise
// both directions are (re)recorded, making a same-symbol resubscribe under
// the same id idempotent.
func (c *Connection) SubscribeData(symbol string, requestID int64) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if existing, exists := c.dataSubsByID[requestID]; exists && existing != symbol {
		return false
	}
	if prevID, exists := c.dataSubs[symbol]; exists && prevID != requestID {
		delete(c.dataSubsByID, prevID)
	}
	c.dataSubs[symbol] = requestID
	c.dataSubsByID[requestID] = symbol
	return true
}

// UnsubscribeData removes a market-data subscription by symbol.
func (c *Connection) UnsubscribeData(symbol string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if id, ok := c.dataSubs[symbol]; ok {
		delete(c.dataSubsByID, id)
	}
	delete(c.dataSubs, symbol)
}

// IsSubscribedData reports whether symbol has an active market-data
// subscription on this connection.
func (c *Connection) IsSubscribedData(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.dataSubs[symbol]
	return ok
}

// DataSubscriptionID returns the request id this connection's market-data
// subscription for symbol was opened under, the id that goes out on the wire
// as SymbolID on every update frame for that symbol.
func (c *Connection) DataSubscriptionID(symbol string) (int64, bool) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	id, ok := c.dataSubs[symbol]
	return id, ok
}

// SubscribeDepth records a market-depth subscription for symbol under
// requestID. Uniqueness is keyed on requestID, not symbol: if requestID
// already maps to a different symbol, the subscribe is rejected; otherwise
// both directions are (re)recorded, making a same-symbol resubscribe under
// the same id idempotent.
func (c *Connection) SubscribeDepth(symbol string, requestID int64) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if existing, exists := c.depthSubsByID[requestID]; exists && existing != symbol {
		return false
	}
	if prevID, exists := c.depthSubs[symbol]; exists && prevID != requestID {
		delete(c.depthSubsByID, prevID)
	}
	c.depthSubs[symbol] = requestID
	c.depthSubsByID[requestID] = symbol
	return true
}

// UnsubscribeDepth removes a market-depth subscription by symbol.
func (c *Connection) UnsubscribeDepth(symbol string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if id, ok := c.depthSubs[symbol]; ok {
		delete(c.depthSubsByID, id)
	}
	delete(c.depthSubs, symbol)
}

// IsSubscribedDepth reports whether symbol has an active market-depth
// subscription on this connection.
func (c *Connection) IsSubscribedDepth(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.depthSubs[symbol]
	return ok
}

// DepthSubscriptionID returns the request id this connection's market-depth
// subscription for symbol was opened under.
func (c *Connection) DepthSubscriptionID(symbol string) (int64, bool) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	id, ok := c.depthSubs[symbol]
	return id, ok
}

// DataSymbols returns every symbol with an active market-data subscription.
func (c *Connection) DataSymbols() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.dataSubs))
	for s := range c.dataSubs {
		out = append(out, s)
	}
	return out
}

// DepthSymbols returns every symbol with an active market-depth subscription.
func (c *Connection) DepthSymbols() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.depthSubs))
	for s := range c.depthSubs {
		out = append(out, s)
	}
	return out
}

// SetExchangeBalance stores one currency row of the spot account.
func (c *Connection) SetExchangeBalance(b types.ExchangeBalance) {
	c.balMu.Lock()
	defer c.balMu.Unlock()
	c.exchangeBalances[b.Currency] = b
}

// ExchangeBalances returns every cached spot balance row.
func (c *Connection) ExchangeBalances() []types.ExchangeBalance {
	c.balMu.RLock()
	defer c.balMu.RUnlock()
	out := make([]types.ExchangeBalance, 0, len(c.exchangeBalances))
	for _, b := range c.exchangeBalances {
		out = append(out, b)
	}
	return out
}

// SetMarginBalance stores one currency row of the margin account.
func (c *Connection) SetMarginBalance(b types.MarginBalance) {
	c.balMu.Lock()
	defer c.balMu.Unlock()
	c.marginBalances[b.Currency] = b
}

// MarginBalances returns every cached margin balance row.
func (c *Connection) MarginBalances() []types.MarginBalance {
	c.balMu.RLock()
	defer c.balMu.RUnlock()
	out := make([]types.MarginBalance, 0, len(c.marginBalances))
	for _, b := range c.marginBalances {
		out = append(out, b)
	}
	return out
}

// PutClientOrder caches the original request + local state by client order id.
func (c *Connection) PutClientOrder(clientOrderID string, rec *types.OpenOrderRecord) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	c.clientOrders[clientOrderID] = rec
}

// ClientOrder looks up a cached order by client order id.
func (c *Connection) ClientOrder(clientOrderID string) (*types.OpenOrderRecord, bool) {
	c.ordersMu.RLock()
	defer c.ordersMu.RUnlock()
	rec, ok := c.clientOrders[clientOrderID]
	return rec, ok
}

// PutOrder caches (or updates) a resting order by exchange order id and
// mirrors it under its client order id for lookup either way.
func (c *Connection) PutOrder(rec *types.OpenOrderRecord) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	c.orders[rec.ExchangeOrderID] = rec
	if rec.Request.ClientOrderID != "" {
		c.clientOrders[rec.Request.ClientOrderID] = rec
	}
}

// Order looks up a cached order by exchange order id.
func (c *Connection) Order(exchangeOrderID string) (*types.OpenOrderRecord, bool) {
	c.ordersMu.RLock()
	defer c.ordersMu.RUnlock()
	rec, ok := c.orders[exchangeOrderID]
	return rec, ok
}

// RemoveOrder drops a completed (filled/canceled) order from both indices.
func (c *Connection) RemoveOrder(exchangeOrderID string) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	if rec, ok := c.orders[exchangeOrderID]; ok {
		delete(c.clientOrders, rec.Request.ClientOrderID)
	}
	delete(c.orders, exchangeOrderID)
}

// OpenOrders returns every currently cached order.
func (c *Connection) OpenOrders() []*types.OpenOrderRecord {
	c.ordersMu.RLock()
	defer c.ordersMu.RUnlock()
	out := make([]*types.OpenOrderRecord, 0, len(c.orders))
	for _, rec := range c.orders {
		out = append(out, rec)
	}
	return out
}

// PutTrade caches a fill.
func (c *Connection) PutTrade(t types.HistoricalFill) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	c.trades[t.TradeID] = t
}

// Trades returns every cached fill.
func (c *Connection) Trades() []types.HistoricalFill {
	c.ordersMu.RLock()
	defer c.ordersMu.RUnlock()
	out := make([]types.HistoricalFill, 0, len(c.trades))
	for _, t := range c.trades {
		out = append(out, t)
	}
	return out
}
