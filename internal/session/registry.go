package session

import (
	"log/slog"
	"sync"
)

// Registry tracks every live DTC connection, keyed by remote address, and
// fans broadcasts (e.g. a ticker field update) out to whichever connections
// are subscribed.
//
// Grounded on 0xtitan6-polymarket-mm/internal/api/stream.go's Hub, which
// keeps a map of *Client guarded by a mutex and iterates it under RLock for
// broadcast; this registry adds subscription-aware fan-out instead of an
// unconditional broadcast to every client.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger.With("component", "session-registry"),
	}
}

// Register adds a newly accepted connection.
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.RemoteAddr] = c
	r.logger.Info("connection registered", "remote", c.RemoteAddr, "count", len(r.conns))
}

// Unregister removes a closed connection.
func (r *Registry) Unregister(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.RemoteAddr)
	r.logger.Info("connection unregistered", "remote", c.RemoteAddr, "count", len(r.conns))
}

// Get returns the connection for remoteAddr, if still registered.
func (r *Registry) Get(remoteAddr string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[remoteAddr]
	return c, ok
}

// All returns a snapshot of every currently registered connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// BroadcastData sends a frame to every connection subscribed to symbol's
// market-data channel. build receives each subscriber's own request id,
// since that id (not the symbol) is what goes out on the wire as SymbolID —
// two connections can be subscribed to the same symbol under different ids.
func (r *Registry) BroadcastData(symbol string, build func(requestID int64) []byte) {
	for _, c := range r.All() {
		id, ok := c.DataSubscriptionID(symbol)
		if !ok {
			continue
		}
		if err := c.Send(build(id)); err != nil {
			r.logger.Warn("dropping frame to subscriber", "remote", c.RemoteAddr, "symbol", symbol, "error", err)
		}
	}
}

// BroadcastDepth sends a frame to every connection subscribed to symbol's
// market-depth channel, built per subscriber's own request id.
func (r *Registry) BroadcastDepth(symbol string, build func(requestID int64) []byte) {
	for _, c := range r.All() {
		id, ok := c.DepthSubscriptionID(symbol)
		if !ok {
			continue
		}
		if err := c.Send(build(id)); err != nil {
			r.logger.Warn("dropping depth frame to subscriber", "remote", c.RemoteAddr, "symbol", symbol, "error", err)
		}
	}
}

// IsDepthSubscribed reports whether any live connection currently carries a
// market-depth subscription for symbol, the signal the ticker refresher uses
// to suppress redundant bid/ask field updates for symbols already served by
// the push depth feed.
func (r *Registry) IsDepthSubscribed(symbol string) bool {
	for _, c := range r.All() {
		if c.IsSubscribedDepth(symbol) {
			return true
		}
	}
	return false
}

// BroadcastSecdef sends frame to every connection that asked for security
// definitions to be streamed as they are discovered.
func (r *Registry) BroadcastSecdef(frame []byte) {
	for _, c := range r.All() {
		if !c.SendSecdefs {
			continue
		}
		if err := c.Send(frame); err != nil {
			r.logger.Warn("dropping secdef frame", "remote", c.RemoteAddr, "error", err)
		}
	}
}
