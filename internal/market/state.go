// Package market holds the bridge's mirrored view of upstream exchange
// state: tickers, order books, latest trades and currency metadata. Every
// table is safe for concurrent reads from many DTC connection goroutines
// while a single upstream dispatcher goroutine linearizes writes, matching
// the read-mostly RWMutex pattern the teacher uses for its order book
// mirror (grounded on 0xtitan6-polymarket-mm/internal/market/book.go).
package market

import (
	"sync"
	"time"

	"dtc-btrex-bridge/pkg/types"
)

// Store is the process-wide market data store (component C2).
type Store struct {
	tickersMu sync.RWMutex
	tickers   map[string]types.Ticker

	booksMu sync.RWMutex
	books   map[string]*Book

	tradesMu sync.RWMutex
	trades   map[string]types.LatestTrade

	currenciesMu sync.RWMutex
	currencies   map[string]types.Currency

	subMu        sync.RWMutex
	dataSubToSym map[int64]string // market-data subscription id -> symbol
	dataSymToSub map[string]int64
	depthSubToSym map[int64]string // market-depth subscription id -> symbol
	depthSymToSub map[string]int64
}

// NewStore creates an empty market data store.
func NewStore() *Store {
	return &Store{
		tickers:       make(map[string]types.Ticker),
		books:         make(map[string]*Book),
		trades:        make(map[string]types.LatestTrade),
		currencies:    make(map[string]types.Currency),
		dataSubToSym:  make(map[int64]string),
		dataSymToSub:  make(map[string]int64),
		depthSubToSym: make(map[int64]string),
		depthSymToSub: make(map[string]int64),
	}
}

// Ticker returns the latest ticker for symbol, and whether one exists.
func (s *Store) Ticker(symbol string) (types.Ticker, bool) {
	s.tickersMu.RLock()
	defer s.tickersMu.RUnlock()
	t, ok := s.tickers[symbol]
	return t, ok
}

// SetTicker stores a new ticker snapshot, keeping Timestamp strictly
// increasing per symbol: a snapshot whose Timestamp is not after the stored
// one is stamped 1ns past it.
func (s *Store) SetTicker(t types.Ticker) {
	s.tickersMu.Lock()
	defer s.tickersMu.Unlock()
	if prev, ok := s.tickers[t.Symbol]; ok && !t.Timestamp.After(prev.Timestamp) {
		t.Timestamp = prev.Timestamp.Add(time.Nanosecond)
	}
	s.tickers[t.Symbol] = t
}

// Book returns the order book for symbol, creating it if absent.
func (s *Store) Book(symbol string) *Book {
	s.booksMu.Lock()
	defer s.booksMu.Unlock()
	b, ok := s.books[symbol]
	if !ok {
		b = NewBook(symbol)
		s.books[symbol] = b
	}
	return b
}

// LatestTrade returns the most recent trade print for symbol.
func (s *Store) LatestTrade(symbol string) (types.LatestTrade, bool) {
	s.tradesMu.RLock()
	defer s.tradesMu.RUnlock()
	t, ok := s.trades[symbol]
	return t, ok
}

// SetLatestTrade records a trade print for symbol.
func (s *Store) SetLatestTrade(symbol string, t types.LatestTrade) {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	s.trades[symbol] = t
}

// Currencies returns every known currency record.
func (s *Store) Currencies() []types.Currency {
	s.currenciesMu.RLock()
	defer s.currenciesMu.RUnlock()
	out := make([]types.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	return out
}

// SetCurrencies replaces the currency table wholesale (called after the
// startup REST fetch of the exchange's currency list).
func (s *Store) SetCurrencies(cs []types.Currency) {
	s.currenciesMu.Lock()
	defer s.currenciesMu.Unlock()
	s.currencies = make(map[string]types.Currency, len(cs))
	for _, c := range cs {
		s.currencies[c.Code] = c
	}
}

// BindDataSub records the upstream subscription id assigned to symbol's
// market-data (trade/ticker) feed. Re-subscribing after a reconnect assigns
// a new subid, so the old binding is overwritten.
func (s *Store) BindDataSub(subID int64, symbol string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if old, ok := s.dataSymToSub[symbol]; ok {
		delete(s.dataSubToSym, old)
	}
	s.dataSubToSym[subID] = symbol
	s.dataSymToSub[symbol] = subID
}

// SymbolForDataSub resolves an upstream market-data subscription id back to
// its symbol.
func (s *Store) SymbolForDataSub(subID int64) (string, bool) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	sym, ok := s.dataSubToSym[subID]
	return sym, ok
}

// BindDepthSub records the upstream subscription id assigned to symbol's
// market-depth (book) feed.
func (s *Store) BindDepthSub(subID int64, symbol string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if old, ok := s.depthSymToSub[symbol]; ok {
		delete(s.depthSubToSym, old)
	}
	s.depthSubToSym[subID] = symbol
	s.depthSymToSub[symbol] = subID
}

// SymbolForDepthSub resolves an upstream market-depth subscription id back
// to its symbol.
func (s *Store) SymbolForDepthSub(subID int64) (string, bool) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	sym, ok := s.depthSubToSym[subID]
	return sym, ok
}

// KnownSymbols returns every symbol the ticker table holds, used to
// resubscribe-all after the upstream feed reconnects and to stream security
// definitions at logon.
func (s *Store) KnownSymbols() []string {
	s.tickersMu.RLock()
	defer s.tickersMu.RUnlock()
	out := make([]string, 0, len(s.tickers))
	for sym := range s.tickers {
		out = append(out, sym)
	}
	return out
}
