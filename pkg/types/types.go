// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the bridge — wire message kinds, market
// metadata, order book state, and the exchange's REST/WebSocket payloads. It
// has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import "time"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order or book level: buy or sell.
type Side int

const (
	SideUnset Side = iota
	Buy
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unset"
	}
}

// TimeInForce enumerates the order durations the bridge accepts from clients.
type TimeInForce int

const (
	TIFUnset TimeInForce = iota
	GTC
	FOK
	IOC
	Day // silently mapped to GTC on submit
)

// OrderType is the client-requested order kind.
type OrderType int

const (
	OrderTypeUnset OrderType = iota
	Market
	Limit
)

// OrderStatus mirrors the DTC order_status values the bridge emits.
type OrderStatus int

const (
	StatusUnset OrderStatus = iota
	StatusOpen
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

// UpdateReason mirrors the DTC order_update_reason values.
type UpdateReason int

const (
	ReasonUnset UpdateReason = iota
	ReasonOpenOrdersResponse
	ReasonNewOrderAccepted
	ReasonOrderFilled
	ReasonOrderFilledPartially
	ReasonOrderCanceled
	ReasonOrderCancelReplaceComplete
	ReasonOrderRejected
)

// MarketDataRequestAction mirrors the action field of a market data / market
// depth request.
type MarketDataRequestAction int

const (
	ActionUnset MarketDataRequestAction = iota
	ActionSubscribe
	ActionUnsubscribe
	ActionSnapshot
)

// Exchange-wide constants fixed by spec.md §6.
const (
	MyExchange           = "BTREX"
	SymbolExchangeDelim  = "-"
	TradeAccountExchange = "exchange"
	TradeAccountMargin   = "margin"
	BalanceCurrencyUnit  = "mBTC"

	// QuantityScale converts between wire quantities (multiples of 1e-4 of the
	// exchange's base unit) and the exchange's native quantity. Hoisted to a
	// single constant per spec.md §9 so both directions of the conversion
	// (egress ×1e4, ingress ÷1e4) stay in lock-step.
	QuantityScale = 1e4

	// BalanceCashScale converts exchange balance cash values to mBTC units.
	BalanceCashScale = 1e3

	MinPriceIncrement        = 1e-8
	CurrencyValuePerIncrement = 1e-8
)

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// Currency is a static, descriptive record for an exchange-supported asset.
type Currency struct {
	Code        string
	Name        string
	MinConfirm  int
	TxFee       float64
	IsActive    bool
	CoinType    string
}

// Ticker is the latest top-of-book/24h snapshot for a symbol.
type Ticker struct {
	Symbol     string
	Bid        float64
	Ask        float64
	Last       float64
	Low24h     float64
	High24h    float64
	BaseVolume float64
	Timestamp  time.Time // wall-clock time this snapshot was observed
}

// FieldsEqual reports whether two tickers carry identical field values,
// ignoring Timestamp.
func (t Ticker) FieldsEqual(o Ticker) bool {
	return t.Bid == o.Bid && t.Ask == o.Ask && t.Last == o.Last &&
		t.Low24h == o.Low24h && t.High24h == o.High24h && t.BaseVolume == o.BaseVolume
}

// PriceLevel is a single resting quantity at a price.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// BookUpdate is one incremental mutation to a book side. Qty == 0 deletes
// the level; Qty > 0 inserts or replaces it.
type BookUpdate struct {
	Side  Side
	Price float64
	Qty   float64
}

// LatestTrade is the most recent trade print observed on the upstream feed
// for a symbol.
type LatestTrade struct {
	Timestamp time.Time
	Side      Side
	Price     float64
	Qty       float64
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// SubmitOrderRequest is the original client request, kept on the
// connection's cached OpenOrderRecord (indexed by client order id) to
// reconstruct update/cancel messages. A successful cancel removes the order
// from both of the connection's indices, so the request is not kept after
// cancellation.
type SubmitOrderRequest struct {
	Symbol          string
	ClientOrderID   string
	Side            Side
	OrderType       OrderType
	TimeInForce     TimeInForce
	Price1          float64
	Quantity        float64 // wire units (×1e4 of exchange quantity)
	IsMarginEnabled bool
}

// OpenOrderRecord is the bridge's local view of a resting order, cached per
// connection keyed by the exchange order UUID.
type OpenOrderRecord struct {
	ExchangeOrderID string
	Symbol          string
	Side            Side
	Price1          float64
	OrderQuantity   float64 // wire units
	FilledQuantity  float64 // wire units
	Status          OrderStatus
	Request         SubmitOrderRequest
}

// HistoricalFill is a single cached trade/fill for a connection.
type HistoricalFill struct {
	TradeID         string
	ExchangeOrderID string
	Symbol          string
	Side            Side
	Price           float64
	Quantity        float64 // wire units
	Timestamp       time.Time
}

// ExchangeBalance is one currency row of the exchange (spot) account.
type ExchangeBalance struct {
	Currency  string
	Available float64
	OnOrders  float64
	BTCValue  float64
}

// MarginBalance is one currency row of the margin account.
type MarginBalance struct {
	Currency string
	Amount   float64
}

// Position is a single open margin position.
type Position struct {
	Symbol   string
	Side     Side
	Quantity float64
	Price    float64
}

// ————————————————————————————————————————————————————————————————————————
// Upstream REST/WS payloads
// ————————————————————————————————————————————————————————————————————————

// RESTTicker is the exchange REST response shape for one ticker row.
type RESTTicker struct {
	Symbol     string  `json:"symbol"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Last       float64 `json:"last"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	BaseVolume float64 `json:"baseVolume"`
}

// RESTOrderResult is the REST response from submit/cancel-replace order.
type RESTOrderResult struct {
	ID             string           `json:"id"`
	Trades         []RESTOrderTrade `json:"trades"`
	AmountUnfilled float64          `json:"amountUnfilled"`
}

// RESTOrderTrade is one fill line within a submit/replace response.
type RESTOrderTrade struct {
	Qty   float64 `json:"quantity"`
	Price float64 `json:"price"`
}

// WSSnapshot is an initial book snapshot for a newly subscribed symbol.
type WSSnapshot struct {
	SubID   int64
	Symbol  string
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// WSUpdate is a single level update against a previously snapshotted symbol.
type WSUpdate struct {
	SubID int64
	Side  Side
	Price float64
	Qty   float64
}

// WSTrade is a trade print against a previously snapshotted symbol.
type WSTrade struct {
	SubID     int64
	Timestamp time.Time
	Side      Side
	Price     float64
	Qty       float64
}

// WSError carries an upstream-reported error string.
type WSError struct {
	Text string
}

// ————————————————————————————————————————————————————————————————————————
// Historical data
// ————————————————————————————————————————————————————————————————————————

// Tick is a single historical trade print persisted by the ingester.
type Tick struct {
	Timestamp time.Time
	Side      Side
	Price     float64
	Qty       float64
}

// OHLCVBar is one time-bucketed bar produced by the granulator.
type OHLCVBar struct {
	Start       time.Time
	End         time.Time
	Open        float64
	High        float64
	Low         float64
	Last        float64
	Volume      float64
	NumTrades   int
	BidVolume   *float64
	AskVolume   *float64
	IsFinal     bool
}
