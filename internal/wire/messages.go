package wire

import "dtc-btrex-bridge/pkg/types"

// Field numbers are local to this codec; there is no shared .proto file to
// cross-check them against, so each message's field layout is documented at
// its definition.

// LogonRequest — client credentials and connection options. Integer1 carries
// bit flags; bit 7 (0x40) is send_secdefs. Integer2 must be 0 for a
// credentialed logon.
type LogonRequest struct {
	Username          string
	Password          string
	HeartbeatInterval int64
	TradeAccount      string
	Integer1          int64
	Integer2          int64
}

// SendSecdefsRequested reports whether bit 7 of Integer1 is set.
func (m LogonRequest) SendSecdefsRequested() bool {
	return m.Integer1&0x40 != 0
}

func EncodeLogonRequest(m LogonRequest) []byte {
	w := &fieldWriter{}
	w.putString(1, m.Username)
	w.putString(2, m.Password)
	w.putInt64(3, m.HeartbeatInterval)
	w.putString(4, m.TradeAccount)
	w.putInt64(5, m.Integer1)
	w.putInt64(6, m.Integer2)
	return w.bytes()
}

func DecodeLogonRequest(b []byte) (LogonRequest, error) {
	var m LogonRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.Username = decodeString(val)
		case 2:
			m.Password = decodeString(val)
		case 3:
			m.HeartbeatInterval = decodeVarint(val)
		case 4:
			m.TradeAccount = decodeString(val)
		case 5:
			m.Integer1 = decodeVarint(val)
		case 6:
			m.Integer2 = decodeVarint(val)
		}
	}
	return m, nil
}

// LogonResponse — result and trading-permission flags, plus the static
// capability flags the bridge advertises on every logon regardless of
// credential outcome.
type LogonResponse struct {
	Result           int64 // 1 = success, 2 = failure
	ResultText       string
	TradingSupported int64 // 0 or 1
	ServerName       string

	ProtocolVersion                 int64
	SymbolExchangeDelimiter         string
	MarketDepthUpdatesBestBidAndAsk int64
	SecurityDefinitionsSupported    int64
	MarketDataSupported             int64
	MarketDepthIsSupported          int64
	OrderCancelReplaceSupported     int64
	OCOOrdersSupported              int64
	BracketOrdersSupported          int64
	HistoricalPriceDataSupported    int64
}

func EncodeLogonResponse(m LogonResponse) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.Result)
	w.putString(2, m.ResultText)
	w.putInt64(3, m.TradingSupported)
	w.putString(4, m.ServerName)
	w.putInt64(5, m.ProtocolVersion)
	w.putString(6, m.SymbolExchangeDelimiter)
	w.putInt64(7, m.MarketDepthUpdatesBestBidAndAsk)
	w.putInt64(8, m.SecurityDefinitionsSupported)
	w.putInt64(9, m.MarketDataSupported)
	w.putInt64(10, m.MarketDepthIsSupported)
	w.putInt64(11, m.OrderCancelReplaceSupported)
	w.putInt64(12, m.OCOOrdersSupported)
	w.putInt64(13, m.BracketOrdersSupported)
	w.putInt64(14, m.HistoricalPriceDataSupported)
	return w.bytes()
}

// DecodeLogonResponse is used by tests asserting on the server's logon
// reply; the live client has no need to parse its own replies.
func DecodeLogonResponse(b []byte) (LogonResponse, error) {
	var m LogonResponse
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.Result = decodeVarint(val)
		case 2:
			m.ResultText = decodeString(val)
		case 3:
			m.TradingSupported = decodeVarint(val)
		case 4:
			m.ServerName = decodeString(val)
		case 5:
			m.ProtocolVersion = decodeVarint(val)
		case 6:
			m.SymbolExchangeDelimiter = decodeString(val)
		case 7:
			m.MarketDepthUpdatesBestBidAndAsk = decodeVarint(val)
		case 8:
			m.SecurityDefinitionsSupported = decodeVarint(val)
		case 9:
			m.MarketDataSupported = decodeVarint(val)
		case 10:
			m.MarketDepthIsSupported = decodeVarint(val)
		case 11:
			m.OrderCancelReplaceSupported = decodeVarint(val)
		case 12:
			m.OCOOrdersSupported = decodeVarint(val)
		case 13:
			m.BracketOrdersSupported = decodeVarint(val)
		case 14:
			m.HistoricalPriceDataSupported = decodeVarint(val)
		}
	}
	return m, nil
}

// Heartbeat carries no meaningful payload fields beyond an optional
// dropped-message count, used to report gaps to the client.
type Heartbeat struct {
	NumDroppedMessages int64
}

func EncodeHeartbeat(m Heartbeat) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.NumDroppedMessages)
	return w.bytes()
}

func DecodeHeartbeat(b []byte) (Heartbeat, error) {
	var m Heartbeat
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		if num == 1 {
			m.NumDroppedMessages = decodeVarint(val)
		}
	}
	return m, nil
}

// MarketDataRequest subscribes/unsubscribes/snapshots one symbol.
type MarketDataRequest struct {
	RequestID int64
	Symbol    string
	Exchange  string
	Action    int64 // types.MarketDataRequestAction
}

func DecodeMarketDataRequest(b []byte) (MarketDataRequest, error) {
	var m MarketDataRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.Symbol = decodeString(val)
		case 3:
			m.Exchange = decodeString(val)
		case 4:
			m.Action = decodeVarint(val)
		}
	}
	return m, nil
}

// MarketDataReject rejects a subscribe/unsubscribe/snapshot request.
type MarketDataReject struct {
	RequestID  int64
	RejectText string
}

func EncodeMarketDataReject(m MarketDataReject) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.RejectText)
	return w.bytes()
}

// MarketDataSnapshot is the initial Ticker-derived snapshot for a symbol.
type MarketDataSnapshot struct {
	SymbolID   int64
	Bid        float64
	Ask        float64
	Last       float64
	Low24h     float64
	High24h    float64
	BaseVolume float64
}

func EncodeMarketDataSnapshot(m MarketDataSnapshot) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.SymbolID)
	w.putDouble(2, m.Bid)
	w.putDouble(3, m.Ask)
	w.putDouble(4, m.Last)
	w.putDouble(5, m.Low24h)
	w.putDouble(6, m.High24h)
	w.putDouble(7, m.BaseVolume)
	return w.bytes()
}

// MarketDataUpdateBidAsk carries a single bid or ask price/qty change.
type MarketDataUpdateBidAsk struct {
	SymbolID int64
	Bid      float64
	BidQty   float64
	Ask      float64
	AskQty   float64
}

func EncodeMarketDataUpdateBidAsk(m MarketDataUpdateBidAsk) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.SymbolID)
	w.putDouble(2, m.Bid)
	w.putDouble(3, m.BidQty)
	w.putDouble(4, m.Ask)
	w.putDouble(5, m.AskQty)
	return w.bytes()
}

// MarketDataUpdateTrade carries a last-trade print.
type MarketDataUpdateTrade struct {
	SymbolID int64
	Price    float64
	Volume   float64
	AtBid    int64 // 1 if trade was at bid (sell aggressor), 0 if at ask
}

func EncodeMarketDataUpdateTrade(m MarketDataUpdateTrade) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.SymbolID)
	w.putDouble(2, m.Price)
	w.putDouble(3, m.Volume)
	w.putInt64(4, m.AtBid)
	return w.bytes()
}

// MarketDataUpdateSession carries a revised session statistic (low/high/volume).
type MarketDataUpdateSession struct {
	SymbolID int64
	Field    int64 // 1=low24h 2=high24h 3=base_volume
	Value    float64
}

func EncodeMarketDataUpdateSession(m MarketDataUpdateSession) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.SymbolID)
	w.putInt64(2, m.Field)
	w.putDouble(3, m.Value)
	return w.bytes()
}

// MarketDepthRequest mirrors MarketDataRequest for the depth feed.
type MarketDepthRequest struct {
	RequestID int64
	Symbol    string
	Exchange  string
	Action    int64
}

func DecodeMarketDepthRequest(b []byte) (MarketDepthRequest, error) {
	var m MarketDepthRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.Symbol = decodeString(val)
		case 3:
			m.Exchange = decodeString(val)
		case 4:
			m.Action = decodeVarint(val)
		}
	}
	return m, nil
}

// MarketDepthUpdateLevel is one incremental book-level mutation.
type MarketDepthUpdateLevel struct {
	SymbolID int64
	Side     int64 // 1=bid 2=ask
	Price    float64
	Qty      float64 // 0 deletes the level
}

func EncodeMarketDepthUpdateLevel(m MarketDepthUpdateLevel) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.SymbolID)
	w.putInt64(2, m.Side)
	w.putDouble(3, m.Price)
	w.putDouble(4, m.Qty)
	return w.bytes()
}

// SubmitNewOrder is the client's order entry request.
type SubmitNewOrder struct {
	Symbol        string
	Exchange      string
	ClientOrderID string
	Side          int64 // 1=buy 2=sell
	OrderType     int64 // 1=market 2=limit
	TimeInForce   int64 // 1=day 2=gtc 3=fok 4=ioc
	Price1        float64
	OrderQuantity float64 // wire units (x1e4)
	TradeAccount  string
}

func DecodeSubmitNewOrder(b []byte) (SubmitNewOrder, error) {
	var m SubmitNewOrder
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.Symbol = decodeString(val)
		case 2:
			m.Exchange = decodeString(val)
		case 3:
			m.ClientOrderID = decodeString(val)
		case 4:
			m.Side = decodeVarint(val)
		case 5:
			m.OrderType = decodeVarint(val)
		case 6:
			m.TimeInForce = decodeVarint(val)
		case 7:
			m.Price1 = decodeDouble(val)
		case 8:
			m.OrderQuantity = decodeDouble(val)
		case 9:
			m.TradeAccount = decodeString(val)
		}
	}
	return m, nil
}

// CancelOrder requests cancellation by client or server order id.
type CancelOrder struct {
	ClientOrderID   string
	ServerOrderID   string
	TradeAccount    string
}

func DecodeCancelOrder(b []byte) (CancelOrder, error) {
	var m CancelOrder
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.ClientOrderID = decodeString(val)
		case 2:
			m.ServerOrderID = decodeString(val)
		case 3:
			m.TradeAccount = decodeString(val)
		}
	}
	return m, nil
}

// CancelReplaceOrder requests an amend of price/quantity on a resting order.
type CancelReplaceOrder struct {
	ClientOrderID    string
	ServerOrderID    string
	NewClientOrderID string
	Price1           float64
	OrderQuantity    float64
}

func DecodeCancelReplaceOrder(b []byte) (CancelReplaceOrder, error) {
	var m CancelReplaceOrder
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.ClientOrderID = decodeString(val)
		case 2:
			m.ServerOrderID = decodeString(val)
		case 3:
			m.NewClientOrderID = decodeString(val)
		case 4:
			m.Price1 = decodeDouble(val)
		case 5:
			m.OrderQuantity = decodeDouble(val)
		}
	}
	return m, nil
}

// OrderUpdate is the server's order lifecycle event, sent for acceptance,
// fills, cancellation and rejection alike (distinguished by Reason/Status).
type OrderUpdate struct {
	ClientOrderID   string
	ServerOrderID   string
	Symbol          string
	Side            int64
	Status          int64 // types.OrderStatus
	Reason          int64 // types.UpdateReason
	Price1          float64
	OrderQuantity   float64
	FilledQuantity  float64
	RemainingQty    float64
	InfoText        string
	NoOrders        int64 // 1 = this is a "no open orders" sentinel
}

func EncodeOrderUpdate(m OrderUpdate) []byte {
	w := &fieldWriter{}
	w.putString(1, m.ClientOrderID)
	w.putString(2, m.ServerOrderID)
	w.putString(3, m.Symbol)
	w.putInt64(4, m.Side)
	w.putInt64(5, m.Status)
	w.putInt64(6, m.Reason)
	w.putDouble(7, m.Price1)
	w.putDouble(8, m.OrderQuantity)
	w.putDouble(9, m.FilledQuantity)
	w.putDouble(10, m.RemainingQty)
	w.putString(11, m.InfoText)
	w.putInt64(12, m.NoOrders)
	return w.bytes()
}

// DecodeOrderUpdate parses an OrderUpdate payload.
func DecodeOrderUpdate(b []byte) (OrderUpdate, error) {
	var m OrderUpdate
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.ClientOrderID = decodeString(val)
		case 2:
			m.ServerOrderID = decodeString(val)
		case 3:
			m.Symbol = decodeString(val)
		case 4:
			m.Side = decodeVarint(val)
		case 5:
			m.Status = decodeVarint(val)
		case 6:
			m.Reason = decodeVarint(val)
		case 7:
			m.Price1 = decodeDouble(val)
		case 8:
			m.OrderQuantity = decodeDouble(val)
		case 9:
			m.FilledQuantity = decodeDouble(val)
		case 10:
			m.RemainingQty = decodeDouble(val)
		case 11:
			m.InfoText = decodeString(val)
		case 12:
			m.NoOrders = decodeVarint(val)
		}
	}
	return m, nil
}

// AccountBalanceUpdate reports one currency's exchange or margin balance.
type AccountBalanceUpdate struct {
	TradeAccount    string
	Currency        string
	CashBalance     float64 // mBTC units
	NoBalances      int64
}

func EncodeAccountBalanceUpdate(m AccountBalanceUpdate) []byte {
	w := &fieldWriter{}
	w.putString(1, m.TradeAccount)
	w.putString(2, m.Currency)
	w.putDouble(3, m.CashBalance)
	w.putInt64(4, m.NoBalances)
	return w.bytes()
}

// DecodeAccountBalanceUpdate is used by tests asserting on the server's
// balance reply.
func DecodeAccountBalanceUpdate(b []byte) (AccountBalanceUpdate, error) {
	var m AccountBalanceUpdate
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.TradeAccount = decodeString(val)
		case 2:
			m.Currency = decodeString(val)
		case 3:
			m.CashBalance = decodeDouble(val)
		case 4:
			m.NoBalances = decodeVarint(val)
		}
	}
	return m, nil
}

// AccountBalanceReject is sent instead of an update when TradeAccount names
// neither of the two known accounts.
type AccountBalanceReject struct {
	RequestID  int64
	RejectText string
}

func EncodeAccountBalanceReject(m AccountBalanceReject) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.RejectText)
	return w.bytes()
}

func DecodeAccountBalanceReject(b []byte) (AccountBalanceReject, error) {
	var m AccountBalanceReject
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.RejectText = decodeString(val)
		}
	}
	return m, nil
}

// TradeAccountResponse enumerates the two fixed trade accounts.
type TradeAccountResponse struct {
	TradeAccount string
	IsFinal      int64
}

func EncodeTradeAccountResponse(m TradeAccountResponse) []byte {
	w := &fieldWriter{}
	w.putString(1, m.TradeAccount)
	w.putInt64(2, m.IsFinal)
	return w.bytes()
}

// HistoricalPriceDataRequest (C10 ingress) requests raw ticks or OHLCV bars
// for a symbol over [StartDateTime, EndDateTime), bucketed by SpanSeconds
// (0 = raw ticks).
type HistoricalPriceDataRequest struct {
	RequestID     int64
	Symbol        string
	Exchange      string
	StartDateTime int64 // unix seconds
	EndDateTime   int64 // unix seconds
	SpanSeconds   int64
}

func DecodeHistoricalPriceDataRequest(b []byte) (HistoricalPriceDataRequest, error) {
	var m HistoricalPriceDataRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.Symbol = decodeString(val)
		case 3:
			m.Exchange = decodeString(val)
		case 4:
			m.StartDateTime = decodeVarint(val)
		case 5:
			m.EndDateTime = decodeVarint(val)
		case 6:
			m.SpanSeconds = decodeVarint(val)
		}
	}
	return m, nil
}

// HistoricalPriceDataRecord is one raw tick or OHLCV bar in a streamed reply.
type HistoricalPriceDataRecord struct {
	RequestID   int64
	StartDateTime int64
	Open        float64
	High        float64
	Low         float64
	Last        float64
	Volume      float64
	NumTrades   int64
	IsFinal     int64
}

func EncodeHistoricalPriceDataRecord(m HistoricalPriceDataRecord) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putInt64(2, m.StartDateTime)
	w.putDouble(3, m.Open)
	w.putDouble(4, m.High)
	w.putDouble(5, m.Low)
	w.putDouble(6, m.Last)
	w.putDouble(7, m.Volume)
	w.putInt64(8, m.NumTrades)
	w.putInt64(9, m.IsFinal)
	return w.bytes()
}

// MarketDepthReject rejects a market-depth subscribe/unsubscribe/snapshot.
type MarketDepthReject struct {
	RequestID  int64
	RejectText string
}

func EncodeMarketDepthReject(m MarketDepthReject) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.RejectText)
	return w.bytes()
}

// MarketDepthSnapshotLevel is one level of a streamed depth snapshot. The
// snapshot itself is a run of these messages terminated by IsFinal == 1 on
// an empty-book sentinel (no levels) or the last real level, matching how
// the teacher streams its own depth replay rather than batching levels into
// one oversized message.
type MarketDepthSnapshotLevel struct {
	SymbolID int64
	Side     int64
	Price    float64
	Qty      float64
	IsFinal  int64
}

func EncodeMarketDepthSnapshotLevel(m MarketDepthSnapshotLevel) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.SymbolID)
	w.putInt64(2, m.Side)
	w.putDouble(3, m.Price)
	w.putDouble(4, m.Qty)
	w.putInt64(5, m.IsFinal)
	return w.bytes()
}

// SecurityDefinitionForSymbolRequest asks for one symbol's static definition.
type SecurityDefinitionForSymbolRequest struct {
	RequestID int64
	Symbol    string
	Exchange  string
}

func DecodeSecurityDefinitionForSymbolRequest(b []byte) (SecurityDefinitionForSymbolRequest, error) {
	var m SecurityDefinitionForSymbolRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.Symbol = decodeString(val)
		case 3:
			m.Exchange = decodeString(val)
		}
	}
	return m, nil
}

// SecurityDefinitionResponse carries one symbol's static definition, derived
// from the exchange's currency metadata for its base/quote legs.
type SecurityDefinitionResponse struct {
	RequestID                 int64
	Symbol                    string
	Exchange                  string
	Description               string
	MinPriceIncrement         float64
	CurrencyValuePerIncrement float64
	IsFinal                   int64

	SecurityType       int64
	PriceDisplayFormat int64
	HasMarketDepthData int64
}

// Domain values for SecurityDefinitionResponse's enum-shaped fields. Every
// symbol the bridge trades is a spot FX pair quoted to 8 decimal places.
const (
	SecurityTypeForex         int64 = 2
	PriceDisplayFormatDecimal8 int64 = 8
)

func EncodeSecurityDefinitionResponse(m SecurityDefinitionResponse) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.Symbol)
	w.putString(3, m.Exchange)
	w.putString(4, m.Description)
	w.putDouble(5, m.MinPriceIncrement)
	w.putDouble(6, m.CurrencyValuePerIncrement)
	w.putInt64(7, m.IsFinal)
	w.putInt64(8, m.SecurityType)
	w.putInt64(9, m.PriceDisplayFormat)
	w.putInt64(10, m.HasMarketDepthData)
	return w.bytes()
}

// DecodeSecurityDefinitionResponse is used by tests asserting on the
// server's security definition reply.
func DecodeSecurityDefinitionResponse(b []byte) (SecurityDefinitionResponse, error) {
	var m SecurityDefinitionResponse
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.Symbol = decodeString(val)
		case 3:
			m.Exchange = decodeString(val)
		case 4:
			m.Description = decodeString(val)
		case 5:
			m.MinPriceIncrement = decodeDouble(val)
		case 6:
			m.CurrencyValuePerIncrement = decodeDouble(val)
		case 7:
			m.IsFinal = decodeVarint(val)
		case 8:
			m.SecurityType = decodeVarint(val)
		case 9:
			m.PriceDisplayFormat = decodeVarint(val)
		case 10:
			m.HasMarketDepthData = decodeVarint(val)
		}
	}
	return m, nil
}

// SecurityDefinitionReject is sent instead of a response when the requested
// exchange doesn't match or the symbol has no known ticker.
type SecurityDefinitionReject struct {
	RequestID  int64
	RejectText string
}

func EncodeSecurityDefinitionReject(m SecurityDefinitionReject) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.RejectText)
	return w.bytes()
}

func DecodeSecurityDefinitionReject(b []byte) (SecurityDefinitionReject, error) {
	var m SecurityDefinitionReject
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.RejectText = decodeString(val)
		}
	}
	return m, nil
}

// OpenOrdersRequest asks for every resting order on a trade account.
type OpenOrdersRequest struct {
	RequestID    int64
	TradeAccount string
}

func DecodeOpenOrdersRequest(b []byte) (OpenOrdersRequest, error) {
	var m OpenOrdersRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.TradeAccount = decodeString(val)
		}
	}
	return m, nil
}

// CurrentPositionsRequest asks for every open margin position.
type CurrentPositionsRequest struct {
	RequestID    int64
	TradeAccount string
}

func DecodeCurrentPositionsRequest(b []byte) (CurrentPositionsRequest, error) {
	var m CurrentPositionsRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.TradeAccount = decodeString(val)
		}
	}
	return m, nil
}

// PositionUpdate reports one open margin position, or a no-positions sentinel.
type PositionUpdate struct {
	TradeAccount string
	Symbol       string
	Side         int64
	Quantity     float64
	Price        float64
	NoPositions  int64
}

func EncodePositionUpdate(m PositionUpdate) []byte {
	w := &fieldWriter{}
	w.putString(1, m.TradeAccount)
	w.putString(2, m.Symbol)
	w.putInt64(3, m.Side)
	w.putDouble(4, m.Quantity)
	w.putDouble(5, m.Price)
	w.putInt64(6, m.NoPositions)
	return w.bytes()
}

// HistoricalOrderFillsRequest asks for the cached fill history on an account.
type HistoricalOrderFillsRequest struct {
	RequestID    int64
	TradeAccount string
}

func DecodeHistoricalOrderFillsRequest(b []byte) (HistoricalOrderFillsRequest, error) {
	var m HistoricalOrderFillsRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.TradeAccount = decodeString(val)
		}
	}
	return m, nil
}

// HistoricalOrderFillResponse reports one cached fill, or a no-fills sentinel.
type HistoricalOrderFillResponse struct {
	RequestID       int64
	ServerOrderID   string
	Symbol          string
	Side            int64
	Price           float64
	Quantity        float64
	NoOrderFills    int64
	IsFinal         int64
}

func EncodeHistoricalOrderFillResponse(m HistoricalOrderFillResponse) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putString(2, m.ServerOrderID)
	w.putString(3, m.Symbol)
	w.putInt64(4, m.Side)
	w.putDouble(5, m.Price)
	w.putDouble(6, m.Quantity)
	w.putInt64(7, m.NoOrderFills)
	w.putInt64(8, m.IsFinal)
	return w.bytes()
}

// TradeAccountsRequest asks the server to enumerate its trade accounts.
type TradeAccountsRequest struct {
	RequestID int64
}

func DecodeTradeAccountsRequest(b []byte) (TradeAccountsRequest, error) {
	var m TradeAccountsRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		if num == 1 {
			m.RequestID = decodeVarint(val)
		}
	}
	return m, nil
}

// AccountBalanceRequest asks for the cached balance table of one trade
// account, or every account when TradeAccount is empty.
type AccountBalanceRequest struct {
	RequestID    int64
	TradeAccount string
}

func DecodeAccountBalanceRequest(b []byte) (AccountBalanceRequest, error) {
	var m AccountBalanceRequest
	r := newFieldReader(b)
	for {
		num, _, val, ok, err := r.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			m.RequestID = decodeVarint(val)
		case 2:
			m.TradeAccount = decodeString(val)
		}
	}
	return m, nil
}

// HistoricalPriceDataResponse is the header sent before a run of
// HistoricalPriceDataRecord messages, or alone (with Reject set) to refuse
// the request.
type HistoricalPriceDataResponse struct {
	RequestID   int64
	RecordSize  int64
	Rejected    int64
	RejectText  string
}

func EncodeHistoricalPriceDataResponse(m HistoricalPriceDataResponse) []byte {
	w := &fieldWriter{}
	w.putInt64(1, m.RequestID)
	w.putInt64(2, m.RecordSize)
	w.putInt64(3, m.Rejected)
	w.putString(4, m.RejectText)
	return w.bytes()
}

// SideToWire/WireToSide convert between types.Side and the wire's 1/2 enum.
func SideToWire(s types.Side) int64 {
	if s == types.Sell {
		return 2
	}
	return 1
}

func WireToSide(v int64) types.Side {
	if v == 2 {
		return types.Sell
	}
	return types.Buy
}
