// Package handlers wires each DTC request message type to the bridge's
// market store, order manager and exchange client, and implements the
// logon/security-definition/subscription/account request-response protocol.
//
// Grounded on 0xtitan6-polymarket-mm/internal/api/handlers.go's HTTP
// handler set (one method per request kind, sharing a provider), adapted
// from JSON REST handlers returning an http.ResponseWriter to DTC handlers
// writing framed protobuf replies to a session.Connection.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/orders"
	"dtc-btrex-bridge/internal/restsync"
	"dtc-btrex-bridge/internal/server"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
	"dtc-btrex-bridge/pkg/types"
)

const serverName = "dtc-btrex-bridge"

// defaultUpdateClientSpan is the fallback account-refresh period when the
// bridge config leaves update_client_span unset.
const defaultUpdateClientSpan = 30 * time.Second

// Set bundles every DTC request handler against the bridge's shared state.
type Set struct {
	store    *market.Store
	client   *exchange.Client
	orders   *orders.Manager
	queue    *restsync.Queue
	registry *session.Registry

	updateClientSpan time.Duration

	logger *slog.Logger
}

// New creates the handler set. updateClientSpan is the period of the
// post-logon account refresh loop (exchange and margin balances); a non-positive
// value falls back to defaultUpdateClientSpan.
func New(store *market.Store, client *exchange.Client, mgr *orders.Manager, queue *restsync.Queue, registry *session.Registry, updateClientSpan time.Duration, logger *slog.Logger) *Set {
	if updateClientSpan <= 0 {
		updateClientSpan = defaultUpdateClientSpan
	}
	return &Set{
		store:            store,
		client:           client,
		orders:           mgr,
		queue:            queue,
		registry:         registry,
		updateClientSpan: updateClientSpan,
		logger:           logger.With("component", "handlers"),
	}
}

// Table returns the dispatch table internal/server.Server expects, keyed by
// wire type id.
func (s *Set) Table() map[uint16]server.Handler {
	return map[uint16]server.Handler{
		wire.TypeLogonRequest:                      s.handleLogon,
		wire.TypeHeartbeat:                         s.handleHeartbeat,
		wire.TypeMarketDataRequest:                 s.handleMarketDataRequest,
		wire.TypeMarketDepthRequest:                 s.handleMarketDepthRequest,
		wire.TypeSecurityDefinitionForSymbolRequest: s.handleSecurityDefinitionRequest,
		wire.TypeSubmitNewOrder:                     s.handleSubmitNewOrder,
		wire.TypeCancelOrder:                        s.handleCancelOrder,
		wire.TypeCancelReplaceOrder:                 s.handleCancelReplaceOrder,
		wire.TypeOpenOrdersRequest:                  s.handleOpenOrdersRequest,
		wire.TypeCurrentPositionsRequest:            s.handleCurrentPositionsRequest,
		wire.TypeHistoricalOrderFillsRequest:        s.handleHistoricalOrderFillsRequest,
		wire.TypeTradeAccountsRequest:                s.handleTradeAccountsRequest,
		wire.TypeAccountBalanceRequest:              s.handleAccountBalanceRequest,
	}
}

// handleLogon always answers with result=success; only trading_supported and
// the result text vary with credential state. The credential check itself
// goes through RestSync (C3) rather than calling the exchange directly, like
// the order and balance-refresh calls; the account-balance request handler
// is the exception and calls the exchange client directly.
func (s *Set) handleLogon(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeLogonRequest(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed logon request", "remote", conn.RemoteAddr, "error", err)
		return
	}
	conn.SetCredentials(req.Username, req.Password)
	conn.SendSecdefs = req.SendSecdefsRequested()

	key, secret := conn.Credentials()
	tradingSupported := int64(0)
	resultText := "Trading disabled: No credentials"
	if key != "" && secret != "" {
		if s.checkCredentials(ctx) {
			tradingSupported = 1
			resultText = "Trading enabled: Valid Bittrex credentials"
		} else {
			resultText = "Trading disabled: Invalid Bittrex credentials"
		}
	}

	conn.Send(wire.Encode(wire.TypeLogonResponse, wire.EncodeLogonResponse(wire.LogonResponse{
		Result:                           1,
		ResultText:                       resultText,
		TradingSupported:                 tradingSupported,
		ServerName:                       serverName,
		ProtocolVersion:                  7,
		SymbolExchangeDelimiter:          types.SymbolExchangeDelim,
		MarketDepthUpdatesBestBidAndAsk:  1,
		SecurityDefinitionsSupported:     1,
		MarketDataSupported:              1,
		MarketDepthIsSupported:           1,
		OrderCancelReplaceSupported:      1,
		OCOOrdersSupported:               0,
		BracketOrdersSupported:           0,
		HistoricalPriceDataSupported:     0,
	})))

	if conn.SendSecdefs {
		s.streamSecurityDefinitions(conn)
	}

	heartbeatInterval := req.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 20
	}
	go s.heartbeatLoop(conn, time.Duration(heartbeatInterval)*time.Second)
	go s.accountRefreshLoop(conn)
}

// checkCredentials enqueues a margin_account_summary call onto RestSync and
// blocks for its outcome, since the logon reply must carry the result of
// exactly this check.
func (s *Set) checkCredentials(ctx context.Context) bool {
	resCh := make(chan bool, 1)
	if !s.queue.PushNoWait(func(ctx context.Context) error {
		_, err := s.client.MarginAccountSummary(ctx)
		resCh <- err == nil
		if err != nil {
			return fmt.Errorf("credential check: %w", err)
		}
		return nil
	}) {
		return false
	}
	select {
	case ok := <-resCh:
		return ok
	case <-ctx.Done():
		return false
	}
}

// heartbeatLoop emits a heartbeat every interval carrying the connection's
// dropped-message count, until conn is closed.
func (s *Set) heartbeatLoop(conn *session.Connection, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-conn.Done():
			return
		case <-ticker.C:
			conn.Send(wire.Encode(wire.TypeHeartbeat, wire.EncodeHeartbeat(wire.Heartbeat{
				NumDroppedMessages: conn.DroppedCount(),
			})))
		}
	}
}

// accountRefreshLoop enqueues a balance refresh every updateClientSpan via
// RestSync, replacing the connection's cached balance tables with the fresh
// result. Orders/trades refresh has no dedicated REST listing endpoint on
// this exchange; TODO: revisit once the upstream exposes one, per the noted
// extension point.
func (s *Set) accountRefreshLoop(conn *session.Connection) {
	ticker := time.NewTicker(s.updateClientSpan)
	defer ticker.Stop()
	for {
		select {
		case <-conn.Done():
			return
		case <-ticker.C:
			s.refreshBalances(conn)
		}
	}
}

func (s *Set) refreshBalances(conn *session.Connection) {
	s.queue.PushNoWait(func(ctx context.Context) error {
		balances, err := s.client.AccountBalances(ctx)
		if err != nil {
			return fmt.Errorf("refresh exchange balances: %w", err)
		}
		for _, b := range balances {
			conn.SetExchangeBalance(b)
		}
		return nil
	})
	s.queue.PushNoWait(func(ctx context.Context) error {
		margin, err := s.client.MarginAccountSummary(ctx)
		if err != nil {
			return fmt.Errorf("refresh margin balances: %w", err)
		}
		for _, b := range margin {
			conn.SetMarginBalance(b)
		}
		return nil
	})
}

func (s *Set) handleHeartbeat(ctx context.Context, conn *session.Connection, msg wire.Message) {
	conn.Send(wire.Encode(wire.TypeHeartbeat, wire.EncodeHeartbeat(wire.Heartbeat{
		NumDroppedMessages: conn.DroppedCount(),
	})))
}

func (s *Set) handleMarketDataRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeMarketDataRequest(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed market data request", "error", err)
		return
	}
	switch types.MarketDataRequestAction(req.Action) {
	case types.ActionUnsubscribe:
		conn.UnsubscribeData(req.Symbol)
		return
	case types.ActionSubscribe:
		if !conn.SubscribeData(req.Symbol, req.RequestID) {
			conn.Send(wire.Encode(wire.TypeMarketDataReject, wire.EncodeMarketDataReject(wire.MarketDataReject{
				RequestID: req.RequestID, RejectText: "already subscribed to " + req.Symbol,
			})))
			return
		}
	case types.ActionSnapshot:
		// fall through to the same snapshot-send path, without registering a
		// standing subscription.
	default:
		conn.Send(wire.Encode(wire.TypeMarketDataReject, wire.EncodeMarketDataReject(wire.MarketDataReject{
			RequestID: req.RequestID, RejectText: "unsupported action",
		})))
		return
	}

	ticker, ok := s.store.Ticker(req.Symbol)
	if !ok {
		conn.Send(wire.Encode(wire.TypeMarketDataReject, wire.EncodeMarketDataReject(wire.MarketDataReject{
			RequestID: req.RequestID, RejectText: "no market data for " + req.Symbol,
		})))
		return
	}
	conn.Send(wire.Encode(wire.TypeMarketDataSnapshot, wire.EncodeMarketDataSnapshot(wire.MarketDataSnapshot{
		SymbolID: req.RequestID, Bid: ticker.Bid, Ask: ticker.Ask, Last: ticker.Last,
		Low24h: ticker.Low24h, High24h: ticker.High24h, BaseVolume: ticker.BaseVolume,
	})))
}

func (s *Set) handleMarketDepthRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeMarketDepthRequest(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed market depth request", "error", err)
		return
	}
	switch types.MarketDataRequestAction(req.Action) {
	case types.ActionUnsubscribe:
		conn.UnsubscribeDepth(req.Symbol)
		return
	case types.ActionSubscribe:
		if !conn.SubscribeDepth(req.Symbol, req.RequestID) {
			conn.Send(wire.Encode(wire.TypeMarketDepthReject, wire.EncodeMarketDepthReject(wire.MarketDepthReject{
				RequestID: req.RequestID, RejectText: "already subscribed to " + req.Symbol,
			})))
			return
		}
	case types.ActionSnapshot:
	default:
		conn.Send(wire.Encode(wire.TypeMarketDepthReject, wire.EncodeMarketDepthReject(wire.MarketDepthReject{
			RequestID: req.RequestID, RejectText: "unsupported action",
		})))
		return
	}

	bids, asks := s.store.Book(req.Symbol).Levels(0)
	if len(bids) == 0 && len(asks) == 0 {
		conn.Send(wire.Encode(wire.TypeMarketDepthSnapshot, wire.EncodeMarketDepthSnapshotLevel(wire.MarketDepthSnapshotLevel{
			SymbolID: req.RequestID, IsFinal: 1,
		})))
		return
	}
	for i, lvl := range bids {
		final := int64(0)
		if i == len(bids)-1 && len(asks) == 0 {
			final = 1
		}
		conn.Send(wire.Encode(wire.TypeMarketDepthSnapshot, wire.EncodeMarketDepthSnapshotLevel(wire.MarketDepthSnapshotLevel{
			SymbolID: req.RequestID, Side: 1, Price: lvl.Price, Qty: lvl.Qty, IsFinal: final,
		})))
	}
	for i, lvl := range asks {
		final := int64(0)
		if i == len(asks)-1 {
			final = 1
		}
		conn.Send(wire.Encode(wire.TypeMarketDepthSnapshot, wire.EncodeMarketDepthSnapshotLevel(wire.MarketDepthSnapshotLevel{
			SymbolID: req.RequestID, Side: 2, Price: lvl.Price, Qty: lvl.Qty, IsFinal: final,
		})))
	}
}

// streamSecurityDefinitions sends a definition for every symbol the store
// currently has a ticker for, the logon-time bulk form of the same message
// handleSecurityDefinitionRequest sends on demand.
func (s *Set) streamSecurityDefinitions(conn *session.Connection) {
	for _, sym := range s.store.KnownSymbols() {
		conn.Send(wire.Encode(wire.TypeSecurityDefinitionResponse, wire.EncodeSecurityDefinitionResponse(s.definitionFor(0, sym))))
	}
}

func (s *Set) handleSecurityDefinitionRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeSecurityDefinitionForSymbolRequest(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed security definition request", "error", err)
		return
	}
	if req.Exchange != "" && req.Exchange != types.MyExchange {
		conn.Send(wire.Encode(wire.TypeSecurityDefinitionReject, wire.EncodeSecurityDefinitionReject(wire.SecurityDefinitionReject{
			RequestID: req.RequestID, RejectText: "Unknown symbol " + req.Symbol,
		})))
		return
	}
	if _, ok := s.store.Ticker(req.Symbol); !ok {
		conn.Send(wire.Encode(wire.TypeSecurityDefinitionReject, wire.EncodeSecurityDefinitionReject(wire.SecurityDefinitionReject{
			RequestID: req.RequestID, RejectText: "Unknown symbol " + req.Symbol,
		})))
		return
	}
	conn.Send(wire.Encode(wire.TypeSecurityDefinitionResponse, wire.EncodeSecurityDefinitionResponse(s.definitionFor(req.RequestID, req.Symbol))))
}

func (s *Set) definitionFor(requestID int64, symbol string) wire.SecurityDefinitionResponse {
	return wire.SecurityDefinitionResponse{
		RequestID:                 requestID,
		Symbol:                    symbol,
		Exchange:                  types.MyExchange,
		Description:               symbol,
		MinPriceIncrement:         types.MinPriceIncrement,
		CurrencyValuePerIncrement: types.CurrencyValuePerIncrement,
		IsFinal:                   1,
		SecurityType:              wire.SecurityTypeForex,
		PriceDisplayFormat:        wire.PriceDisplayFormatDecimal8,
		HasMarketDepthData:        1,
	}
}

func (s *Set) handleSubmitNewOrder(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeSubmitNewOrder(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed submit order", "error", err)
		return
	}
	s.orders.Submit(ctx, conn, req)
}

func (s *Set) handleCancelOrder(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeCancelOrder(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed cancel order", "error", err)
		return
	}
	s.orders.Cancel(ctx, conn, req)
}

func (s *Set) handleCancelReplaceOrder(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeCancelReplaceOrder(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed cancel-replace order", "error", err)
		return
	}
	s.orders.CancelReplace(ctx, conn, req)
}

func (s *Set) handleOpenOrdersRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeOpenOrdersRequest(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed open orders request", "error", err)
		return
	}
	recs := conn.OpenOrders()
	if len(recs) == 0 {
		conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{NoOrders: 1})))
		return
	}
	for _, rec := range recs {
		conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{
			ClientOrderID:  rec.Request.ClientOrderID,
			ServerOrderID:  rec.ExchangeOrderID,
			Symbol:         rec.Symbol,
			Side:           wire.SideToWire(rec.Side),
			Status:         int64(rec.Status),
			Reason:         int64(types.ReasonOpenOrdersResponse),
			Price1:         rec.Price1,
			OrderQuantity:  rec.OrderQuantity,
			FilledQuantity: rec.FilledQuantity,
		})))
	}
	_ = req.TradeAccount // reserved for per-account filtering once multi-account caching lands
}

func (s *Set) handleCurrentPositionsRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	if _, err := wire.DecodeCurrentPositionsRequest(msg.Payload); err != nil {
		s.logger.Warn("malformed current positions request", "error", err)
		return
	}
	// Margin positions are not cached locally, so this always reports the
	// no-positions sentinel rather than silently dropping the request.
	conn.Send(wire.Encode(wire.TypePositionUpdate, wire.EncodePositionUpdate(wire.PositionUpdate{NoPositions: 1})))
}

func (s *Set) handleHistoricalOrderFillsRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	if _, err := wire.DecodeHistoricalOrderFillsRequest(msg.Payload); err != nil {
		s.logger.Warn("malformed historical order fills request", "error", err)
		return
	}
	fills := conn.Trades()
	if len(fills) == 0 {
		conn.Send(wire.Encode(wire.TypeHistoricalOrderFillResponse, wire.EncodeHistoricalOrderFillResponse(wire.HistoricalOrderFillResponse{
			NoOrderFills: 1, IsFinal: 1,
		})))
		return
	}
	for i, f := range fills {
		final := int64(0)
		if i == len(fills)-1 {
			final = 1
		}
		conn.Send(wire.Encode(wire.TypeHistoricalOrderFillResponse, wire.EncodeHistoricalOrderFillResponse(wire.HistoricalOrderFillResponse{
			ServerOrderID: f.ExchangeOrderID,
			Symbol:        f.Symbol,
			Side:          wire.SideToWire(f.Side),
			Price:         f.Price,
			Quantity:      f.Quantity,
			IsFinal:       final,
		})))
	}
}

func (s *Set) handleTradeAccountsRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	if _, err := wire.DecodeTradeAccountsRequest(msg.Payload); err != nil {
		s.logger.Warn("malformed trade accounts request", "error", err)
		return
	}
	conn.Send(wire.Encode(wire.TypeTradeAccountResponse, wire.EncodeTradeAccountResponse(wire.TradeAccountResponse{
		TradeAccount: types.TradeAccountExchange,
	})))
	conn.Send(wire.Encode(wire.TypeTradeAccountResponse, wire.EncodeTradeAccountResponse(wire.TradeAccountResponse{
		TradeAccount: types.TradeAccountMargin, IsFinal: 1,
	})))
}

// handleAccountBalanceRequest emits exchange and/or margin balances
// depending on the requested account: empty means both as a 2-message
// sequence, "exchange"/"margin" means only that one, anything else rejects.
func (s *Set) handleAccountBalanceRequest(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeAccountBalanceRequest(msg.Payload)
	if err != nil {
		s.logger.Warn("malformed account balance request", "error", err)
		return
	}
	if req.TradeAccount != "" && req.TradeAccount != types.TradeAccountExchange && req.TradeAccount != types.TradeAccountMargin {
		conn.Send(wire.Encode(wire.TypeAccountBalanceReject, wire.EncodeAccountBalanceReject(wire.AccountBalanceReject{
			RequestID: req.RequestID, RejectText: "Unknown account " + req.TradeAccount,
		})))
		return
	}
	if req.TradeAccount == "" || req.TradeAccount == types.TradeAccountExchange {
		s.sendExchangeBalances(ctx, conn)
	}
	if req.TradeAccount == "" || req.TradeAccount == types.TradeAccountMargin {
		s.sendMarginBalances(ctx, conn)
	}
}

func (s *Set) sendExchangeBalances(ctx context.Context, conn *session.Connection) {
	balances, err := s.client.AccountBalances(ctx)
	if err != nil {
		s.logger.Error("fetch exchange balances failed", "error", err)
		conn.Send(wire.Encode(wire.TypeAccountBalanceUpdate, wire.EncodeAccountBalanceUpdate(wire.AccountBalanceUpdate{
			TradeAccount: types.TradeAccountExchange, NoBalances: 1,
		})))
		return
	}
	if len(balances) == 0 {
		conn.Send(wire.Encode(wire.TypeAccountBalanceUpdate, wire.EncodeAccountBalanceUpdate(wire.AccountBalanceUpdate{
			TradeAccount: types.TradeAccountExchange, NoBalances: 1,
		})))
		return
	}
	for _, b := range balances {
		conn.SetExchangeBalance(b)
		conn.Send(wire.Encode(wire.TypeAccountBalanceUpdate, wire.EncodeAccountBalanceUpdate(wire.AccountBalanceUpdate{
			TradeAccount: types.TradeAccountExchange,
			Currency:     b.Currency,
			CashBalance:  b.Available * types.BalanceCashScale,
		})))
	}
}

func (s *Set) sendMarginBalances(ctx context.Context, conn *session.Connection) {
	balances, err := s.client.MarginAccountSummary(ctx)
	if err != nil {
		s.logger.Error("fetch margin balances failed", "error", err)
		conn.Send(wire.Encode(wire.TypeAccountBalanceUpdate, wire.EncodeAccountBalanceUpdate(wire.AccountBalanceUpdate{
			TradeAccount: types.TradeAccountMargin, NoBalances: 1,
		})))
		return
	}
	if len(balances) == 0 {
		conn.Send(wire.Encode(wire.TypeAccountBalanceUpdate, wire.EncodeAccountBalanceUpdate(wire.AccountBalanceUpdate{
			TradeAccount: types.TradeAccountMargin, NoBalances: 1,
		})))
		return
	}
	for _, b := range balances {
		conn.SetMarginBalance(b)
		conn.Send(wire.Encode(wire.TypeAccountBalanceUpdate, wire.EncodeAccountBalanceUpdate(wire.AccountBalanceUpdate{
			TradeAccount: types.TradeAccountMargin,
			Currency:     b.Currency,
			CashBalance:  b.Amount * types.BalanceCashScale,
		})))
	}
}
