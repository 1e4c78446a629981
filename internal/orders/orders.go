// Package orders implements order entry (C9): validating and translating a
// client's submit/cancel/cancel-replace request into an upstream REST call
// queued through restsync, and turning the REST result back into the order
// update frames the client expects.
//
// Grounded on 0xtitan6-polymarket-mm/internal/strategy/maker.go's
// submit-then-react-to-fill shape, regrounded on a key/secret REST order
// endpoint instead of an EIP-712-signed one, and on
// 0xtitan6-polymarket-mm/internal/exchange/client.go's pattern of pairing
// each outbound call with a typed result struct.
package orders

import (
	"context"
	"fmt"
	"log/slog"

	"dtc-btrex-bridge/internal/exchange"
	"dtc-btrex-bridge/internal/market"
	"dtc-btrex-bridge/internal/restsync"
	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
	"dtc-btrex-bridge/pkg/types"
)

// Manager translates DTC order messages into upstream REST calls.
type Manager struct {
	store  *market.Store
	client *exchange.Client
	queue  *restsync.Queue
	logger *slog.Logger
}

// New creates an order Manager backed by store (for market-order pricing),
// client (the REST transport) and queue (the serialized submit pipeline).
func New(store *market.Store, client *exchange.Client, queue *restsync.Queue, logger *slog.Logger) *Manager {
	return &Manager{store: store, client: client, queue: queue, logger: logger.With("component", "orders")}
}

// Submit validates req and, if accepted, enqueues the REST submit call. Any
// validation failure is sent back to conn immediately as a rejected
// OrderUpdate; the REST outcome (open/partial/filled/rejected) is sent
// asynchronously once the queued call completes.
func (m *Manager) Submit(ctx context.Context, conn *session.Connection, req wire.SubmitNewOrder) {
	if req.Exchange != "" && req.Exchange != types.MyExchange {
		m.reject(conn, req.ClientOrderID, req.Symbol, "unknown exchange: "+req.Exchange)
		return
	}

	side := wire.WireToSide(req.Side)
	orderType := types.Limit
	if req.OrderType == 1 {
		orderType = types.Market
	}
	tif, ok := mapTimeInForce(req.TimeInForce)
	if !ok {
		m.reject(conn, req.ClientOrderID, req.Symbol, "unsupported time in force")
		return
	}
	price1 := req.Price1

	if orderType == types.Limit && price1 <= 0 {
		m.reject(conn, req.ClientOrderID, req.Symbol, "price1 required for limit order")
		return
	}

	if orderType == types.Market {
		ticker, ok := m.store.Ticker(req.Symbol)
		if !ok {
			m.reject(conn, req.ClientOrderID, req.Symbol, "no ticker data available to price market order")
			return
		}
		// A DTC market order has no natural limit price; we cap it at twice
		// the 24h high and force FOK so it either fills immediately at the
		// prevailing price or is killed, never rests as a runaway limit.
		price1 = 2 * ticker.High24h
		tif = types.FOK
	}

	domainReq := types.SubmitOrderRequest{
		Symbol:          req.Symbol,
		ClientOrderID:   req.ClientOrderID,
		Side:            side,
		OrderType:       orderType,
		TimeInForce:     tif,
		Price1:          price1,
		Quantity:        req.OrderQuantity,
		IsMarginEnabled: req.TradeAccount == types.TradeAccountMargin,
	}

	rec := &types.OpenOrderRecord{
		Symbol:         req.Symbol,
		Side:           side,
		Price1:         price1,
		OrderQuantity:  req.OrderQuantity,
		Status:         types.StatusOpen,
		Request:        domainReq,
	}
	conn.PutClientOrder(req.ClientOrderID, rec)

	m.queue.PushNoWait(func(ctx context.Context) error {
		var result *types.RESTOrderResult
		var err error
		if domainReq.IsMarginEnabled {
			result, err = m.client.SubmitMarginOrder(ctx, domainReq)
		} else {
			result, err = m.client.SubmitOrder(ctx, domainReq)
		}
		if err != nil {
			m.logger.Error("submit order failed", "symbol", req.Symbol, "client_order_id", req.ClientOrderID, "error", err)
			m.reject(conn, req.ClientOrderID, req.Symbol, err.Error())
			return fmt.Errorf("submit order: %w", err)
		}
		m.emitSubmitResult(conn, req.ClientOrderID, domainReq, result)
		return nil
	})
}

func (m *Manager) emitSubmitResult(conn *session.Connection, clientOrderID string, req types.SubmitOrderRequest, result *types.RESTOrderResult) {
	filled := 0.0
	for _, t := range result.Trades {
		filled += t.Qty * types.QuantityScale
	}
	remaining := result.AmountUnfilled * types.QuantityScale

	status := types.StatusOpen
	reason := types.ReasonNewOrderAccepted
	switch {
	case remaining == 0 && filled > 0:
		status = types.StatusFilled
		reason = types.ReasonOrderFilled
	case filled > 0:
		status = types.StatusPartiallyFilled
		reason = types.ReasonOrderFilledPartially
	}

	rec := &types.OpenOrderRecord{
		ExchangeOrderID: result.ID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Price1:          req.Price1,
		OrderQuantity:   req.Quantity,
		FilledQuantity:  filled,
		Status:          status,
		Request:         req,
	}
	conn.PutOrder(rec)

	conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{
		ClientOrderID:  clientOrderID,
		ServerOrderID:  result.ID,
		Symbol:         req.Symbol,
		Side:           wire.SideToWire(req.Side),
		Status:         int64(status),
		Reason:         int64(reason),
		Price1:         req.Price1,
		OrderQuantity:  req.Quantity,
		FilledQuantity: filled,
		RemainingQty:   remaining,
	})))
}

// Cancel resolves the target order (by client or server order id) and
// enqueues the REST cancel. An order that cannot be resolved is rejected
// immediately without touching the network.
func (m *Manager) Cancel(ctx context.Context, conn *session.Connection, req wire.CancelOrder) {
	rec, ok := m.resolve(conn, req.ClientOrderID, req.ServerOrderID)
	if !ok {
		m.reject(conn, req.ClientOrderID, "", "order not found for cancel")
		return
	}

	m.queue.PushNoWait(func(ctx context.Context) error {
		_, err := m.client.CancelOrder(ctx, rec.ExchangeOrderID)
		if err != nil {
			m.logger.Error("cancel order failed", "exchange_order_id", rec.ExchangeOrderID, "error", err)
			m.rejectExisting(conn, rec, err.Error())
			return fmt.Errorf("cancel order: %w", err)
		}
		conn.RemoveOrder(rec.ExchangeOrderID)
		conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{
			ClientOrderID: rec.Request.ClientOrderID,
			ServerOrderID: rec.ExchangeOrderID,
			Symbol:        rec.Symbol,
			Side:          wire.SideToWire(rec.Side),
			Status:        int64(types.StatusCanceled),
			Reason:        int64(types.ReasonOrderCanceled),
			Price1:        rec.Price1,
			OrderQuantity: rec.OrderQuantity,
		})))
		return nil
	})
}

// CancelReplace amends price/quantity on a resting order. Four conditions
// reject before any REST call is made: no identifying order id, the order
// isn't found, a non-positive replacement price, or a non-positive
// replacement quantity.
func (m *Manager) CancelReplace(ctx context.Context, conn *session.Connection, req wire.CancelReplaceOrder) {
	if req.ClientOrderID == "" && req.ServerOrderID == "" {
		m.reject(conn, req.NewClientOrderID, "", "cancel-replace requires an order id")
		return
	}
	rec, ok := m.resolve(conn, req.ClientOrderID, req.ServerOrderID)
	if !ok {
		m.reject(conn, req.NewClientOrderID, "", "order not found for cancel-replace")
		return
	}
	if req.Price1 <= 0 {
		m.rejectExisting(conn, rec, "cancel-replace requires a positive price1")
		return
	}
	if req.OrderQuantity <= 0 {
		m.rejectExisting(conn, rec, "cancel-replace requires a positive quantity")
		return
	}

	oldClientOrderID := rec.Request.ClientOrderID
	m.queue.PushNoWait(func(ctx context.Context) error {
		_, err := m.client.ModifyOrder(ctx, rec.ExchangeOrderID, req.Price1, req.OrderQuantity)
		if err != nil {
			m.logger.Error("cancel-replace failed", "exchange_order_id", rec.ExchangeOrderID, "error", err)
			m.rejectExisting(conn, rec, err.Error())
			return fmt.Errorf("cancel-replace: %w", err)
		}
		updated := *rec
		updated.Price1 = req.Price1
		updated.OrderQuantity = req.OrderQuantity
		updated.Request.Price1 = req.Price1
		updated.Request.Quantity = req.OrderQuantity
		if req.NewClientOrderID != "" {
			updated.Request.ClientOrderID = req.NewClientOrderID
		}
		conn.PutOrder(&updated)
		if req.NewClientOrderID != "" && req.NewClientOrderID != oldClientOrderID {
			conn.PutClientOrder(req.NewClientOrderID, &updated)
		}

		conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{
			ClientOrderID: updated.Request.ClientOrderID,
			ServerOrderID: updated.ExchangeOrderID,
			Symbol:        updated.Symbol,
			Side:          wire.SideToWire(updated.Side),
			Status:        int64(types.StatusOpen),
			Reason:        int64(types.ReasonOrderCancelReplaceComplete),
			Price1:        updated.Price1,
			OrderQuantity: updated.OrderQuantity,
		})))
		return nil
	})
}

func (m *Manager) resolve(conn *session.Connection, clientOrderID, serverOrderID string) (*types.OpenOrderRecord, bool) {
	if serverOrderID != "" {
		if rec, ok := conn.Order(serverOrderID); ok {
			return rec, true
		}
	}
	if clientOrderID != "" {
		if rec, ok := conn.ClientOrder(clientOrderID); ok {
			return rec, true
		}
	}
	return nil, false
}

func (m *Manager) reject(conn *session.Connection, clientOrderID, symbol, text string) {
	conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Status:        int64(types.StatusRejected),
		Reason:        int64(types.ReasonOrderRejected),
		InfoText:      text,
	})))
}

func (m *Manager) rejectExisting(conn *session.Connection, rec *types.OpenOrderRecord, text string) {
	conn.Send(wire.Encode(wire.TypeOrderUpdate, wire.EncodeOrderUpdate(wire.OrderUpdate{
		ClientOrderID: rec.Request.ClientOrderID,
		ServerOrderID: rec.ExchangeOrderID,
		Symbol:        rec.Symbol,
		Side:          wire.SideToWire(rec.Side),
		Status:        int64(types.StatusRejected),
		Reason:        int64(types.ReasonOrderRejected),
		InfoText:      text,
	})))
}

// mapTimeInForce maps the wire TIF enum to the domain enum, silently
// collapsing Day to GTC since the upstream exchange has no day-order concept.
// Unset and any value outside {Day, GTC, FOK, IOC} are rejected by the caller.
func mapTimeInForce(wireTIF int64) (types.TimeInForce, bool) {
	switch wireTIF {
	case 1:
		return types.GTC, true // Day -> GTC
	case 2:
		return types.GTC, true
	case 3:
		return types.FOK, true
	case 4:
		return types.IOC, true
	default:
		return types.TIFUnset, false
	}
}
