package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"dtc-btrex-bridge/internal/config"
	"dtc-btrex-bridge/pkg/types"
)

// Client is the upstream exchange REST API client: tickers, account
// balances/margin summary, and order submit/cancel/modify.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange/client.go's resty
// wrapper (retry, per-category rate limiting, dry-run short-circuit),
// retargeted from Polymarket's order-signing endpoints to a conventional
// key/secret REST exchange.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	logger *slog.Logger
}

// NewClient builds a REST client against cfg.RestBaseURL.
func NewClient(cfg config.ExchangeConfig, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.RestBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		logger: logger.With("component", "exchange-client"),
	}
}

func (c *Client) signedRequest(ctx context.Context, method, path string, body []byte) *resty.Request {
	contentHash := ContentHash(body)
	sig, ts := c.auth.Sign(method, c.http.BaseURL+path, contentHash)
	return c.http.R().
		SetContext(ctx).
		SetHeader("Api-Key", c.auth.APIKey()).
		SetHeader("Api-Timestamp", fmt.Sprintf("%d", ts)).
		SetHeader("Api-Content-Hash", contentHash).
		SetHeader("Api-Signature", sig)
}

// Tickers fetches the full ticker table in one call — the source the
// periodic refresher (C5) diffs against the market store.
func (c *Client) Tickers(ctx context.Context) ([]types.RESTTicker, error) {
	if err := c.rl.Market.Wait(ctx); err != nil {
		return nil, err
	}
	var result []types.RESTTicker
	resp, err := c.http.R().SetContext(ctx).SetResult(&result).Get("/markets/tickers")
	if err != nil {
		return nil, fmt.Errorf("get tickers: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get tickers: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// AccountBalances fetches the spot ("exchange") account balance table.
func (c *Client) AccountBalances(ctx context.Context) ([]types.ExchangeBalance, error) {
	if err := c.rl.Account.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.signedRequest(ctx, http.MethodGet, "/balances", nil)
	var result []types.ExchangeBalance
	resp, err := req.SetResult(&result).Get("/balances")
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get balances: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// MarginAccountSummary fetches the margin account summary, also used as
// the credential-check call during logon.
func (c *Client) MarginAccountSummary(ctx context.Context) ([]types.MarginBalance, error) {
	if err := c.rl.Account.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.signedRequest(ctx, http.MethodGet, "/margin/account/summary", nil)
	var result []types.MarginBalance
	resp, err := req.SetResult(&result).Get("/margin/account/summary")
	if err != nil {
		return nil, fmt.Errorf("margin account summary: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("margin account summary: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// submitOrderPayload is the REST request body for a new order.
type submitOrderPayload struct {
	MarketSymbol string `json:"marketSymbol"`
	Direction    string `json:"direction"`
	Type         string `json:"type"`
	Quantity     string `json:"quantity"`
	Limit        string `json:"limit,omitempty"`
	TimeInForce  string `json:"timeInForce"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
}

// SubmitOrder posts a new order to the spot ("exchange") order endpoint.
func (c *Client) SubmitOrder(ctx context.Context, req types.SubmitOrderRequest) (*types.RESTOrderResult, error) {
	return c.submitOrderTo(ctx, "/orders", req)
}

// SubmitMarginOrder posts a new order to the margin order endpoint.
func (c *Client) SubmitMarginOrder(ctx context.Context, req types.SubmitOrderRequest) (*types.RESTOrderResult, error) {
	return c.submitOrderTo(ctx, "/margin/orders", req)
}

func (c *Client) submitOrderTo(ctx context.Context, path string, req types.SubmitOrderRequest) (*types.RESTOrderResult, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	qty := decimal.NewFromFloat(req.Quantity).Div(decimal.NewFromFloat(types.QuantityScale))
	direction := "BUY"
	if req.Side == types.Sell {
		direction = "SELL"
	}
	orderType := "LIMIT"
	tif := "GOOD_TIL_CANCELLED"
	switch req.TimeInForce {
	case types.FOK:
		tif = "FILL_OR_KILL"
	case types.IOC:
		tif = "IMMEDIATE_OR_CANCEL"
	}
	payload := submitOrderPayload{
		MarketSymbol:  req.Symbol,
		Direction:     direction,
		Type:          orderType,
		Quantity:      qty.String(),
		TimeInForce:   tif,
		ClientOrderID: req.ClientOrderID,
		Limit:         decimal.NewFromFloat(req.Price1).String(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	var result types.RESTOrderResult
	resp, err := c.signedRequest(ctx, http.MethodPost, path, body).
		SetBody(body).SetResult(&result).Post(path)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("submit order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// CancelOrder cancels a resting order by its exchange id.
func (c *Client) CancelOrder(ctx context.Context, exchangeOrderID string) (*types.RESTOrderResult, error) {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}
	path := "/orders/" + exchangeOrderID
	var result types.RESTOrderResult
	resp, err := c.signedRequest(ctx, http.MethodDelete, path, nil).
		SetResult(&result).Delete(path)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// ModifyOrder amends price/quantity on a resting order (cancel-replace).
func (c *Client) ModifyOrder(ctx context.Context, exchangeOrderID string, price, quantity float64) (*types.RESTOrderResult, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}
	payload := struct {
		Quantity string `json:"quantity"`
		Limit    string `json:"limit,omitempty"`
	}{
		Quantity: decimal.NewFromFloat(quantity).Div(decimal.NewFromFloat(types.QuantityScale)).String(),
		Limit:    decimal.NewFromFloat(price).String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal modify order: %w", err)
	}
	path := "/orders/" + exchangeOrderID
	var result types.RESTOrderResult
	resp, err := c.signedRequest(ctx, http.MethodPut, path, body).
		SetBody(body).SetResult(&result).Put(path)
	if err != nil {
		return nil, fmt.Errorf("modify order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("modify order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// HistoricalTicks fetches raw trade ticks for symbol within a hour-aligned
// window, the REST source the historical ingester (C10) pumps from.
func (c *Client) HistoricalTicks(ctx context.Context, symbol string, hourStart time.Time) ([]types.Tick, error) {
	if err := c.rl.Market.Wait(ctx); err != nil {
		return nil, err
	}
	var raw []struct {
		Timestamp string `json:"executedAt"`
		Side      string `json:"takerSide"`
		Price     string `json:"rate"`
		Quantity  string `json:"quantity"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("hour", hourStart.UTC().Format("2006-01-02T15")).
		SetResult(&raw).
		Get("/markets/{symbol}/trades/historical")
	if err != nil {
		return nil, fmt.Errorf("historical ticks: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("historical ticks: status %d: %s", resp.StatusCode(), resp.String())
	}

	ticks := make([]types.Tick, 0, len(raw))
	for _, r := range raw {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			continue
		}
		price, _ := decimal.NewFromString(r.Price)
		qty, _ := decimal.NewFromString(r.Quantity)
		side := types.Buy
		if r.Side == "SELL" {
			side = types.Sell
		}
		p, _ := price.Float64()
		q, _ := qty.Float64()
		ticks = append(ticks, types.Tick{Timestamp: ts, Side: side, Price: p, Qty: q})
	}
	return ticks, nil
}
