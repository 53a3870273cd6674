// Package alpaca adapts the brokerage-trading and brokerage-stock-data
// provider capabilities (C5) to Alpaca's REST API, grounded on the kalshi
// and polymarket platform clients' request/response shapes.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/httpapi"
	"github.com/kpeterman/alpacatrader/internal/platform"
)

// TradingClient implements platform.Adapter, platform.Trading, and
// platform.MarketHours against the brokerage account/order endpoints.
type TradingClient struct {
	http *httpapi.Client
	cfg  config.APIConfig

	connected bool
}

// NewTradingClient validates cfg and returns a TradingClient, or a
// domain.BadConfig error on an empty key/secret/url.
func NewTradingClient(http *httpapi.Client, cfg config.APIConfig) (*TradingClient, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.BaseURL == "" {
		return nil, domain.NewError(domain.BadConfig, "alpaca: api_key, api_secret, and base_url are required")
	}
	return &TradingClient{http: http, cfg: cfg}, nil
}

func (c *TradingClient) Initialize(ctx context.Context) error {
	c.connected = true
	return nil
}

func (c *TradingClient) Connected() bool      { return c.connected }
func (c *TradingClient) Disconnect() error    { c.connected = false; return nil }
func (c *TradingClient) ProviderName() string { return "alpaca" }
func (c *TradingClient) ProviderType() string { return "brokerage-trading" }

func (c *TradingClient) authHeaders() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     c.cfg.APIKey,
		"APCA-API-SECRET-KEY": c.cfg.APISecret,
	}
}

func (c *TradingClient) req(path string) httpapi.Request {
	return httpapi.Request{
		URL:         c.cfg.BaseURL + path,
		Headers:     c.authHeaders(),
		RetryCount:  c.cfg.RetryCount,
		TimeoutSecs: c.cfg.TimeoutSeconds,
		RateLimitMs: c.cfg.RateLimitDelayMs,
	}
}

// GetAccountInfo fetches equity/buying_power/cash from the account endpoint.
// symbol is threaded through GetPositions internally by callers
// that know it; GetAccountInfo here returns equity/buying power only, with
// PositionDetails left zero — callers combine this with GetPositions for the
// configured symbol (matching the account manager's two-call shape).
func (c *TradingClient) GetAccountInfo(ctx context.Context) (domain.AccountSnapshot, error) {
	body, err := c.http.Get(ctx, c.req("/v2/account"))
	if err != nil {
		return domain.AccountSnapshot{}, err
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.AccountSnapshot{}, domain.Wrap(domain.ParseError, "alpaca: decode account", err)
	}
	if resp.Equity == 0 && resp.Cash == 0 && resp.BuyingPower == 0 {
		return domain.AccountSnapshot{}, domain.NewError(domain.MissingField, "alpaca: account response missing equity/cash/buying_power")
	}

	return domain.AccountSnapshot{
		Equity:      resp.Equity.Float64(),
		BuyingPower: resp.BuyingPower.Float64(),
	}, nil
}

// GetPositions returns every open position on the account.
func (c *TradingClient) GetPositions(ctx context.Context) ([]domain.PositionDetails, error) {
	body, err := c.http.Get(ctx, c.req("/v2/positions"))
	if err != nil {
		return nil, err
	}

	var raw []positionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.Wrap(domain.ParseError, "alpaca: decode positions", err)
	}

	out := make([]domain.PositionDetails, 0, len(raw))
	for _, p := range raw {
		out = append(out, domain.PositionDetails{
			Symbol:       p.Symbol,
			Qty:          p.Qty.Float64(),
			CurrentValue: p.MarketValue.Float64(),
			UnrealizedPL: p.UnrealizedPL.Float64(),
		})
	}
	return out, nil
}

// GetOpenOrders returns the count of orders in an open-ish status.
func (c *TradingClient) GetOpenOrders(ctx context.Context) (int, error) {
	req := c.req("/v2/orders")
	req.URL += "?status=open"
	body, err := c.http.Get(ctx, req)
	if err != nil {
		return 0, err
	}

	var raw []orderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, domain.Wrap(domain.ParseError, "alpaca: decode open orders", err)
	}

	count := 0
	for _, o := range raw {
		if openOrderStatuses[o.Status] {
			count++
		}
	}
	return count, nil
}

// PlaceOrder serializes req to the broker JSON schema and submits it.
func (c *TradingClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	body := toOrderSubmission(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("alpaca: marshal order: %w", err)
	}

	httpReq := c.req("/v2/orders")
	httpReq.Body = payload

	respBody, err := c.http.Post(ctx, httpReq)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var resp orderSubmissionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.OrderResult{}, domain.Wrap(domain.ParseError, "alpaca: decode order response", err)
	}

	if resp.ID == "" {
		return domain.OrderResult{
			Accepted:    false,
			Code:        resp.Code,
			Message:     resp.Message,
			BasePrice:   resp.BasePrice.Float64(),
			ShouldRetry: true,
		}, nil
	}

	return domain.OrderResult{Accepted: true, OrderID: resp.ID}, nil
}

// toOrderSubmission maps the engine-internal request onto Alpaca's wire
// shape. Qty goes through decimal rather than strconv: float64 can't
// represent every fractional crypto quantity exactly (0.1+0.2 != 0.3), and
// that error compounds across bracket legs.
func toOrderSubmission(req domain.OrderRequest) orderSubmissionRequest {
	out := orderSubmissionRequest{
		Symbol:        req.Symbol,
		Qty:           decimal.NewFromFloat(req.Qty).String(),
		Side:          string(req.Side),
		Type:          mapOrderType(req.Type),
		TimeInForce:   string(req.TimeInForce),
		ClientOrderID: req.ClientOrderID,
		OrderClass:    req.OrderClass,
	}
	if req.LimitPrice > 0 {
		out.LimitPrice = strconv.FormatFloat(req.LimitPrice, 'f', -1, 64)
	}
	if req.StopPrice > 0 {
		out.StopPrice = strconv.FormatFloat(req.StopPrice, 'f', -1, 64)
	}
	if req.StopLoss != nil {
		out.StopLoss = &bracketLegRequest{StopPrice: strconv.FormatFloat(req.StopLoss.StopPrice, 'f', -1, 64)}
	}
	if req.TakeProfit != nil {
		out.TakeProfit = &bracketLegRequest{LimitPrice: strconv.FormatFloat(req.TakeProfit.LimitPrice, 'f', -1, 64)}
	}
	return out
}

func mapOrderType(t domain.OrderType) string {
	switch t {
	case domain.OrderTypeCryptoBracketSimMkt:
		return "market"
	case domain.OrderTypeCryptoBracketSimSL:
		return "stop_limit"
	case domain.OrderTypeCryptoBracketSimTP:
		return "limit"
	default:
		return string(t)
	}
}

// CancelOrder issues a DELETE for the order. An empty response body counts
// as success; a 404 or any other non-2xx status is returned as the httpapi
// client's transport error.
func (c *TradingClient) CancelOrder(ctx context.Context, id string) error {
	_, err := c.http.Delete(ctx, c.req("/v2/orders/"+id))
	if kind, ok := domain.KindOf(err); ok && kind == domain.EmptyResponse {
		return nil
	}
	return err
}

// ClosePosition issues DELETE /v2/positions/{symbol}, optionally scoped by
// qty.
func (c *TradingClient) ClosePosition(ctx context.Context, symbol string, qty float64) (domain.OrderResult, error) {
	req := c.req("/v2/positions/" + symbol)
	if qty > 0 {
		req.URL += "?qty=" + strconv.FormatFloat(qty, 'f', 8, 64)
	}
	body, err := c.http.Delete(ctx, req)
	if err != nil {
		return domain.OrderResult{}, err
	}
	var resp orderSubmissionResponse
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		return domain.OrderResult{Accepted: true}, nil
	}
	return domain.OrderResult{Accepted: true, OrderID: resp.ID}, nil
}

// IsMarketOpen queries GET /v2/clock.
func (c *TradingClient) IsMarketOpen(ctx context.Context) (bool, error) {
	body, err := c.http.Get(ctx, c.req("/v2/clock"))
	if err != nil {
		return false, err
	}
	var resp clockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, domain.Wrap(domain.ParseError, "alpaca: decode clock", err)
	}
	return resp.IsOpen, nil
}

// IsWithinTradingHours is equivalent to IsMarketOpen for this adapter: there
// is no separate extended-hours concept modeled here.
func (c *TradingClient) IsWithinTradingHours(ctx context.Context) (bool, error) {
	return c.IsMarketOpen(ctx)
}

// StockDataClient implements platform.Adapter and platform.DataBars for
// equities via the brokerage's bars endpoint.
type StockDataClient struct {
	http *httpapi.Client
	cfg  config.APIConfig

	connected bool
}

// NewStockDataClient validates cfg and returns a StockDataClient.
func NewStockDataClient(http *httpapi.Client, cfg config.APIConfig) (*StockDataClient, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.BaseURL == "" {
		return nil, domain.NewError(domain.BadConfig, "alpaca: api_key, api_secret, and base_url are required")
	}
	return &StockDataClient{http: http, cfg: cfg}, nil
}

func (c *StockDataClient) Initialize(ctx context.Context) error { c.connected = true; return nil }
func (c *StockDataClient) Connected() bool                      { return c.connected }
func (c *StockDataClient) Disconnect() error                    { c.connected = false; return nil }
func (c *StockDataClient) ProviderName() string                 { return "alpaca" }
func (c *StockDataClient) ProviderType() string                 { return "brokerage-stock-data" }

func (c *StockDataClient) GetRecentBars(ctx context.Context, req platform.BarRequest) ([]domain.Bar, error) {
	url, err := httpapi.ExpandTemplate(c.cfg.BaseURL+c.cfg.Endpoints.Bars, map[string]string{
		"symbol":     req.Symbol,
		"multiplier": strconv.Itoa(req.Multiplier),
		"timespan":   req.Timespan,
		"from":       req.From,
		"to":         req.To,
	})
	if err != nil {
		return nil, domain.Wrap(domain.BadConfig, "alpaca: expand bars template", err)
	}

	body, err := c.http.Get(ctx, httpapi.Request{
		URL: url, Headers: map[string]string{
			"APCA-API-KEY-ID":     c.cfg.APIKey,
			"APCA-API-SECRET-KEY": c.cfg.APISecret,
		},
		RetryCount: c.cfg.RetryCount, TimeoutSecs: c.cfg.TimeoutSeconds, RateLimitMs: c.cfg.RateLimitDelayMs,
	})
	if err != nil {
		return nil, err
	}

	var resp barsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.Wrap(domain.ParseError, "alpaca: decode bars", err)
	}

	out := make([]domain.Bar, 0, len(resp.Bars))
	for _, rb := range resp.Bars {
		if rb.O == nil || rb.H == nil || rb.L == nil || rb.C == nil {
			continue // malformed bar, discard
		}
		vol := 0.0
		if rb.V != nil {
			vol = *rb.V
		}
		tsMillis, err := isoToEpochMillis(rb.T)
		if err != nil {
			continue
		}
		b := domain.Bar{Open: *rb.O, High: *rb.H, Low: *rb.L, Close: *rb.C, Volume: vol, Timestamp: tsMillis}
		if !b.Valid() {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *StockDataClient) GetHistoricalBars(ctx context.Context, symbol, timeframe, start, end string, limit int) ([]domain.Bar, error) {
	return c.GetRecentBars(ctx, platform.BarRequest{Symbol: symbol, Timespan: timeframe, From: start, To: end, Limit: limit})
}

func (c *StockDataClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := c.GetRealtimeQuotes(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.MidPrice(), nil
}

func (c *StockDataClient) GetRealtimeQuotes(ctx context.Context, symbol string) (domain.Quote, error) {
	url, err := httpapi.ExpandTemplate(c.cfg.BaseURL+c.cfg.Endpoints.QuotesLatest, map[string]string{"symbol": symbol})
	if err != nil {
		return domain.Quote{}, domain.Wrap(domain.BadConfig, "alpaca: expand quotes template", err)
	}
	body, err := c.http.Get(ctx, httpapi.Request{
		URL: url, Headers: map[string]string{
			"APCA-API-KEY-ID":     c.cfg.APIKey,
			"APCA-API-SECRET-KEY": c.cfg.APISecret,
		},
		RetryCount: c.cfg.RetryCount, TimeoutSecs: c.cfg.TimeoutSeconds, RateLimitMs: c.cfg.RateLimitDelayMs,
	})
	if err != nil {
		return domain.Quote{}, err
	}
	var resp struct {
		Quote struct {
			AskPrice float64 `json:"ap"`
			BidPrice float64 `json:"bp"`
			AskSize  float64 `json:"as"`
			BidSize  float64 `json:"bs"`
			Time     string  `json:"t"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, domain.Wrap(domain.ParseError, "alpaca: decode quote", err)
	}
	return domain.Quote{
		AskPrice: resp.Quote.AskPrice, BidPrice: resp.Quote.BidPrice,
		AskSize: resp.Quote.AskSize, BidSize: resp.Quote.BidSize,
		Timestamp: resp.Quote.Time,
	}, nil
}

func isoToEpochMillis(ts string) (string, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return "", err
		}
	}
	return strconv.FormatInt(t.UnixMilli(), 10), nil
}

var _ platform.Adapter = (*TradingClient)(nil)
var _ platform.Trading = (*TradingClient)(nil)
var _ platform.MarketHours = (*TradingClient)(nil)
var _ platform.Adapter = (*StockDataClient)(nil)
var _ platform.DataBars = (*StockDataClient)(nil)
var _ platform.RealtimeQuotes = (*StockDataClient)(nil)
