// Package polygon adapts the crypto market-data provider capability (C5) to
// Polygon's crypto WebSocket feed, wrapping wsfeed (C3) and accumulator (C4)
// behind the same DataBars/RealtimeQuotes interfaces the stock adapter
// implements, so the router (C6) can treat both uniformly.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kpeterman/alpacatrader/internal/accumulator"
	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/platform"
	"github.com/kpeterman/alpacatrader/internal/wsfeed"
)

// Client is a single-symbol crypto data adapter: one accumulator, one
// wsfeed connection, lazily started on first use.
type Client struct {
	cfg    config.APIConfig
	symbol string // normalized slash form, e.g. "BTC/USD"

	ws  *wsfeed.Client
	acc *accumulator.Accumulator

	mu        sync.Mutex
	started   bool
	connected bool
	lastQuote domain.Quote
	haveQuote bool
}

// NewClient validates cfg and builds a Client for symbol, not yet connected.
func NewClient(cfg config.APIConfig, symbol string, accCfg config.AccumulatorConfig, onLog func(level, msg string)) (*Client, error) {
	if cfg.PolygonAPIKey == "" || cfg.PolygonWebsocketURL == "" {
		return nil, domain.NewError(domain.BadConfig, "polygon: polygon_api_key and polygon_websocket_url are required")
	}
	return &Client{
		cfg:    cfg,
		symbol: normalizeSymbol(symbol),
		ws:     wsfeed.New(cfg.PolygonWebsocketURL, onLog),
		acc: accumulator.New(
			accCfg.WebsocketBarAccumulationSeconds,
			accCfg.WebsocketSecondLevelAccumulationSecs,
			accCfg.WebsocketMaxBarHistorySize,
		),
	}, nil
}

func normalizeSymbol(sym string) string {
	s := strings.ToUpper(sym)
	s = strings.ReplaceAll(s, "-", "/")
	if !strings.Contains(s, "/") {
		// bare "BTCUSD" style symbol: split at the conventional 3-char base.
		if len(s) > 3 {
			s = s[:len(s)-3] + "/" + s[len(s)-3:]
		}
	}
	return s
}

// Initialize connects the WebSocket feed, authenticates, and subscribes to
// the per-second aggregate channel for the configured symbol. Safe to call
// more than once; only the first call does work.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	c.ws.SetMessageCallback(c.handleMessage)
	if err := c.ws.Connect(ctx); err != nil {
		return domain.Wrap(domain.HttpTransport, "polygon: connect", err)
	}
	if err := c.ws.Authenticate(c.cfg.PolygonAPIKey); err != nil {
		return domain.Wrap(domain.HttpTransport, "polygon: authenticate", err)
	}
	channel := fmt.Sprintf("XAS.%s", c.symbol)
	params, _ := marshalParams(channel)
	if err := c.ws.Subscribe(params); err != nil {
		return domain.Wrap(domain.HttpTransport, "polygon: subscribe", err)
	}
	quoteChannel := fmt.Sprintf("XQ.%s", c.symbol)
	quoteParams, _ := marshalParams(quoteChannel)
	if err := c.ws.Subscribe(quoteParams); err != nil {
		return domain.Wrap(domain.HttpTransport, "polygon: subscribe quotes", err)
	}

	c.started = true
	c.connected = true
	return nil
}

func marshalParams(channel string) (wsfeed.SubscribeParams, error) {
	return []byte(strconv.Quote(channel)), nil
}

func (c *Client) Connected() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.connected }

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return c.ws.Disconnect()
}

func (c *Client) ProviderName() string { return "polygon" }
func (c *Client) ProviderType() string { return "crypto-data" }

// handleMessage decodes one batch of Polygon events and folds any "XAS"
// aggregate into the accumulator, updating the cached quote on "XQ".
func (c *Client) handleMessage(raw []byte) error {
	events, err := parseEventBatch(raw)
	if err != nil {
		return fmt.Errorf("polygon: decode batch: %w", err)
	}

	for _, ev := range events {
		var head envelope
		if err := json.Unmarshal(ev, &head); err != nil {
			continue
		}
		switch head.Ev {
		case "XAS":
			var agg secondAggEvent
			if err := json.Unmarshal(ev, &agg); err != nil {
				continue
			}
			c.acc.AddBar(domain.Bar{
				Open: agg.Open, High: agg.High, Low: agg.Low, Close: agg.Close,
				Volume:    agg.Volume,
				Timestamp: strconv.FormatInt(agg.StartMs, 10),
			})
		case "XQ":
			var q quoteEvent
			if err := json.Unmarshal(ev, &q); err != nil {
				continue
			}
			c.mu.Lock()
			c.lastQuote = domain.Quote{
				BidPrice: q.BidPrice, AskPrice: q.AskPrice,
				BidSize: q.BidSize, AskSize: q.AskSize,
				Timestamp: strconv.FormatInt(q.TimeMs, 10),
			}
			c.haveQuote = true
			c.mu.Unlock()
		case "status", "XA":
			// control/minute-aggregate messages carry no bar data we fold.
		}
	}
	return nil
}

// GetRecentBars returns up to req.Limit accumulated bars. If the feed has
// not produced enough data yet, it returns domain.NoAccumulatedBars rather
// than blocking: the market data fetcher (C7) is expected to retry on its
// own poll cadence.
func (c *Client) GetRecentBars(ctx context.Context, req platform.BarRequest) ([]domain.Bar, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	n := req.Limit
	if n <= 0 {
		n = 1
	}
	bars := c.acc.GetAccumulatedBars(n)
	if len(bars) == 0 {
		return nil, domain.NewError(domain.NoAccumulatedBars, "polygon: no accumulated bars yet for "+c.symbol)
	}
	return bars, nil
}

// GetHistoricalBars has no distinct REST path in this adapter; it serves
// the same accumulated in-memory history GetRecentBars does.
func (c *Client) GetHistoricalBars(ctx context.Context, symbol, timeframe, start, end string, limit int) ([]domain.Bar, error) {
	return c.GetRecentBars(ctx, platform.BarRequest{Symbol: symbol, Limit: limit})
}

func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := c.GetRealtimeQuotes(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.MidPrice(), nil
}

func (c *Client) GetRealtimeQuotes(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := c.Initialize(ctx); err != nil {
		return domain.Quote{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveQuote {
		return domain.Quote{}, domain.NewError(domain.NotReady, "polygon: no quote received yet for "+c.symbol)
	}
	return c.lastQuote, nil
}

// IsMarketOpen and IsWithinTradingHours are always true for crypto: the
// market never closes.
func (c *Client) IsMarketOpen(ctx context.Context) (bool, error)         { return true, nil }
func (c *Client) IsWithinTradingHours(ctx context.Context) (bool, error) { return true, nil }

var _ platform.Adapter = (*Client)(nil)
var _ platform.DataBars = (*Client)(nil)
var _ platform.RealtimeQuotes = (*Client)(nil)
var _ platform.MarketHours = (*Client)(nil)
