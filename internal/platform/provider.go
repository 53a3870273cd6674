// Package platform defines the capability-set interfaces that provider
// adapters implement (C5) and the router that selects among them (C6),
// replacing the single virtual-base-class ApiProviderInterface with
// per-capability polymorphism as called for in SPEC_FULL.md.
package platform

import (
	"context"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

// BarRequest parameterizes a bars fetch.
type BarRequest struct {
	Symbol     string
	Multiplier int
	Timespan   string // "second", "minute", etc.
	From       string
	To         string
	Limit      int
}

// DataBars is implemented by any adapter capable of returning OHLCV bars.
type DataBars interface {
	GetRecentBars(ctx context.Context, req BarRequest) ([]domain.Bar, error)
	GetHistoricalBars(ctx context.Context, symbol, timeframe, start, end string, limit int) ([]domain.Bar, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// RealtimeQuotes is implemented by any adapter capable of returning a live
// best bid/ask quote.
type RealtimeQuotes interface {
	GetRealtimeQuotes(ctx context.Context, symbol string) (domain.Quote, error)
}

// MarketHours is implemented by adapters that know the venue's trading
// calendar.
type MarketHours interface {
	IsMarketOpen(ctx context.Context) (bool, error)
	IsWithinTradingHours(ctx context.Context) (bool, error)
}

// Trading is implemented only by the brokerage adapter.
type Trading interface {
	GetAccountInfo(ctx context.Context) (domain.AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]domain.PositionDetails, error)
	GetOpenOrders(ctx context.Context) (int, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, id string) error
	ClosePosition(ctx context.Context, symbol string, qty float64) (domain.OrderResult, error)
}

// Adapter is the common lifecycle surface every provider adapter exposes,
// regardless of which capability interfaces it also implements.
type Adapter interface {
	Initialize(ctx context.Context) error
	Connected() bool
	Disconnect() error
	ProviderName() string
	ProviderType() string
}
