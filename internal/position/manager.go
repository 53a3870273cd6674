// Package position implements the Position Manager (C13): market-close
// flattening of the configured symbol's position.
package position

import (
	"context"

	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/platform"
)

// fallbackSanityBoundQty guards against acting on a corrupted account
// snapshot when the operator has left the configured bound unset.
const fallbackSanityBoundQty = 1_000_000

// Manager flattens the configured symbol's position when the market is
// closed.
type Manager struct {
	router         *platform.Router
	symbol         string
	sanityBoundQty float64
}

// New builds a Manager for the configured symbol. sanityBoundQty is the
// configured maximum reasonable position quantity; a value <= 0 falls back
// to fallbackSanityBoundQty.
func New(router *platform.Router, symbol string, sanityBoundQty float64) *Manager {
	if sanityBoundQty <= 0 {
		sanityBoundQty = fallbackSanityBoundQty
	}
	return &Manager{router: router, symbol: symbol, sanityBoundQty: sanityBoundQty}
}

// HandleMarketClose closes the position if currentQty is non-zero and
// within the sanity bound; otherwise it is a no-op.
func (m *Manager) HandleMarketClose(ctx context.Context, currentQty float64) (domain.OrderResult, bool, error) {
	if currentQty == 0 {
		return domain.OrderResult{}, false, nil
	}
	if abs(currentQty) > m.sanityBoundQty {
		return domain.OrderResult{}, false, nil
	}

	trading, err := m.router.Trading()
	if err != nil {
		return domain.OrderResult{}, false, err
	}
	result, err := trading.ClosePosition(ctx, m.symbol, 0)
	if err != nil {
		return domain.OrderResult{}, true, err
	}
	return result, true, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
