// Package account implements the Account Manager (C8): a thin,
// age-cached wrapper over the trading adapter's account/position/order
// endpoints.
package account

import (
	"context"
	"sync"
	"time"

	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/platform"
)

// Manager caches AccountSnapshot for cacheWindow; the cache expires by age
// or when Invalidate is called.
type Manager struct {
	trading     platform.Trading
	symbol      string
	cacheWindow time.Duration
	now         func() time.Time

	mu       sync.Mutex
	cached   domain.AccountSnapshot
	cachedAt time.Time
	haveData bool
}

// New builds a Manager for the configured trading symbol.
func New(trading platform.Trading, symbol string, cacheWindow time.Duration) *Manager {
	return &Manager{trading: trading, symbol: symbol, cacheWindow: cacheWindow, now: time.Now}
}

// Fetch returns the account snapshot, refetching from the trading adapter
// only if the cache is older than cacheWindow.
func (m *Manager) Fetch(ctx context.Context) (domain.AccountSnapshot, error) {
	m.mu.Lock()
	if m.haveData && m.now().Sub(m.cachedAt) < m.cacheWindow {
		snap := m.cached
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	snap, err := m.trading.GetAccountInfo(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}

	positions, err := m.trading.GetPositions(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	for _, p := range positions {
		if p.Symbol == m.symbol {
			snap.Position = p
			break
		}
	}

	openOrders, err := m.trading.GetOpenOrders(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	snap.OpenOrders = openOrders

	if snap.Equity <= 0 {
		return domain.AccountSnapshot{}, domain.NewError(domain.MissingField, "account: equity missing or non-positive")
	}

	m.mu.Lock()
	m.cached = snap
	m.cachedAt = m.now()
	m.haveData = true
	m.mu.Unlock()

	return snap, nil
}

// Invalidate forces the next Fetch to hit the trading adapter.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.haveData = false
}
