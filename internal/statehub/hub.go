// Package statehub implements the Shared State Hub (C15): the
// mutex-protected exchange point between the data producers (market-data
// and account workers) and the single decision consumer. This lock is
// intentionally separate from the Bar Accumulator's own mutex
// (internal/accumulator) so that accumulator folding never contends with
// snapshot exchange. A closed-and-replaced notification channel stands in
// for the spec's condition variable: it composes with select/time.After
// for the decision loop's bounded wait, which sync.Cond does not.
package statehub

import (
	"sync"
	"time"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

// Hub holds the latest MarketSnapshot and AccountSnapshot plus the
// freshness bookkeeping the decision loop needs.
type Hub struct {
	mu sync.Mutex

	market          domain.MarketSnapshot
	account         domain.AccountSnapshot
	hasMarket       bool
	hasAccount      bool
	running         bool
	allowFetch      bool
	marketDataAt    time.Time
	lastOrderAt     time.Time
	haveLastOrderAt bool

	notify chan struct{}
	now    func() time.Time
}

// New builds a running Hub.
func New() *Hub {
	return &Hub{running: true, allowFetch: true, notify: make(chan struct{}), now: time.Now}
}

// wake closes the current notify channel and installs a fresh one, waking
// every goroutine blocked in Consume. Must be called without mu held.
func (h *Hub) wake() {
	h.mu.Lock()
	close(h.notify)
	h.notify = make(chan struct{})
	h.mu.Unlock()
}

// PublishMarket overwrites the market snapshot, marks it fresh, and wakes
// the consumer.
func (h *Hub) PublishMarket(snap domain.MarketSnapshot) {
	h.mu.Lock()
	h.market = snap
	h.hasMarket = true
	h.marketDataAt = h.now()
	h.mu.Unlock()
	h.wake()
}

// PublishAccount overwrites the account snapshot and wakes the consumer.
func (h *Hub) PublishAccount(snap domain.AccountSnapshot) {
	h.mu.Lock()
	h.account = snap
	h.hasAccount = true
	h.mu.Unlock()
	h.wake()
}

// Consumed is the data handed to the decision loop by Consume.
type Consumed struct {
	Market          domain.MarketSnapshot
	Account         domain.AccountSnapshot
	MarketDataAge   time.Duration
	LastOrderAt     time.Time
	HaveLastOrderAt bool
}

// Consume waits until both a market and an account snapshot are available,
// up to timeout, then atomically reads them and clears has_market
// (has_account remains set for liveness, matching the spec's consumption
// rule). ok is false on timeout or shutdown.
func (h *Hub) Consume(timeout time.Duration) (Consumed, bool) {
	deadline := h.now().Add(timeout)
	for {
		h.mu.Lock()
		if !h.running {
			h.mu.Unlock()
			return Consumed{}, false
		}
		if h.hasMarket && h.hasAccount {
			out := Consumed{
				Market:          h.market,
				Account:         h.account,
				MarketDataAge:   h.now().Sub(h.marketDataAt),
				LastOrderAt:     h.lastOrderAt,
				HaveLastOrderAt: h.haveLastOrderAt,
			}
			h.hasMarket = false
			h.mu.Unlock()
			return out, true
		}
		ch := h.notify
		h.mu.Unlock()

		remaining := deadline.Sub(h.now())
		if remaining <= 0 {
			return Consumed{}, false
		}
		select {
		case <-ch:
		case <-time.After(remaining):
			return Consumed{}, false
		}
	}
}

// RecordOrder stamps the last-order timestamp that Consume hands back to
// the decision loop. The execution engine's wash-trade gate keeps its own
// timestamp and does not read this one.
func (h *Hub) RecordOrder(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastOrderAt = at
	h.haveLastOrderAt = true
}

// AllowFetch reports whether producers should keep polling.
func (h *Hub) AllowFetch() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allowFetch
}

// SetAllowFetch toggles producer polling, e.g. during an emergency halt.
func (h *Hub) SetAllowFetch(allow bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allowFetch = allow
}

// Running reports whether the engine is still meant to be running.
func (h *Hub) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Shutdown flips running false and wakes every waiter so blocked consumers
// can observe shutdown and exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	h.wake()
}
