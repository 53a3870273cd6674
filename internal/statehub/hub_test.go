package statehub

import (
	"testing"
	"time"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

func TestConsumeTimesOutWithoutData(t *testing.T) {
	h := New()
	_, ok := h.Consume(20 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got data")
	}
}

func TestConsumeReturnsAfterBothSnapshotsPublished(t *testing.T) {
	h := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		h.PublishMarket(domain.MarketSnapshot{ATR: 1, Curr: domain.Bar{Close: 100}})
		h.PublishAccount(domain.AccountSnapshot{Equity: 1000})
	}()

	consumed, ok := h.Consume(200 * time.Millisecond)
	if !ok {
		t.Fatal("expected data before timeout")
	}
	if consumed.Account.Equity != 1000 {
		t.Fatalf("expected equity 1000, got %v", consumed.Account.Equity)
	}
}

func TestConsumeUnblocksOnShutdown(t *testing.T) {
	h := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		h.Shutdown()
	}()
	_, ok := h.Consume(2 * time.Second)
	if ok {
		t.Fatal("expected shutdown to return ok=false")
	}
}

func TestConsumeClearsHasMarketButKeepsHasAccount(t *testing.T) {
	h := New()
	h.PublishAccount(domain.AccountSnapshot{Equity: 1000})
	h.PublishMarket(domain.MarketSnapshot{ATR: 1})
	if _, ok := h.Consume(50 * time.Millisecond); !ok {
		t.Fatal("expected first consume to succeed")
	}
	h.mu.Lock()
	hasMarket, hasAccount := h.hasMarket, h.hasAccount
	h.mu.Unlock()
	if hasMarket {
		t.Fatal("expected hasMarket cleared after consume")
	}
	if !hasAccount {
		t.Fatal("expected hasAccount to remain set")
	}
}
