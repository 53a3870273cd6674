package accumulator

import (
	"fmt"
	"testing"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

func bar(ts int64, o, h, l, c, v float64) domain.Bar {
	return domain.Bar{Open: o, High: h, Low: l, Close: c, Volume: v, Timestamp: fmt.Sprintf("%d", ts)}
}

func TestAddBarFoldsIntoL1ThenL2(t *testing.T) {
	acc := NewWithTickCounts(3, 2, 100)

	for i := int64(0); i < 3; i++ {
		acc.AddBar(bar(1000+i, 10, 11, 9, 10.5, 100))
	}
	bars := acc.GetAccumulatedBars(1)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Volume != 300 {
		t.Fatalf("expected folded volume 300, got %v", bars[0].Volume)
	}
}

func TestAddBarRejectsNonPositivePrice(t *testing.T) {
	acc := NewWithTickCounts(2, 2, 100)
	acc.AddBar(bar(1, 0, 1, 1, 1, 10))
	if len(acc.GetAccumulatedBars(1)) != 0 {
		t.Fatal("expected bad bar to be dropped")
	}
}

func TestAddBarDropsUnparseableTimestamp(t *testing.T) {
	acc := NewWithTickCounts(1, 1, 100)
	acc.AddBar(domain.Bar{Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 1, Timestamp: "not-a-number"})
	if len(acc.GetAccumulatedBars(1)) != 0 {
		t.Fatal("expected bar with bad timestamp to be dropped")
	}
}

func TestGetAccumulatedBarsIsTimestampMonotoneAndBounded(t *testing.T) {
	acc := NewWithTickCounts(1, 4, 100)
	for i := int64(0); i < 20; i++ {
		acc.AddBar(bar(1000+i, 10, 11, 9, 10.2, 50))
	}
	bars := acc.GetAccumulatedBars(5)
	if len(bars) > 5 {
		t.Fatalf("expected at most 5 bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp <= bars[i-1].Timestamp {
			t.Fatalf("expected strictly increasing timestamps, got %v then %v", bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
}

func TestGetAccumulatedBarsDedupesByTimestamp(t *testing.T) {
	acc := NewWithTickCounts(1, 100, 100)
	acc.AddBar(bar(5000, 10, 11, 9, 10, 100))
	acc.AddBar(bar(5000, 10, 12, 9, 11, 200))
	bars := acc.GetAccumulatedBars(10)
	if len(bars) != 1 {
		t.Fatalf("expected dedupe to collapse to 1 bar, got %d", len(bars))
	}
}

func TestBoundedHistoryTrimsFromFront(t *testing.T) {
	acc := NewWithTickCounts(1, 1000, 3)
	for i := int64(0); i < 10; i++ {
		acc.AddBar(bar(1000+i, 10, 11, 9, 10, 10))
	}
	bars := acc.GetAccumulatedBars(100)
	if len(bars) > 3 {
		t.Fatalf("expected history capped at 3, got %d", len(bars))
	}
}
