// Package tradelog appends accepted orders to a CSV trade-history file, one
// row per accepted order, for the out-of-scope-but-required human-readable trade
// record.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

var header = []string{"timestamp", "symbol", "side", "qty", "price", "stop_loss", "take_profit", "order_id", "status"}

// Writer appends trade rows to a CSV file, creating it with a header if it
// does not already exist.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// Open opens (or creates) the CSV file at path for append.
func Open(path string) (*Writer, error) {
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tradelog: open %s: %w", path, err)
	}

	w := &Writer{path: path, f: f, w: csv.NewWriter(f)}
	if needsHeader {
		if err := w.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("tradelog: write header: %w", err)
		}
		w.w.Flush()
	}
	return w, nil
}

// Append writes one accepted order as a CSV row and flushes immediately:
// trade history must survive a crash moments later.
func (w *Writer) Append(order domain.AcceptedOrder) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row := []string{
		order.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		order.Symbol,
		string(order.Side),
		fmt.Sprintf("%g", order.Qty),
		fmt.Sprintf("%g", order.Price),
		fmt.Sprintf("%g", order.StopLoss),
		fmt.Sprintf("%g", order.TakeProfit),
		order.OrderID,
		order.Status,
	}
	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("tradelog: write row: %w", err)
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	return w.f.Close()
}
