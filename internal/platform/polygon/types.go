package polygon

import (
	"bytes"
	"encoding/json"
)

// secondAggEvent models one "XAS" (per-second crypto aggregate) event: the
// atomic tick fed into the accumulator's L1 layer. StartMs is the bar's
// timestamp; EndMs is carried for completeness but not used for stamping.
type secondAggEvent struct {
	Ev      string  `json:"ev"`
	Pair    string  `json:"pair"`
	Open    float64 `json:"o"`
	High    float64 `json:"h"`
	Low     float64 `json:"l"`
	Close   float64 `json:"c"`
	Volume  float64 `json:"v"`
	StartMs int64   `json:"s"`
	EndMs   int64   `json:"e"`
}

// quoteEvent models one "XQ" (crypto quote) event.
type quoteEvent struct {
	Ev       string  `json:"ev"`
	Pair     string  `json:"pair"`
	BidPrice float64 `json:"bp"`
	AskPrice float64 `json:"ap"`
	BidSize  float64 `json:"bs"`
	AskSize  float64 `json:"as"`
	TimeMs   int64   `json:"t"`
}

// envelope peeks at the "ev" discriminant of one event in a batch before
// deciding which concrete type to decode it as.
type envelope struct {
	Ev string `json:"ev"`
}

// parseEventBatch accepts either a JSON array of events (the normal case)
// or a single bare object (some control frames arrive unwrapped).
func parseEventBatch(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimLeft(raw, " \t\n\r")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return []json.RawMessage{json.RawMessage(raw)}, nil
	}
	var events []json.RawMessage
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}
