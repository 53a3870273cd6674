package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexFloat decodes a JSON number that a broker may encode as either a JSON
// number or a quoted string (Alpaca does both across endpoints for the same
// logical field). It always marshals back out as a string, matching the
// order-submission contract which requires qty as a decimal string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	var asNumber float64
	if err := json.Unmarshal(b, &asNumber); err == nil {
		*f = FlexFloat(asNumber)
		return nil
	}
	var asString string
	if err := json.Unmarshal(b, &asString); err != nil {
		return fmt.Errorf("domain: FlexFloat: %w", err)
	}
	if asString == "" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(asString, 64)
	if err != nil {
		return fmt.Errorf("domain: FlexFloat: parse %q: %w", asString, err)
	}
	*f = FlexFloat(parsed)
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(f), 'f', -1, 64))
}

func (f FlexFloat) Float64() float64 { return float64(f) }
