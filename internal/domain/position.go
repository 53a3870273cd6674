package domain

// PositionDetails describes the account's current exposure in the
// configured symbol. Qty is signed: positive long, negative short (or
// fractional-positive-only for crypto, which cannot be shorted).
type PositionDetails struct {
	Symbol        string
	Qty           float64
	CurrentValue  float64 // signed market value
	UnrealizedPL  float64 // signed
}

// AccountSnapshot is produced by the account manager and exchanged wholesale
// through the shared state hub.
type AccountSnapshot struct {
	Equity      float64
	BuyingPower float64
	Position    PositionDetails
	OpenOrders  int
}

// ExposurePct returns |position value| / equity * 100, or 0 when equity<=0.
func (a AccountSnapshot) ExposurePct() float64 {
	if a.Equity <= 0 {
		return 0
	}
	v := a.Position.CurrentValue
	if v < 0 {
		v = -v
	}
	return v / a.Equity * 100
}

// ProcessedData is the merged projection of MarketSnapshot and
// AccountSnapshot consumed by strategy and execution logic.
type ProcessedData struct {
	Market      MarketSnapshot
	Account     AccountSnapshot
	ExposurePct float64
}
