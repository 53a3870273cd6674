package domain

// SignalDecision is the output of strategy signal detection. At most one of
// Buy/Sell is true per evaluation.
type SignalDecision struct {
	Buy      bool
	Sell     bool
	Strength float64 // in [0,1]
	Reason   string
}

// FilterResult records which entry filters passed.
type FilterResult struct {
	ATRPass       bool
	VolPass       bool
	DojiPass      bool
	PriceBandPass bool
	AllPass       bool
	ATRRatio      float64
	VolRatio      float64
}

// PositionSizing records the candidate quantities considered before the
// binding minimum is chosen.
type PositionSizing struct {
	Quantity          float64
	RiskAmount        float64
	SizeMultiplier    float64
	RiskBasedQty      float64
	ExposureBasedQty  float64
	MaxValueQty       float64
	BuyingPowerQty    float64
}

// ExitTargets holds the stop-loss/take-profit pair for an entry.
type ExitTargets struct {
	StopLoss   float64
	TakeProfit float64
}
