package alpaca

import "github.com/kpeterman/alpacatrader/internal/domain"

// accountResponse models GET /v2/account. Numeric fields are broker-encoded
// as JSON strings; domain.FlexFloat accepts either string or number form.
type accountResponse struct {
	Equity          domain.FlexFloat `json:"equity"`
	Cash            domain.FlexFloat `json:"cash"`
	BuyingPower     domain.FlexFloat `json:"buying_power"`
	PatternDayTrader bool            `json:"pattern_day_trader"`
}

// positionResponse models one element of GET /v2/positions.
type positionResponse struct {
	Symbol       string           `json:"symbol"`
	Qty          domain.FlexFloat `json:"qty"`
	MarketValue  domain.FlexFloat `json:"market_value"`
	UnrealizedPL domain.FlexFloat `json:"unrealized_pl"`
}

// orderResponse models one element of GET /v2/orders?status=open.
type orderResponse struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Status string `json:"status"`
}

var openOrderStatuses = map[string]bool{
	"new":             true,
	"partially_filled": true,
	"pending_new":     true,
}

// bracketLegRequest models the stop_loss/take_profit sub-objects of the
// order-submission body.
type bracketLegRequest struct {
	StopPrice  string `json:"stop_price,omitempty"`
	LimitPrice string `json:"limit_price,omitempty"`
}

// orderSubmissionRequest models the POST /v2/orders body.
type orderSubmissionRequest struct {
	Symbol        string             `json:"symbol"`
	Qty           string             `json:"qty"`
	Side          string             `json:"side"`
	Type          string             `json:"type"`
	TimeInForce   string             `json:"time_in_force"`
	LimitPrice    string             `json:"limit_price,omitempty"`
	StopPrice     string             `json:"stop_price,omitempty"`
	StopLoss      *bracketLegRequest `json:"stop_loss,omitempty"`
	TakeProfit    *bracketLegRequest `json:"take_profit,omitempty"`
	OrderClass    string             `json:"order_class,omitempty"`
	ClientOrderID string             `json:"client_order_id,omitempty"`
}

// orderSubmissionResponse models both the success and rejection shapes of
// the POST /v2/orders response.
type orderSubmissionResponse struct {
	ID        string           `json:"id"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	BasePrice domain.FlexFloat `json:"base_price"`
}

// clockResponse models GET /v2/clock.
type clockResponse struct {
	IsOpen   bool   `json:"is_open"`
	NextOpen string `json:"next_open"`
}

// barsResponse models the {bars: [...]} envelope returned by the stock bars
// endpoint.
type barsResponse struct {
	Bars []rawBar `json:"bars"`
}

type rawBar struct {
	O *float64 `json:"o"`
	H *float64 `json:"h"`
	L *float64 `json:"l"`
	C *float64 `json:"c"`
	V *float64 `json:"v"`
	T string   `json:"t"`
}
