package platform

import (
	"strings"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

// Router selects among registered provider adapters by symbol shape (C6).
// Trading operations always go to the brokerage adapter regardless of
// symbol: crypto data comes from Polygon, but crypto orders are still
// placed through Alpaca.
type Router struct {
	stockData   DataBars
	cryptoData  DataBars
	quotes      map[string]RealtimeQuotes
	hours       MarketHours
	trading     Trading
}

// NewRouter builds a Router. stockData or cryptoData may be nil if the
// engine is configured for only one trading mode; a symbol routed to a nil
// adapter returns domain.BadConfig.
func NewRouter(stockData, cryptoData DataBars, stockQuotes, cryptoQuotes RealtimeQuotes, hours MarketHours, trading Trading) *Router {
	quotes := map[string]RealtimeQuotes{}
	if stockQuotes != nil {
		quotes["stock"] = stockQuotes
	}
	if cryptoQuotes != nil {
		quotes["crypto"] = cryptoQuotes
	}
	return &Router{stockData: stockData, cryptoData: cryptoData, quotes: quotes, hours: hours, trading: trading}
}

// IsCrypto reports whether symbol should route to the crypto data path:
// contains a separator, or matches a well-known crypto base asset.
func IsCrypto(symbol string) bool {
	s := strings.ToUpper(symbol)
	if strings.ContainsAny(s, "/-") {
		return true
	}
	return strings.Contains(s, "BTC") || strings.Contains(s, "ETH")
}

// DataBarsFor returns the DataBars adapter for symbol.
func (r *Router) DataBarsFor(symbol string) (DataBars, error) {
	if IsCrypto(symbol) {
		if r.cryptoData == nil {
			return nil, domain.NewError(domain.BadConfig, "router: no crypto data provider configured")
		}
		return r.cryptoData, nil
	}
	if r.stockData == nil {
		return nil, domain.NewError(domain.BadConfig, "router: no stock data provider configured")
	}
	return r.stockData, nil
}

// QuotesFor returns the RealtimeQuotes adapter for symbol.
func (r *Router) QuotesFor(symbol string) (RealtimeQuotes, error) {
	key := "stock"
	if IsCrypto(symbol) {
		key = "crypto"
	}
	q, ok := r.quotes[key]
	if !ok {
		return nil, domain.NewError(domain.BadConfig, "router: no quote provider configured for "+key)
	}
	return q, nil
}

// Hours returns the market-hours adapter, regardless of symbol: a single
// engine instance trades one mode at a time.
func (r *Router) Hours() (MarketHours, error) {
	if r.hours == nil {
		return nil, domain.NewError(domain.BadConfig, "router: no market-hours provider configured")
	}
	return r.hours, nil
}

// Trading always returns the brokerage adapter: every order, regardless of
// underlying symbol, is placed through it.
func (r *Router) Trading() (Trading, error) {
	if r.trading == nil {
		return nil, domain.NewError(domain.BadConfig, "router: no trading provider configured")
	}
	return r.trading, nil
}
