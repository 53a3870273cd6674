// Package execution implements the Order Execution Engine (C12): the
// VALIDATE -> WASH_GATE -> CLOSE_OPP -> CAPACITY -> SELECT_TYPE -> SUBMIT ->
// RECORD_TS state machine that turns a strategy decision into a broker
// order.
package execution

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/platform"
)

// Engine drives at most one submission at a time, matching the
// single-threaded decision-loop ordering guarantee.
type Engine struct {
	router       *platform.Router
	symbol       string
	strategy     config.StrategyConfig
	timing       config.TimingConfig
	now          func() time.Time

	mu            sync.Mutex
	lastOrderTime time.Time
	haveOrdered   bool
}

// New builds an Engine for the configured symbol.
func New(router *platform.Router, symbol string, strategy config.StrategyConfig, timing config.TimingConfig) *Engine {
	return &Engine{router: router, symbol: symbol, strategy: strategy, timing: timing, now: time.Now}
}

// Attempt is everything the engine needs to drive one trade attempt.
// ATRRatio and PriceChangePct feed the high-volatility order-type
// selection rule (atr/avg_atr>1.5 or |Δclose%|>1.0 -> stop_limit).
type Attempt struct {
	Decision       domain.SignalDecision
	Sizing         domain.PositionSizing
	Targets        domain.ExitTargets
	Price          float64
	Account        domain.AccountSnapshot
	IsCrypto       bool
	ATRRatio       float64
	PriceChangePct float64
}

// Execute runs the full state machine for one signal. A non-nil error with
// Kind=ValidationFailed, NotReady, or PositionCap means "rejected, not a
// fatal condition"; callers should log and continue the decision loop.
func (e *Engine) Execute(ctx context.Context, a Attempt) (domain.OrderResult, error) {
	if err := e.validate(a); err != nil {
		return domain.OrderResult{}, err
	}

	if err := e.washGate(); err != nil {
		return domain.OrderResult{}, err
	}

	trading, err := e.router.Trading()
	if err != nil {
		return domain.OrderResult{}, err
	}

	if err := e.closeOpposite(ctx, trading, a); err != nil {
		return domain.OrderResult{}, err
	}

	if err := e.checkCapacity(a); err != nil {
		return domain.OrderResult{}, err
	}

	result, err := e.submit(ctx, trading, a)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if result.Accepted {
		e.recordTimestamp()
	}
	return result, nil
}

func (e *Engine) validate(a Attempt) error {
	if !a.Decision.Buy && !a.Decision.Sell {
		return domain.NewError(domain.ValidationFailed, "execution: no directional signal")
	}
	minQty := 1.0
	if a.IsCrypto {
		minQty = 0 // crypto sizes may be fractional
	}
	if a.Sizing.Quantity < minQty || a.Sizing.Quantity <= 0 {
		return domain.NewError(domain.ValidationFailed, "execution: quantity below minimum tradable size")
	}
	if a.Price <= 0 {
		return domain.NewError(domain.ValidationFailed, "execution: non-positive current price")
	}
	return nil
}

func (e *Engine) washGate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.haveOrdered {
		return nil
	}
	elapsed := e.now().Sub(e.lastOrderTime)
	minInterval := time.Duration(e.timing.MinimumIntervalBetweenOrdersSeconds) * time.Second
	if e.timing.EnableWashTradePreventionMechanism && elapsed < minInterval {
		remaining := int(math.Ceil((minInterval - elapsed).Seconds()))
		return &domain.KindError{
			Kind:          domain.NotReady,
			Msg:           "execution: wash-trade cooldown still in effect",
			RemainingSecs: remaining,
		}
	}
	return nil
}

// verifyPositionQty refetches the account's position in the configured
// symbol, retrying up to MaximumPositionVerificationAttempts times with a
// PositionVerificationTimeoutMs delay between attempts until it finds a
// nonzero quantity. A 0-valued or negative attempt count means a single try.
func (e *Engine) verifyPositionQty(ctx context.Context, trading platform.Trading) (float64, error) {
	attempts := e.timing.MaximumPositionVerificationAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(e.timing.PositionVerificationTimeoutMs) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		positions, err := trading.GetPositions(ctx)
		if err != nil {
			lastErr = err
		} else {
			for _, p := range positions {
				if p.Symbol == e.symbol && p.Qty > 0 {
					return p.Qty, nil
				}
			}
			lastErr = nil
		}
		if attempt < attempts && delay > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return 0, lastErr
}

// closeOpposite closes any existing position on the opposite side before an
// entry, when configured to do so.
func (e *Engine) closeOpposite(ctx context.Context, trading platform.Trading, a Attempt) error {
	if !e.strategy.ClosePositionsOnSignalReversal {
		return nil
	}
	qty := a.Account.Position.Qty
	if qty == 0 {
		return nil
	}
	opposite := (a.Decision.Buy && qty < 0) || (a.Decision.Sell && qty > 0)
	if !opposite {
		return nil
	}
	if _, err := trading.ClosePosition(ctx, e.symbol, 0); err != nil {
		return domain.Wrap(domain.BrokerReject, "execution: failed to close opposite position", err)
	}
	return nil
}

func (e *Engine) checkCapacity(a Attempt) error {
	if !e.strategy.AllowMultiplePositionsPerSymbol {
		qty := a.Account.Position.Qty
		sameDirection := (a.Decision.Buy && qty > 0) || (a.Decision.Sell && qty < 0)
		if sameDirection {
			return domain.NewError(domain.PositionCap, "execution: position already open in the same direction")
		}
	}

	// opening a new short (stock only; crypto cannot be shorted) re-checks
	// buying power against the configured short safety margin.
	openingShort := !a.IsCrypto && a.Decision.Sell && a.Account.Position.Qty >= 0
	if openingShort {
		margin := e.strategy.ShortSafetyMargin
		if margin <= 0 || margin > 1 {
			margin = 0.9
		}
		required := a.Price * a.Sizing.Quantity
		if required > a.Account.BuyingPower*margin {
			return domain.NewError(domain.ValidationFailed, "execution: insufficient buying power for short under configured safety margin")
		}
	}
	return nil
}

// submit selects the order type and dispatches to the broker, retrying on
// a broker payload carrying a code/message without an id.
func (e *Engine) submit(ctx context.Context, trading platform.Trading, a Attempt) (domain.OrderResult, error) {
	side := domain.OrderSideBuy
	if a.Decision.Sell {
		side = domain.OrderSideSell
	}

	// crypto cannot be sold short: a sell signal against a flat or long
	// position closes at actual on-exchange quantity instead of opening.
	if a.IsCrypto && side == domain.OrderSideSell && a.Account.Position.Qty >= 0 {
		actualQty, err := e.verifyPositionQty(ctx, trading)
		if err != nil {
			return domain.OrderResult{}, err
		}
		if actualQty <= 0 {
			return domain.OrderResult{}, domain.NewError(domain.ValidationFailed, "execution: no crypto quantity on hand to sell")
		}
		return e.submitWithRetry(ctx, trading, domain.OrderRequest{
			Symbol: e.symbol, Qty: actualQty, Side: domain.OrderSideSell,
			Type: domain.OrderTypeMarket, TimeInForce: domain.TIFIOC,
		})
	}

	orderType := selectOrderType(a.ATRRatio, a.PriceChangePct)
	if a.IsCrypto && orderType != domain.OrderTypeMarket {
		return e.submitCryptoBracketSimulation(ctx, trading, side, a)
	}

	req := domain.OrderRequest{
		Symbol: e.symbol, Qty: a.Sizing.Quantity, Side: side,
		Type: orderType, TimeInForce: domain.TIFDay,
	}
	if orderType != domain.OrderTypeMarket {
		req.OrderClass = "bracket"
		stopLoss := a.Targets.StopLoss
		if side == domain.OrderSideSell && stopLoss < a.Price+0.01 {
			stopLoss = a.Price + 0.01
		}
		req.StopLoss = &domain.BracketLeg{StopPrice: stopLoss}
		req.TakeProfit = &domain.BracketLeg{LimitPrice: a.Targets.TakeProfit}
		req.LimitPrice = a.Price
		if orderType == domain.OrderTypeStopLimit {
			req.StopPrice = a.Price
		}
	}

	return e.submitWithRetry(ctx, trading, req)
}

// highVolatilityATRRatio and highVolatilityPriceChangePct are the literal
// thresholds from the order-type selection rule: atr/avg_atr>1.5 or
// |Δclose%|>1.0 routes an entry to stop_limit instead of limit.
const (
	highVolatilityATRRatio       = 1.5
	highVolatilityPriceChangePct = 1.0
)

// selectOrderType implements the order-type selection rule for opening
// orders with stop targets: closing orders are market, handled by callers
// before reaching here.
func selectOrderType(atrRatio, priceChangePct float64) domain.OrderType {
	if atrRatio > highVolatilityATRRatio || math.Abs(priceChangePct) > highVolatilityPriceChangePct {
		return domain.OrderTypeStopLimit
	}
	return domain.OrderTypeLimit
}

func (e *Engine) submitCryptoBracketSimulation(ctx context.Context, trading platform.Trading, side domain.OrderSide, a Attempt) (domain.OrderResult, error) {
	// The Trading capability surfaces only an open-order count, not ids, so
	// conflicting-order cancellation here relies on the wash-trade gate
	// above to keep attempts spaced out rather than a per-id cancel; the
	// configured processing delay is applied once, before the entry order
	// is submitted.
	time.Sleep(time.Duration(e.timing.OrderCancellationProcessingDelayMs) * time.Millisecond)

	entry := domain.OrderRequest{
		Symbol: e.symbol, Qty: a.Sizing.Quantity, Side: side,
		Type: domain.OrderTypeCryptoBracketSimMkt, TimeInForce: domain.TIFGTC,
	}
	entryResult, err := e.submitWithRetry(ctx, trading, entry)
	if err != nil || !entryResult.Accepted {
		return entryResult, err
	}

	stopLoss := a.Targets.StopLoss
	if side == domain.OrderSideSell && stopLoss < a.Price+0.01 {
		stopLoss = a.Price + 0.01
	}
	stopSide := domain.OrderSideSell
	if side == domain.OrderSideSell {
		stopSide = domain.OrderSideBuy
	}

	stopReq := domain.OrderRequest{
		Symbol: e.symbol, Qty: a.Sizing.Quantity, Side: stopSide,
		Type: domain.OrderTypeCryptoBracketSimSL, TimeInForce: domain.TIFGTC,
		StopPrice: stopLoss, LimitPrice: stopLoss,
	}
	if _, err := e.submitWithRetry(ctx, trading, stopReq); err != nil {
		return entryResult, err
	}

	tpReq := domain.OrderRequest{
		Symbol: e.symbol, Qty: a.Sizing.Quantity, Side: stopSide,
		Type: domain.OrderTypeCryptoBracketSimTP, TimeInForce: domain.TIFGTC,
		LimitPrice: a.Targets.TakeProfit,
	}
	if _, err := e.submitWithRetry(ctx, trading, tpReq); err != nil {
		return entryResult, err
	}

	return entryResult, nil
}

func (e *Engine) submitWithRetry(ctx context.Context, trading platform.Trading, req domain.OrderRequest) (domain.OrderResult, error) {
	maxRetries := e.strategy.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.New().String()
	}

	var lastResult domain.OrderResult
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := trading.PlaceOrder(ctx, req)
		if err != nil {
			lastErr = err
		} else if result.OrderID != "" {
			return result, nil
		} else {
			lastResult = result
		}

		if attempt < maxRetries {
			delay := time.Duration(e.strategy.RetryDelayMs*attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return domain.OrderResult{}, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	if lastErr != nil {
		return domain.OrderResult{}, lastErr
	}
	return lastResult, nil
}

func (e *Engine) recordTimestamp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastOrderTime = e.now()
	e.haveOrdered = true
}
