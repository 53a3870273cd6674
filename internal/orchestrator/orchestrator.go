// Package orchestrator implements the Trading Orchestrator (C14): the
// single-threaded decision loop that consumes the shared state hub,
// evaluates the risk gate and strategy signal, and dispatches to the
// execution and position managers.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/execution"
	"github.com/kpeterman/alpacatrader/internal/platform"
	"github.com/kpeterman/alpacatrader/internal/position"
	"github.com/kpeterman/alpacatrader/internal/risk"
	"github.com/kpeterman/alpacatrader/internal/statehub"
	"github.com/kpeterman/alpacatrader/internal/strategy"
	"github.com/kpeterman/alpacatrader/internal/tradelog"
)

// Orchestrator runs the single-threaded decide loop.
type Orchestrator struct {
	hub      *statehub.Hub
	router   *platform.Router
	engine   *execution.Engine
	posMgr   *position.Manager
	tradeLog *tradelog.Writer
	strategy config.StrategyConfig
	timing   config.TimingConfig
	symbol   string
	isCrypto bool
	logger   *slog.Logger

	initialEquity float64
	haveInitial   bool
}

// New builds an Orchestrator. tradeLog may be nil, in which case accepted
// orders are not appended to the CSV trade history.
func New(hub *statehub.Hub, router *platform.Router, engine *execution.Engine, posMgr *position.Manager, tradeLog *tradelog.Writer,
	strategyCfg config.StrategyConfig, timingCfg config.TimingConfig, symbol string, isCrypto bool, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		hub: hub, router: router, engine: engine, posMgr: posMgr, tradeLog: tradeLog,
		strategy: strategyCfg, timing: timingCfg, symbol: symbol, isCrypto: isCrypto, logger: logger,
	}
}

// Run executes the decision loop until ctx is cancelled or the hub shuts
// down.
func (o *Orchestrator) Run(ctx context.Context) error {
	loopCount := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !o.hub.Running() {
			return nil
		}

		consumed, ok := o.hub.Consume(5 * time.Second)
		if !ok {
			continue // spurious wake, timeout, or shutdown observed by the outer Running() check
		}

		loopCount++
		o.logger.Info("decision loop tick", slog.Int("loop", loopCount))

		if !o.haveInitial {
			o.initialEquity = consumed.Account.Equity
			o.haveInitial = true
		}

		stalenessThreshold := time.Duration(o.timing.MarketDataStalenessThresholdSeconds) * time.Second
		if o.isCrypto {
			stalenessThreshold = time.Duration(o.timing.CryptoDataStalenessThresholdSeconds) * time.Second
		}
		if consumed.MarketDataAge > stalenessThreshold {
			o.logger.Warn("market data stale, skipping cycle", slog.Duration("age", consumed.MarketDataAge))
			o.countdown(ctx)
			continue
		}

		if o.checkMarketClose(ctx, consumed) {
			o.countdown(ctx)
			continue
		}

		gate := risk.Evaluate(o.strategy, o.initialEquity, consumed.Account.Equity, consumed.Account.ExposurePct())
		if !gate.Allowed {
			o.logger.Warn("risk gate blocked trading", slog.Float64("daily_pnl", gate.DailyPnL))
			o.haltCountdown(ctx)
			continue
		}

		o.evaluateAndExecute(ctx, consumed)
		o.countdown(ctx)
	}
}

// checkMarketClose reports whether the market is closed and, if so, flattens
// any open position via the position manager (C13). A true return means the
// caller should skip the rest of this cycle.
func (o *Orchestrator) checkMarketClose(ctx context.Context, consumed statehub.Consumed) bool {
	if o.isCrypto {
		return false
	}
	hours, err := o.router.Hours()
	if err != nil {
		return false
	}
	open, err := hours.IsMarketOpen(ctx)
	if err != nil || open {
		return false
	}
	if result, acted, err := o.posMgr.HandleMarketClose(ctx, consumed.Account.Position.Qty); err != nil {
		o.logger.Warn("market-close flatten failed", slog.String("error", err.Error()))
	} else if acted {
		o.logger.Info("market closed, position flattened", slog.String("order_id", result.OrderID))
	}
	return true
}

func (o *Orchestrator) evaluateAndExecute(ctx context.Context, consumed statehub.Consumed) {
	market := consumed.Market
	decision := strategy.DetectSignal(o.strategy, market)
	filters := strategy.EvaluateFilters(o.strategy, market)

	if !filters.AllPass || (!decision.Buy && !decision.Sell) {
		o.logger.Info("no trade this cycle",
			slog.Bool("atr_pass", filters.ATRPass), slog.Bool("vol_pass", filters.VolPass),
			slog.Bool("doji_pass", filters.DojiPass), slog.Bool("price_band_pass", filters.PriceBandPass))
		return
	}

	currentPrice := market.Curr.Close
	sizing := strategy.SizePosition(o.strategy, consumed.Account.Equity, consumed.Account.Position.CurrentValue,
		currentPrice, consumed.Account.BuyingPower, market.ATR, o.isCrypto)

	minQty := 1.0
	if o.isCrypto {
		minQty = 0
	}
	if sizing.Quantity < minQty || sizing.Quantity <= 0 {
		o.logger.Info("signal detected but sizing below minimum tradable quantity", slog.Float64("quantity", sizing.Quantity))
		return
	}

	targets := strategy.ExitTargetsFor(o.strategy, currentPrice, sizing.RiskAmount, decision.Buy)

	priceChangePct := 0.0
	if market.Prev.Close != 0 {
		priceChangePct = (market.Curr.Close - market.Prev.Close) / market.Prev.Close * 100
	}

	result, err := o.engine.Execute(ctx, execution.Attempt{
		Decision: decision, Sizing: sizing, Targets: targets, Price: currentPrice,
		Account: consumed.Account, IsCrypto: o.isCrypto,
		ATRRatio: filters.ATRRatio, PriceChangePct: priceChangePct,
	})
	if err != nil {
		if kind, ok := domain.KindOf(err); ok {
			o.logger.Info("trade attempt rejected", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		} else {
			o.logger.Error("trade attempt failed", slog.String("error", err.Error()))
		}
		return
	}
	if result.Accepted {
		o.hub.RecordOrder(time.Now())
		o.logger.Info("order accepted", slog.String("order_id", result.OrderID), slog.Float64("qty", sizing.Quantity))

		side := domain.OrderSideBuy
		if decision.Sell {
			side = domain.OrderSideSell
		}
		if o.tradeLog != nil {
			entry := domain.AcceptedOrder{
				Timestamp: time.Now(), Symbol: o.symbol, Side: side, Qty: sizing.Quantity,
				Price: currentPrice, StopLoss: targets.StopLoss, TakeProfit: targets.TakeProfit,
				OrderID: result.OrderID, Status: "accepted",
			}
			if err := o.tradeLog.Append(entry); err != nil {
				o.logger.Warn("trade log append failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (o *Orchestrator) countdown(ctx context.Context) {
	interval := time.Duration(o.timing.ThreadDecisionPollIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticks := int(math.Ceil(interval.Seconds()))
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if !o.hub.Running() {
			return
		}
	}
}

func (o *Orchestrator) haltCountdown(ctx context.Context) {
	halt := time.Duration(o.timing.EmergencyTradingHaltDurationMinutes) * time.Minute
	deadline := time.Now().Add(halt)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if !o.hub.Running() {
			return
		}
	}
}
