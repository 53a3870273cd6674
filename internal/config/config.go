// Package config defines the top-level configuration for the trading engine
// and provides validation helpers. There are no defaults for trading
// parameters: values come from the TOML file or an environment override, and
// Validate rejects missing or out-of-range values for the fields it checks.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure, populated from a TOML file and
// then optionally overridden by ALPACATRADER_* environment variables.
type Config struct {
	API          APIConfig          `toml:"api"`
	Strategy     StrategyConfig     `toml:"strategy"`
	Timing       TimingConfig       `toml:"timing"`
	Connectivity ConnectivityConfig `toml:"connectivity"`
	Accumulator  AccumulatorConfig  `toml:"accumulator"`
	TradingMode  string             `toml:"trading_mode"` // "stock" or "crypto"
	Symbol       string             `toml:"symbol"`
	LogLevel     string             `toml:"log_level"`
	LogFile      string             `toml:"log_file"`
	TradeLogCSV  string             `toml:"trade_log_csv"`
}

// EndpointTemplates holds URL path templates with placeholders such as
// {symbol}, {multiplier}, {timespan}, {from}, {to}.
type EndpointTemplates struct {
	Bars           string `toml:"bars"`
	QuotesLatest   string `toml:"quotes_latest"`
	Orders         string `toml:"orders"`
	Positions      string `toml:"positions"`
	Account        string `toml:"account"`
	Clock          string `toml:"clock"`
	HistoricalBars string `toml:"historical_bars"`
}

// APIConfig holds brokerage/market-data REST and WebSocket connection
// parameters.
type APIConfig struct {
	APIKey                  string            `toml:"api_key"`
	APISecret               string            `toml:"api_secret"`
	BaseURL                 string            `toml:"base_url"`
	WebsocketURL            string            `toml:"websocket_url"`
	RetryCount              int               `toml:"retry_count"`
	TimeoutSeconds          int               `toml:"timeout_seconds"`
	EnableSSLVerification   bool              `toml:"enable_ssl_verification"`
	RateLimitDelayMs        int               `toml:"rate_limit_delay_ms"`
	Endpoints               EndpointTemplates `toml:"endpoints"`
	PolygonAPIKey           string            `toml:"polygon_api_key"`
	PolygonBaseURL          string            `toml:"polygon_base_url"`
	PolygonWebsocketURL     string            `toml:"polygon_websocket_url"`
}

// StrategyConfig holds every signal-detection, filter, sizing, and
// order-validation parameter consumed by C9-C12.
type StrategyConfig struct {
	ATRPeriod                               int     `toml:"atr_period"`
	ATRCalculationBars                      int     `toml:"atr_calculation_bars"`
	AverageATRComparisonMultiplier          float64 `toml:"average_atr_comparison_multiplier"`
	MinimumVolumeThreshold                  float64 `toml:"minimum_volume_threshold"`
	EntrySignalATRMultiplier                float64 `toml:"entry_signal_atr_multiplier"`
	UseAbsoluteATRThreshold                 bool    `toml:"use_absolute_atr_threshold"`
	ATRAbsoluteMinimumThreshold             float64 `toml:"atr_absolute_minimum_threshold"`
	VolumeMultiplier                        float64 `toml:"volume_multiplier"`
	RRRatio                                 float64 `toml:"rr_ratio"`
	MaxExposurePct                          float64 `toml:"max_exposure_pct"`
	MaxDailyLoss                            float64 `toml:"max_daily_loss"`
	DailyProfitTarget                       float64 `toml:"daily_profit_target"`
	RiskPerTrade                            float64 `toml:"risk_per_trade"`
	BuyingPowerValidationSafetyMargin       float64 `toml:"buying_power_validation_safety_margin"`
	ShortSafetyMargin                       float64 `toml:"short_safety_margin"`
	ClosePositionsOnSignalReversal          bool    `toml:"close_positions_on_signal_reversal"`
	AllowMultiplePositionsPerSymbol         bool    `toml:"allow_multiple_positions_per_symbol"`
	MaximumShareQuantityPerSingleTrade      float64 `toml:"maximum_share_quantity_per_single_trade"`
	MaximumDollarValuePerSingleTrade        float64 `toml:"maximum_dollar_value_per_single_trade"`
	MinimumAcceptablePriceForSignals        float64 `toml:"minimum_acceptable_price_for_signals"`
	MaximumAcceptablePriceForSignals        float64 `toml:"maximum_acceptable_price_for_signals"`
	MaxRetries                              int     `toml:"max_retries"`
	RetryDelayMs                            int     `toml:"retry_delay_ms"`
	ProfitTakingThresholdDollars            float64 `toml:"profit_taking_threshold_dollars"`
	UseCurrentMarketPriceForOrderExecution  bool    `toml:"use_current_market_price_for_order_execution"`
	MaximumReasonablePositionQuantity       float64 `toml:"maximum_reasonable_position_quantity"`
	SignalBuyString                         string  `toml:"signal_buy_string"`
	SignalSellString                        string  `toml:"signal_sell_string"`
	DojiRatio                               float64 `toml:"doji_ratio"`
	// Strength-weighting must sum to 1; see StrategyConfig.Validate.
	StrengthWeightPriceChange float64 `toml:"strength_weight_price_change"`
	StrengthWeightATRRatio    float64 `toml:"strength_weight_atr_ratio"`
	StrengthWeightVolRatio    float64 `toml:"strength_weight_vol_ratio"`
}

// TimingConfig holds wash-trade gating, staleness, and cooldown parameters.
type TimingConfig struct {
	MinimumIntervalBetweenOrdersSeconds    int  `toml:"minimum_interval_between_orders_seconds"`
	EnableWashTradePreventionMechanism     bool `toml:"enable_wash_trade_prevention_mechanism"`
	MarketDataStalenessThresholdSeconds    int  `toml:"market_data_staleness_threshold_seconds"`
	CryptoDataStalenessThresholdSeconds    int  `toml:"crypto_data_staleness_threshold_seconds"`
	OrderCancellationProcessingDelayMs     int  `toml:"order_cancellation_processing_delay_milliseconds"`
	PositionVerificationTimeoutMs          int  `toml:"position_verification_timeout_milliseconds"`
	MaximumPositionVerificationAttempts    int  `toml:"maximum_position_verification_attempts"`
	MarketCloseGracePeriodMinutes          int  `toml:"market_close_grace_period_minutes"`
	EmergencyTradingHaltDurationMinutes    int  `toml:"emergency_trading_halt_duration_minutes"`
	CountdownDisplayRefreshIntervalSeconds int  `toml:"countdown_display_refresh_interval_seconds"`
	ThreadMarketDataPollIntervalSec        int  `toml:"thread_market_data_poll_interval_sec"`
	ThreadAccountPollIntervalSec           int  `toml:"thread_account_poll_interval_sec"`
	ThreadDecisionPollIntervalSec          int  `toml:"thread_decision_poll_interval_sec"`
}

// ConnectivityConfig parameterizes the C1 backoff state machine.
type ConnectivityConfig struct {
	MaxRetryDelaySeconds int     `toml:"max_retry_delay_seconds"`
	DegradedThreshold    int     `toml:"degraded_threshold"`
	DisconnectedThreshold int    `toml:"disconnected_threshold"`
	BackoffMultiplier    float64 `toml:"backoff_multiplier"`
}

// AccumulatorConfig parameterizes the C4 two-level bar accumulator.
type AccumulatorConfig struct {
	WebsocketBarAccumulationSeconds       int `toml:"websocket_bar_accumulation_seconds"`        // L1
	WebsocketSecondLevelAccumulationSecs  int `toml:"websocket_second_level_accumulation_seconds"` // L2
	WebsocketMaxBarHistorySize            int `toml:"websocket_max_bar_history_size"`
}

// Validate checks Config for missing or out-of-range values and returns a
// combined error describing every problem found. Only the fields checked
// below are validated; any other field is accepted as decoded, so leaving it
// unset in TOML gives it Go's zero value rather than a startup error.
func (c *Config) Validate() error {
	var errs []string

	if c.API.APIKey == "" {
		errs = append(errs, "api: api_key must not be empty")
	}
	if c.API.APISecret == "" {
		errs = append(errs, "api: api_secret must not be empty")
	}
	if c.API.BaseURL == "" {
		errs = append(errs, "api: base_url must not be empty")
	}
	if c.API.WebsocketURL == "" {
		errs = append(errs, "api: websocket_url must not be empty")
	}
	if c.API.RetryCount < 1 {
		errs = append(errs, "api: retry_count must be >= 1")
	}
	if c.API.TimeoutSeconds < 1 {
		errs = append(errs, "api: timeout_seconds must be >= 1")
	}

	if c.Symbol == "" {
		errs = append(errs, "symbol must not be empty")
	}
	switch strings.ToLower(c.TradingMode) {
	case "stock", "crypto":
	default:
		errs = append(errs, fmt.Sprintf("trading_mode: unknown %q (valid: stock, crypto)", c.TradingMode))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Strategy.ATRPeriod < 1 {
		errs = append(errs, "strategy: atr_period must be >= 1")
	}
	if c.Strategy.ATRCalculationBars < c.Strategy.ATRPeriod {
		errs = append(errs, "strategy: atr_calculation_bars must be >= atr_period")
	}
	if c.Strategy.RRRatio <= 0 {
		errs = append(errs, "strategy: rr_ratio must be > 0")
	}
	if c.Strategy.RiskPerTrade <= 0 {
		errs = append(errs, "strategy: risk_per_trade must be > 0")
	}
	if c.Strategy.MaxExposurePct <= 0 {
		errs = append(errs, "strategy: max_exposure_pct must be > 0")
	}
	if c.Strategy.MaxRetries < 1 {
		errs = append(errs, "strategy: max_retries must be >= 1")
	}
	sumW := c.Strategy.StrengthWeightPriceChange + c.Strategy.StrengthWeightATRRatio + c.Strategy.StrengthWeightVolRatio
	if diff := sumW - 1.0; diff > 1e-6 || diff < -1e-6 {
		errs = append(errs, fmt.Sprintf("strategy: strength weights must sum to 1, got %.4f", sumW))
	}
	if c.Strategy.DojiRatio <= 0 || c.Strategy.DojiRatio >= 1 {
		errs = append(errs, "strategy: doji_ratio must be in (0,1)")
	}

	if c.Timing.MinimumIntervalBetweenOrdersSeconds < 0 {
		errs = append(errs, "timing: minimum_interval_between_orders_seconds must be >= 0")
	}
	if c.Timing.MarketDataStalenessThresholdSeconds < 1 {
		errs = append(errs, "timing: market_data_staleness_threshold_seconds must be >= 1")
	}
	if c.Timing.CryptoDataStalenessThresholdSeconds < 1 {
		errs = append(errs, "timing: crypto_data_staleness_threshold_seconds must be >= 1")
	}
	if c.Timing.ThreadMarketDataPollIntervalSec < 1 {
		errs = append(errs, "timing: thread_market_data_poll_interval_sec must be >= 1")
	}
	if c.Timing.ThreadAccountPollIntervalSec < 1 {
		errs = append(errs, "timing: thread_account_poll_interval_sec must be >= 1")
	}
	if c.Timing.ThreadDecisionPollIntervalSec < 1 {
		errs = append(errs, "timing: thread_decision_poll_interval_sec must be >= 1")
	}
	if c.Timing.EmergencyTradingHaltDurationMinutes < 1 {
		errs = append(errs, "timing: emergency_trading_halt_duration_minutes must be >= 1")
	}

	if c.Connectivity.MaxRetryDelaySeconds < 1 {
		errs = append(errs, "connectivity: max_retry_delay_seconds must be >= 1")
	}
	if c.Connectivity.DegradedThreshold < 1 {
		errs = append(errs, "connectivity: degraded_threshold must be >= 1")
	}
	if c.Connectivity.DisconnectedThreshold <= c.Connectivity.DegradedThreshold {
		errs = append(errs, "connectivity: disconnected_threshold must be > degraded_threshold")
	}
	if c.Connectivity.BackoffMultiplier <= 1.0 {
		errs = append(errs, "connectivity: backoff_multiplier must be > 1.0")
	}

	if c.Accumulator.WebsocketBarAccumulationSeconds < 1 {
		errs = append(errs, "accumulator: websocket_bar_accumulation_seconds must be >= 1")
	}
	if c.Accumulator.WebsocketSecondLevelAccumulationSecs < 1 {
		errs = append(errs, "accumulator: websocket_second_level_accumulation_seconds must be >= 1")
	} else if c.Accumulator.WebsocketBarAccumulationSeconds >= 1 && c.Accumulator.WebsocketSecondLevelAccumulationSecs%c.Accumulator.WebsocketBarAccumulationSeconds != 0 {
		errs = append(errs, "accumulator: websocket_second_level_accumulation_seconds must be an integer multiple of websocket_bar_accumulation_seconds")
	}
	if c.Accumulator.WebsocketMaxBarHistorySize < 1 {
		errs = append(errs, "accumulator: websocket_max_bar_history_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsCrypto reports whether the configured symbol/trading mode routes to the
// crypto data path.
func (c *Config) IsCrypto() bool {
	return strings.ToLower(c.TradingMode) == "crypto"
}
