package config

import "testing"

func validConfig() Config {
	return Config{
		API: APIConfig{
			APIKey:         "key",
			APISecret:      "secret",
			BaseURL:        "https://paper-api.alpaca.markets",
			WebsocketURL:   "wss://stream.data.alpaca.markets/v2",
			RetryCount:     3,
			TimeoutSeconds: 10,
		},
		Symbol:      "AAPL",
		TradingMode: "stock",
		LogLevel:    "info",
		Strategy: StrategyConfig{
			ATRPeriod:                 14,
			ATRCalculationBars:        20,
			RRRatio:                   2,
			RiskPerTrade:              0.01,
			MaxExposurePct:            50,
			MaxRetries:                3,
			DojiRatio:                 0.1,
			StrengthWeightPriceChange: 0.4,
			StrengthWeightATRRatio:    0.3,
			StrengthWeightVolRatio:    0.3,
		},
		Timing: TimingConfig{
			MarketDataStalenessThresholdSeconds: 30,
			CryptoDataStalenessThresholdSeconds: 30,
			ThreadMarketDataPollIntervalSec:     5,
			ThreadAccountPollIntervalSec:        10,
			ThreadDecisionPollIntervalSec:       5,
			EmergencyTradingHaltDurationMinutes: 15,
		},
		Connectivity: ConnectivityConfig{
			MaxRetryDelaySeconds:  60,
			DegradedThreshold:     3,
			DisconnectedThreshold: 6,
			BackoffMultiplier:     2.0,
		},
		Accumulator: AccumulatorConfig{
			WebsocketBarAccumulationSeconds:      1,
			WebsocketSecondLevelAccumulationSecs: 60,
			WebsocketMaxBarHistorySize:           500,
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidateRejectsMissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.API.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty api_key")
	}
}

func TestValidateRejectsBadWeightSum(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.StrengthWeightPriceChange = 0.9
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for strength weights not summing to 1")
	}
}

func TestValidateRejectsNonMultipleAccumulatorWindows(t *testing.T) {
	cfg := validConfig()
	cfg.Accumulator.WebsocketBarAccumulationSeconds = 2
	cfg.Accumulator.WebsocketSecondLevelAccumulationSecs = 65
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-multiple L2 window")
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	red := RedactedConfig(&cfg)
	if red.API.APISecret != redacted {
		t.Fatalf("expected api_secret to be redacted, got %q", red.API.APISecret)
	}
	if cfg.API.APISecret == redacted {
		t.Fatal("original config must not be mutated by RedactedConfig")
	}
}
