package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, decodes it into a zero-value
// Config (there are no built-in defaults — see package doc), applies
// ALPACATRADER_* environment variable overrides, and returns the result. The
// returned Config has NOT been validated; callers must invoke Validate.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing) so operators can
	// inject secrets at deploy time without touching the TOML file.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ALPACATRADER_* environment variables and
// overwrites the corresponding Config fields when set.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.API.APIKey, "ALPACATRADER_API_KEY")
	setStr(&cfg.API.APISecret, "ALPACATRADER_API_SECRET")
	setStr(&cfg.API.BaseURL, "ALPACATRADER_BASE_URL")
	setStr(&cfg.API.WebsocketURL, "ALPACATRADER_WEBSOCKET_URL")
	setStr(&cfg.API.PolygonAPIKey, "ALPACATRADER_POLYGON_API_KEY")
	setStr(&cfg.API.PolygonBaseURL, "ALPACATRADER_POLYGON_BASE_URL")
	setStr(&cfg.API.PolygonWebsocketURL, "ALPACATRADER_POLYGON_WEBSOCKET_URL")
	setInt(&cfg.API.RetryCount, "ALPACATRADER_RETRY_COUNT")
	setInt(&cfg.API.TimeoutSeconds, "ALPACATRADER_TIMEOUT_SECONDS")
	setBool(&cfg.API.EnableSSLVerification, "ALPACATRADER_ENABLE_SSL_VERIFICATION")
	setInt(&cfg.API.RateLimitDelayMs, "ALPACATRADER_RATE_LIMIT_DELAY_MS")

	setStr(&cfg.Symbol, "ALPACATRADER_SYMBOL")
	setStr(&cfg.TradingMode, "ALPACATRADER_TRADING_MODE")
	setStr(&cfg.LogLevel, "ALPACATRADER_LOG_LEVEL")
	setStr(&cfg.LogFile, "ALPACATRADER_LOG_FILE")
	setStr(&cfg.TradeLogCSV, "ALPACATRADER_TRADE_LOG_CSV")

	setFloat64(&cfg.Strategy.RiskPerTrade, "ALPACATRADER_RISK_PER_TRADE")
	setFloat64(&cfg.Strategy.MaxDailyLoss, "ALPACATRADER_MAX_DAILY_LOSS")
	setFloat64(&cfg.Strategy.MaxExposurePct, "ALPACATRADER_MAX_EXPOSURE_PCT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
