package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/qxcapital/drbot/internal/engine"
	"github.com/qxcapital/drbot/internal/risk"
)

// Config holds all configuration for the bot, loaded from the environment.
type Config struct {
	// Broker API
	BrokerBaseURL string
	BrokerToken   string
	AccountName   string
	ContractName  string
	BarMinutes    int
	BarLimit      int
	LiveTrading   bool // false routes orders to the paper broker

	// Engine
	Engine engine.Config

	// Risk
	Risk risk.Config

	// Optional quote feed
	FeedURL    string
	FeedSymbol string

	// Journal: sqlite file path or postgres:// URL, empty disables
	DatabaseDSN string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Metrics endpoint port, 0 disables
	MetricsPort int

	Debug bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	eng := engine.DefaultConfig()
	eng.PollInterval = getEnvDuration("POLL_INTERVAL", eng.PollInterval)
	eng.Freshness = getEnvDuration("SIGNAL_FRESHNESS", eng.Freshness)
	eng.TimeLimit = getEnvDuration("POSITION_TIME_LIMIT", eng.TimeLimit)
	eng.QuoteMaxAge = getEnvDuration("QUOTE_MAX_AGE", eng.QuoteMaxAge)
	eng.TrailPoints = getEnvFloat("TRAIL_POINTS", eng.TrailPoints)
	eng.PartialRatio = getEnvFloat("PARTIAL_RATIO", eng.PartialRatio)
	eng.DRTolerance = getEnvFloat("RANGE_TOLERANCE", eng.DRTolerance)
	eng.MinBars = getEnvInt("MIN_BARS", eng.MinBars)
	eng.RollingBars = getEnvInt("ROLLING_BARS", eng.RollingBars)

	rk := risk.DefaultConfig()
	rk.VirtualBalance = getEnvFloat("VIRTUAL_BALANCE", rk.VirtualBalance)
	rk.MaxDailyLoss = getEnvFloat("MAX_DAILY_LOSS", rk.MaxDailyLoss)
	rk.MaxTradesPerSession = getEnvInt("MAX_TRADES_PER_SESSION", rk.MaxTradesPerSession)
	rk.Tiers.Baseline = getEnvFloat("RISK_BASELINE", rk.Tiers.Baseline)
	rk.Tiers.Raised = getEnvFloat("RISK_RAISED", rk.Tiers.Raised)
	rk.Tiers.Cooldown = getEnvFloat("RISK_COOLDOWN", rk.Tiers.Cooldown)
	rk.CappedSizing = getEnvBool("CAPPED_SIZING", false)
	rk.MaxLossPerTrade = getEnvFloat("MAX_LOSS_PER_TRADE", rk.MaxLossPerTrade)
	rk.MaxContracts = getEnvInt("MAX_CONTRACTS", rk.MaxContracts)
	rk.ProfitCapPerTrade = getEnvFloat("PROFIT_CAP_PER_TRADE", 0)

	cfg := &Config{
		BrokerBaseURL: getEnv("BROKER_BASE_URL", "https://api.topstepx.com"),
		BrokerToken:   os.Getenv("BROKER_TOKEN"),
		AccountName:   os.Getenv("BROKER_ACCOUNT"),
		ContractName:  getEnv("CONTRACT_NAME", "MES"),
		BarMinutes:    getEnvInt("BAR_MINUTES", 5),
		BarLimit:      getEnvInt("BAR_LIMIT", 350),
		LiveTrading:   getEnvBool("LIVE_TRADING", false),

		Engine: eng,
		Risk:   rk,

		FeedURL:    os.Getenv("FEED_URL"),
		FeedSymbol: os.Getenv("FEED_SYMBOL"),

		DatabaseDSN: getEnv("DATABASE_DSN", "data/drbot.db"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		MetricsPort: getEnvInt("METRICS_PORT", 0),
		Debug:       getEnvBool("DEBUG", false),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.LiveTrading {
		if cfg.BrokerToken == "" {
			return nil, fmt.Errorf("BROKER_TOKEN is required for live trading")
		}
		if cfg.AccountName == "" {
			return nil, fmt.Errorf("BROKER_ACCOUNT is required for live trading")
		}
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
