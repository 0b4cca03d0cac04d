// Package config loads the immutable process configuration from the
// environment exactly once at startup. No other package reads os.Getenv
// directly.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dynastyq/funding-signal-pipeline/internal/errs"
)

type Config struct {
	Env          string
	BybitTestnet bool

	Universe UniverseConfig
	Scoring  ScoringConfig
	Governor GovernorConfig
	BTC      BTCConfig

	Redis    RedisConfig
	Postgres PostgresConfig
	Webhook  WebhookConfig
	Telegram TelegramConfig
}

type UniverseConfig struct {
	MinVolume24hUSDT    float64
	MinOpenInterestUSDT float64
	MinPriceUSDT        float64
	MaxPriceUSDT        float64
	BlacklistSymbols    []string
}

type ScoringConfig struct {
	MinScoreThreshold float64
}

type GovernorConfig struct {
	CooldownSeconds  int
	MaxAlertsPerHour int
}

type BTCConfig struct {
	Enabled bool
	Symbol  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d *PostgresConfig) ConnectString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

type WebhookConfig struct {
	URL string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// LoadConfig reads the environment (optionally preloaded from a .env file)
// into an immutable Config value. Returns *errs.ConfigError for the one
// field the pipeline cannot run without: the webhook URL.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:          getEnv("ENV", "local"),
		BybitTestnet: getEnvBool("BYBIT_TESTNET", true),

		Universe: UniverseConfig{
			MinVolume24hUSDT:    getEnvFloat("MIN_VOLUME_24H_USDT", 1_000_000),
			MinOpenInterestUSDT: getEnvFloat("MIN_OPEN_INTEREST_USDT", 500_000),
			MinPriceUSDT:        getEnvFloat("MIN_PRICE_USDT", 0.0001),
			MaxPriceUSDT:        getEnvFloat("MAX_PRICE_USDT", 100_000),
			BlacklistSymbols:    getEnvList("BLACKLIST_SYMBOLS", nil),
		},
		Scoring: ScoringConfig{
			MinScoreThreshold: getEnvFloat("MIN_SCORE_THRESHOLD", 75),
		},
		Governor: GovernorConfig{
			CooldownSeconds:  getEnvInt("COOLDOWN_SECONDS", 300),
			MaxAlertsPerHour: getEnvInt("MAX_ALERTS_PER_HOUR", 20),
		},
		BTC: BTCConfig{
			Enabled: getEnvBool("ENABLE_BTC_CONTEXT", true),
			Symbol:  "BTCUSDT",
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "signals"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "signals"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Webhook: WebhookConfig{
			URL: getEnv("WEBHOOK_URL", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
		},
	}

	if cfg.Webhook.URL == "" {
		return nil, errs.NewConfigError("WEBHOOK_URL")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
