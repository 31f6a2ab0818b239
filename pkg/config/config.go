package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradepulse/pkg/store"
)

// Trade source selected at startup for the report job.
const (
	SourceMemory   = "memory"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
)

type Config struct {
	Symbol    string
	StreamURL string
	Location  *time.Location

	EmailSender     string
	EmailPassword   string
	EmailRecipients []string
	SMTPHost        string
	SMTPPort        int

	Port int

	ReportTimes    string
	HeartbeatTick  time.Duration
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	StallThreshold time.Duration
	WatchdogTick   time.Duration

	TradeSource string
	Postgres    store.PostgresConfig
	Redis       store.RedisConfig
}

// Load reads configuration from the environment, with a .env file as an
// optional source. Missing mandatory notifier credentials fail here,
// before any run loop starts.
func Load() (*Config, error) {
	// Ignore a missing .env; plain env vars are enough.
	_ = godotenv.Load()

	cfg := &Config{
		Symbol:      getEnv("SYMBOL", "MONUSDT"),
		StreamURL:   getEnv("STREAM_URL", "wss://stream.bybit.com/v5/public/spot"),
		SMTPHost:    getEnv("SMTP_HOST", "smtp.gmail.com"),
		ReportTimes: getEnv("REPORT_TIMES", "06:00,18:00"),
		TradeSource: getEnv("TRADE_SOURCE", SourceMemory),
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Kuala_Lumpur"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.EmailSender = os.Getenv("EMAIL_SENDER")
	if cfg.EmailSender == "" {
		return nil, fmt.Errorf("EMAIL_SENDER is required")
	}
	cfg.EmailPassword = os.Getenv("EMAIL_PASSWORD")
	if cfg.EmailPassword == "" {
		return nil, fmt.Errorf("EMAIL_PASSWORD is required")
	}
	cfg.EmailRecipients = splitList(os.Getenv("EMAIL_RECIPIENTS"))
	if len(cfg.EmailRecipients) == 0 {
		return nil, fmt.Errorf("EMAIL_RECIPIENTS is required")
	}

	if cfg.SMTPPort, err = getInt("SMTP_PORT", 465); err != nil {
		return nil, err
	}
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}

	if cfg.HeartbeatTick, err = getDuration("HEARTBEAT_TICK", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay, err = getDuration("RECONNECT_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PingInterval, err = getDuration("PING_INTERVAL", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.StallThreshold, err = getDuration("STALL_THRESHOLD", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WatchdogTick, err = getDuration("WATCHDOG_TICK", time.Minute); err != nil {
		return nil, err
	}

	switch cfg.TradeSource {
	case SourceMemory:
	case SourcePostgres:
		cfg.Postgres = store.PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "tradepulse"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		}
		if cfg.Postgres.Port, err = getInt("DB_PORT", 5432); err != nil {
			return nil, err
		}
	case SourceRedis:
		cfg.Redis = store.RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		}
		if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid TRADE_SOURCE %q: want %s, %s or %s",
			cfg.TradeSource, SourceMemory, SourcePostgres, SourceRedis)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
