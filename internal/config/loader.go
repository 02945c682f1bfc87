package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WHALETRACK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WHALETRACK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "WHALETRACK_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "WHALETRACK_POLYMARKET_CLOB_HOST")

	// ── Poller ──
	setDuration(&cfg.Poller.Interval, "WHALETRACK_POLLER_INTERVAL")
	setInt(&cfg.Poller.MarketLimit, "WHALETRACK_POLLER_MARKET_LIMIT")
	setFloat64(&cfg.Poller.MinMarketVolume, "WHALETRACK_POLLER_MIN_MARKET_VOLUME")
	setInt(&cfg.Poller.EnrichWorkers, "WHALETRACK_POLLER_ENRICH_WORKERS")
	setInt(&cfg.Poller.VelocityWindowTicks, "WHALETRACK_POLLER_VELOCITY_WINDOW_TICKS")

	// ── Signals ──
	setFloat64(&cfg.Signals.VolumeSpikeMultiplier, "WHALETRACK_SIGNALS_VOLUME_SPIKE_MULTIPLIER")
	setDuration(&cfg.Signals.VolumeSpikeWindow, "WHALETRACK_SIGNALS_VOLUME_SPIKE_WINDOW")
	setFloat64(&cfg.Signals.SmartMoneyMinVolume, "WHALETRACK_SIGNALS_SMART_MONEY_MIN_VOLUME")
	setFloat64(&cfg.Signals.SmartMoneyMaxPriceChange, "WHALETRACK_SIGNALS_SMART_MONEY_MAX_PRICE_CHANGE_PCT")
	setFloat64(&cfg.Signals.BookImbalanceThreshold, "WHALETRACK_SIGNALS_BOOK_IMBALANCE_THRESHOLD")
	setFloat64(&cfg.Signals.LiquidityDrainThresholdPct, "WHALETRACK_SIGNALS_LIQUIDITY_DRAIN_THRESHOLD_PCT")
	setFloat64(&cfg.Signals.LargeOrderThreshold, "WHALETRACK_SIGNALS_LARGE_ORDER_THRESHOLD")
	setDuration(&cfg.Signals.LargeOrderLookback, "WHALETRACK_SIGNALS_LARGE_ORDER_LOOKBACK")

	// ── Score ──
	setInt(&cfg.Score.MinWhaleScore, "WHALETRACK_SCORE_MIN_WHALE_SCORE")
	setInt(&cfg.Score.HighConfidenceScore, "WHALETRACK_SCORE_HIGH_CONFIDENCE_SCORE")
	setInt(&cfg.Score.MaxRecommendations, "WHALETRACK_SCORE_MAX_RECOMMENDATIONS")

	// ── Paper ──
	setBool(&cfg.Paper.Enabled, "WHALETRACK_PAPER_ENABLED")
	setBool(&cfg.Paper.AutoEnter, "WHALETRACK_PAPER_AUTO_ENTER")
	setFloat64(&cfg.Paper.Stake, "WHALETRACK_PAPER_STAKE")
	setDuration(&cfg.Paper.HoldDuration, "WHALETRACK_PAPER_HOLD_DURATION")

	// ── Retention ──
	setInt(&cfg.Retention.Days, "WHALETRACK_RETENTION_DAYS")
	setInt(&cfg.Retention.MaxSnapshots, "WHALETRACK_RETENTION_MAX_SNAPSHOTS")
	setDuration(&cfg.Retention.Interval, "WHALETRACK_RETENTION_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WHALETRACK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WHALETRACK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WHALETRACK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WHALETRACK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WHALETRACK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WHALETRACK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WHALETRACK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WHALETRACK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WHALETRACK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WHALETRACK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WHALETRACK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WHALETRACK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WHALETRACK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WHALETRACK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WHALETRACK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WHALETRACK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "WHALETRACK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "WHALETRACK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WHALETRACK_S3_REGION")
	setStr(&cfg.S3.Bucket, "WHALETRACK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WHALETRACK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WHALETRACK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WHALETRACK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WHALETRACK_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WHALETRACK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WHALETRACK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WHALETRACK_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WHALETRACK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WHALETRACK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WHALETRACK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WHALETRACK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WHALETRACK_MODE")
	setStr(&cfg.LogLevel, "WHALETRACK_LOG_LEVEL")
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
