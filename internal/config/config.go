// Package config defines the top-level configuration for the whale tracker
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WHALETRACK_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Poller     PollerConfig     `toml:"poller"`
	Signals    SignalsConfig    `toml:"signals"`
	Score      ScoreConfig      `toml:"score"`
	Paper      PaperConfig      `toml:"paper"`
	Retention  RetentionConfig  `toml:"retention"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the upstream API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
}

// PollerConfig holds the polling cadence and market filter parameters.
type PollerConfig struct {
	Interval        duration `toml:"interval"`
	MarketLimit     int      `toml:"market_limit"`
	MinMarketVolume float64  `toml:"min_market_volume"`
	// EnrichWorkers bounds the concurrent order-book/trade enrichment
	// requests issued within a single tick.
	EnrichWorkers int `toml:"enrich_workers"`
	// VelocityWindowTicks is how many snapshots back the velocity
	// comparison reaches (12 ticks at 5m ~ 1 hour).
	VelocityWindowTicks int `toml:"velocity_window_ticks"`
}

// SignalsConfig holds the five signal-detection thresholds.
type SignalsConfig struct {
	VolumeSpikeMultiplier      float64  `toml:"volume_spike_multiplier"`
	VolumeSpikeWindow          duration `toml:"volume_spike_window"`
	SmartMoneyMinVolume        float64  `toml:"smart_money_min_volume"`
	SmartMoneyMaxPriceChange   float64  `toml:"smart_money_max_price_change_pct"`
	BookImbalanceThreshold     float64  `toml:"book_imbalance_threshold"`
	LiquidityDrainThresholdPct float64  `toml:"liquidity_drain_threshold_pct"`
	LargeOrderThreshold        float64  `toml:"large_order_threshold"`
	LargeOrderLookback         duration `toml:"large_order_lookback"`
}

// ScoreConfig holds the whale-score weights and recommendation cutoffs.
// The five weights sum to 100 at full intensity.
type ScoreConfig struct {
	WeightVolumeSpike    int `toml:"weight_volume_spike"`
	WeightSmartMoney     int `toml:"weight_smart_money"`
	WeightBookImbalance  int `toml:"weight_book_imbalance"`
	WeightLiquidityDrain int `toml:"weight_liquidity_drain"`
	WeightLargeOrder     int `toml:"weight_large_order"`
	MinWhaleScore        int `toml:"min_whale_score"`
	HighConfidenceScore  int `toml:"high_confidence_score"`
	MaxRecommendations   int `toml:"max_recommendations"`
}

// PaperConfig holds paper-trading ledger parameters.
type PaperConfig struct {
	Enabled      bool     `toml:"enabled"`
	AutoEnter    bool     `toml:"auto_enter"`
	Stake        float64  `toml:"stake"`
	HoldDuration duration `toml:"hold_duration"`
}

// RetentionConfig bounds the snapshot time series.
type RetentionConfig struct {
	Days         int      `toml:"days"`
	MaxSnapshots int      `toml:"max_snapshots"`
	Interval     duration `toml:"interval"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds optional object-storage parameters for snapshot archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "24h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "24h".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
		},
		Poller: PollerConfig{
			Interval:            duration{5 * time.Minute},
			MarketLimit:         100,
			MinMarketVolume:     500_000,
			EnrichWorkers:       8,
			VelocityWindowTicks: 12,
		},
		Signals: SignalsConfig{
			VolumeSpikeMultiplier:      5.0,
			VolumeSpikeWindow:          duration{time.Hour},
			SmartMoneyMinVolume:        50_000,
			SmartMoneyMaxPriceChange:   2.0,
			BookImbalanceThreshold:     0.70,
			LiquidityDrainThresholdPct: 20.0,
			LargeOrderThreshold:        50_000,
			LargeOrderLookback:         duration{5 * time.Minute},
		},
		Score: ScoreConfig{
			WeightVolumeSpike:    30,
			WeightSmartMoney:     25,
			WeightBookImbalance:  20,
			WeightLiquidityDrain: 15,
			WeightLargeOrder:     10,
			MinWhaleScore:        50,
			HighConfidenceScore:  75,
			MaxRecommendations:   10,
		},
		Paper: PaperConfig{
			Enabled:      true,
			AutoEnter:    true,
			Stake:        100,
			HoldDuration: duration{24 * time.Hour},
		},
		Retention: RetentionConfig{
			Days:         30,
			MaxSnapshots: 1000,
			Interval:     duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "whaletrack",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "whaletrack-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"whale_alert", "trade_opened", "trade_closed", "performance"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"poll":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: poll, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}

	if c.Poller.Interval.Duration <= 0 {
		errs = append(errs, "poller: interval must be positive")
	}
	if c.Poller.MarketLimit < 1 {
		errs = append(errs, "poller: market_limit must be >= 1")
	}
	if c.Poller.MinMarketVolume < 0 {
		errs = append(errs, "poller: min_market_volume must be >= 0")
	}
	if c.Poller.EnrichWorkers < 1 {
		errs = append(errs, "poller: enrich_workers must be >= 1")
	}
	if c.Poller.VelocityWindowTicks < 1 {
		errs = append(errs, "poller: velocity_window_ticks must be >= 1")
	}

	if c.Signals.VolumeSpikeMultiplier <= 1 {
		errs = append(errs, "signals: volume_spike_multiplier must be > 1")
	}
	if c.Signals.BookImbalanceThreshold <= 0.5 || c.Signals.BookImbalanceThreshold > 1 {
		errs = append(errs, "signals: book_imbalance_threshold must be in (0.5, 1]")
	}
	if c.Signals.LiquidityDrainThresholdPct <= 0 {
		errs = append(errs, "signals: liquidity_drain_threshold_pct must be > 0")
	}

	weightSum := c.Score.WeightVolumeSpike + c.Score.WeightSmartMoney +
		c.Score.WeightBookImbalance + c.Score.WeightLiquidityDrain + c.Score.WeightLargeOrder
	if weightSum != 100 {
		errs = append(errs, fmt.Sprintf("score: weights must sum to 100, got %d", weightSum))
	}
	if c.Score.MinWhaleScore < 0 || c.Score.MinWhaleScore > 100 {
		errs = append(errs, "score: min_whale_score must be in [0,100]")
	}
	if c.Score.HighConfidenceScore < c.Score.MinWhaleScore {
		errs = append(errs, "score: high_confidence_score must be >= min_whale_score")
	}
	if c.Score.MaxRecommendations < 1 {
		errs = append(errs, "score: max_recommendations must be >= 1")
	}

	if c.Paper.Enabled {
		if c.Paper.Stake <= 0 {
			errs = append(errs, "paper: stake must be > 0")
		}
		if c.Paper.HoldDuration.Duration <= 0 {
			errs = append(errs, "paper: hold_duration must be positive")
		}
	}

	if c.Retention.Days < 1 {
		errs = append(errs, "retention: days must be >= 1")
	}
	if c.Retention.MaxSnapshots < 2 {
		errs = append(errs, "retention: max_snapshots must be >= 2")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	} else if strings.EqualFold(c.Mode, "server") {
		errs = append(errs, "server: must be enabled when mode is server")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
