package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/whaletrack/engine/internal/blob/s3"
	"github.com/whaletrack/engine/internal/cache/redis"
	"github.com/whaletrack/engine/internal/config"
	"github.com/whaletrack/engine/internal/domain"
	"github.com/whaletrack/engine/internal/notify"
	"github.com/whaletrack/engine/internal/paper"
	"github.com/whaletrack/engine/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	MarketStore         domain.MarketStore
	SnapshotStore       domain.SnapshotStore
	SignalStore         domain.SignalStore
	RecommendationStore domain.RecommendationStore
	PaperTradeStore     domain.PaperTradeStore

	// Caches
	RecommendationCache domain.RecommendationCache
	VelocityCache       domain.VelocityCache
	PriceCache          domain.PriceCache
	SignalBus           domain.SignalBus

	// Blob storage; nil unless S3 archival is enabled.
	Archiver      *s3blob.Archiver
	ArchiveReader *s3blob.Reader

	// Ledger; nil when paper trading is disabled.
	Ledger *paper.Ledger

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	deps.SignalStore = postgres.NewSignalStore(pool)
	deps.RecommendationStore = postgres.NewRecommendationStore(pool)
	deps.PaperTradeStore = postgres.NewPaperTradeStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RecommendationCache = redis.NewRecommendationCache(redisClient)
	deps.VelocityCache = redis.NewVelocityCache(redisClient)
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 snapshot archival (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		deps.ArchiveReader = s3blob.NewReader(s3Client)
	}

	// --- Paper-trading ledger ---
	if cfg.Paper.Enabled {
		deps.Ledger = paper.NewLedger(deps.PaperTradeStore, deps.PriceCache, paper.Config{
			AutoEnter:          cfg.Paper.AutoEnter,
			AutoEnterThreshold: cfg.Score.HighConfidenceScore,
			Stake:              cfg.Paper.Stake,
			HoldDuration:       cfg.Paper.HoldDuration.Duration,
		}, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
