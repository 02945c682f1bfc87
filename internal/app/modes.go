package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whaletrack/engine/internal/detect"
	"github.com/whaletrack/engine/internal/domain"
	"github.com/whaletrack/engine/internal/notify"
	"github.com/whaletrack/engine/internal/paper"
	"github.com/whaletrack/engine/internal/platform/polymarket"
	"github.com/whaletrack/engine/internal/poller"
	"github.com/whaletrack/engine/internal/server"
	"github.com/whaletrack/engine/internal/server/handler"
	"github.com/whaletrack/engine/internal/server/ws"
)

// PollMode runs the poll tick loop and the retention sweeper without the
// HTTP API.
func (a *App) PollMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting poll mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPoller(ctx, g, deps)
	a.startRetention(ctx, g, deps)
	a.startPerformanceReport(ctx, g, deps)
	return g.Wait()
}

// ServerMode runs the HTTP and WebSocket API over already-persisted state
// without polling upstream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the poller, the retention sweeper and the API server in one
// process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPoller(ctx, g, deps)
	a.startRetention(ctx, g, deps)
	a.startPerformanceReport(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	} else {
		a.logger.InfoContext(ctx, "http server disabled, polling only")
	}
	return g.Wait()
}

// startPoller builds the upstream clients, detector and poller and starts
// the tick loop on the errgroup.
func (a *App) startPoller(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)
	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost)

	detector := detect.NewDetector(detect.Config{
		VolumeSpikeMultiplier:      a.cfg.Signals.VolumeSpikeMultiplier,
		VolumeSpikeWindow:          a.cfg.Signals.VolumeSpikeWindow.Duration,
		SmartMoneyMinVolume:        a.cfg.Signals.SmartMoneyMinVolume,
		SmartMoneyMaxPriceChange:   a.cfg.Signals.SmartMoneyMaxPriceChange,
		BookImbalanceThreshold:     a.cfg.Signals.BookImbalanceThreshold,
		LiquidityDrainThresholdPct: a.cfg.Signals.LiquidityDrainThresholdPct,
		LargeOrderThreshold:        a.cfg.Signals.LargeOrderThreshold,
		LargeOrderLookback:         a.cfg.Signals.LargeOrderLookback.Duration,
	})

	weights := detect.Weights{
		domain.SignalVolumeSpike:    a.cfg.Score.WeightVolumeSpike,
		domain.SignalSmartMoney:     a.cfg.Score.WeightSmartMoney,
		domain.SignalBookImbalance:  a.cfg.Score.WeightBookImbalance,
		domain.SignalLiquidityDrain: a.cfg.Score.WeightLiquidityDrain,
		domain.SignalLargeOrder:     a.cfg.Score.WeightLargeOrder,
	}

	p := poller.New(
		gamma,
		clob,
		deps.MarketStore,
		deps.SnapshotStore,
		deps.SignalStore,
		deps.RecommendationStore,
		deps.RecommendationCache,
		deps.VelocityCache,
		deps.PriceCache,
		deps.SignalBus,
		detector,
		weights,
		deps.Ledger,
		deps.Notifier,
		poller.Config{
			Interval:            a.cfg.Poller.Interval.Duration,
			MarketLimit:         a.cfg.Poller.MarketLimit,
			MinMarketVolume:     a.cfg.Poller.MinMarketVolume,
			EnrichWorkers:       a.cfg.Poller.EnrichWorkers,
			VelocityWindowTicks: a.cfg.Poller.VelocityWindowTicks,
			VolumeSpikeWindow:   a.cfg.Signals.VolumeSpikeWindow.Duration,
			MinWhaleScore:       a.cfg.Score.MinWhaleScore,
			HighConfidenceScore: a.cfg.Score.HighConfidenceScore,
			MaxRecommendations:  a.cfg.Score.MaxRecommendations,
		},
		a.logger,
	)

	g.Go(func() error {
		return p.RunLoop(ctx)
	})
}

// startRetention starts the retention sweep loop on the errgroup. The S3
// archiver is optional; without it evicted snapshots are simply deleted.
func (a *App) startRetention(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var archiver poller.SnapshotArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}

	r := poller.NewRetention(
		deps.SnapshotStore,
		deps.SignalStore,
		deps.RecommendationStore,
		archiver,
		poller.RetentionConfig{
			MaxAge:       time.Duration(a.cfg.Retention.Days) * 24 * time.Hour,
			MaxSnapshots: a.cfg.Retention.MaxSnapshots,
			Interval:     a.cfg.Retention.Interval.Duration,
		},
		a.logger,
	)

	g.Go(func() error {
		return r.RunLoop(ctx)
	})
}

// startPerformanceReport sends a daily ledger summary through the notifier.
// Skipped when paper trading is disabled.
func (a *App) startPerformanceReport(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Ledger == nil {
		return
	}

	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				now := time.Now().UTC()
				stats, err := deps.Ledger.Stats(ctx, 30*24*time.Hour, now)
				if err != nil {
					a.logger.WarnContext(ctx, "performance stats failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if stats.TotalTrades == 0 {
					continue
				}
				title, body := notify.FormatPerformance(stats)
				if err := deps.Notifier.Notify(ctx, notify.EventPerformance, title, body); err != nil {
					a.logger.WarnContext(ctx, "performance notification failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})
}

// startHTTPServer builds the handlers and WebSocket hub, starts the server
// and registers a goroutine that shuts it down when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:          handler.NewHealthHandler(a.logger),
		Recommendations: handler.NewRecommendationHandler(deps.RecommendationCache, deps.RecommendationStore, a.logger),
		Signals:         handler.NewSignalHandler(deps.SignalStore, a.logger),
		Markets:         handler.NewMarketHandler(deps.MarketStore, a.logger),
		Movers:          handler.NewMoversHandler(deps.VelocityCache, a.logger),
		Paper:           handler.NewPaperHandler(a.paperService(deps), a.logger),
	}
	if deps.ArchiveReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.ArchiveReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// paperService returns the handler-facing ledger. When paper trading is
// disabled a read-only ledger over the trade store still serves history.
func (a *App) paperService(deps *Dependencies) handler.PaperService {
	if deps.Ledger != nil {
		return deps.Ledger
	}
	a.logger.Warn("paper trading disabled, serving ledger history read-only",
		slog.String("mode", a.cfg.Mode),
	)
	return paper.NewLedger(deps.PaperTradeStore, deps.PriceCache, paper.Config{}, a.logger)
}
