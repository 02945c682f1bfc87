// Package poller drives the poll tick: fetch market data, append a snapshot,
// detect whale signals, publish ranked recommendations and settle the paper
// ledger. One tick runs to completion before the next fires, so a slow tick
// delays rather than overlaps.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/whaletrack/engine/internal/detect"
	"github.com/whaletrack/engine/internal/domain"
	"github.com/whaletrack/engine/internal/notify"
	"github.com/whaletrack/engine/internal/paper"
	"github.com/whaletrack/engine/internal/platform/polymarket"
)

// Bus channels published on every tick.
const (
	ChannelRecommendations = "recommendations"
	ChannelSignals         = "signals"
	ChannelTrades          = "trades"
)

// MarketFetcher retrieves active markets from the Gamma API.
type MarketFetcher interface {
	GetActiveMarkets(ctx context.Context, limit int, minVolume float64) ([]polymarket.APIMarket, error)
}

// BookFetcher retrieves order books and recent fills from the CLOB API.
type BookFetcher interface {
	GetOrderBook(ctx context.Context, tokenID string) (polymarket.BookDepth, error)
	GetRecentTrades(ctx context.Context, marketID string, limit int) ([]domain.MarketTrade, error)
}

// Config holds the per-tick parameters.
type Config struct {
	Interval            time.Duration
	MarketLimit         int
	MinMarketVolume     float64
	EnrichWorkers       int
	VelocityWindowTicks int
	// VolumeSpikeWindow is the detector's spike-baseline span; history
	// fetches are sized to cover it.
	VolumeSpikeWindow   time.Duration
	MinWhaleScore       int
	HighConfidenceScore int
	MaxRecommendations  int
}

// historyLimit returns how many snapshot points each market's analysis
// needs: enough for the velocity window or the spike baseline, whichever
// reaches further back, plus the current point.
func (c Config) historyLimit() int {
	ticks := c.VelocityWindowTicks
	if c.Interval > 0 && c.VolumeSpikeWindow > 0 {
		if spikeTicks := int(c.VolumeSpikeWindow / c.Interval); spikeTicks > ticks {
			ticks = spikeTicks
		}
	}
	return ticks + 1
}

// Poller runs the tick pipeline against the injected stores and caches.
type Poller struct {
	gamma    MarketFetcher
	clob     BookFetcher
	markets  domain.MarketStore
	snaps    domain.SnapshotStore
	signals  domain.SignalStore
	recs     domain.RecommendationStore
	recCache domain.RecommendationCache
	velCache domain.VelocityCache
	prices   domain.PriceCache
	bus      domain.SignalBus
	detector *detect.Detector
	weights  detect.Weights
	ledger   *paper.Ledger // nil when paper trading is disabled
	notifier *notify.Notifier
	cfg      Config
	logger   *slog.Logger

	// alerted tracks which markets were in the high-confidence set last
	// tick, so an alert fires once per entry rather than every tick.
	alerted map[string]bool
}

// New creates a Poller. ledger may be nil to disable paper trading.
func New(
	gamma MarketFetcher,
	clob BookFetcher,
	markets domain.MarketStore,
	snaps domain.SnapshotStore,
	signals domain.SignalStore,
	recs domain.RecommendationStore,
	recCache domain.RecommendationCache,
	velCache domain.VelocityCache,
	prices domain.PriceCache,
	bus domain.SignalBus,
	detector *detect.Detector,
	weights detect.Weights,
	ledger *paper.Ledger,
	notifier *notify.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		gamma:    gamma,
		clob:     clob,
		markets:  markets,
		snaps:    snaps,
		signals:  signals,
		recs:     recs,
		recCache: recCache,
		velCache: velCache,
		prices:   prices,
		bus:      bus,
		detector: detector,
		weights:  weights,
		ledger:   ledger,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "poller")),
		alerted:  make(map[string]bool),
	}
}

// RunLoop runs ticks on the configured interval until the context is
// cancelled. The first tick fires immediately.
func (p *Poller) RunLoop(ctx context.Context) error {
	if err := p.Tick(ctx, time.Now().UTC()); err != nil {
		p.logger.ErrorContext(ctx, "tick failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "poller loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx, time.Now().UTC()); err != nil {
				p.logger.ErrorContext(ctx, "tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick executes one full poll cycle at the given timestamp.
func (p *Poller) Tick(ctx context.Context, now time.Time) error {
	start := time.Now()

	apiMarkets, err := p.gamma.GetActiveMarkets(ctx, p.cfg.MarketLimit, p.cfg.MinMarketVolume)
	if err != nil {
		return fmt.Errorf("poller: fetch markets: %w", err)
	}
	if len(apiMarkets) == 0 {
		p.logger.WarnContext(ctx, "no markets passed the volume filter")
		return nil
	}

	metadata := make([]domain.Market, len(apiMarkets))
	points := make([]domain.MarketPoint, len(apiMarkets))
	for i := range apiMarkets {
		metadata[i] = apiMarkets[i].ToDomainMarket()
		points[i] = apiMarkets[i].ToDomainPoint(now)
	}

	if err := p.markets.UpsertBatch(ctx, metadata); err != nil {
		return fmt.Errorf("poller: upsert markets: %w", err)
	}

	tradesByMarket := p.enrich(ctx, metadata, points)

	snap := domain.Snapshot{Timestamp: now, Markets: points}
	if err := p.snaps.Append(ctx, snap); err != nil {
		return fmt.Errorf("poller: append snapshot: %w", err)
	}

	fired, candidates, movers := p.analyze(ctx, points, tradesByMarket, now)

	if err := p.signals.InsertBatch(ctx, fired); err != nil {
		return fmt.Errorf("poller: store signals: %w", err)
	}

	ranked := detect.Rank(candidates, p.cfg.MinWhaleScore, p.cfg.MaxRecommendations)
	if err := p.recs.ReplaceActive(ctx, ranked); err != nil {
		return fmt.Errorf("poller: replace recommendations: %w", err)
	}

	p.publish(ctx, ranked, fired, movers, points)
	p.alert(ctx, ranked)
	p.settleLedger(ctx, ranked, points, now)

	p.logger.InfoContext(ctx, "tick complete",
		slog.Int("markets", len(points)),
		slog.Int("signals", len(fired)),
		slog.Int("recommendations", len(ranked)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// enrich fills order-book depth into the points and collects recent trades,
// bounded by the configured worker count. Enrichment failures are logged and
// leave the point without depth; the depth-dependent signals simply will not
// fire for that market.
func (p *Poller) enrich(ctx context.Context, metadata []domain.Market, points []domain.MarketPoint) map[string][]domain.MarketTrade {
	tradesByMarket := make(map[string][]domain.MarketTrade, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EnrichWorkers)

	results := make([][]domain.MarketTrade, len(points))
	for i := range points {
		g.Go(func() error {
			tokenID := metadata[i].TokenIDs[0]
			if tokenID != "" {
				depth, err := p.clob.GetOrderBook(gctx, tokenID)
				if err != nil {
					p.logger.WarnContext(gctx, "order book fetch failed",
						slog.String("market_id", points[i].ID),
						slog.String("error", err.Error()),
					)
				} else {
					points[i].BuyDepth = depth.BuyDepth
					points[i].SellDepth = depth.SellDepth
				}
			}

			trades, err := p.clob.GetRecentTrades(gctx, points[i].ID, 100)
			if err != nil {
				p.logger.WarnContext(gctx, "trade feed fetch failed",
					slog.String("market_id", points[i].ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = trades
			return nil
		})
	}
	_ = g.Wait() // workers only log, never fail the tick

	for i := range points {
		if len(results[i]) > 0 {
			tradesByMarket[points[i].ID] = results[i]
		}
	}
	return tradesByMarket
}

// analyze runs velocity and signal detection per market, returning all fired
// signals, the scored recommendation candidates and the mover ranking.
func (p *Poller) analyze(ctx context.Context, points []domain.MarketPoint, tradesByMarket map[string][]domain.MarketTrade, now time.Time) ([]domain.Signal, []domain.Recommendation, []domain.VelocityEntry) {
	var (
		fired      []domain.Signal
		candidates []domain.Recommendation
		movers     []domain.VelocityEntry
	)

	historyLimit := p.cfg.historyLimit()

	for i := range points {
		pt := points[i]

		history, err := p.snaps.History(ctx, pt.ID, historyLimit)
		if err != nil {
			p.logger.WarnContext(ctx, "history fetch failed",
				slog.String("market_id", pt.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(history) == 0 {
			continue
		}

		movers = append(movers, detect.MarketVelocity(history, p.cfg.VelocityWindowTicks))

		sigs := p.detector.Detect(history, tradesByMarket[pt.ID], now)
		if len(sigs) == 0 {
			continue
		}
		fired = append(fired, sigs...)

		result := detect.Score(sigs, p.weights)
		candidates = append(candidates, domain.Recommendation{
			ID:           uuid.NewString(),
			MarketID:     pt.ID,
			Question:     pt.Question,
			Category:     pt.Category,
			Slug:         pt.Slug,
			Direction:    detect.DirectionFor(history),
			WhaleScore:   result.WhaleScore,
			Confidence:   result.Confidence,
			SignalsFired: result.SignalsFired,
			Price:        pt.YesPrice,
			Volume:       pt.Volume,
			Liquidity:    pt.Liquidity,
			CreatedAt:    now,
		})
	}

	return fired, candidates, detect.RankVelocity(movers)
}

// publish pushes the tick's output to the caches and the fan-out bus. Cache
// and bus failures are logged but never fail the tick; the database commit
// already happened.
func (p *Poller) publish(ctx context.Context, ranked []domain.Recommendation, fired []domain.Signal, movers []domain.VelocityEntry, points []domain.MarketPoint) {
	if err := p.recCache.SetAll(ctx, ranked); err != nil {
		p.logger.WarnContext(ctx, "recommendation cache update failed", slog.String("error", err.Error()))
	}
	if err := p.velCache.SetAll(ctx, movers); err != nil {
		p.logger.WarnContext(ctx, "velocity cache update failed", slog.String("error", err.Error()))
	}

	prices := make(map[string]float64, len(points))
	for _, pt := range points {
		prices[pt.ID] = pt.YesPrice
	}
	if err := p.prices.SetPrices(ctx, prices); err != nil {
		p.logger.WarnContext(ctx, "price cache update failed", slog.String("error", err.Error()))
	}

	if err := p.bus.Publish(ctx, ChannelRecommendations, ranked); err != nil {
		p.logger.WarnContext(ctx, "publish recommendations failed", slog.String("error", err.Error()))
	}
	if len(fired) > 0 {
		if err := p.bus.Publish(ctx, ChannelSignals, fired); err != nil {
			p.logger.WarnContext(ctx, "publish signals failed", slog.String("error", err.Error()))
		}
	}
}

// alert notifies on markets newly entering the high-confidence set.
func (p *Poller) alert(ctx context.Context, ranked []domain.Recommendation) {
	current := make(map[string]bool, len(ranked))
	for _, rec := range ranked {
		if rec.WhaleScore < p.cfg.HighConfidenceScore {
			continue
		}
		current[rec.MarketID] = true
		if p.alerted[rec.MarketID] {
			continue
		}
		title, body := notify.FormatWhaleAlert(rec)
		if err := p.notifier.Notify(ctx, notify.EventWhaleAlert, title, body); err != nil {
			p.logger.WarnContext(ctx, "whale alert failed", slog.String("error", err.Error()))
		}
	}
	p.alerted = current
}

// settleLedger opens positions for qualifying recommendations and closes
// expired ones at current prices.
func (p *Poller) settleLedger(ctx context.Context, ranked []domain.Recommendation, points []domain.MarketPoint, now time.Time) {
	if p.ledger == nil {
		return
	}

	for _, rec := range ranked {
		trade, err := p.ledger.MaybeOpen(ctx, rec, now)
		if err != nil {
			p.logger.WarnContext(ctx, "paper trade open failed",
				slog.String("market_id", rec.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if trade == nil {
			continue
		}
		title, body := notify.FormatTradeOpened(*trade)
		if err := p.notifier.Notify(ctx, notify.EventTradeOpened, title, body); err != nil {
			p.logger.WarnContext(ctx, "trade-opened alert failed", slog.String("error", err.Error()))
		}
		if err := p.bus.Publish(ctx, ChannelTrades, trade); err != nil {
			p.logger.WarnContext(ctx, "publish trade failed", slog.String("error", err.Error()))
		}
	}

	prices := make(map[string]float64, len(points))
	for _, pt := range points {
		prices[pt.ID] = pt.YesPrice
	}

	closed, err := p.ledger.CloseExpired(ctx, prices, now)
	if err != nil {
		p.logger.WarnContext(ctx, "paper trade close failed", slog.String("error", err.Error()))
	}
	for _, trade := range closed {
		title, body := notify.FormatTradeClosed(trade)
		if err := p.notifier.Notify(ctx, notify.EventTradeClosed, title, body); err != nil {
			p.logger.WarnContext(ctx, "trade-closed alert failed", slog.String("error", err.Error()))
		}
		if err := p.bus.Publish(ctx, ChannelTrades, trade); err != nil {
			p.logger.WarnContext(ctx, "publish trade failed", slog.String("error", err.Error()))
		}
	}
}
