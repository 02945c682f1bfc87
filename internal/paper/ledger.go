// Package paper implements the simulated trading ledger used to validate
// signal quality: positions auto-entered on high-score recommendations, held
// for a fixed duration, then closed against the market price at expiry.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/whaletrack/engine/internal/domain"
)

// Config holds the ledger parameters.
type Config struct {
	AutoEnter          bool
	AutoEnterThreshold int // minimum whale score to open a position
	Stake              float64
	HoldDuration       time.Duration
}

// Ledger manages paper-trade positions. All mutation happens serially inside
// a poll tick; the ledger itself is stateless between calls, with the trade
// store as the single source of truth.
type Ledger struct {
	store  domain.PaperTradeStore
	prices domain.PriceCache // optional fallback for exit prices; may be nil
	cfg    Config
	logger *slog.Logger
}

// NewLedger creates a Ledger over the given trade store. prices may be nil;
// when set it supplies exit prices for markets absent from the current tick.
func NewLedger(store domain.PaperTradeStore, prices domain.PriceCache, cfg Config, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		prices: prices,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "paper")),
	}
}

// MaybeOpen opens a position for the recommendation when its score meets the
// auto-enter threshold and the market has no open trade yet. It returns the
// opened trade, or nil when no entry was made.
func (l *Ledger) MaybeOpen(ctx context.Context, rec domain.Recommendation, now time.Time) (*domain.PaperTrade, error) {
	if !l.cfg.AutoEnter || rec.WhaleScore < l.cfg.AutoEnterThreshold {
		return nil, nil
	}

	open, err := l.store.HasOpen(ctx, rec.MarketID)
	if err != nil {
		return nil, fmt.Errorf("paper: check open trade for %s: %w", rec.MarketID, err)
	}
	if open {
		return nil, nil
	}

	trade := domain.PaperTrade{
		ID:               uuid.NewString(),
		RecommendationID: rec.ID,
		MarketID:         rec.MarketID,
		Question:         rec.Question,
		Direction:        rec.Direction,
		EntryScore:       rec.WhaleScore,
		EntryPrice:       rec.Price,
		EntryTime:        now,
		Stake:            l.cfg.Stake,
		Status:           domain.TradeStatusOpen,
	}

	if err := l.store.Open(ctx, trade); err != nil {
		// A concurrent open for the same market is not a failure; the
		// one-open-trade-per-market invariant simply held.
		if errors.Is(err, domain.ErrTradeAlreadyOpen) {
			return nil, nil
		}
		return nil, fmt.Errorf("paper: open trade for %s: %w", rec.MarketID, err)
	}

	l.logger.InfoContext(ctx, "paper trade opened",
		slog.String("trade_id", trade.ID),
		slog.String("market_id", trade.MarketID),
		slog.String("direction", string(trade.Direction)),
		slog.Float64("entry_price", trade.EntryPrice),
		slog.Int("score", trade.EntryScore),
	)
	return &trade, nil
}

// CloseExpired closes every open trade whose hold duration has elapsed,
// settling at the market's current price. Markets absent from the tick's
// prices, typically because they slipped under the volume filter, fall back
// to the price cache. Trades with no price from either source stay open and
// are retried next tick. It returns the trades closed in this pass.
func (l *Ledger) CloseExpired(ctx context.Context, prices map[string]float64, now time.Time) ([]domain.PaperTrade, error) {
	open, err := l.store.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("paper: list open trades: %w", err)
	}

	var closed []domain.PaperTrade
	for _, t := range open {
		if !t.Expired(now, l.cfg.HoldDuration) {
			continue
		}

		exitPrice, ok := prices[t.MarketID]
		if !ok {
			exitPrice, ok = l.cachedPrice(ctx, t.MarketID)
		}
		if !ok {
			l.logger.WarnContext(ctx, "no current price for expired trade, leaving open",
				slog.String("trade_id", t.ID),
				slog.String("market_id", t.MarketID),
			)
			continue
		}

		pnl := t.SettlePnL(exitPrice)
		if err := l.store.Close(ctx, t.ID, exitPrice, now, pnl); err != nil {
			if errors.Is(err, domain.ErrTradeAlreadyClosed) {
				continue
			}
			return closed, fmt.Errorf("paper: close trade %s: %w", t.ID, err)
		}

		t.Status = domain.TradeStatusClosed
		t.ExitPrice = &exitPrice
		t.ExitTime = &now
		t.PnL = &pnl
		closed = append(closed, t)

		l.logger.InfoContext(ctx, "paper trade closed",
			slog.String("trade_id", t.ID),
			slog.String("market_id", t.MarketID),
			slog.Float64("exit_price", exitPrice),
			slog.Float64("pnl", pnl),
		)
	}
	return closed, nil
}

func (l *Ledger) cachedPrice(ctx context.Context, marketID string) (float64, bool) {
	if l.prices == nil {
		return 0, false
	}
	price, err := l.prices.GetPrice(ctx, marketID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.WarnContext(ctx, "price cache lookup failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		return 0, false
	}
	return price, true
}

// OpenPositions returns all currently open trades.
func (l *Ledger) OpenPositions(ctx context.Context) ([]domain.PaperTrade, error) {
	return l.store.ListOpen(ctx)
}

// History returns closed trades, newest first.
func (l *Ledger) History(ctx context.Context, limit int) ([]domain.PaperTrade, error) {
	return l.store.ListClosed(ctx, domain.ListOpts{Limit: limit})
}

// Stats recomputes aggregate performance from the closed trades of the last
// lookback window. Nothing is maintained incrementally, so the numbers can
// never drift from the ledger.
func (l *Ledger) Stats(ctx context.Context, lookback time.Duration, now time.Time) (domain.TradeStats, error) {
	since := now.Add(-lookback)
	trades, err := l.store.ListClosed(ctx, domain.ListOpts{Since: &since})
	if err != nil {
		return domain.TradeStats{}, fmt.Errorf("paper: list closed trades: %w", err)
	}
	return ComputeStats(trades), nil
}
