package detect

import (
	"math"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// Config holds the signal-detection thresholds. Zero values are not
// defaulted here; callers should populate from the application config.
type Config struct {
	VolumeSpikeMultiplier float64
	// VolumeSpikeWindow bounds how far back the spike baseline reaches.
	// Zero means the whole supplied history.
	VolumeSpikeWindow          time.Duration
	SmartMoneyMinVolume        float64
	SmartMoneyMaxPriceChange   float64 // percent
	BookImbalanceThreshold     float64 // buy ratio in (0.5, 1]
	LiquidityDrainThresholdPct float64
	LargeOrderThreshold        float64 // USD
	LargeOrderLookback         time.Duration
}

// Detector evaluates the five whale signals for a market. Each evaluation is
// independent: absence of the data a signal needs (short history, no order
// book, no trade feed) means that signal does not fire, never an error.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector with the given thresholds.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs all five signals against a market's newest-first snapshot
// history plus the optional recent trade feed, returning only the signals
// that fired.
func (d *Detector) Detect(history []domain.MarketPoint, trades []domain.MarketTrade, now time.Time) []domain.Signal {
	if len(history) == 0 {
		return nil
	}

	var fired []domain.Signal
	appendIf := func(sig *domain.Signal) {
		if sig != nil {
			sig.DetectedAt = now
			fired = append(fired, *sig)
		}
	}

	appendIf(d.volumeSpike(history))
	appendIf(d.smartMoney(history))
	appendIf(d.bookImbalance(history[0]))
	appendIf(d.liquidityDrain(history))
	appendIf(d.largeOrder(history[0], trades, now))

	return fired
}

// volumeSpike fires when the current volume is at least the configured
// multiple of the trailing average over the baseline window.
func (d *Detector) volumeSpike(history []domain.MarketPoint) *domain.Signal {
	if len(history) < 2 {
		return nil
	}

	cur := history[0]
	baseline := history[1:]
	if d.cfg.VolumeSpikeWindow > 0 {
		// History is newest-first, so the first point older than the
		// cutoff ends the baseline.
		cutoff := cur.FetchedAt.Add(-d.cfg.VolumeSpikeWindow)
		n := 0
		for _, p := range baseline {
			if p.FetchedAt.Before(cutoff) {
				break
			}
			n++
		}
		baseline = baseline[:n]
	}
	if len(baseline) == 0 {
		return nil
	}

	var sum float64
	for _, p := range baseline {
		sum += p.Volume
	}
	avg := sum / float64(len(baseline))
	if avg == 0 {
		return nil
	}

	multiple := cur.Volume / avg
	if multiple < d.cfg.VolumeSpikeMultiplier {
		return nil
	}
	return &domain.Signal{
		MarketID:  cur.ID,
		Kind:      domain.SignalVolumeSpike,
		Value:     multiple,
		Threshold: d.cfg.VolumeSpikeMultiplier,
		Metadata: map[string]any{
			"current_volume": cur.Volume,
			"avg_volume":     avg,
		},
	}
}

// smartMoney fires on large volume with minimal price movement, the
// signature of whales accumulating without moving the market.
func (d *Detector) smartMoney(history []domain.MarketPoint) *domain.Signal {
	if len(history) < 2 {
		return nil
	}

	cur, prev := history[0], history[1]
	if cur.Volume < d.cfg.SmartMoneyMinVolume {
		return nil
	}

	change := math.Abs(percentChange(cur.YesPrice, prev.YesPrice))
	if change > d.cfg.SmartMoneyMaxPriceChange {
		return nil
	}
	return &domain.Signal{
		MarketID:  cur.ID,
		Kind:      domain.SignalSmartMoney,
		Value:     cur.Volume,
		Threshold: d.cfg.SmartMoneyMinVolume,
		Metadata: map[string]any{
			"price_change_pct": change,
			"current_price":    cur.YesPrice,
			"prev_price":       prev.YesPrice,
		},
	}
}

// bookImbalance fires when order-book depth is skewed past the threshold in
// either direction. Zero depth (book unavailable) never fires.
func (d *Detector) bookImbalance(cur domain.MarketPoint) *domain.Signal {
	total := cur.BuyDepth + cur.SellDepth
	if total == 0 {
		return nil
	}

	buyRatio := cur.BuyDepth / total
	var value float64
	var direction domain.Direction
	switch {
	case buyRatio >= d.cfg.BookImbalanceThreshold:
		value = buyRatio
		direction = domain.DirectionYes
	case buyRatio <= 1-d.cfg.BookImbalanceThreshold:
		value = 1 - buyRatio
		direction = domain.DirectionNo
	default:
		return nil
	}
	return &domain.Signal{
		MarketID:  cur.ID,
		Kind:      domain.SignalBookImbalance,
		Value:     value,
		Threshold: d.cfg.BookImbalanceThreshold,
		Metadata: map[string]any{
			"direction": string(direction),
			"buy_ratio": buyRatio,
		},
	}
}

// liquidityDrain fires when posted liquidity dropped sharply since the
// previous snapshot, a pattern of market makers pulling quotes.
func (d *Detector) liquidityDrain(history []domain.MarketPoint) *domain.Signal {
	if len(history) < 2 {
		return nil
	}

	cur, prev := history[0], history[1]
	if prev.Liquidity == 0 {
		return nil
	}

	drainPct := (prev.Liquidity - cur.Liquidity) / prev.Liquidity * 100
	if drainPct < d.cfg.LiquidityDrainThresholdPct {
		return nil
	}
	return &domain.Signal{
		MarketID:  cur.ID,
		Kind:      domain.SignalLiquidityDrain,
		Value:     drainPct,
		Threshold: d.cfg.LiquidityDrainThresholdPct,
		Metadata: map[string]any{
			"current_liquidity": cur.Liquidity,
			"prev_liquidity":    prev.Liquidity,
		},
	}
}

// largeOrder fires when any single trade within the lookback window meets
// the notional threshold. The signal reports the largest such trade. Markets
// without a trade feed never fire.
func (d *Detector) largeOrder(cur domain.MarketPoint, trades []domain.MarketTrade, now time.Time) *domain.Signal {
	cutoff := now.Add(-d.cfg.LargeOrderLookback)

	var largest *domain.MarketTrade
	count := 0
	for i := range trades {
		t := trades[i]
		if t.Timestamp.Before(cutoff) || t.Value() < d.cfg.LargeOrderThreshold {
			continue
		}
		count++
		if largest == nil || t.Value() > largest.Value() {
			largest = &trades[i]
		}
	}
	if largest == nil {
		return nil
	}
	return &domain.Signal{
		MarketID:  cur.ID,
		Kind:      domain.SignalLargeOrder,
		Value:     largest.Value(),
		Threshold: d.cfg.LargeOrderThreshold,
		Metadata: map[string]any{
			"trade_size":         largest.Size,
			"trade_price":        largest.Price,
			"side":               largest.Side,
			"total_large_trades": count,
		},
	}
}

// DirectionFor picks the recommended side from recent price momentum: the
// sign of the change since the previous snapshot. Zero momentum (including
// missing history) defaults to YES.
func DirectionFor(history []domain.MarketPoint) domain.Direction {
	if len(history) < 2 {
		return domain.DirectionYes
	}
	if percentChange(history[0].YesPrice, history[1].YesPrice) < 0 {
		return domain.DirectionNo
	}
	return domain.DirectionYes
}
