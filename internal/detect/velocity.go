// Package detect implements the whale-activity analytics: the velocity
// calculator, the five-signal detector, the score aggregator, and the
// recommendation ranker. Every function here is pure over immutable snapshot
// history, so per-market evaluations can run concurrently without
// coordination.
package detect

import (
	"sort"

	"github.com/whaletrack/engine/internal/domain"
)

// ladderStep awards Points when the observed value strictly exceeds
// Threshold. Ladders are ordered descending so the first matching step wins.
type ladderStep struct {
	Threshold float64
	Points    int
}

type ladder []ladderStep

func (l ladder) points(v float64) int {
	for _, s := range l {
		if v > s.Threshold {
			return s.Points
		}
	}
	return 0
}

// The four velocity contributions, each independently capped by its top
// rung. Together they bound the velocity score to 100.
var (
	volumeChangeLadder = ladder{{50, 40}, {20, 30}, {10, 20}, {5, 10}}
	priceChangeLadder  = ladder{{10, 30}, {5, 20}, {2, 10}, {1, 5}}
	turnoverLadder     = ladder{{5, 15}, {2, 10}, {1, 5}}
	absVolumeLadder    = ladder{{1_000_000, 15}, {500_000, 10}, {100_000, 5}}
)

// percentChange returns the percent change from then to now, or 0 when the
// baseline is zero.
func percentChange(now, then float64) float64 {
	if then == 0 {
		return 0
	}
	return (now - then) / then * 100
}

// priorPoint selects the comparison point window ticks back in a
// newest-first history, clamped to the oldest available entry.
func priorPoint(history []domain.MarketPoint, window int) domain.MarketPoint {
	idx := window
	if idx > len(history)-1 {
		idx = len(history) - 1
	}
	return history[idx]
}

// MarketVelocity derives the velocity diagnostic for one market from its
// newest-first snapshot history. The comparison reaches window ticks back,
// clamped to the oldest snapshot when history is shorter. A history of fewer
// than two points yields zero deltas (a new listing, not an error).
func MarketVelocity(history []domain.MarketPoint, window int) domain.VelocityEntry {
	if len(history) == 0 {
		return domain.VelocityEntry{}
	}

	cur := history[0]
	entry := domain.VelocityEntry{
		MarketID: cur.ID,
		Question: cur.Question,
	}
	if len(history) < 2 {
		return entry
	}

	then := priorPoint(history, window)
	entry.VolumeChangePct = percentChange(cur.Volume, then.Volume)
	entry.PriceChangePct = percentChange(cur.YesPrice, then.YesPrice)

	abs := func(v float64) float64 {
		if v < 0 {
			return -v
		}
		return v
	}

	score := volumeChangeLadder.points(entry.VolumeChangePct)
	score += priceChangeLadder.points(abs(entry.PriceChangePct))
	if cur.Liquidity > 0 {
		score += turnoverLadder.points(cur.Volume / cur.Liquidity)
	}
	score += absVolumeLadder.points(cur.Volume)

	entry.Velocity = score
	return entry
}

// RankVelocity sorts entries descending by velocity with a deterministic
// ascending market-ID tie-break.
func RankVelocity(entries []domain.VelocityEntry) []domain.VelocityEntry {
	out := make([]domain.VelocityEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Velocity != out[j].Velocity {
			return out[i].Velocity > out[j].Velocity
		}
		return out[i].MarketID < out[j].MarketID
	})
	return out
}
