package paper

import "github.com/whaletrack/engine/internal/domain"

// highScoreCutoff marks trades entered on a high-confidence score, tracked
// separately to show whether stronger signals actually win more.
const highScoreCutoff = 75

// ComputeStats aggregates performance over a set of closed trades. Trades
// without a recorded PnL are skipped.
func ComputeStats(trades []domain.PaperTrade) domain.TradeStats {
	var stats domain.TradeStats
	var scoreSum int
	var highScoreWins int

	for i := range trades {
		t := &trades[i]
		if t.Status != domain.TradeStatusClosed || t.PnL == nil {
			continue
		}
		pnl := *t.PnL

		stats.TotalTrades++
		stats.TotalPnL += pnl
		scoreSum += t.EntryScore

		// Break-even trades count in neither bucket.
		switch {
		case pnl > 0:
			stats.WinningTrades++
		case pnl < 0:
			stats.LosingTrades++
		}

		if t.EntryScore >= highScoreCutoff {
			stats.HighScoreTrades++
			if pnl > 0 {
				highScoreWins++
			}
		}

		if stats.BestTrade == nil || pnl > *stats.BestTrade.PnL {
			stats.BestTrade = t
		}
		if stats.WorstTrade == nil || pnl < *stats.WorstTrade.PnL {
			stats.WorstTrade = t
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
		stats.AvgPnL = stats.TotalPnL / float64(stats.TotalTrades)
		stats.AvgEntryScore = float64(scoreSum) / float64(stats.TotalTrades)
	}
	if stats.HighScoreTrades > 0 {
		stats.HighScoreWinRate = float64(highScoreWins) / float64(stats.HighScoreTrades) * 100
	}
	return stats
}
