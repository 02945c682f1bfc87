package domain

import "time"

// TradeStatus is the lifecycle state of a paper trade.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// PaperTrade is a simulated position opened when a recommendation crosses the
// auto-enter threshold. A market has at most one open trade at a time; a
// trade transitions to closed exactly once, after the hold duration elapses.
type PaperTrade struct {
	ID               string
	RecommendationID string
	MarketID         string
	Question         string
	Direction        Direction
	EntryScore       int
	EntryPrice       float64
	EntryTime        time.Time
	Stake            float64
	Status           TradeStatus
	ExitPrice        *float64
	ExitTime         *time.Time
	PnL              *float64
}

// SettlePnL computes the realized profit for a trade exiting at exitPrice.
// For YES positions the return is (exit-entry)/entry of the stake; NO
// positions earn the inverse sign. A zero entry price settles flat.
func (t PaperTrade) SettlePnL(exitPrice float64) float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	ret := (exitPrice - t.EntryPrice) / t.EntryPrice * t.Stake
	if t.Direction == DirectionNo {
		return -ret
	}
	return ret
}

// Expired reports whether the trade has been held for at least hold.
func (t PaperTrade) Expired(now time.Time, hold time.Duration) bool {
	return t.Status == TradeStatusOpen && !now.Before(t.EntryTime.Add(hold))
}

// TradeStats aggregates performance over a set of closed trades. It is
// recomputed on demand from the closed-trade history, never maintained
// incrementally.
type TradeStats struct {
	TotalTrades       int
	WinningTrades     int
	LosingTrades      int
	WinRate           float64 // percent
	TotalPnL          float64
	AvgPnL            float64
	AvgEntryScore     float64
	BestTrade         *PaperTrade
	WorstTrade        *PaperTrade
	HighScoreTrades   int     // entries with score >= 75
	HighScoreWinRate  float64 // percent
}
