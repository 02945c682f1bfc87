package domain

import "time"

// Recommendation is a ranked betting suggestion produced by one poll tick.
// Recommendations are recomputed fresh each tick; the previous tick's set is
// deactivated when the new set is committed.
type Recommendation struct {
	ID           string
	MarketID     string
	Question     string
	Category     string
	Slug         string
	Direction    Direction
	WhaleScore   int // clamped to [0,100]
	Confidence   Confidence
	SignalsFired []SignalKind
	Price        float64 // YES price at scoring time
	Volume       float64
	Liquidity    float64
	CreatedAt    time.Time
}

// VelocityEntry is a diagnostic per-market momentum reading comparing the
// current snapshot against one roughly an hour older. It is independent of
// the whale score.
type VelocityEntry struct {
	MarketID        string
	Question        string
	VolumeChangePct float64
	PriceChangePct  float64
	Velocity        int // bounded ladder score
}
