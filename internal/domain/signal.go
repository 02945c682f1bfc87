package domain

import "time"

// SignalKind identifies one of the five independently-evaluated whale
// indicators.
type SignalKind string

const (
	SignalVolumeSpike    SignalKind = "volume_spike"
	SignalSmartMoney     SignalKind = "smart_money"
	SignalBookImbalance  SignalKind = "book_imbalance"
	SignalLiquidityDrain SignalKind = "liquidity_drain"
	SignalLargeOrder     SignalKind = "large_order"
)

// AllSignalKinds lists every signal kind in weight order.
var AllSignalKinds = []SignalKind{
	SignalVolumeSpike,
	SignalSmartMoney,
	SignalBookImbalance,
	SignalLiquidityDrain,
	SignalLargeOrder,
}

// Signal is one fired whale indicator for a market at a tick. Value holds
// the observed measurement (volume multiple, buy ratio, drain percent, trade
// value, ...) and Threshold the configured trigger it exceeded.
type Signal struct {
	ID         int64
	MarketID   string
	Kind       SignalKind
	Value      float64
	Threshold  float64
	DetectedAt time.Time
	Metadata   map[string]any
}

// Direction is the recommended side of a market.
type Direction string

const (
	DirectionYes Direction = "YES"
	DirectionNo  Direction = "NO"
)

// Confidence buckets a whale score into coarse tiers.
type Confidence string

const (
	ConfidenceHigh    Confidence = "HIGH"   // score >= 75
	ConfidenceMedium  Confidence = "MEDIUM" // score >= 50
	ConfidenceLow     Confidence = "LOW"    // score >= 25
	ConfidenceVeryLow Confidence = "VERY_LOW"
)

// ConfidenceFor maps a clamped whale score to its tier. The cutoffs form a
// non-overlapping partition of [0,100].
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 75:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	case score >= 25:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}
