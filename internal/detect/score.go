package detect

import "github.com/whaletrack/engine/internal/domain"

// Weights maps each signal kind to its base score contribution. The defaults
// sum to 100 at full intensity.
type Weights map[domain.SignalKind]int

// DefaultWeights returns the standard signal weighting.
func DefaultWeights() Weights {
	return Weights{
		domain.SignalVolumeSpike:    30,
		domain.SignalSmartMoney:     25,
		domain.SignalBookImbalance:  20,
		domain.SignalLiquidityDrain: 15,
		domain.SignalLargeOrder:     10,
	}
}

// ScoreResult is the aggregated whale score for one market at one tick.
type ScoreResult struct {
	WhaleScore   int // clamped to [0,100]
	Confidence   domain.Confidence
	SignalsFired []domain.SignalKind
	Breakdown    map[domain.SignalKind]float64
}

// intensityLadder maps an observed value to a multiplier in [0.5, 1.5] based
// on how far it exceeded the trigger. Ordered descending; the floor applies
// below the lowest rung.
type intensityLadder struct {
	steps []struct {
		Threshold  float64
		Multiplier float64
	}
	floor float64
}

func (l intensityLadder) multiplier(v float64) float64 {
	for _, s := range l.steps {
		if v >= s.Threshold {
			return s.Multiplier
		}
	}
	return l.floor
}

// dollarLadder covers the value-denominated signals (smart money, large
// order): 200k+ → 1.5, 100k+ → 1.3, 50k+ → 1.0.
var dollarLadder = intensityLadder{
	steps: []struct {
		Threshold  float64
		Multiplier float64
	}{{200_000, 1.5}, {100_000, 1.3}, {50_000, 1.0}},
	floor: 0.8,
}

var intensityLadders = map[domain.SignalKind]intensityLadder{
	// Volume multiple over baseline: 10x → 1.5, 7x → 1.3, 5x → 1.0.
	domain.SignalVolumeSpike: {
		steps: []struct {
			Threshold  float64
			Multiplier float64
		}{{10, 1.5}, {7, 1.3}, {5, 1.0}},
		floor: 0.7,
	},
	domain.SignalSmartMoney: dollarLadder,
	// Buy-side ratio: 90% → 1.5, 80% → 1.3, 70% → 1.0.
	domain.SignalBookImbalance: {
		steps: []struct {
			Threshold  float64
			Multiplier float64
		}{{0.90, 1.5}, {0.80, 1.3}, {0.70, 1.0}},
		floor: 0.7,
	},
	// Drain percent: 60% → 1.5, 40% → 1.3, 20% → 1.0.
	domain.SignalLiquidityDrain: {
		steps: []struct {
			Threshold  float64
			Multiplier float64
		}{{60, 1.5}, {40, 1.3}, {20, 1.0}},
		floor: 0.7,
	},
	domain.SignalLargeOrder: dollarLadder,
}

// Intensity returns the multiplier for a fired signal from its kind-specific
// ladder. Unknown kinds get a neutral 1.0.
func Intensity(sig domain.Signal) float64 {
	l, ok := intensityLadders[sig.Kind]
	if !ok {
		return 1.0
	}
	return l.multiplier(sig.Value)
}

// Score sums the weighted, intensity-scaled contributions of the fired
// signals into a whale score clamped to [0,100], and derives the confidence
// tier from the fixed cutoffs.
func Score(signals []domain.Signal, weights Weights) ScoreResult {
	res := ScoreResult{
		Breakdown: make(map[domain.SignalKind]float64, len(signals)),
	}
	if len(signals) == 0 {
		res.Confidence = domain.ConfidenceVeryLow
		return res
	}

	var total float64
	for _, sig := range signals {
		contribution := float64(weights[sig.Kind]) * Intensity(sig)
		total += contribution
		res.Breakdown[sig.Kind] = contribution
		res.SignalsFired = append(res.SignalsFired, sig.Kind)
	}

	score := int(total)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	res.WhaleScore = score
	res.Confidence = domain.ConfidenceFor(score)
	return res
}
