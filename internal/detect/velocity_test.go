package detect

import (
	"testing"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

func point(id string, volume, liquidity, price float64) domain.MarketPoint {
	return domain.MarketPoint{
		ID:        id,
		Question:  "q-" + id,
		Volume:    volume,
		Liquidity: liquidity,
		YesPrice:  price,
		FetchedAt: time.Now(),
	}
}

func TestMarketVelocityZeroDeltaOnEqualVolume(t *testing.T) {
	history := []domain.MarketPoint{
		point("m1", 10000, 5000, 0.5),
		point("m1", 10000, 5000, 0.5),
	}
	entry := MarketVelocity(history, 12)
	if entry.VolumeChangePct != 0 {
		t.Errorf("VolumeChangePct = %v, want 0", entry.VolumeChangePct)
	}
	if entry.PriceChangePct != 0 {
		t.Errorf("PriceChangePct = %v, want 0", entry.PriceChangePct)
	}
}

func TestMarketVelocityEmptyAndSingleHistory(t *testing.T) {
	if got := MarketVelocity(nil, 12); got.Velocity != 0 {
		t.Errorf("empty history velocity = %d, want 0", got.Velocity)
	}
	entry := MarketVelocity([]domain.MarketPoint{point("m1", 2_000_000, 100, 0.5)}, 12)
	if entry.Velocity != 0 || entry.VolumeChangePct != 0 {
		t.Errorf("single-point history should yield zero deltas, got %+v", entry)
	}
	if entry.MarketID != "m1" {
		t.Errorf("MarketID = %q, want m1", entry.MarketID)
	}
}

func TestMarketVelocityClampsToOldest(t *testing.T) {
	// Only 3 points of history with a 12-tick window: comparison clamps to
	// the oldest entry.
	history := []domain.MarketPoint{
		point("m1", 30000, 1000, 0.6),
		point("m1", 20000, 1000, 0.55),
		point("m1", 10000, 1000, 0.5),
	}
	entry := MarketVelocity(history, 12)
	if entry.VolumeChangePct != 200 {
		t.Errorf("VolumeChangePct = %v, want 200 (vs oldest)", entry.VolumeChangePct)
	}
}

func TestMarketVelocityZeroBaseline(t *testing.T) {
	history := []domain.MarketPoint{
		point("m1", 5000, 1000, 0.5),
		point("m1", 0, 1000, 0),
	}
	entry := MarketVelocity(history, 1)
	if entry.VolumeChangePct != 0 || entry.PriceChangePct != 0 {
		t.Errorf("zero baselines must yield zero deltas, got %+v", entry)
	}
}

func TestMarketVelocityLadderBound(t *testing.T) {
	// Extreme movement on a huge market: every ladder contributes its cap.
	history := []domain.MarketPoint{
		point("m1", 10_000_000, 100_000, 0.9),
		point("m1", 1_000_000, 100_000, 0.4),
	}
	entry := MarketVelocity(history, 1)
	if entry.Velocity != 100 {
		t.Errorf("Velocity = %d, want 100 (sum of ladder caps)", entry.Velocity)
	}
}

func TestRankVelocityDeterministicTieBreak(t *testing.T) {
	entries := []domain.VelocityEntry{
		{MarketID: "b", Velocity: 50},
		{MarketID: "a", Velocity: 50},
		{MarketID: "c", Velocity: 80},
	}
	ranked := RankVelocity(entries)
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if ranked[i].MarketID != id {
			t.Fatalf("ranked[%d] = %s, want %s", i, ranked[i].MarketID, id)
		}
	}

	// Re-running on the same input yields identical ordering.
	again := RankVelocity(entries)
	for i := range ranked {
		if ranked[i].MarketID != again[i].MarketID {
			t.Fatalf("ranking not deterministic at %d", i)
		}
	}
}
