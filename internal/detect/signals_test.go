package detect

import (
	"testing"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

func testConfig() Config {
	return Config{
		VolumeSpikeMultiplier:      5.0,
		SmartMoneyMinVolume:        50_000,
		SmartMoneyMaxPriceChange:   2.0,
		BookImbalanceThreshold:     0.70,
		LiquidityDrainThresholdPct: 20.0,
		LargeOrderThreshold:        50_000,
		LargeOrderLookback:         5 * time.Minute,
	}
}

func hasSignal(signals []domain.Signal, kind domain.SignalKind) bool {
	for _, s := range signals {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func TestDetectEmptyHistory(t *testing.T) {
	d := NewDetector(testConfig())
	if got := d.Detect(nil, nil, time.Now()); got != nil {
		t.Errorf("empty history should produce no signals, got %v", got)
	}
}

func TestVolumeSpikeFiresOn500PercentIncrease(t *testing.T) {
	d := NewDetector(testConfig())
	// volume_then=10000, volume_now=60000: 6x the trailing average.
	history := []domain.MarketPoint{
		point("m1", 60000, 1000, 0.5),
		point("m1", 10000, 1000, 0.5),
	}
	signals := d.Detect(history, nil, time.Now())
	if !hasSignal(signals, domain.SignalVolumeSpike) {
		t.Fatalf("expected volume spike, got %v", signals)
	}
	for _, s := range signals {
		if s.Kind == domain.SignalVolumeSpike && s.Value != 6.0 {
			t.Errorf("spike multiple = %v, want 6.0", s.Value)
		}
	}
}

func TestVolumeSpikeWindowBoundsBaseline(t *testing.T) {
	cfg := testConfig()
	cfg.VolumeSpikeWindow = time.Hour
	d := NewDetector(cfg)

	now := time.Now().UTC()
	at := func(p domain.MarketPoint, age time.Duration) domain.MarketPoint {
		p.FetchedAt = now.Add(-age)
		return p
	}

	// The 2h-old point's huge volume would push the trailing average to
	// 55000 and suppress the spike; a 1h window exits it from the
	// baseline, leaving avg 10000 and a 6x multiple.
	history := []domain.MarketPoint{
		at(point("m1", 60000, 1000, 0.5), 0),
		at(point("m1", 10000, 1000, 0.5), 30*time.Minute),
		at(point("m1", 100000, 1000, 0.5), 2*time.Hour),
	}

	signals := d.Detect(history, nil, now)
	if !hasSignal(signals, domain.SignalVolumeSpike) {
		t.Fatalf("expected windowed baseline to fire, got %v", signals)
	}
	for _, s := range signals {
		if s.Kind == domain.SignalVolumeSpike && s.Value != 6.0 {
			t.Errorf("spike multiple = %v, want 6.0", s.Value)
		}
	}

	// Without the window the old point is back in the baseline and the
	// spike stays below the multiplier.
	cfg.VolumeSpikeWindow = 0
	signals = NewDetector(cfg).Detect(history, nil, now)
	if hasSignal(signals, domain.SignalVolumeSpike) {
		t.Fatalf("unwindowed baseline should not fire, got %v", signals)
	}
}

func TestVolumeSpikeBelowMultiplier(t *testing.T) {
	d := NewDetector(testConfig())
	history := []domain.MarketPoint{
		point("m1", 40000, 1000, 0.5),
		point("m1", 10000, 1000, 0.5),
	}
	if signals := d.Detect(history, nil, time.Now()); hasSignal(signals, domain.SignalVolumeSpike) {
		t.Errorf("4x should not fire with multiplier 5, got %v", signals)
	}
}

func TestSmartMoneyHighVolumeFlatPrice(t *testing.T) {
	d := NewDetector(testConfig())
	history := []domain.MarketPoint{
		point("m1", 80_000, 1000, 0.505),
		point("m1", 79_000, 1000, 0.50),
	}
	signals := d.Detect(history, nil, time.Now())
	if !hasSignal(signals, domain.SignalSmartMoney) {
		t.Fatalf("expected smart money signal, got %v", signals)
	}

	// Same volume but 10% price move: no smart money.
	history[0].YesPrice = 0.55
	signals = d.Detect(history, nil, time.Now())
	if hasSignal(signals, domain.SignalSmartMoney) {
		t.Errorf("moving price should suppress smart money, got %v", signals)
	}
}

func TestBookImbalanceBothSides(t *testing.T) {
	d := NewDetector(testConfig())

	buy := point("m1", 1000, 1000, 0.5)
	buy.BuyDepth, buy.SellDepth = 8000, 2000
	sig := d.bookImbalance(buy)
	if sig == nil || sig.Metadata["direction"] != string(domain.DirectionYes) {
		t.Errorf("80/20 book should fire YES, got %+v", sig)
	}

	sell := point("m1", 1000, 1000, 0.5)
	sell.BuyDepth, sell.SellDepth = 1000, 9000
	sig = d.bookImbalance(sell)
	if sig == nil || sig.Metadata["direction"] != string(domain.DirectionNo) {
		t.Errorf("10/90 book should fire NO, got %+v", sig)
	}
	if sig != nil && sig.Value != 0.9 {
		t.Errorf("NO imbalance value = %v, want 0.9", sig.Value)
	}

	balanced := point("m1", 1000, 1000, 0.5)
	balanced.BuyDepth, balanced.SellDepth = 5500, 4500
	if sig = d.bookImbalance(balanced); sig != nil {
		t.Errorf("55/45 book should not fire, got %+v", sig)
	}

	// No book data: signal silently absent.
	if sig = d.bookImbalance(point("m1", 1000, 1000, 0.5)); sig != nil {
		t.Errorf("zero depth should not fire, got %+v", sig)
	}
}

func TestLiquidityDrain(t *testing.T) {
	d := NewDetector(testConfig())
	history := []domain.MarketPoint{
		point("m1", 1000, 7000, 0.5),
		point("m1", 1000, 10000, 0.5),
	}
	signals := d.Detect(history, nil, time.Now())
	if !hasSignal(signals, domain.SignalLiquidityDrain) {
		t.Fatalf("30%% drain should fire, got %v", signals)
	}

	history[0].Liquidity = 9000 // only 10% drain
	if signals = d.Detect(history, nil, time.Now()); hasSignal(signals, domain.SignalLiquidityDrain) {
		t.Errorf("10%% drain should not fire, got %v", signals)
	}
}

func TestLargeOrder(t *testing.T) {
	d := NewDetector(testConfig())
	now := time.Now()
	history := []domain.MarketPoint{point("m1", 1000, 1000, 0.5)}

	trades := []domain.MarketTrade{
		{MarketID: "m1", Price: 0.5, Size: 150_000, Side: "BUY", Timestamp: now.Add(-time.Minute)},  // $75k
		{MarketID: "m1", Price: 0.5, Size: 400_000, Side: "SELL", Timestamp: now.Add(-time.Minute)}, // $200k
		{MarketID: "m1", Price: 0.5, Size: 500_000, Side: "BUY", Timestamp: now.Add(-time.Hour)},    // too old
	}
	signals := d.Detect(history, trades, now)
	if !hasSignal(signals, domain.SignalLargeOrder) {
		t.Fatalf("expected large order signal, got %v", signals)
	}
	for _, s := range signals {
		if s.Kind != domain.SignalLargeOrder {
			continue
		}
		if s.Value != 200_000 {
			t.Errorf("largest trade value = %v, want 200000", s.Value)
		}
		if s.Metadata["total_large_trades"] != 2 {
			t.Errorf("total_large_trades = %v, want 2", s.Metadata["total_large_trades"])
		}
	}

	// No trade feed at all: signal silently absent.
	if signals = d.Detect(history, nil, now); hasSignal(signals, domain.SignalLargeOrder) {
		t.Errorf("no feed should not fire, got %v", signals)
	}
}

func TestDirectionFor(t *testing.T) {
	up := []domain.MarketPoint{point("m", 0, 0, 0.6), point("m", 0, 0, 0.5)}
	if got := DirectionFor(up); got != domain.DirectionYes {
		t.Errorf("rising price direction = %v, want YES", got)
	}

	down := []domain.MarketPoint{point("m", 0, 0, 0.4), point("m", 0, 0, 0.5)}
	if got := DirectionFor(down); got != domain.DirectionNo {
		t.Errorf("falling price direction = %v, want NO", got)
	}

	// Zero momentum and missing history both default to YES.
	flat := []domain.MarketPoint{point("m", 0, 0, 0.5), point("m", 0, 0, 0.5)}
	if got := DirectionFor(flat); got != domain.DirectionYes {
		t.Errorf("flat price direction = %v, want YES", got)
	}
	if got := DirectionFor(flat[:1]); got != domain.DirectionYes {
		t.Errorf("short history direction = %v, want YES", got)
	}
}
