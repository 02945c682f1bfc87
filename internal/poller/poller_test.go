package poller

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/whaletrack/engine/internal/detect"
	"github.com/whaletrack/engine/internal/domain"
	"github.com/whaletrack/engine/internal/notify"
	"github.com/whaletrack/engine/internal/paper"
	"github.com/whaletrack/engine/internal/platform/polymarket"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeGamma struct {
	markets []polymarket.APIMarket
}

func (f *fakeGamma) GetActiveMarkets(_ context.Context, _ int, _ float64) ([]polymarket.APIMarket, error) {
	return f.markets, nil
}

type fakeClob struct {
	depth  map[string]polymarket.BookDepth
	trades map[string][]domain.MarketTrade
}

func (f *fakeClob) GetOrderBook(_ context.Context, tokenID string) (polymarket.BookDepth, error) {
	return f.depth[tokenID], nil
}

func (f *fakeClob) GetRecentTrades(_ context.Context, marketID string, _ int) ([]domain.MarketTrade, error) {
	return f.trades[marketID], nil
}

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (s *memMarketStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markets {
		s.markets[m.ID] = m
	}
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) ListWithLatest(_ context.Context, _ domain.ListOpts) ([]domain.MarketPoint, error) {
	return nil, nil
}

type memSnapshotStore struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
}

func (s *memSnapshotStore) Append(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memSnapshotStore) History(_ context.Context, marketID string, limit int) ([]domain.MarketPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var points []domain.MarketPoint
	for _, snap := range s.snaps {
		if p, ok := snap.Point(marketID); ok {
			p.FetchedAt = snap.Timestamp
			points = append(points, p)
		}
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].FetchedAt.After(points[j].FetchedAt)
	})
	if len(points) > limit {
		points = points[:limit]
	}
	return points, nil
}

func (s *memSnapshotStore) Ticks(_ context.Context, limit int) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for i := len(s.snaps) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.snaps[i].Timestamp)
	}
	return out, nil
}

func (s *memSnapshotStore) ListBefore(_ context.Context, before time.Time) ([]domain.MarketPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketPoint
	for _, snap := range s.snaps {
		if snap.Timestamp.Before(before) {
			out = append(out, snap.Markets...)
		}
	}
	return out, nil
}

func (s *memSnapshotStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.Snapshot
	var deleted int64
	for _, snap := range s.snaps {
		if snap.Timestamp.Before(before) {
			deleted += int64(len(snap.Markets))
			continue
		}
		kept = append(kept, snap)
	}
	s.snaps = kept
	return deleted, nil
}

func (s *memSnapshotStore) TickCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.snaps)), nil
}

func (s *memSnapshotStore) OldestTicks(_ context.Context, n int) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := make([]time.Time, 0, len(s.snaps))
	for _, snap := range s.snaps {
		times = append(times, snap.Timestamp)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	if len(times) > n {
		times = times[:n]
	}
	return times, nil
}

type memSignalStore struct {
	mu      sync.Mutex
	signals []domain.Signal
}

func (s *memSignalStore) InsertBatch(_ context.Context, signals []domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, signals...)
	return nil
}

func (s *memSignalStore) ListRecent(_ context.Context, since time.Time, limit int) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if !sig.DetectedAt.Before(since) {
			out = append(out, sig)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memSignalStore) ListByMarket(_ context.Context, marketID string, since time.Time) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.MarketID == marketID && !sig.DetectedAt.Before(since) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *memSignalStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.Signal
	var deleted int64
	for _, sig := range s.signals {
		if sig.DetectedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, sig)
	}
	s.signals = kept
	return deleted, nil
}

type memRecStore struct {
	mu     sync.Mutex
	active []domain.Recommendation
	calls  int
}

func (s *memRecStore) ReplaceActive(_ context.Context, recs []domain.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = recs
	s.calls++
	return nil
}

func (s *memRecStore) ListActive(_ context.Context, limit int) ([]domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.active
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memRecStore) DeleteInactiveBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memRecCache struct {
	mu   sync.Mutex
	recs []domain.Recommendation
	set  bool
}

func (c *memRecCache) SetAll(_ context.Context, recs []domain.Recommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = recs
	c.set = true
	return nil
}

func (c *memRecCache) GetAll(_ context.Context) ([]domain.Recommendation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return nil, domain.ErrNotFound
	}
	return c.recs, nil
}

type memVelCache struct {
	mu      sync.Mutex
	entries []domain.VelocityEntry
}

func (c *memVelCache) SetAll(_ context.Context, entries []domain.VelocityEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	return nil
}

func (c *memVelCache) GetAll(_ context.Context) ([]domain.VelocityEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries, nil
}

type memPriceCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{prices: make(map[string]float64)}
}

func (c *memPriceCache) SetPrices(_ context.Context, prices map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range prices {
		c.prices[k] = v
	}
	return nil
}

func (c *memPriceCache) GetPrice(_ context.Context, marketID string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[marketID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p, nil
}

type memBus struct {
	mu       sync.Mutex
	messages map[string]int
}

func newMemBus() *memBus {
	return &memBus{messages: make(map[string]int)}
}

func (b *memBus) Publish(_ context.Context, channel string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel]++
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ ...string) (domain.Subscription, error) {
	return nil, domain.ErrNotFound
}

type memTradeStore struct {
	mu     sync.Mutex
	trades map[string]*domain.PaperTrade
}

func newMemTradeStore() *memTradeStore {
	return &memTradeStore{trades: make(map[string]*domain.PaperTrade)}
}

func (s *memTradeStore) Open(_ context.Context, trade domain.PaperTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trades {
		if t.MarketID == trade.MarketID && t.Status == domain.TradeStatusOpen {
			return domain.ErrTradeAlreadyOpen
		}
	}
	s.trades[trade.ID] = &trade
	return nil
}

func (s *memTradeStore) Close(_ context.Context, id string, exitPrice float64, exitTime time.Time, pnl float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok || t.Status == domain.TradeStatusClosed {
		return domain.ErrTradeAlreadyClosed
	}
	t.Status = domain.TradeStatusClosed
	t.ExitPrice = &exitPrice
	t.ExitTime = &exitTime
	t.PnL = &pnl
	return nil
}

func (s *memTradeStore) HasOpen(_ context.Context, marketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trades {
		if t.MarketID == marketID && t.Status == domain.TradeStatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (s *memTradeStore) ListOpen(_ context.Context) ([]domain.PaperTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PaperTrade
	for _, t := range s.trades {
		if t.Status == domain.TradeStatusOpen {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTradeStore) ListClosed(_ context.Context, _ domain.ListOpts) ([]domain.PaperTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PaperTrade
	for _, t := range s.trades {
		if t.Status == domain.TradeStatusClosed {
			out = append(out, *t)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func detectConfig() detect.Config {
	return detect.Config{
		VolumeSpikeMultiplier:      5.0,
		SmartMoneyMinVolume:        50_000,
		SmartMoneyMaxPriceChange:   2.0,
		BookImbalanceThreshold:     0.70,
		LiquidityDrainThresholdPct: 20.0,
		LargeOrderThreshold:        50_000,
		LargeOrderLookback:         5 * time.Minute,
	}
}

func pollerConfig() Config {
	return Config{
		Interval:            5 * time.Minute,
		MarketLimit:         100,
		MinMarketVolume:     500_000,
		EnrichWorkers:       4,
		VelocityWindowTicks: 12,
		VolumeSpikeWindow:   time.Hour,
		MinWhaleScore:       0,
		HighConfidenceScore: 75,
		MaxRecommendations:  10,
	}
}

func TestHistoryLimitCoversSpikeWindow(t *testing.T) {
	cfg := pollerConfig()

	// 12 velocity ticks and a 1h spike window at 5m cadence both need 12
	// ticks plus the current point.
	if got := cfg.historyLimit(); got != 13 {
		t.Fatalf("historyLimit = %d, want 13", got)
	}

	// A wider spike window outgrows the velocity window.
	cfg.VolumeSpikeWindow = 2 * time.Hour
	if got := cfg.historyLimit(); got != 25 {
		t.Fatalf("historyLimit = %d, want 25", got)
	}

	// No spike window falls back to the velocity window alone.
	cfg.VolumeSpikeWindow = 0
	if got := cfg.historyLimit(); got != 13 {
		t.Fatalf("historyLimit = %d, want 13", got)
	}
}

type fixture struct {
	poller  *Poller
	snaps   *memSnapshotStore
	signals *memSignalStore
	recs    *memRecStore
	cache   *memRecCache
	prices  *memPriceCache
	bus     *memBus
	trades  *memTradeStore
}

func newFixture(t *testing.T, gamma *fakeGamma, clob *fakeClob, withLedger bool) *fixture {
	t.Helper()

	f := &fixture{
		snaps:   &memSnapshotStore{},
		signals: &memSignalStore{},
		recs:    &memRecStore{},
		cache:   &memRecCache{},
		prices:  newMemPriceCache(),
		bus:     newMemBus(),
		trades:  newMemTradeStore(),
	}

	var ledger *paper.Ledger
	if withLedger {
		ledger = paper.NewLedger(f.trades, f.prices, paper.Config{
			AutoEnter:          true,
			AutoEnterThreshold: 75,
			Stake:              100,
			HoldDuration:       24 * time.Hour,
		}, discardLogger())
	}

	notifier := notify.NewNotifier(nil, nil, discardLogger())

	f.poller = New(
		gamma, clob,
		newMemMarketStore(), f.snaps, f.signals, f.recs,
		f.cache, &memVelCache{}, f.prices, f.bus,
		detect.NewDetector(detectConfig()), detect.DefaultWeights(),
		ledger, notifier, pollerConfig(), discardLogger(),
	)
	return f
}

func apiMarket(id string, volume, yesPrice string) polymarket.APIMarket {
	return polymarket.APIMarket{
		ID:            id,
		Question:      "Will it happen?",
		Slug:          "will-it",
		Category:      "Politics",
		Active:        true,
		Volume:        volume,
		Liquidity:     "50000",
		OutcomePrices: `["` + yesPrice + `","0.40"]`,
		ClobTokenIDs:  `["tok-` + id + `","tokno-` + id + `"]`,
	}
}

func preload(snaps *memSnapshotStore, marketID string, base time.Time, volumes []float64, price float64) {
	for i, v := range volumes {
		snaps.snaps = append(snaps.snaps, domain.Snapshot{
			Timestamp: base.Add(time.Duration(i-len(volumes)) * 5 * time.Minute),
			Markets: []domain.MarketPoint{{
				ID:        marketID,
				Question:  "Will it happen?",
				Volume:    v,
				Liquidity: 50_000,
				YesPrice:  price,
				NoPrice:   1 - price,
			}},
		})
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTickFirstRunAppendsSnapshotWithoutSpike(t *testing.T) {
	gamma := &fakeGamma{markets: []polymarket.APIMarket{apiMarket("m1", "600000", "0.60")}}
	clob := &fakeClob{}
	f := newFixture(t, gamma, clob, false)

	if err := f.poller.Tick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if n, _ := f.snaps.TickCount(context.Background()); n != 1 {
		t.Fatalf("tick count = %d, want 1", n)
	}
	// Single-point history cannot fire the history-dependent signals.
	for _, sig := range f.signals.signals {
		if sig.Kind == domain.SignalVolumeSpike || sig.Kind == domain.SignalLiquidityDrain {
			t.Fatalf("history signal fired on first tick: %s", sig.Kind)
		}
	}
	if f.recs.calls != 1 {
		t.Fatalf("ReplaceActive calls = %d, want 1", f.recs.calls)
	}
	if !f.cache.set {
		t.Fatal("recommendation cache not updated")
	}
	if p, err := f.prices.GetPrice(context.Background(), "m1"); err != nil || p != 0.60 {
		t.Fatalf("price cache = %v, %v", p, err)
	}
}

func TestTickDetectsSpikeAndPublishes(t *testing.T) {
	now := time.Now().UTC()
	gamma := &fakeGamma{markets: []polymarket.APIMarket{apiMarket("m1", "150000", "0.60")}}
	clob := &fakeClob{
		depth: map[string]polymarket.BookDepth{
			"tok-m1": {BuyDepth: 95, SellDepth: 5},
		},
	}
	f := newFixture(t, gamma, clob, false)
	preload(f.snaps, "m1", now, []float64{10_000, 10_000, 10_000}, 0.50)

	if err := f.poller.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	kinds := make(map[domain.SignalKind]bool)
	for _, sig := range f.signals.signals {
		kinds[sig.Kind] = true
	}
	if !kinds[domain.SignalVolumeSpike] {
		t.Fatal("volume spike did not fire")
	}
	if !kinds[domain.SignalBookImbalance] {
		t.Fatal("book imbalance did not fire")
	}

	if len(f.recs.active) != 1 {
		t.Fatalf("active recommendations = %d, want 1", len(f.recs.active))
	}
	rec := f.recs.active[0]
	// Spike at 15x (45 points) plus 0.95 imbalance (30 points).
	if rec.WhaleScore != 75 {
		t.Fatalf("WhaleScore = %d, want 75", rec.WhaleScore)
	}
	if rec.Confidence != domain.ConfidenceHigh {
		t.Fatalf("Confidence = %s, want HIGH", rec.Confidence)
	}
	if rec.Direction != domain.DirectionYes {
		t.Fatalf("Direction = %s, want YES (price rose)", rec.Direction)
	}

	if f.bus.messages[ChannelRecommendations] != 1 {
		t.Fatalf("recommendations published %d times", f.bus.messages[ChannelRecommendations])
	}
	if f.bus.messages[ChannelSignals] != 1 {
		t.Fatalf("signals published %d times", f.bus.messages[ChannelSignals])
	}
}

func TestTickOpensPaperTradeOnHighScore(t *testing.T) {
	now := time.Now().UTC()
	gamma := &fakeGamma{markets: []polymarket.APIMarket{apiMarket("m1", "150000", "0.60")}}
	clob := &fakeClob{
		depth: map[string]polymarket.BookDepth{
			"tok-m1": {BuyDepth: 95, SellDepth: 5},
		},
	}
	f := newFixture(t, gamma, clob, true)
	preload(f.snaps, "m1", now, []float64{10_000, 10_000, 10_000}, 0.50)

	if err := f.poller.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	open, _ := f.trades.ListOpen(context.Background())
	if len(open) != 1 {
		t.Fatalf("open trades = %d, want 1", len(open))
	}
	if open[0].MarketID != "m1" || open[0].EntryScore != 75 || open[0].EntryPrice != 0.60 {
		t.Fatalf("unexpected trade: %+v", open[0])
	}
	if f.bus.messages[ChannelTrades] != 1 {
		t.Fatalf("trades published %d times", f.bus.messages[ChannelTrades])
	}

	// A second tick must not open a duplicate position.
	if err := f.poller.Tick(context.Background(), now.Add(5*time.Minute)); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	open, _ = f.trades.ListOpen(context.Background())
	if len(open) != 1 {
		t.Fatalf("open trades after second tick = %d, want 1", len(open))
	}
}

func TestTickClosesExpiredTrades(t *testing.T) {
	now := time.Now().UTC()
	gamma := &fakeGamma{markets: []polymarket.APIMarket{apiMarket("m1", "600000", "0.50")}}
	clob := &fakeClob{}
	f := newFixture(t, gamma, clob, true)

	entry := now.Add(-25 * time.Hour)
	if err := f.trades.Open(context.Background(), domain.PaperTrade{
		ID:         "t1",
		MarketID:   "m1",
		Direction:  domain.DirectionYes,
		EntryPrice: 0.40,
		EntryTime:  entry,
		Stake:      100,
		Status:     domain.TradeStatusOpen,
	}); err != nil {
		t.Fatalf("seed trade: %v", err)
	}

	if err := f.poller.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	closed, _ := f.trades.ListClosed(context.Background(), domain.ListOpts{})
	if len(closed) != 1 {
		t.Fatalf("closed trades = %d, want 1", len(closed))
	}
	if got := *closed[0].PnL; got != 25.0 {
		t.Fatalf("PnL = %v, want 25.0 (0.40 -> 0.50 on stake 100)", got)
	}
}

func TestTickEmptyMarketListIsNoOp(t *testing.T) {
	gamma := &fakeGamma{}
	f := newFixture(t, gamma, &fakeClob{}, false)

	if err := f.poller.Tick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n, _ := f.snaps.TickCount(context.Background()); n != 0 {
		t.Fatalf("tick count = %d, want 0", n)
	}
	if f.recs.calls != 0 {
		t.Fatal("ReplaceActive called on empty tick")
	}
}
