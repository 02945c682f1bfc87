package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecCache struct {
	recs []domain.Recommendation
	err  error
}

func (c *fakeRecCache) SetAll(ctx context.Context, recs []domain.Recommendation) error { return nil }
func (c *fakeRecCache) GetAll(ctx context.Context) ([]domain.Recommendation, error) {
	return c.recs, c.err
}

type fakeRecStore struct {
	recs  []domain.Recommendation
	calls int
}

func (s *fakeRecStore) ReplaceActive(ctx context.Context, recs []domain.Recommendation) error {
	return nil
}

func (s *fakeRecStore) ListActive(ctx context.Context, limit int) ([]domain.Recommendation, error) {
	s.calls++
	if limit < len(s.recs) {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

func (s *fakeRecStore) DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeSignalStore struct {
	signals   []domain.Signal
	lastSince time.Time
}

func (s *fakeSignalStore) InsertBatch(ctx context.Context, signals []domain.Signal) error {
	return nil
}

func (s *fakeSignalStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.Signal, error) {
	s.lastSince = since
	return s.signals, nil
}

func (s *fakeSignalStore) ListByMarket(ctx context.Context, marketID string, since time.Time) ([]domain.Signal, error) {
	s.lastSince = since
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.MarketID == marketID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *fakeSignalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeMarketStore struct {
	points []domain.MarketPoint
}

func (s *fakeMarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	return nil
}

func (s *fakeMarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (s *fakeMarketStore) ListWithLatest(ctx context.Context, opts domain.ListOpts) ([]domain.MarketPoint, error) {
	return s.points, nil
}

type fakeVelCache struct {
	entries []domain.VelocityEntry
	err     error
}

func (c *fakeVelCache) SetAll(ctx context.Context, entries []domain.VelocityEntry) error { return nil }
func (c *fakeVelCache) GetAll(ctx context.Context) ([]domain.VelocityEntry, error) {
	return c.entries, c.err
}

type fakeLedger struct {
	open   []domain.PaperTrade
	closed []domain.PaperTrade
	stats  domain.TradeStats
}

func (l *fakeLedger) OpenPositions(ctx context.Context) ([]domain.PaperTrade, error) {
	return l.open, nil
}

func (l *fakeLedger) History(ctx context.Context, limit int) ([]domain.PaperTrade, error) {
	return l.closed, nil
}

func (l *fakeLedger) Stats(ctx context.Context, lookback time.Duration, now time.Time) (domain.TradeStats, error) {
	return l.stats, nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(discardLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestListRecommendationsFromCache(t *testing.T) {
	cache := &fakeRecCache{recs: []domain.Recommendation{
		{ID: "r1", MarketID: "m1", WhaleScore: 80, Confidence: domain.ConfidenceHigh, Direction: domain.DirectionYes},
		{ID: "r2", MarketID: "m2", WhaleScore: 60, Confidence: domain.ConfidenceMedium, Direction: domain.DirectionNo},
	}}
	store := &fakeRecStore{}
	h := NewRecommendationHandler(cache, store, discardLogger())

	rec := httptest.NewRecorder()
	h.ListRecommendations(rec, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body listRecommendationsResponse
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
	if store.calls != 0 {
		t.Errorf("store consulted %d times despite cache hit", store.calls)
	}
}

func TestListRecommendationsFallsBackToStore(t *testing.T) {
	cache := &fakeRecCache{err: domain.ErrNotFound}
	store := &fakeRecStore{recs: []domain.Recommendation{
		{ID: "r1", MarketID: "m1", WhaleScore: 55},
	}}
	h := NewRecommendationHandler(cache, store, discardLogger())

	rec := httptest.NewRecorder()
	h.ListRecommendations(rec, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body listRecommendationsResponse
	decodeBody(t, rec, &body)
	if body.Count != 1 || store.calls != 1 {
		t.Errorf("count = %d, store calls = %d; want 1 and 1", body.Count, store.calls)
	}
}

func TestListRecommendationsLimit(t *testing.T) {
	var recs []domain.Recommendation
	for i := 0; i < 30; i++ {
		recs = append(recs, domain.Recommendation{ID: "r", MarketID: "m", WhaleScore: 50})
	}
	h := NewRecommendationHandler(&fakeRecCache{recs: recs}, &fakeRecStore{}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListRecommendations(rec, httptest.NewRequest(http.MethodGet, "/api/recommendations?limit=5", nil))

	var body listRecommendationsResponse
	decodeBody(t, rec, &body)
	if body.Count != 5 {
		t.Errorf("count = %d, want 5", body.Count)
	}
}

func TestListSignalsWindow(t *testing.T) {
	store := &fakeSignalStore{signals: []domain.Signal{
		{ID: 1, MarketID: "m1", Kind: domain.SignalVolumeSpike, Value: 6.2, Threshold: 5.0},
	}}
	h := NewSignalHandler(store, discardLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals?hours=6", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body listSignalsResponse
	decodeBody(t, rec, &body)
	if body.Hours != 6 || body.Count != 1 {
		t.Errorf("hours = %d count = %d, want 6 and 1", body.Hours, body.Count)
	}
	// The since cutoff should be about 6 hours back.
	gap := time.Since(store.lastSince)
	if gap < 5*time.Hour || gap > 7*time.Hour {
		t.Errorf("since cutoff %v back, want ~6h", gap)
	}
}

func TestListSignalsRejectsBadHours(t *testing.T) {
	store := &fakeSignalStore{}
	h := NewSignalHandler(store, discardLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals?hours=-3", nil))

	var body listSignalsResponse
	decodeBody(t, rec, &body)
	if body.Hours != 24 {
		t.Errorf("hours = %d, want default 24", body.Hours)
	}
}

func TestListMarketSignalsFiltersByMarket(t *testing.T) {
	store := &fakeSignalStore{signals: []domain.Signal{
		{ID: 1, MarketID: "m1", Kind: domain.SignalVolumeSpike},
		{ID: 2, MarketID: "m2", Kind: domain.SignalLargeOrder},
	}}
	h := NewSignalHandler(store, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/markets/m1/signals", nil)
	req.SetPathValue("id", "m1")
	rec := httptest.NewRecorder()
	h.ListMarketSignals(rec, req)

	var body listSignalsResponse
	decodeBody(t, rec, &body)
	if body.Count != 1 || body.Signals[0].MarketID != "m1" {
		t.Errorf("got %+v, want only m1 signals", body.Signals)
	}
}

func TestListMarketSignalsMissingID(t *testing.T) {
	h := NewSignalHandler(&fakeSignalStore{}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListMarketSignals(rec, httptest.NewRequest(http.MethodGet, "/api/markets//signals", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListMarkets(t *testing.T) {
	store := &fakeMarketStore{points: []domain.MarketPoint{
		{ID: "m1", Question: "Q1", Volume: 900_000, YesPrice: 0.61, NoPrice: 0.39},
		{ID: "m2", Question: "Q2", Volume: 700_000, YesPrice: 0.30, NoPrice: 0.70},
	}}
	h := NewMarketHandler(store, discardLogger())

	rec := httptest.NewRecorder()
	h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body listMarketsResponse
	decodeBody(t, rec, &body)
	if body.Count != 2 || body.Markets[0].ID != "m1" {
		t.Errorf("got %+v", body)
	}
}

func TestListMoversColdCacheReturnsEmpty(t *testing.T) {
	h := NewMoversHandler(&fakeVelCache{err: domain.ErrNotFound}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListMovers(rec, httptest.NewRequest(http.MethodGet, "/api/movers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body listMoversResponse
	decodeBody(t, rec, &body)
	if body.Count != 0 || body.Movers == nil {
		t.Errorf("got %+v, want empty list", body)
	}
}

func TestListMoversCacheError(t *testing.T) {
	h := NewMoversHandler(&fakeVelCache{err: errors.New("redis down")}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListMovers(rec, httptest.NewRequest(http.MethodGet, "/api/movers", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestPaperStats(t *testing.T) {
	pnl := 12.5
	best := domain.PaperTrade{ID: "t1", MarketID: "m1", PnL: &pnl, Status: domain.TradeStatusClosed}
	h := NewPaperHandler(&fakeLedger{stats: domain.TradeStats{
		TotalTrades:   4,
		WinningTrades: 3,
		LosingTrades:  1,
		WinRate:       75,
		TotalPnL:      30,
		BestTrade:     &best,
	}}, discardLogger())

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/paper-trading/stats?days=7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body statsView
	decodeBody(t, rec, &body)
	if body.TotalTrades != 4 || body.WinRate != 75 || body.Days != 7 {
		t.Errorf("got %+v", body)
	}
	if body.BestTrade == nil || body.BestTrade.ID != "t1" {
		t.Errorf("best trade = %+v, want t1", body.BestTrade)
	}
}

func TestPaperPositionsAndHistory(t *testing.T) {
	now := time.Now().UTC()
	exit := 0.55
	pnl := 10.0
	ledger := &fakeLedger{
		open: []domain.PaperTrade{
			{ID: "t1", MarketID: "m1", Status: domain.TradeStatusOpen, EntryTime: now},
		},
		closed: []domain.PaperTrade{
			{ID: "t2", MarketID: "m2", Status: domain.TradeStatusClosed, ExitPrice: &exit, PnL: &pnl},
		},
	}
	h := NewPaperHandler(ledger, discardLogger())

	rec := httptest.NewRecorder()
	h.ListPositions(rec, httptest.NewRequest(http.MethodGet, "/api/paper-trading/positions", nil))
	var positions struct {
		Positions []tradeView `json:"positions"`
		Count     int         `json:"count"`
	}
	decodeBody(t, rec, &positions)
	if positions.Count != 1 || positions.Positions[0].ID != "t1" {
		t.Errorf("positions = %+v", positions)
	}

	rec = httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/paper-trading/history", nil))
	var history struct {
		Trades []tradeView `json:"trades"`
		Count  int         `json:"count"`
	}
	decodeBody(t, rec, &history)
	if history.Count != 1 || history.Trades[0].PnL == nil || *history.Trades[0].PnL != 10.0 {
		t.Errorf("history = %+v", history)
	}
}
