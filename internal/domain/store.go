package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	// ListWithLatest returns all tracked markets joined with their most
	// recent snapshot point, ordered by volume descending.
	ListWithLatest(ctx context.Context, opts ListOpts) ([]MarketPoint, error)
}

// SnapshotStore persists the append-only snapshot time series.
type SnapshotStore interface {
	// Append writes a full tick snapshot. The snapshot is immutable once
	// written.
	Append(ctx context.Context, snap Snapshot) error
	// History returns per-market points newest-first, at most limit entries.
	History(ctx context.Context, marketID string, limit int) ([]MarketPoint, error)
	// Ticks returns the distinct snapshot timestamps newest-first.
	Ticks(ctx context.Context, limit int) ([]time.Time, error)
	// ListBefore returns all points older than the cutoff, oldest-first,
	// for archival prior to eviction.
	ListBefore(ctx context.Context, before time.Time) ([]MarketPoint, error)
	// DeleteBefore evicts all points older than the cutoff and returns the
	// number removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	// TickCount returns the number of distinct snapshot ticks retained.
	TickCount(ctx context.Context) (int64, error)
	// OldestTicks returns the n oldest distinct tick timestamps.
	OldestTicks(ctx context.Context, n int) ([]time.Time, error)
}

// SignalStore persists fired whale signals.
type SignalStore interface {
	InsertBatch(ctx context.Context, signals []Signal) error
	ListRecent(ctx context.Context, since time.Time, limit int) ([]Signal, error)
	ListByMarket(ctx context.Context, marketID string, since time.Time) ([]Signal, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RecommendationStore persists ranked recommendations. ReplaceActive commits
// a tick's output atomically: the previous active set is deactivated and the
// new set inserted in one transaction, so readers observe either the prior
// tick's list or the new one, never a mix.
type RecommendationStore interface {
	ReplaceActive(ctx context.Context, recs []Recommendation) error
	ListActive(ctx context.Context, limit int) ([]Recommendation, error)
	DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error)
}

// PaperTradeStore persists the paper-trading ledger.
type PaperTradeStore interface {
	// Open inserts a new open trade. It returns ErrTradeAlreadyOpen when an
	// open trade already exists for the trade's market.
	Open(ctx context.Context, trade PaperTrade) error
	// Close records the exit of an open trade exactly once; closing an
	// already-closed trade returns ErrTradeAlreadyClosed.
	Close(ctx context.Context, id string, exitPrice float64, exitTime time.Time, pnl float64) error
	HasOpen(ctx context.Context, marketID string) (bool, error)
	ListOpen(ctx context.Context) ([]PaperTrade, error)
	ListClosed(ctx context.Context, opts ListOpts) ([]PaperTrade, error)
}
