package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whaletrack/engine/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. Snapshots
// are append-only; the only mutation is retention eviction.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Append writes a full tick snapshot in one batch. Re-appending the same tick
// for a market is a no-op.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO market_snapshots (
			tick_at, market_id, volume, liquidity,
			yes_price, no_price, buy_depth, sell_depth
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tick_at, market_id) DO NOTHING`

	for _, p := range snap.Markets {
		batch.Queue(query,
			snap.Timestamp, p.ID, p.Volume, p.Liquidity,
			p.YesPrice, p.NoPrice, p.BuyDepth, p.SellDepth,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range snap.Markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append snapshot item %d: %w", i, err)
		}
	}
	return nil
}

// History returns a market's points newest-first, at most limit entries.
func (s *SnapshotStore) History(ctx context.Context, marketID string, limit int) ([]domain.MarketPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.question, m.category, m.slug,
		       s.volume, s.liquidity, s.yes_price, s.no_price,
		       s.buy_depth, s.sell_depth, s.tick_at
		FROM market_snapshots s
		JOIN markets m ON m.id = s.market_id
		WHERE s.market_id = $1
		ORDER BY s.tick_at DESC
		LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot history for %s: %w", marketID, err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// Ticks returns the distinct snapshot timestamps newest-first.
func (s *SnapshotStore) Ticks(ctx context.Context, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT tick_at FROM market_snapshots
		ORDER BY tick_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks: %w", err)
	}
	defer rows.Close()

	return scanTimes(rows)
}

// ListBefore returns all points older than the cutoff, oldest-first.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.MarketPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.question, m.category, m.slug,
		       s.volume, s.liquidity, s.yes_price, s.no_price,
		       s.buy_depth, s.sell_depth, s.tick_at
		FROM market_snapshots s
		JOIN markets m ON m.id = s.market_id
		WHERE s.tick_at < $1
		ORDER BY s.tick_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// DeleteBefore evicts all points older than the cutoff.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_snapshots WHERE tick_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// TickCount returns the number of distinct snapshot ticks retained.
func (s *SnapshotStore) TickCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT tick_at) FROM market_snapshots`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count ticks: %w", err)
	}
	return n, nil
}

// OldestTicks returns the n oldest distinct tick timestamps.
func (s *SnapshotStore) OldestTicks(ctx context.Context, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT tick_at FROM market_snapshots
		ORDER BY tick_at ASC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: list oldest ticks: %w", err)
	}
	defer rows.Close()

	return scanTimes(rows)
}

func scanPoints(rows pgx.Rows) ([]domain.MarketPoint, error) {
	var points []domain.MarketPoint
	for rows.Next() {
		var p domain.MarketPoint
		if err := rows.Scan(
			&p.ID, &p.Question, &p.Category, &p.Slug,
			&p.Volume, &p.Liquidity, &p.YesPrice, &p.NoPrice,
			&p.BuyDepth, &p.SellDepth, &p.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func scanTimes(rows pgx.Rows) ([]time.Time, error) {
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("postgres: scan tick: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
