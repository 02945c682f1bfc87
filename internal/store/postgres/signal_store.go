package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whaletrack/engine/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// InsertBatch records fired signals using pgx Batch. IDs are assigned by the
// database.
func (s *SignalStore) InsertBatch(ctx context.Context, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO signals (market_id, kind, value, threshold, detected_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, sig := range signals {
		md := sig.Metadata
		if md == nil {
			md = map[string]any{}
		}
		batch.Queue(query, sig.MarketID, string(sig.Kind), sig.Value, sig.Threshold, sig.DetectedAt, md)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range signals {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert signal batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns signals detected since the given time, newest first.
func (s *SignalStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, market_id, kind, value, threshold, detected_at, metadata
		FROM signals
		WHERE detected_at >= $1
		ORDER BY detected_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// ListByMarket returns a market's signals since the given time, newest first.
func (s *SignalStore) ListByMarket(ctx context.Context, marketID string, since time.Time) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, market_id, kind, value, threshold, detected_at, metadata
		FROM signals
		WHERE market_id = $1 AND detected_at >= $2
		ORDER BY detected_at DESC`, marketID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals for %s: %w", marketID, err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// DeleteBefore evicts signals older than the cutoff.
func (s *SignalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM signals WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete signals before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanSignals(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var kind string
		if err := rows.Scan(
			&sig.ID, &sig.MarketID, &kind, &sig.Value,
			&sig.Threshold, &sig.DetectedAt, &sig.Metadata,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Kind = domain.SignalKind(kind)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}
