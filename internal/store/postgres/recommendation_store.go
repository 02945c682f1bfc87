package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whaletrack/engine/internal/domain"
)

// RecommendationStore implements domain.RecommendationStore using PostgreSQL.
type RecommendationStore struct {
	pool *pgxpool.Pool
}

// NewRecommendationStore creates a new RecommendationStore backed by the
// given pool.
func NewRecommendationStore(pool *pgxpool.Pool) *RecommendationStore {
	return &RecommendationStore{pool: pool}
}

// ReplaceActive commits a tick's recommendations atomically: the previous
// active set is deactivated and the new set inserted in one transaction, so
// readers see either the old list or the new one, never a mix.
func (s *RecommendationStore) ReplaceActive(ctx context.Context, recs []domain.Recommendation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace recommendations: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE recommendations SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("postgres: deactivate recommendations: %w", err)
	}

	const query = `
		INSERT INTO recommendations (
			id, market_id, question, category, slug, direction,
			whale_score, confidence, signals_fired,
			price, volume, liquidity, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13)`

	for _, r := range recs {
		fired := make([]string, len(r.SignalsFired))
		for i, k := range r.SignalsFired {
			fired[i] = string(k)
		}
		if _, err := tx.Exec(ctx, query,
			r.ID, r.MarketID, r.Question, r.Category, r.Slug, string(r.Direction),
			r.WhaleScore, string(r.Confidence), fired,
			r.Price, r.Volume, r.Liquidity, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert recommendation %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit replace recommendations: %w", err)
	}
	return nil
}

// ListActive returns the current active recommendations, score descending
// with market ID as the tie-break.
func (s *RecommendationStore) ListActive(ctx context.Context, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, market_id, question, category, slug, direction,
		       whale_score, confidence, signals_fired,
		       price, volume, liquidity, created_at
		FROM recommendations
		WHERE active
		ORDER BY whale_score DESC, market_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active recommendations: %w", err)
	}
	defer rows.Close()

	var recs []domain.Recommendation
	for rows.Next() {
		var r domain.Recommendation
		var direction, confidence string
		var fired []string
		if err := rows.Scan(
			&r.ID, &r.MarketID, &r.Question, &r.Category, &r.Slug, &direction,
			&r.WhaleScore, &confidence, &fired,
			&r.Price, &r.Volume, &r.Liquidity, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan recommendation: %w", err)
		}
		r.Direction = domain.Direction(direction)
		r.Confidence = domain.Confidence(confidence)
		r.SignalsFired = make([]domain.SignalKind, len(fired))
		for i, k := range fired {
			r.SignalsFired[i] = domain.SignalKind(k)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// DeleteInactiveBefore evicts deactivated recommendations older than the
// cutoff.
func (s *RecommendationStore) DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM recommendations WHERE NOT active AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete inactive recommendations: %w", err)
	}
	return tag.RowsAffected(), nil
}
