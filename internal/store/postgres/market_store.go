package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whaletrack/engine/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// UpsertBatch inserts or refreshes market metadata using pgx Batch.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO markets (id, question, category, slug, token_yes, token_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), NOW())
		ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			category = EXCLUDED.category,
			slug = EXCLUDED.slug,
			token_yes = EXCLUDED.token_yes,
			token_no = EXCLUDED.token_no,
			updated_at = NOW()`

	for _, m := range markets {
		var createdAt any
		if !m.CreatedAt.IsZero() {
			createdAt = m.CreatedAt
		}
		batch.Queue(query, m.ID, m.Question, m.Category, m.Slug, m.TokenIDs[0], m.TokenIDs[1], createdAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID returns a single market's metadata.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	var m domain.Market
	err := s.pool.QueryRow(ctx, `
		SELECT id, question, category, slug, token_yes, token_no, created_at, updated_at
		FROM markets WHERE id = $1`, id,
	).Scan(&m.ID, &m.Question, &m.Category, &m.Slug, &m.TokenIDs[0], &m.TokenIDs[1], &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: %w: market %s", domain.ErrNotFound, id)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListWithLatest returns all tracked markets joined with their most recent
// snapshot point, ordered by volume descending.
func (s *MarketStore) ListWithLatest(ctx context.Context, opts domain.ListOpts) ([]domain.MarketPoint, error) {
	query := `
		SELECT m.id, m.question, m.category, m.slug,
		       s.volume, s.liquidity, s.yes_price, s.no_price,
		       s.buy_depth, s.sell_depth, s.tick_at
		FROM markets m
		JOIN LATERAL (
			SELECT volume, liquidity, yes_price, no_price, buy_depth, sell_depth, tick_at
			FROM market_snapshots
			WHERE market_id = m.id
			ORDER BY tick_at DESC
			LIMIT 1
		) s ON TRUE
		ORDER BY s.volume DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += " LIMIT $1"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets with latest: %w", err)
	}
	defer rows.Close()

	var points []domain.MarketPoint
	for rows.Next() {
		var p domain.MarketPoint
		if err := rows.Scan(
			&p.ID, &p.Question, &p.Category, &p.Slug,
			&p.Volume, &p.Liquidity, &p.YesPrice, &p.NoPrice,
			&p.BuyDepth, &p.SellDepth, &p.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan market point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
