package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whaletrack/engine/internal/domain"
)

// PaperTradeStore implements domain.PaperTradeStore using PostgreSQL. The
// one-open-trade-per-market invariant is enforced by a partial unique index
// so it holds even under concurrent writers.
type PaperTradeStore struct {
	pool *pgxpool.Pool
}

// NewPaperTradeStore creates a new PaperTradeStore backed by the given pool.
func NewPaperTradeStore(pool *pgxpool.Pool) *PaperTradeStore {
	return &PaperTradeStore{pool: pool}
}

const paperTradeCols = `id, recommendation_id, market_id, question, direction,
	entry_score, entry_price, entry_time, stake, status, exit_price, exit_time, pnl`

// Open inserts a new open trade. A unique-violation on the partial index
// maps to ErrTradeAlreadyOpen.
func (s *PaperTradeStore) Open(ctx context.Context, t domain.PaperTrade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO paper_trades (
			id, recommendation_id, market_id, question, direction,
			entry_score, entry_price, entry_time, stake, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open')`,
		t.ID, t.RecommendationID, t.MarketID, t.Question, string(t.Direction),
		t.EntryScore, t.EntryPrice, t.EntryTime, t.Stake,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: %w: market %s", domain.ErrTradeAlreadyOpen, t.MarketID)
		}
		return fmt.Errorf("postgres: open paper trade: %w", err)
	}
	return nil
}

// Close settles an open trade exactly once. Closing a trade that is not open
// returns ErrTradeAlreadyClosed.
func (s *PaperTradeStore) Close(ctx context.Context, id string, exitPrice float64, exitTime time.Time, pnl float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE paper_trades
		SET status = 'closed', exit_price = $2, exit_time = $3, pnl = $4
		WHERE id = $1 AND status = 'open'`,
		id, exitPrice, exitTime, pnl,
	)
	if err != nil {
		return fmt.Errorf("postgres: close paper trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %w: trade %s", domain.ErrTradeAlreadyClosed, id)
	}
	return nil
}

// HasOpen reports whether the market currently has an open trade.
func (s *PaperTradeStore) HasOpen(ctx context.Context, marketID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM paper_trades WHERE market_id = $1 AND status = 'open'
		)`, marketID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check open trade for %s: %w", marketID, err)
	}
	return exists, nil
}

// ListOpen returns all open trades, oldest entry first.
func (s *PaperTradeStore) ListOpen(ctx context.Context) ([]domain.PaperTrade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paperTradeCols+`
		FROM paper_trades
		WHERE status = 'open'
		ORDER BY entry_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open trades: %w", err)
	}
	defer rows.Close()

	return scanPaperTrades(rows)
}

// ListClosed returns closed trades newest-exit first, with optional time
// filtering and limit.
func (s *PaperTradeStore) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.PaperTrade, error) {
	query := `SELECT ` + paperTradeCols + ` FROM paper_trades WHERE status = 'closed'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND exit_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND exit_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY exit_time DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	defer rows.Close()

	return scanPaperTrades(rows)
}

func scanPaperTrades(rows pgx.Rows) ([]domain.PaperTrade, error) {
	var trades []domain.PaperTrade
	for rows.Next() {
		var t domain.PaperTrade
		var direction, status string
		if err := rows.Scan(
			&t.ID, &t.RecommendationID, &t.MarketID, &t.Question, &direction,
			&t.EntryScore, &t.EntryPrice, &t.EntryTime, &t.Stake, &status,
			&t.ExitPrice, &t.ExitTime, &t.PnL,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan paper trade: %w", err)
		}
		t.Direction = domain.Direction(direction)
		t.Status = domain.TradeStatus(status)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
