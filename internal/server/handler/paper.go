package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// PaperService defines the ledger operations the paper-trading handler needs.
// It is declared locally so the handler package does not depend on the
// concrete ledger implementation.
type PaperService interface {
	OpenPositions(ctx context.Context) ([]domain.PaperTrade, error)
	History(ctx context.Context, limit int) ([]domain.PaperTrade, error)
	Stats(ctx context.Context, lookback time.Duration, now time.Time) (domain.TradeStats, error)
}

// PaperHandler serves the paper-trading ledger endpoints.
type PaperHandler struct {
	ledger PaperService
	logger *slog.Logger
}

// NewPaperHandler creates a PaperHandler over the given ledger.
func NewPaperHandler(ledger PaperService, logger *slog.Logger) *PaperHandler {
	return &PaperHandler{
		ledger: ledger,
		logger: logHandler(logger, "paper"),
	}
}

// tradeView is the JSON shape of one paper trade.
type tradeView struct {
	ID               string           `json:"id"`
	RecommendationID string           `json:"recommendation_id,omitempty"`
	MarketID         string           `json:"market_id"`
	Question         string           `json:"question"`
	Direction        domain.Direction `json:"direction"`
	EntryScore       int              `json:"entry_score"`
	EntryPrice       float64          `json:"entry_price"`
	EntryTime        time.Time        `json:"entry_time"`
	Stake            float64          `json:"stake"`
	Status           string           `json:"status"`
	ExitPrice        *float64         `json:"exit_price,omitempty"`
	ExitTime         *time.Time       `json:"exit_time,omitempty"`
	PnL              *float64         `json:"pnl,omitempty"`
}

// statsView is the JSON shape of the aggregate performance stats.
type statsView struct {
	TotalTrades      int        `json:"total_trades"`
	WinningTrades    int        `json:"winning_trades"`
	LosingTrades     int        `json:"losing_trades"`
	WinRate          float64    `json:"win_rate"`
	TotalPnL         float64    `json:"total_pnl"`
	AvgPnL           float64    `json:"avg_pnl"`
	AvgEntryScore    float64    `json:"avg_entry_score"`
	BestTrade        *tradeView `json:"best_trade,omitempty"`
	WorstTrade       *tradeView `json:"worst_trade,omitempty"`
	HighScoreTrades  int        `json:"high_score_trades"`
	HighScoreWinRate float64    `json:"high_score_win_rate"`
	Days             int        `json:"days"`
}

// GetStats returns aggregate ledger performance over the requested window.
// GET /api/paper-trading/stats?days=30
func (h *PaperHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r, "days", 24*time.Hour, 30, 365)

	stats, err := h.ledger.Stats(r.Context(), window, time.Now().UTC())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "compute stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, statsView{
		TotalTrades:      stats.TotalTrades,
		WinningTrades:    stats.WinningTrades,
		LosingTrades:     stats.LosingTrades,
		WinRate:          stats.WinRate,
		TotalPnL:         stats.TotalPnL,
		AvgPnL:           stats.AvgPnL,
		AvgEntryScore:    stats.AvgEntryScore,
		BestTrade:        toTradeViewPtr(stats.BestTrade),
		WorstTrade:       toTradeViewPtr(stats.WorstTrade),
		HighScoreTrades:  stats.HighScoreTrades,
		HighScoreWinRate: stats.HighScoreWinRate,
		Days:             int(window / (24 * time.Hour)),
	})
}

// ListPositions returns all currently open trades.
// GET /api/paper-trading/positions
func (h *PaperHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.OpenPositions(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"positions": toTradeViews(trades),
		"count":     len(trades),
	})
}

// ListHistory returns closed trades, newest first.
// GET /api/paper-trading/history?limit=50
func (h *PaperHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	trades, err := h.ledger.History(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trade history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": toTradeViews(trades),
		"count":  len(trades),
	})
}

func toTradeViews(trades []domain.PaperTrade) []tradeView {
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, toTradeView(t))
	}
	return views
}

func toTradeView(t domain.PaperTrade) tradeView {
	return tradeView{
		ID:               t.ID,
		RecommendationID: t.RecommendationID,
		MarketID:         t.MarketID,
		Question:         t.Question,
		Direction:        t.Direction,
		EntryScore:       t.EntryScore,
		EntryPrice:       t.EntryPrice,
		EntryTime:        t.EntryTime,
		Stake:            t.Stake,
		Status:           string(t.Status),
		ExitPrice:        t.ExitPrice,
		ExitTime:         t.ExitTime,
		PnL:              t.PnL,
	}
}

func toTradeViewPtr(t *domain.PaperTrade) *tradeView {
	if t == nil {
		return nil
	}
	v := toTradeView(*t)
	return &v
}
