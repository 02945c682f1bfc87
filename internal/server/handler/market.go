package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// MarketHandler serves the tracked-market listing.
type MarketHandler struct {
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler over the given store.
func NewMarketHandler(markets domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "markets"),
	}
}

// marketView is a tracked market joined with its most recent snapshot point.
type marketView struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Category  string    `json:"category,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Volume    float64   `json:"volume"`
	Liquidity float64   `json:"liquidity"`
	YesPrice  float64   `json:"yes_price"`
	NoPrice   float64   `json:"no_price"`
	FetchedAt time.Time `json:"fetched_at"`
}

// listMarketsResponse wraps the list endpoint output.
type listMarketsResponse struct {
	Markets []marketView `json:"markets"`
	Count   int          `json:"count"`
}

// ListMarkets returns tracked markets with their latest snapshot reading,
// ordered by volume descending.
// GET /api/markets?limit=100
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 500)

	points, err := h.markets.ListWithLatest(r.Context(), domain.ListOpts{Limit: limit})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	views := make([]marketView, 0, len(points))
	for _, p := range points {
		views = append(views, marketView{
			ID:        p.ID,
			Question:  p.Question,
			Category:  p.Category,
			Slug:      p.Slug,
			Volume:    p.Volume,
			Liquidity: p.Liquidity,
			YesPrice:  p.YesPrice,
			NoPrice:   p.NoPrice,
			FetchedAt: p.FetchedAt,
		})
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: views,
		Count:   len(views),
	})
}
