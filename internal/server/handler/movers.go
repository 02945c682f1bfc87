package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/whaletrack/engine/internal/domain"
)

// MoversHandler serves the velocity ranking computed on the last poll tick.
// The ranking lives only in the cache; an empty list is returned until the
// first tick completes.
type MoversHandler struct {
	velocity domain.VelocityCache
	logger   *slog.Logger
}

// NewMoversHandler creates a MoversHandler over the given cache.
func NewMoversHandler(velocity domain.VelocityCache, logger *slog.Logger) *MoversHandler {
	return &MoversHandler{
		velocity: velocity,
		logger:   logHandler(logger, "movers"),
	}
}

// moverView is the JSON shape of one velocity entry.
type moverView struct {
	MarketID        string  `json:"market_id"`
	Question        string  `json:"question"`
	VolumeChangePct float64 `json:"volume_change_pct"`
	PriceChangePct  float64 `json:"price_change_pct"`
	Velocity        int     `json:"velocity"`
}

// listMoversResponse wraps the list endpoint output.
type listMoversResponse struct {
	Movers []moverView `json:"movers"`
	Count  int         `json:"count"`
}

// ListMovers returns the top movers from the latest tick.
// GET /api/movers?limit=20
func (h *MoversHandler) ListMovers(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	entries, err := h.velocity.GetAll(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, listMoversResponse{Movers: []moverView{}})
			return
		}
		h.logger.ErrorContext(r.Context(), "list movers failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list movers")
		return
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}

	views := make([]moverView, 0, len(entries))
	for _, e := range entries {
		views = append(views, moverView{
			MarketID:        e.MarketID,
			Question:        e.Question,
			VolumeChangePct: e.VolumeChangePct,
			PriceChangePct:  e.PriceChangePct,
			Velocity:        e.Velocity,
		})
	}

	writeJSON(w, http.StatusOK, listMoversResponse{
		Movers: views,
		Count:  len(views),
	})
}
