package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// RecommendationHandler serves the ranked recommendation list. Reads go to
// the Redis cache first and fall back to the active set in Postgres when the
// cache is cold or unavailable.
type RecommendationHandler struct {
	cache  domain.RecommendationCache
	store  domain.RecommendationStore
	logger *slog.Logger
}

// NewRecommendationHandler creates a RecommendationHandler.
func NewRecommendationHandler(cache domain.RecommendationCache, store domain.RecommendationStore, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		cache:  cache,
		store:  store,
		logger: logHandler(logger, "recommendations"),
	}
}

// recommendationView is the JSON shape of one ranked recommendation.
type recommendationView struct {
	ID           string              `json:"id"`
	MarketID     string              `json:"market_id"`
	Question     string              `json:"question"`
	Category     string              `json:"category,omitempty"`
	Slug         string              `json:"slug,omitempty"`
	Direction    domain.Direction    `json:"direction"`
	WhaleScore   int                 `json:"whale_score"`
	Confidence   domain.Confidence   `json:"confidence"`
	SignalsFired []domain.SignalKind `json:"signals_fired"`
	Price        float64             `json:"price"`
	Volume       float64             `json:"volume"`
	Liquidity    float64             `json:"liquidity"`
	CreatedAt    time.Time           `json:"created_at"`
}

// listRecommendationsResponse wraps the list endpoint output with metadata.
type listRecommendationsResponse struct {
	Recommendations []recommendationView `json:"recommendations"`
	Count           int                  `json:"count"`
}

// ListRecommendations returns the most recently committed ranked list.
// GET /api/recommendations?limit=20
func (h *RecommendationHandler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	recs, err := h.cache.GetAll(r.Context())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "recommendation cache read failed, falling back to store",
				slog.String("error", err.Error()),
			)
		}
		recs, err = h.store.ListActive(r.Context(), limit)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "list recommendations failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to list recommendations")
			return
		}
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}

	views := make([]recommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, recommendationView{
			ID:           rec.ID,
			MarketID:     rec.MarketID,
			Question:     rec.Question,
			Category:     rec.Category,
			Slug:         rec.Slug,
			Direction:    rec.Direction,
			WhaleScore:   rec.WhaleScore,
			Confidence:   rec.Confidence,
			SignalsFired: rec.SignalsFired,
			Price:        rec.Price,
			Volume:       rec.Volume,
			Liquidity:    rec.Liquidity,
			CreatedAt:    rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, listRecommendationsResponse{
		Recommendations: views,
		Count:           len(views),
	})
}
