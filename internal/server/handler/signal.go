package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// SignalHandler serves the fired-signal history endpoints.
type SignalHandler struct {
	signals domain.SignalStore
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler over the given store.
func NewSignalHandler(signals domain.SignalStore, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		logger:  logHandler(logger, "signals"),
	}
}

// signalView is the JSON shape of one fired signal.
type signalView struct {
	ID         int64             `json:"id"`
	MarketID   string            `json:"market_id"`
	Kind       domain.SignalKind `json:"kind"`
	Value      float64           `json:"value"`
	Threshold  float64           `json:"threshold"`
	DetectedAt time.Time         `json:"detected_at"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
}

// listSignalsResponse wraps the list endpoint output.
type listSignalsResponse struct {
	Signals []signalView `json:"signals"`
	Count   int          `json:"count"`
	Hours   int          `json:"hours"`
}

// ListSignals returns signals fired within the requested lookback window.
// GET /api/signals?hours=24&limit=100
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r, "hours", time.Hour, 24, 24*7)
	limit := parseLimit(r, 100, 500)
	since := time.Now().UTC().Add(-window)

	signals, err := h.signals.ListRecent(r.Context(), since, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{
		Signals: toSignalViews(signals),
		Count:   len(signals),
		Hours:   int(window / time.Hour),
	})
}

// ListMarketSignals returns signals for one market within the lookback window.
// GET /api/markets/{id}/signals?hours=24
func (h *SignalHandler) ListMarketSignals(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	window := parseWindow(r, "hours", time.Hour, 24, 24*7)
	since := time.Now().UTC().Add(-window)

	signals, err := h.signals.ListByMarket(r.Context(), marketID, since)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list market signals failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list market signals")
		return
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{
		Signals: toSignalViews(signals),
		Count:   len(signals),
		Hours:   int(window / time.Hour),
	})
}

func toSignalViews(signals []domain.Signal) []signalView {
	views := make([]signalView, 0, len(signals))
	for _, s := range signals {
		views = append(views, signalView{
			ID:         s.ID,
			MarketID:   s.MarketID,
			Kind:       s.Kind,
			Value:      s.Value,
			Threshold:  s.Threshold,
			DetectedAt: s.DetectedAt,
			Metadata:   s.Metadata,
		})
	}
	return views
}
