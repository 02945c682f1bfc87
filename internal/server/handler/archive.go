package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	s3blob "github.com/whaletrack/engine/internal/blob/s3"
	"github.com/whaletrack/engine/internal/domain"
)

// ArchiveStore lists and retrieves archived snapshot objects.
type ArchiveStore interface {
	List(ctx context.Context, prefix string) ([]s3blob.ArchiveInfo, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArchiveHandler serves the snapshot archives written by the retention job.
type ArchiveHandler struct {
	store  ArchiveStore
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given store.
func NewArchiveHandler(store ArchiveStore, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		store:  store,
		logger: logHandler(logger, "archives"),
	}
}

// archiveView is the JSON shape of one archive object.
type archiveView struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// listArchivesResponse wraps the list endpoint output.
type listArchivesResponse struct {
	Archives []archiveView `json:"archives"`
	Count    int           `json:"count"`
}

// ListArchives returns metadata for stored archive objects.
// GET /api/archives?prefix=archive/snapshots/
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}

	infos, err := h.store.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	views := make([]archiveView, 0, len(infos))
	for _, info := range infos {
		views = append(views, archiveView{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}

	writeJSON(w, http.StatusOK, listArchivesResponse{
		Archives: views,
		Count:    len(views),
	})
}

// GetArchive streams one archive object back to the caller.
// GET /api/archives/{path...}
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r, "path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "archive path is required")
		return
	}

	body, err := h.store.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "streaming archive interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
