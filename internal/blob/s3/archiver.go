package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// SnapshotWriter is the narrow upload surface the archiver needs.
type SnapshotWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver serializes snapshot points to JSONL and uploads them before
// retention evicts the rows. Deletion stays with the retention job; the
// archiver only guarantees the data is in the bucket first.
type Archiver struct {
	writer SnapshotWriter
}

// NewArchiver creates an Archiver writing through the given SnapshotWriter.
func NewArchiver(writer SnapshotWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveSnapshots uploads the given points as one JSONL object keyed by the
// cutoff's day, e.g. archive/snapshots/2026-08-30.jsonl. It returns the
// number of records archived; zero points is a no-op.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, points []domain.MarketPoint, before time.Time) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(points)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("snapshots", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	return int64(len(points)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// cutoff's day.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
