package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

type captureWriter struct {
	path        string
	contentType string
	data        []byte
}

func (c *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	c.path = path
	c.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.data = b
	return nil
}

func TestArchiveSnapshotsWritesJSONL(t *testing.T) {
	w := &captureWriter{}
	arch := NewArchiver(w)
	cutoff := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	points := []domain.MarketPoint{
		{ID: "m1", Volume: 1000, YesPrice: 0.55, FetchedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "m2", Volume: 2000, YesPrice: 0.40, FetchedAt: cutoff.Add(-49 * time.Hour)},
	}

	n, err := arch.ArchiveSnapshots(context.Background(), points, cutoff)
	if err != nil {
		t.Fatalf("ArchiveSnapshots: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived %d, want 2", n)
	}
	if w.path != "archive/snapshots/2026-08-30.jsonl" {
		t.Fatalf("path = %q", w.path)
	}
	if w.contentType != "application/x-ndjson" {
		t.Fatalf("content type = %q", w.contentType)
	}

	scanner := bufio.NewScanner(bytes.NewReader(w.data))
	var lines int
	for scanner.Scan() {
		var p domain.MarketPoint
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("got %d JSONL lines, want 2", lines)
	}
}

func TestArchiveSnapshotsEmptyIsNoOp(t *testing.T) {
	w := &captureWriter{}
	arch := NewArchiver(w)

	n, err := arch.ArchiveSnapshots(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("ArchiveSnapshots: %v", err)
	}
	if n != 0 || w.path != "" {
		t.Fatalf("expected no upload, got n=%d path=%q", n, w.path)
	}
}
