package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// SnapshotArchiver uploads points to cold storage before eviction.
type SnapshotArchiver interface {
	ArchiveSnapshots(ctx context.Context, points []domain.MarketPoint, before time.Time) (int64, error)
}

// RetentionConfig bounds the retained snapshot history by age and by tick
// count. Both limits apply; whichever bites first wins.
type RetentionConfig struct {
	MaxAge       time.Duration
	MaxSnapshots int
	Interval     time.Duration
}

// Retention evicts old snapshot data, archiving it first when an archiver is
// configured. Signals and deactivated recommendations age out on the same
// cutoff.
type Retention struct {
	snaps    domain.SnapshotStore
	signals  domain.SignalStore
	recs     domain.RecommendationStore
	archiver SnapshotArchiver // nil disables archival
	cfg      RetentionConfig
	logger   *slog.Logger
}

// NewRetention creates a Retention job. archiver may be nil.
func NewRetention(
	snaps domain.SnapshotStore,
	signals domain.SignalStore,
	recs domain.RecommendationStore,
	archiver SnapshotArchiver,
	cfg RetentionConfig,
	logger *slog.Logger,
) *Retention {
	return &Retention{
		snaps:    snaps,
		signals:  signals,
		recs:     recs,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "retention")),
	}
}

// RunLoop runs the retention sweep on the configured interval until the
// context is cancelled. The first sweep fires immediately.
func (r *Retention) RunLoop(ctx context.Context) error {
	if err := r.Sweep(ctx, time.Now().UTC()); err != nil {
		r.logger.ErrorContext(ctx, "retention sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "retention loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx, time.Now().UTC()); err != nil {
				r.logger.ErrorContext(ctx, "retention sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep performs one eviction pass at the given time.
func (r *Retention) Sweep(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-r.cfg.MaxAge)

	// The count cap can push the cutoff forward: when more ticks are
	// retained than allowed, the oldest surplus ticks go too.
	count, err := r.snaps.TickCount(ctx)
	if err != nil {
		return fmt.Errorf("retention: count ticks: %w", err)
	}
	if surplus := int(count) - r.cfg.MaxSnapshots; surplus > 0 {
		oldest, err := r.snaps.OldestTicks(ctx, surplus)
		if err != nil {
			return fmt.Errorf("retention: list oldest ticks: %w", err)
		}
		if len(oldest) > 0 {
			// Evict through the last surplus tick inclusively.
			countCutoff := oldest[len(oldest)-1].Add(time.Nanosecond)
			if countCutoff.After(cutoff) {
				cutoff = countCutoff
			}
		}
	}

	if err := r.evict(ctx, cutoff); err != nil {
		return err
	}
	return nil
}

// evict archives (when configured) and deletes everything older than cutoff.
func (r *Retention) evict(ctx context.Context, cutoff time.Time) error {
	if r.archiver != nil {
		points, err := r.snaps.ListBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("retention: list snapshots for archive: %w", err)
		}
		archived, err := r.archiver.ArchiveSnapshots(ctx, points, cutoff)
		if err != nil {
			// Do not delete what was not archived.
			return fmt.Errorf("retention: archive snapshots: %w", err)
		}
		if archived > 0 {
			r.logger.InfoContext(ctx, "snapshots archived", slog.Int64("count", archived))
		}
	}

	snapsDeleted, err := r.snaps.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: delete snapshots: %w", err)
	}
	sigsDeleted, err := r.signals.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: delete signals: %w", err)
	}
	recsDeleted, err := r.recs.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: delete recommendations: %w", err)
	}

	if snapsDeleted+sigsDeleted+recsDeleted > 0 {
		r.logger.InfoContext(ctx, "retention sweep complete",
			slog.Int64("snapshots_deleted", snapsDeleted),
			slog.Int64("signals_deleted", sigsDeleted),
			slog.Int64("recommendations_deleted", recsDeleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}
