package display

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"signage-sync/internal/platform/metrics"
)

// DefaultArchiveInterval is the retention sweep period.
const DefaultArchiveInterval = 24 * time.Hour

// ArchiveLoop moves approved items older than the retention window to the
// archived state and invalidates the catalog so the scheduler sees the
// smaller set. The window comes from the archive_after_days setting, falling
// back to a configured default; zero disables the sweep.
type ArchiveLoop struct {
	store       Store
	catalog     *Catalog
	clock       Clock
	interval    time.Duration
	defaultDays int
	log         *slog.Logger
	metrics     *metrics.Metrics
}

// NewArchiveLoop returns a sweep running every interval (DefaultArchiveInterval if <= 0).
func NewArchiveLoop(store Store, catalog *Catalog, clock Clock, interval time.Duration, defaultDays int, log *slog.Logger, m *metrics.Metrics) *ArchiveLoop {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = DefaultArchiveInterval
	}
	return &ArchiveLoop{
		store:       store,
		catalog:     catalog,
		clock:       clock,
		interval:    interval,
		defaultDays: defaultDays,
		log:         log,
		metrics:     m,
	}
}

// Serve implements suture.Service. A sweep runs at startup and then once per interval.
func (l *ArchiveLoop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	_, _ = l.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = l.RunOnce(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (l *ArchiveLoop) String() string { return "media-archiver" }

// RunOnce performs a single sweep and returns the number of archived items.
func (l *ArchiveLoop) RunOnce(ctx context.Context) (int, error) {
	days := l.retentionDays(ctx)
	if days <= 0 {
		l.log.Debug("archive sweep disabled")
		return 0, nil
	}

	adminID, err := l.store.FirstAdminID(ctx)
	if err != nil {
		if errors.Is(err, ErrNoAdmin) {
			l.log.Warn("archive sweep skipped, no admin to attribute it to")
		} else {
			l.log.Error("lookup admin failed", slog.String("op", "archive.run"), slog.String("error", err.Error()))
		}
		return 0, err
	}

	cutoff := l.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := l.store.ArchiveOlderThan(ctx, cutoff, adminID)
	if err != nil {
		l.log.Error("archive old media failed",
			slog.String("op", "archive.run"),
			slog.Time("cutoff", cutoff),
			slog.String("error", err.Error()))
		return 0, err
	}

	l.catalog.Invalidate()
	if l.metrics != nil {
		l.metrics.AddArchived(n)
	}
	l.log.Info("archive sweep finished",
		slog.Int("archived", n),
		slog.Int("retention_days", days),
		slog.Int64("admin_id", adminID))
	return n, nil
}

func (l *ArchiveLoop) retentionDays(ctx context.Context) int {
	v, ok, err := l.store.Setting(ctx, SettingArchiveAfterDays)
	if err != nil {
		l.log.Warn("read retention setting failed", slog.String("error", err.Error()))
		return l.defaultDays
	}
	if !ok {
		return l.defaultDays
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		l.log.Warn("invalid retention setting", slog.String("value", v))
		return l.defaultDays
	}
	return days
}
