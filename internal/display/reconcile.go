package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"signage-sync/internal/platform/metrics"
)

// DefaultReconcileInterval is how often the approved count is re-checked.
const DefaultReconcileInterval = 30 * time.Second

// ReconcileLoop periodically compares the stored approved count with the
// last one it saw. On a change it drops the cached catalog and lets the
// scheduler reset, so no index keeps pointing at a removed item.
type ReconcileLoop struct {
	sched    *Scheduler
	catalog  *Catalog
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	lastCount int
	primed    bool
}

// NewReconcileLoop returns a loop ticking every interval (DefaultReconcileInterval if <= 0).
func NewReconcileLoop(sched *Scheduler, catalog *Catalog, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *ReconcileLoop {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &ReconcileLoop{
		sched:    sched,
		catalog:  catalog,
		interval: interval,
		log:      log,
		metrics:  m,
	}
}

// Serve implements suture.Service. The first tick runs immediately.
func (l *ReconcileLoop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (l *ReconcileLoop) String() string { return "catalog-reconciler" }

// Tick runs one comparison and reports whether drift was found. The first
// successful tick only records the baseline count.
func (l *ReconcileLoop) Tick(ctx context.Context) bool {
	n, err := l.catalog.Count(ctx)
	if err != nil {
		l.log.Error("count approved media failed",
			slog.String("op", "reconcile.tick"),
			slog.String("error", err.Error()))
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.primed {
		l.lastCount, l.primed = n, true
		return false
	}
	if n == l.lastCount {
		return false
	}

	l.log.Info("approved media drift detected",
		slog.Int("previous", l.lastCount),
		slog.Int("current", n))
	l.catalog.Invalidate()
	l.lastCount = n
	if l.metrics != nil {
		l.metrics.IncDrift()
	}
	if l.sched.OnCatalogDrift(ctx) {
		l.log.Info("timeline reset after drift")
	}
	return true
}

// LastCount returns the last observed approved count.
func (l *ReconcileLoop) LastCount() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastCount, l.primed
}
