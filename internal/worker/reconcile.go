package worker

import (
	"context"
	"time"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/metrics"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
)

const (
	// DefaultReconcileInterval is how often stalled imports are looked for.
	DefaultReconcileInterval = time.Minute

	// DefaultStaleAfter is how long an import may sit in PROCESSING without
	// an update before it is considered stalled.
	DefaultStaleAfter = 15 * time.Minute
)

// StaleFinder claims stalled PROCESSING imports. Implementations touch
// updated_at on every returned import so a sweep re-enqueues it at most once
// per staleness window.
type StaleFinder interface {
	ReclaimStale(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Reconciler re-enqueues imports whose processing message was lost or whose
// worker died mid-run.
type Reconciler struct {
	repo      StaleFinder
	publisher queue.Publisher
	metrics   *metrics.Recorder
	interval  time.Duration
	staleAge  time.Duration
}

// NewReconciler creates a sweep; zero durations fall back to the defaults.
func NewReconciler(repo StaleFinder, publisher queue.Publisher, rec *metrics.Recorder, interval, staleAge time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAfter
	}
	return &Reconciler{
		repo:      repo,
		publisher: publisher,
		metrics:   rec,
		interval:  interval,
		staleAge:  staleAge,
	}
}

// Start runs the sweep on every tick. It blocks until ctx is cancelled.
func (rc *Reconciler) Start(ctx context.Context) {
	log.Info("reconciler starting", "interval", rc.interval, "stale_after", rc.staleAge)

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciler stopping")
			return
		case <-ticker.C:
			rc.Sweep(ctx)
		}
	}
}

// Sweep re-enqueues every stalled import once and returns how many were
// published.
func (rc *Reconciler) Sweep(ctx context.Context) int {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ids, err := rc.repo.ReclaimStale(queryCtx, rc.staleAge)
	if err != nil {
		log.Error("reclaim stale imports", "error", err)
		return 0
	}

	published := 0
	for _, id := range ids {
		if err := rc.publisher.Publish(queryCtx, queue.Message{ImportID: id}); err != nil {
			rc.metrics.EnqueueFailed()
			log.Error("re-enqueue stalled import", "import_id", id, "error", err)
			continue
		}
		published++
	}
	if published > 0 {
		rc.metrics.Reenqueued(published)
		log.Warn("re-enqueued stalled imports", "count", published)
	}
	return published
}
