package janitor

import (
	"context"
	"log/slog"
	"time"
)

// StaleDeleter is the slice of storage the janitor needs.
type StaleDeleter interface {
	DeleteStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Janitor periodically deletes deal rows past their freshness window. It is
// the only component that ever removes deals; the pipeline itself never
// deletes.
type Janitor struct {
	store      StaleDeleter
	interval   time.Duration
	staleAfter time.Duration
}

func New(store StaleDeleter, interval, staleAfter time.Duration) *Janitor {
	return &Janitor{store: store, interval: interval, staleAfter: staleAfter}
}

// Run sweeps on a fixed ticker until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	deleted, err := j.store.DeleteStale(ctx, j.staleAfter)
	if err != nil {
		slog.Warn("Stale deal cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Deleted stale deals", "count", deleted, "older_than", j.staleAfter)
	}
}
