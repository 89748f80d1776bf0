// Package reconciler repairs drift between the follow edges and the
// denormalized follower counters on users.
package reconciler

import (
	"context"
	"time"

	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/observability"
)

const defaultInterval = 5 * time.Minute

// CountRepairer rewrites drifted counters and reports how many rows changed.
type CountRepairer interface {
	ReconcileCounts(ctx context.Context) (int64, error)
}

type Reconciler struct {
	repo     CountRepairer
	interval time.Duration
	quit     chan struct{}
	doneCh   chan struct{}
}

func New(repo CountRepairer, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Reconciler{
		repo:     repo,
		interval: interval,
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the loop in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the loop to exit and returns immediately; wait on Done.
func (r *Reconciler) Stop() {
	close(r.quit)
}

func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconcile pass and returns the rows fixed.
func (r *Reconciler) RunOnce(ctx context.Context) int64 {
	l := logging.L()

	fixed, err := r.repo.ReconcileCounts(ctx)
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to reconcile follower counts")
		return 0
	}

	observability.RecordReconcile(fixed, time.Now())
	if fixed > 0 {
		l.Warn().Int64("rows", fixed).Msg("reconciler: repaired drifted follower counts")
	} else {
		l.Debug().Msg("reconciler: follower counts consistent")
	}
	return fixed
}
