package service

import (
	"context"
	"time"

	"github.com/linkpulse/linkpulse/internal/app/repository"
	"go.uber.org/zap"
)

// RollupReconciler periodically resets each collection's aggregate totals to
// the sums of its per-link performance rows. The collection rollup is
// eventual by design; this sweep bounds how long a dropped event can keep the
// two apart.
type RollupReconciler struct {
	logger    *zap.Logger
	analytics repository.AnalyticsRepository
	interval  time.Duration
	stopChan  chan struct{}
}

// NewRollupReconciler creates a reconciler running at the given interval.
func NewRollupReconciler(logger *zap.Logger, analytics repository.AnalyticsRepository, interval time.Duration) *RollupReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RollupReconciler{
		logger:    logger,
		analytics: analytics,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic reconciliation.
func (r *RollupReconciler) Start() {
	go r.run()
}

// Stop stops the periodic reconciliation.
func (r *RollupReconciler) Stop() {
	close(r.stopChan)
}

func (r *RollupReconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcileAll()
		case <-r.stopChan:
			r.logger.Info("rollup reconciler stopped")
			return
		}
	}
}

func (r *RollupReconciler) reconcileAll() {
	ctx := context.Background()

	ids, err := r.analytics.ListCollectionIDs(ctx)
	if err != nil {
		r.logger.Error("failed to list collections for reconciliation", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := r.analytics.ReconcileCollection(ctx, id); err != nil {
			r.logger.Error("failed to reconcile collection rollup",
				zap.String("collection_id", id),
				zap.Error(err))
		}
	}
}
