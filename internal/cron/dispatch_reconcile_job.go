package cron

import (
	"context"
	"fmt"
)

// Recoverer reconciles persisted dispatch state with the in-memory timers.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// DispatchReconcileJob periodically re-runs dispatch recovery so dispatches
// that slipped past startup recovery (or aged out since) are expired or
// re-armed without a restart.
type DispatchReconcileJob struct {
	recoverer Recoverer
}

// NewDispatchReconcileJob builds the reconciliation job.
func NewDispatchReconcileJob(recoverer Recoverer) (*DispatchReconcileJob, error) {
	if recoverer == nil {
		return nil, fmt.Errorf("recoverer required")
	}
	return &DispatchReconcileJob{recoverer: recoverer}, nil
}

// Name implements Job.
func (j *DispatchReconcileJob) Name() string {
	return "dispatch_reconcile"
}

// Run implements Job.
func (j *DispatchReconcileJob) Run(ctx context.Context) error {
	return j.recoverer.Recover(ctx)
}
