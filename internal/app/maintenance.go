package app

import (
	"context"
	"errors"

	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// Job names, also used as the job field in logs
const (
	JobReconcile    = "ledger_reconcile"
	JobProofCleanup = "proof_cleanup"
)

// Maintenance runs reconciliation and proof cleanup in the background
type Maintenance struct {
	scheduler *scheduler.Scheduler
	trigger   *scheduler.IntervalTrigger
}

// StartMaintenance schedules the periodic jobs when maintenance.enabled is
// set. It returns nil when disabled.
func (c *Container) StartMaintenance(ctx context.Context) (*Maintenance, error) {
	cfg := c.Config.Maintenance
	if !cfg.Enabled {
		return nil, nil
	}

	sched, err := scheduler.NewScheduler(scheduler.Config{
		Workers:       cfg.Workers,
		JobTimeout:    cfg.JobTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, c.Logger)
	if err != nil {
		return nil, err
	}
	trigger := scheduler.NewIntervalTrigger(sched, c.Logger).
		Every(JobReconcile, cfg.ReconcileInterval, c.ReconcileTask).
		Every(JobProofCleanup, cfg.ProofCleanupInterval, c.ProofCleanupTask)

	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(ctx)
		return nil, err
	}
	return &Maintenance{scheduler: sched, trigger: trigger}, nil
}

// Stop stops triggering new runs, then waits for running jobs
func (m *Maintenance) Stop(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return errors.Join(m.trigger.Stop(ctx), m.scheduler.Stop(ctx))
}

// ReconcileTask compares every balance with its ledger. The service logs
// each discrepancy; a finding is reported, not treated as a job failure.
func (c *Container) ReconcileTask(ctx context.Context) error {
	log := c.Logger.With(zap.String("job", JobReconcile))
	found, err := c.Reconciliation.Reconcile(logger.WithContext(ctx, log))
	if err != nil {
		return err
	}
	if len(found) > 0 {
		log.Error("ledger out of balance", zap.Int("discrepancies", len(found)))
		return nil
	}
	log.Info("ledger reconciled")
	return nil
}

// ProofCleanupTask deletes orphaned payment proofs
func (c *Container) ProofCleanupTask(ctx context.Context) error {
	log := c.Logger.With(zap.String("job", JobProofCleanup))
	_, err := c.ProofCleanup.Cleanup(logger.WithContext(ctx, log), false)
	return err
}
