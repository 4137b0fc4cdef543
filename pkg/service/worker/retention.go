package worker

import (
	"context"
	"time"

	"github.com/engram-dev/engram/pkg/domain/interfaces"
	"github.com/engram-dev/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// RetentionWorker periodically trims archived memory versions and
// expires old audit records.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type RetentionWorker struct {
	repo          interfaces.Repository
	interval      time.Duration
	keepVersions  int
	auditRetainer time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewRetentionWorker creates a worker that keeps at most keepVersions
// archived snapshots per memory and drops audit records older than
// auditRetention.
func NewRetentionWorker(repo interfaces.Repository, interval time.Duration, keepVersions int, auditRetention time.Duration) *RetentionWorker {
	return &RetentionWorker{
		repo:          repo,
		interval:      interval,
		keepVersions:  keepVersions,
		auditRetainer: auditRetention,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins the background retention loop. It does not block.
func (w *RetentionWorker) Start(ctx context.Context) error {
	logging.Default().Info("Retention worker starting",
		"interval", w.interval.String(),
		"keep_versions", w.keepVersions,
		"audit_retention", w.auditRetainer.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *RetentionWorker) Stop() {
	logging.Default().Info("Retention worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Retention worker stopped")
}

func (w *RetentionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("Retention sweep failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("Retention worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Retention worker context cancelled")
			return
		}
	}
}

// sweep performs a single retention cycle. Version trimming and audit
// expiry touch independent collections, so they run concurrently.
func (w *RetentionWorker) sweep(ctx context.Context) error {
	startTime := time.Now()

	var trimmed, expired int
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := w.repo.Memory().TrimVersions(ctx, w.keepVersions)
		if err != nil {
			return goerr.Wrap(err, "failed to trim memory versions")
		}
		trimmed = n
		return nil
	})
	eg.Go(func() error {
		n, err := w.repo.AuditLog().DeleteOlderThan(ctx, startTime.Add(-w.auditRetainer))
		if err != nil {
			return goerr.Wrap(err, "failed to expire audit logs")
		}
		expired = n
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	logging.Default().Info("Retention sweep completed",
		"trimmed_versions", trimmed,
		"expired_audit_logs", expired,
		"duration", time.Since(startTime).String())

	return nil
}
