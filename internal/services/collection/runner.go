package collection

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
	"github.com/onchainbill/collector/pkg/observability"
)

// CycleStats counts charge outcomes for one collection cycle.
type CycleStats struct {
	Due                 int `json:"due"`
	Reconciled          int `json:"reconciled"`
	SkippedNoDelegation int `json:"skipped_no_delegation"`
	SkippedNotDue       int `json:"skipped_not_due"`
	Failed              int `json:"failed"`
}

func (s *CycleStats) record(status ChargeStatus) {
	switch status {
	case StatusReconciled:
		s.Reconciled++
	case StatusSkippedNoDelegation:
		s.SkippedNoDelegation++
	case StatusSkippedNotDue:
		s.SkippedNotDue++
	default:
		s.Failed++
	}
}

// Charger runs one charge workflow for one due subscription.
type Charger interface {
	Charge(ctx context.Context, due *models.DueSubscription) ChargeOutcome
}

// Runner drives the collection loop: scan for due subscriptions, fan the due
// set out over a bounded number of concurrent charge workflows, repeat. It
// runs until its context is cancelled.
type Runner struct {
	scanner      *Scanner
	executor     Charger
	concurrency  int64
	pollInterval time.Duration
	errorBackoff time.Duration
	logger       ports.Logger
}

// NewRunner creates a runner. concurrency bounds in-flight charge workflows
// per cycle; pollInterval is the sleep after an empty scan; errorBackoff is
// the sleep after a whole-cycle failure.
func NewRunner(
	scanner *Scanner,
	executor Charger,
	concurrency int,
	pollInterval time.Duration,
	errorBackoff time.Duration,
	logger ports.Logger,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if errorBackoff <= 0 {
		errorBackoff = 10 * time.Second
	}
	return &Runner{
		scanner:      scanner,
		executor:     executor,
		concurrency:  int64(concurrency),
		pollInterval: pollInterval,
		errorBackoff: errorBackoff,
		logger:       logger,
	}
}

// Run loops forever until ctx is cancelled. A cycle failure is logged and
// followed by a short backoff, never a crash. A cycle that reconciled at
// least one item is followed immediately by the next one so a backlog drains
// without waiting out the poll interval; any other cycle sleeps the poll
// interval.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("collection runner started",
		ports.Int("concurrency", int(r.concurrency)),
		ports.Duration("poll_interval", r.pollInterval))

	for {
		stats, err := r.RunCycle(ctx)

		var pause time.Duration
		switch {
		case err != nil:
			r.logger.Error("collection cycle failed", ports.Err(err))
			pause = r.errorBackoff
		case stats.Reconciled > 0:
			// More backlog may sit behind the scan cap; re-scan now.
			pause = 0
		default:
			// Nothing reconciled: skipped and failed items are still due
			// locally, so re-scanning now would spin against the same rows.
			pause = r.pollInterval
		}

		if pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunCycle executes one scan-and-charge pass and returns its outcome counts.
// Per-item failures are absorbed into the stats; only a scan failure is
// returned as an error.
func (r *Runner) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	start := time.Now()

	due, err := r.scanner.Scan(ctx)
	if err != nil {
		observability.RecordCycle("scan_failed", time.Since(start))
		return stats, err
	}

	stats.Due = len(due)
	observability.SetDueBacklog(len(due))

	if len(due) == 0 {
		observability.RecordCycle("ok", time.Since(start))
		return stats, nil
	}

	r.logger.Info("collection cycle starting",
		ports.Int("due", len(due)))

	sem := semaphore.NewWeighted(r.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, d := range due {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled mid-cycle; in-flight charges finish below.
			break
		}

		wg.Add(1)
		go func(d *models.DueSubscription) {
			defer wg.Done()
			defer sem.Release(1)

			done := observability.ChargeStarted()
			defer done()

			chargeStart := time.Now()
			outcome := r.executor.Charge(ctx, d)
			observability.RecordCharge(string(outcome.Status), time.Since(chargeStart))

			mu.Lock()
			stats.record(outcome.Status)
			mu.Unlock()
		}(d)
	}

	wg.Wait()

	observability.RecordCycle("ok", time.Since(start))
	r.logger.Info("collection cycle finished",
		ports.Int("due", stats.Due),
		ports.Int("reconciled", stats.Reconciled),
		ports.Int("skipped_no_delegation", stats.SkippedNoDelegation),
		ports.Int("skipped_not_due", stats.SkippedNotDue),
		ports.Int("failed", stats.Failed),
		ports.Duration("took", time.Since(start)))

	return stats, nil
}
