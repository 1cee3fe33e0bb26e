package collection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/onchainbill/collector/internal/domain/models"
)

// countingCharger tracks peak concurrent Charge invocations
type countingCharger struct {
	mu      sync.Mutex
	active  int
	peak    int
	total   int
	status  ChargeStatus
	blockFn func()
}

func (c *countingCharger) Charge(ctx context.Context, due *models.DueSubscription) ChargeOutcome {
	c.mu.Lock()
	c.active++
	c.total++
	if c.active > c.peak {
		c.peak = c.active
	}
	c.mu.Unlock()

	if c.blockFn != nil {
		c.blockFn()
	}

	c.mu.Lock()
	c.active--
	c.mu.Unlock()

	return ChargeOutcome{SubscriptionID: due.SubscriptionID, Status: c.status}
}

func newTestRunner(subRepo *MockSubscriptionRepository, charger Charger, concurrency int) *Runner {
	db := new(MockDBPort)
	scanner := NewScanner(db, subRepo, concurrency, 4, nopLogger{})
	return NewRunner(scanner, charger, concurrency, time.Minute, time.Second, nopLogger{})
}

func TestRunCycleBoundsConcurrency(t *testing.T) {
	const concurrency = 3
	const items = 10

	due := make([]*models.DueSubscription, items)
	for i := range due {
		d := dueSubscription()
		due[i] = d
	}

	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, int32(concurrency*4)).
		Return(due, nil)

	charger := &countingCharger{
		status:  StatusReconciled,
		blockFn: func() { time.Sleep(20 * time.Millisecond) },
	}
	runner := newTestRunner(subRepo, charger, concurrency)

	stats, err := runner.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, items, stats.Due)
	assert.Equal(t, items, stats.Reconciled)
	assert.Equal(t, items, charger.total)
	assert.LessOrEqual(t, charger.peak, concurrency)
}

func TestRunCycleCountsOutcomes(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.DueSubscription{dueSubscription(), dueSubscription()}, nil)

	charger := &countingCharger{status: StatusSkippedNotDue}
	runner := newTestRunner(subRepo, charger, 2)

	stats, err := runner.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Due)
	assert.Equal(t, 2, stats.SkippedNotDue)
	assert.Zero(t, stats.Reconciled)
	assert.Zero(t, stats.Failed)
}

func TestRunCycleEmptyScanIsClean(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.DueSubscription{}, nil)

	charger := &countingCharger{status: StatusReconciled}
	runner := newTestRunner(subRepo, charger, 2)

	stats, err := runner.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Zero(t, stats.Due)
	assert.Zero(t, charger.total)
}

func TestRunCycleScanFailureReturnsError(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("relation does not exist"))

	charger := &countingCharger{status: StatusReconciled}
	runner := newTestRunner(subRepo, charger, 2)

	_, err := runner.RunCycle(context.Background())

	require.Error(t, err)
	assert.Zero(t, charger.total)
}

func TestRunSleepsWhenEveryDueItemIsSkipped(t *testing.T) {
	// A row can stay locally due across cycles, e.g. when the on-chain
	// due-check says a concurrent process already collected it. That must
	// not turn the loop into a re-scan spin.
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.DueSubscription{dueSubscription()}, nil)

	charger := &countingCharger{status: StatusSkippedNotDue}
	runner := newTestRunner(subRepo, charger, 1)
	runner.pollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}

	charger.mu.Lock()
	defer charger.mu.Unlock()
	assert.Equal(t, 1, charger.total, "skipped-only cycles must wait out the poll interval")
}

func TestRunDrainsBacklogWhileReconciling(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.DueSubscription{dueSubscription()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	charger := &countingCharger{status: StatusReconciled}
	charger.blockFn = func() {
		charger.mu.Lock()
		total := charger.total
		charger.mu.Unlock()
		if total >= 3 {
			cancel()
		}
	}
	runner := newTestRunner(subRepo, charger, 1)
	runner.pollInterval = time.Hour

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner kept sleeping instead of draining the backlog")
	}

	charger.mu.Lock()
	defer charger.mu.Unlock()
	assert.GreaterOrEqual(t, charger.total, 3, "reconciling cycles should run back to back")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("ListDueWithDelegations", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.DueSubscription{}, nil)

	charger := &countingCharger{status: StatusReconciled}
	runner := newTestRunner(subRepo, charger, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
