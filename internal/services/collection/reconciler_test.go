package collection

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/onchainbill/collector/internal/domain"
	"github.com/onchainbill/collector/internal/domain/models"
)

func TestReconcileZeroPeriodClearsNextPaymentDate(t *testing.T) {
	db := new(MockDBPort)
	subRepo := new(MockSubscriptionRepository)
	payRepo := new(MockPaymentRepository)
	r := NewReconciler(db, subRepo, payRepo, nopLogger{})

	plan := &models.OnChainPlan{Price: big.NewInt(100), Period: 0, Active: true}

	db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	subRepo.On("RecordCharge", mock.Anything, mock.Anything, "sub-1", mock.Anything, (*time.Time)(nil)).Return(nil)
	payRepo.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	err := r.Reconcile(context.Background(), dueSubscription(), plan, testTxHash)

	require.NoError(t, err)
	subRepo.AssertExpectations(t)
}

func TestReconcileDuplicateHashIsNoOp(t *testing.T) {
	db := new(MockDBPort)
	subRepo := new(MockSubscriptionRepository)
	payRepo := new(MockPaymentRepository)
	r := NewReconciler(db, subRepo, payRepo, nopLogger{})

	db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	subRepo.On("RecordCharge", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	// Payment row already exists for this hash
	payRepo.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	err := r.Reconcile(context.Background(), dueSubscription(), activePlan(), testTxHash)

	require.NoError(t, err)
}

func TestReconcileLedgerFailureSurfacesWriteError(t *testing.T) {
	db := new(MockDBPort)
	subRepo := new(MockSubscriptionRepository)
	payRepo := new(MockPaymentRepository)
	r := NewReconciler(db, subRepo, payRepo, nopLogger{})

	db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	subRepo.On("RecordCharge", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))

	err := r.Reconcile(context.Background(), dueSubscription(), activePlan(), testTxHash)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeLedgerWriteFailed, domain.ErrorCodeOf(err))
	payRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileTransactionRollbackPropagates(t *testing.T) {
	db := new(MockDBPort)
	subRepo := new(MockSubscriptionRepository)
	payRepo := new(MockPaymentRepository)
	r := NewReconciler(db, subRepo, payRepo, nopLogger{})

	db.On("WithTransaction", mock.Anything, mock.Anything).Return(errors.New("deadlock detected"))

	err := r.Reconcile(context.Background(), dueSubscription(), activePlan(), testTxHash)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeLedgerWriteFailed, domain.ErrorCodeOf(err))
}
