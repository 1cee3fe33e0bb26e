package collection

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/mock"

	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
)

// MockDBPort mocks the database port
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	// Execute the function with nil transaction for testing
	return fn(ctx, nil)
}

// MockSubscriptionRepository mocks the subscription repository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) ListDueWithDelegations(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*models.DueSubscription, error) {
	args := m.Called(ctx, db, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DueSubscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.Subscription, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) RecordCharge(ctx context.Context, tx ports.DBTX, subscriptionID string, paidAt time.Time, next *time.Time) error {
	args := m.Called(ctx, tx, subscriptionID, paidAt, next)
	return args.Error(0)
}

// MockPaymentRepository mocks the payment repository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Insert(ctx context.Context, tx ports.DBTX, payment *models.Payment) (bool, error) {
	args := m.Called(ctx, tx, payment)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) CountSince(ctx context.Context, db ports.DBTX, since time.Time) (int64, error) {
	args := m.Called(ctx, db, since)
	return args.Get(0).(int64), args.Error(1)
}

// MockChainClient mocks the chain client
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) GetPlan(ctx context.Context, planID uint64) (*models.OnChainPlan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OnChainPlan), args.Error(1)
}

func (m *MockChainClient) IsPaymentDue(ctx context.Context, payer common.Address) (bool, uint64, error) {
	args := m.Called(ctx, payer)
	return args.Bool(0), args.Get(1).(uint64), args.Error(2)
}

func (m *MockChainClient) RedeemDelegations(ctx context.Context, redemptions []models.Redemption) (common.Hash, error) {
	args := m.Called(ctx, redemptions)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockChainClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (*models.ChargeReceipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChargeReceipt), args.Error(1)
}

// MockExecutionCodec mocks the execution codec
type MockExecutionCodec struct {
	mock.Mock
}

func (m *MockExecutionCodec) EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	args := m.Called(spender, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockExecutionCodec) EncodeCharge(payer common.Address) ([]byte, error) {
	args := m.Called(payer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// nopLogger discards all log output in tests
type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...ports.Field)  {}
func (nopLogger) Error(msg string, fields ...ports.Field) {}
func (nopLogger) Warn(msg string, fields ...ports.Field)  {}
func (nopLogger) Debug(msg string, fields ...ports.Field) {}
