package ports

import (
	"context"
	"time"

	"github.com/onchainbill/collector/internal/domain/models"
)

// SubscriptionRepository reads and updates subscription rows in the ledger.
type SubscriptionRepository interface {
	// ListDueWithDelegations returns active subscriptions whose
	// next_payment_date has passed and that hold an active delegation pair,
	// oldest-due first, capped at limit. Pure read.
	ListDueWithDelegations(ctx context.Context, db DBTX, asOf time.Time, limit int32) ([]*models.DueSubscription, error)

	// GetByID retrieves a single subscription.
	GetByID(ctx context.Context, db DBTX, id string) (*models.Subscription, error)

	// RecordCharge sets last_payment_date to paidAt and next_payment_date to
	// next (nil means no further auto-renewal is scheduled).
	RecordCharge(ctx context.Context, tx DBTX, subscriptionID string, paidAt time.Time, next *time.Time) error
}

// PaymentRepository appends immutable payment records.
type PaymentRepository interface {
	// Insert appends a payment row keyed uniquely by transaction hash.
	// Returns false without error when a row with that hash already exists.
	Insert(ctx context.Context, tx DBTX, payment *models.Payment) (bool, error)

	// CountSince reports how many payments were recorded at or after since.
	CountSince(ctx context.Context, db DBTX, since time.Time) (int64, error)
}
