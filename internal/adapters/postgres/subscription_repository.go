package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository against the
// ledger schema written by the upstream checkout flow.
type SubscriptionRepository struct {
	db ports.DBPort

	// managerAddress scopes the delegation join: only delegations granted
	// against this subscription manager contract count as usable.
	managerAddress string
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db ports.DBPort, managerAddress string) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, managerAddress: managerAddress}
}

func (r *SubscriptionRepository) querier(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const listDueSQL = `
SELECT s.id, s.user_id, s.developer_id, s.project_id, s.payer_address,
       p.onchain_plan_id, p.token_address, p.token_symbol, p.period_seconds,
       s.next_payment_date,
       da.delegation_json, dc.delegation_json
FROM user_subscriptions s
JOIN subscription_plans p ON p.id = s.plan_id
JOIN delegations da
  ON da.payer_address = s.payer_address
 AND da.manager_address = $3
 AND da.delegation_type = 'approve'
 AND da.active
JOIN delegations dc
  ON dc.payer_address = s.payer_address
 AND dc.manager_address = $3
 AND dc.delegation_type = 'charge'
 AND dc.active
WHERE s.status = 'active'
  AND s.next_payment_date IS NOT NULL
  AND s.next_payment_date <= $1
ORDER BY s.next_payment_date ASC
LIMIT $2`

// ListDueWithDelegations returns the due candidate set, oldest first.
func (r *SubscriptionRepository) ListDueWithDelegations(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*models.DueSubscription, error) {
	rows, err := r.querier(db).Query(ctx, listDueSQL, asOf, limit, r.managerAddress)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	var due []*models.DueSubscription
	for rows.Next() {
		var d models.DueSubscription
		var next pgtype.Timestamptz
		if err := rows.Scan(
			&d.SubscriptionID, &d.UserID, &d.DeveloperID, &d.ProjectID, &d.PayerAddress,
			&d.OnChainPlanID, &d.TokenAddress, &d.TokenSymbol, &d.PeriodSeconds,
			&next,
			&d.ApproveDelegation, &d.ChargeDelegation,
		); err != nil {
			return nil, fmt.Errorf("scan due subscription: %w", err)
		}
		if next.Valid {
			d.NextPaymentDate = next.Time
		}
		due = append(due, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due subscriptions: %w", err)
	}

	return due, nil
}

const getByIDSQL = `
SELECT id, user_id, developer_id, project_id, plan_id::text, status, payer_address,
       start_date, last_payment_date, next_payment_date,
       cancel_requested_at, cancelled_at, created_at, updated_at
FROM user_subscriptions
WHERE id = $1`

// GetByID retrieves a subscription by its ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.Subscription, error) {
	var s models.Subscription
	var last, next, cancelReq, cancelled pgtype.Timestamptz
	var status string

	err := r.querier(db).QueryRow(ctx, getByIDSQL, id).Scan(
		&s.ID, &s.UserID, &s.DeveloperID, &s.ProjectID, &s.PlanID, &status, &s.PayerAddress,
		&s.StartDate, &last, &next, &cancelReq, &cancelled, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s not found", id)
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}

	s.Status = models.SubscriptionStatus(status)
	s.LastPaymentDate = timePtr(last)
	s.NextPaymentDate = timePtr(next)
	s.CancelRequestedAt = timePtr(cancelReq)
	s.CancelledAt = timePtr(cancelled)

	return &s, nil
}

const recordChargeSQL = `
UPDATE user_subscriptions
SET last_payment_date = $2,
    next_payment_date = $3,
    updated_at = $2
WHERE id = $1`

// RecordCharge advances the subscription's payment timestamps after a
// confirmed charge. A nil next leaves no further auto-renewal scheduled.
func (r *SubscriptionRepository) RecordCharge(ctx context.Context, tx ports.DBTX, subscriptionID string, paidAt time.Time, next *time.Time) error {
	tag, err := r.querier(tx).Exec(ctx, recordChargeSQL, subscriptionID, paidAt, nullTimestamptz(next))
	if err != nil {
		return fmt.Errorf("record charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record charge: subscription %s not found", subscriptionID)
	}
	return nil
}
