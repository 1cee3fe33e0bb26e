package collection

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/onchainbill/collector/internal/domain"
	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
	"github.com/onchainbill/collector/pkg/timeutil"
)

// Reconciler makes the ledger match a confirmed on-chain charge, exactly
// once per transaction hash. The subscription timestamp update and the
// payment insert commit together or not at all.
type Reconciler struct {
	db      ports.DBPort
	subRepo ports.SubscriptionRepository
	payRepo ports.PaymentRepository
	logger  ports.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(db ports.DBPort, subRepo ports.SubscriptionRepository, payRepo ports.PaymentRepository, logger ports.Logger) *Reconciler {
	return &Reconciler{
		db:      db,
		subRepo: subRepo,
		payRepo: payRepo,
		logger:  logger,
	}
}

// Reconcile records the confirmed charge: last_payment_date moves to now,
// next_payment_date to now + the authoritative on-chain period (NULL when
// the period is zero, meaning no further auto-renewal), and a payment row
// keyed by tx hash is appended. Re-running for the same hash is a no-op on
// the payment side.
//
// The charge is already durable on-chain when this runs, so any failure here
// is a real local/chain divergence and is logged at error level. The caller
// may retry by hash.
func (r *Reconciler) Reconcile(ctx context.Context, due *models.DueSubscription, plan *models.OnChainPlan, txHash common.Hash) error {
	paidAt := timeutil.Now()

	var next *time.Time
	if plan.Period > 0 {
		n := paidAt.Add(time.Duration(plan.Period) * time.Second)
		next = &n
	}

	var inserted bool
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := r.subRepo.RecordCharge(ctx, tx, due.SubscriptionID, paidAt, next); err != nil {
			return err
		}

		payment := &models.Payment{
			ID:             uuid.New().String(),
			SubscriptionID: due.SubscriptionID,
			UserID:         due.UserID,
			DeveloperID:    due.DeveloperID,
			Amount:         plan.PriceDecimal(),
			TokenAddress:   due.TokenAddress,
			TokenSymbol:    due.TokenSymbol,
			PaymentDate:    paidAt,
			TxHash:         txHash.Hex(),
		}

		var err error
		inserted, err = r.payRepo.Insert(ctx, tx, payment)
		return err
	})
	if err != nil {
		r.logger.Error("ledger reconciliation failed for confirmed charge",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("tx_hash", txHash.Hex()),
			ports.Err(err))
		return domain.WrapError(domain.ErrorCodeLedgerWriteFailed, "reconcile confirmed charge", err).
			WithDetail("tx_hash", txHash.Hex())
	}

	if !inserted {
		r.logger.Warn("payment row already recorded for tx hash",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("tx_hash", txHash.Hex()))
	}

	return nil
}
