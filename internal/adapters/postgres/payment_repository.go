package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
)

// PaymentRepository implements ports.PaymentRepository. Payment rows are
// append-only; the tx_hash unique constraint is the idempotency key.
type PaymentRepository struct {
	db ports.DBPort
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) querier(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const insertPaymentSQL = `
INSERT INTO payments (id, subscription_id, user_id, developer_id, amount,
                      token_address, token_symbol, payment_date, tx_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tx_hash) DO NOTHING`

// Insert appends a payment row. Returns false when a row with the same
// transaction hash already exists, so a replayed reconciliation never
// double-counts revenue.
func (r *PaymentRepository) Insert(ctx context.Context, tx ports.DBTX, payment *models.Payment) (bool, error) {
	id := payment.ID
	if id == "" {
		id = uuid.New().String()
	}

	amount, err := decimalToNumeric(payment.Amount)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}

	tag, err := r.querier(tx).Exec(ctx, insertPaymentSQL,
		id, payment.SubscriptionID, payment.UserID, payment.DeveloperID,
		amount, payment.TokenAddress, payment.TokenSymbol, payment.PaymentDate, payment.TxHash,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

const countSinceSQL = `SELECT COUNT(*) FROM payments WHERE payment_date >= $1`

// CountSince reports how many payments were recorded at or after since.
func (r *PaymentRepository) CountSince(ctx context.Context, db ports.DBTX, since time.Time) (int64, error) {
	var count int64
	if err := r.querier(db).QueryRow(ctx, countSinceSQL, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return count, nil
}
