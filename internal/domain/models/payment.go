package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var errNextBeforeLast = errors.New("next_payment_date precedes last_payment_date")

// Payment is an immutable append-only charge record. TxHash is globally
// unique and is the idempotency key: a retried reconciliation re-inserting
// the same hash is a no-op. A failed charge produces no Payment row.
type Payment struct {
	ID             string
	SubscriptionID string
	UserID         string
	DeveloperID    string
	Amount         decimal.Decimal
	TokenAddress   string
	TokenSymbol    string
	PaymentDate    time.Time
	TxHash         string
}
