package collection

import (
	"context"

	"github.com/onchainbill/collector/internal/domain"
	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
	"github.com/onchainbill/collector/pkg/timeutil"
)

// Scanner produces the candidate set for one collection cycle: active
// subscriptions whose next_payment_date has passed and that hold an active
// delegation pair. Pure read, no side effects.
type Scanner struct {
	db      ports.DBPort
	subRepo ports.SubscriptionRepository
	limit   int32
	logger  ports.Logger
}

// NewScanner creates a scanner whose result cap is batchSize * backlogMultiple,
// so one cycle cannot be starved by an unbounded backlog. Leftover due
// subscriptions roll into the next cycle.
func NewScanner(db ports.DBPort, subRepo ports.SubscriptionRepository, batchSize, backlogMultiple int, logger ports.Logger) *Scanner {
	if batchSize < 1 {
		batchSize = 1
	}
	if backlogMultiple < 1 {
		backlogMultiple = 1
	}
	return &Scanner{
		db:      db,
		subRepo: subRepo,
		limit:   int32(batchSize * backlogMultiple),
		logger:  logger,
	}
}

// Scan returns due subscriptions oldest-due first, capped at the scanner's
// limit.
func (s *Scanner) Scan(ctx context.Context) ([]*models.DueSubscription, error) {
	asOf := timeutil.Now()

	due, err := s.subRepo.ListDueWithDelegations(ctx, s.db.GetDB(), asOf, s.limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeLedgerQueryFailed, "list due subscriptions", err)
	}

	s.logger.Debug("scanned for due subscriptions",
		ports.Int("due", len(due)),
		ports.String("as_of", asOf.Format("2006-01-02T15:04:05Z07:00")))

	return due, nil
}
