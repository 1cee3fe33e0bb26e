package models

import (
	"time"
)

// SubscriptionStatus represents the current state of a subscription.
// Exactly one status holds at any time; active→cancelled happens only through
// explicit cancellation.
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusExpired   SubscriptionStatus = "expired"
	SubStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the record a payer holds against a plan.
type Subscription struct {
	ID                string
	UserID            string
	DeveloperID       string
	ProjectID         string
	PlanID            string
	OnChainPlanID     uint64
	Status            SubscriptionStatus
	PayerAddress      string
	StartDate         time.Time
	LastPaymentDate   *time.Time
	NextPaymentDate   *time.Time
	CancelRequestedAt *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive returns true if the subscription is currently active
func (s *Subscription) IsActive() bool {
	return s.Status == SubStatusActive
}

// IsCancelled returns true if the subscription has been cancelled
func (s *Subscription) IsCancelled() bool {
	return s.Status == SubStatusCancelled || s.CancelledAt != nil
}

// Validate checks the timestamp invariant: next_payment_date, when present,
// must not precede last_payment_date.
func (s *Subscription) Validate() error {
	if s.NextPaymentDate != nil && s.LastPaymentDate != nil && s.NextPaymentDate.Before(*s.LastPaymentDate) {
		return errNextBeforeLast
	}
	return nil
}

// DueSubscription is one row of the scanner's candidate set: a due
// subscription joined with its plan, token, and stored delegation pair.
type DueSubscription struct {
	SubscriptionID  string
	UserID          string
	DeveloperID     string
	ProjectID       string
	PayerAddress    string
	OnChainPlanID   uint64
	TokenAddress    string
	TokenSymbol     string
	PeriodSeconds   uint64
	NextPaymentDate time.Time

	// Raw stored delegation pair; normalized by the executor.
	ApproveDelegation []byte
	ChargeDelegation  []byte
}
