package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Plan is the ledger's copy of a recurring charge offered by a developer
// project. Immutable once referenced by a live subscription, except for the
// active flag.
type Plan struct {
	ID            string
	DeveloperID   string
	ProjectID     string
	OnChainPlanID uint64
	Price         decimal.Decimal
	TokenAddress  string
	TokenSymbol   string
	PeriodSeconds uint64
	Active        bool
}

// OnChainPlan is the authoritative plan state read from the subscription
// manager contract. The executor charges against this, never the cached
// ledger copy.
type OnChainPlan struct {
	Price  *big.Int
	Period uint64
	Active bool
	Token  common.Address
}

// PriceDecimal converts the raw on-chain price into the decimal form used by
// payment bookkeeping.
func (p *OnChainPlan) PriceDecimal() decimal.Decimal {
	if p.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.Price, 0)
}
