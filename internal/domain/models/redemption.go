package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Execution is one action a delegation is redeemed against: a call to Target
// with Value and Calldata.
type Execution struct {
	Target   common.Address
	Value    *big.Int
	Calldata []byte
}

// Redemption binds one delegation to exactly one execution. A redemption
// transaction batches N of these so all legs apply atomically: if any leg's
// enforcer checks fail on-chain, the whole redemption reverts.
type Redemption struct {
	Delegation *Delegation
	Execution  Execution
}

// ChargeReceipt is the confirmed outcome of a redemption transaction.
type ChargeReceipt struct {
	TxHash      common.Hash
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
}
