package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainbill/collector/internal/domain/models"
)

// ExecutionCodec builds the calldata for the two executions a charge needs:
// the token-spend authorization and the charge call itself.
type ExecutionCodec interface {
	EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error)
	EncodeCharge(payer common.Address) ([]byte, error)
}

// ChainClient is the collector's view of the chain: plan reads, the
// authoritative due-check, redemption submission, and receipt awaiting.
// Nonce serialization for concurrent submissions from the operating key is
// the transport's responsibility.
type ChainClient interface {
	// GetPlan reads the authoritative plan state from the subscription
	// manager contract.
	GetPlan(ctx context.Context, planID uint64) (*models.OnChainPlan, error)

	// IsPaymentDue asks the charging contract whether a payment is owed for
	// the payer right now, and when the next one falls due.
	IsPaymentDue(ctx context.Context, payer common.Address) (bool, uint64, error)

	// RedeemDelegations submits one transaction exercising all given
	// (delegation, execution) pairs atomically and returns its hash.
	RedeemDelegations(ctx context.Context, redemptions []models.Redemption) (common.Hash, error)

	// WaitForReceipt polls until the transaction is mined or ctx expires.
	// A mined-but-reverted transaction returns a receipt with Success false,
	// not an error.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*models.ChargeReceipt, error)
}
