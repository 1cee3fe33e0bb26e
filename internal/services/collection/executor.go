package collection

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainbill/collector/internal/domain"
	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
)

// ChargeStatus is the terminal state of one charge workflow. The values
// double as metric label values.
type ChargeStatus string

const (
	StatusReconciled          ChargeStatus = "reconciled"
	StatusSkippedNoDelegation ChargeStatus = "skipped_no_delegation"
	StatusSkippedNotDue       ChargeStatus = "skipped_not_due"
	StatusFailed              ChargeStatus = "failed"
)

// ChargeOutcome reports how one subscription's charge attempt ended.
type ChargeOutcome struct {
	SubscriptionID string
	Status         ChargeStatus
	TxHash         string
	Err            error
}

// Executor runs the per-subscription charge workflow:
//
//	candidate → delegation-loaded → on-chain-due-confirmed → redeemed →
//	confirmed → reconciled
//
// with skip exits for a missing delegation pair or a not-due payer, and a
// failed exit for everything else. A failure for one subscription never
// aborts its siblings; the runner isolates each attempt.
type Executor struct {
	chain               ports.ChainClient
	codec               ports.ExecutionCodec
	reconciler          *Reconciler
	subscriptionManager common.Address
	logger              ports.Logger
}

// NewExecutor creates an executor. subscriptionManager is the charging
// contract: the approve leg grants it spend allowance and the charge leg
// calls it.
func NewExecutor(
	chain ports.ChainClient,
	codec ports.ExecutionCodec,
	reconciler *Reconciler,
	subscriptionManager common.Address,
	logger ports.Logger,
) *Executor {
	return &Executor{
		chain:               chain,
		codec:               codec,
		reconciler:          reconciler,
		subscriptionManager: subscriptionManager,
		logger:              logger,
	}
}

// Charge attempts exactly one charge for one due subscription.
func (e *Executor) Charge(ctx context.Context, due *models.DueSubscription) ChargeOutcome {
	outcome := ChargeOutcome{SubscriptionID: due.SubscriptionID}

	if !common.IsHexAddress(due.PayerAddress) {
		outcome.Status = StatusFailed
		outcome.Err = domain.NewDomainError(domain.ErrorCodeValidationFailed, "payer address is not a valid hex address").
			WithDetail("payer_address", due.PayerAddress)
		e.logger.Error("invalid payer address on due subscription",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("payer_address", due.PayerAddress))
		return outcome
	}
	payer := common.HexToAddress(due.PayerAddress)

	// Step 1: load and normalize the stored delegation pair. Any parse
	// failure is a skip for this cycle, not a crash.
	approveDel, chargeDel, err := e.loadDelegations(due)
	if err != nil {
		outcome.Status = StatusSkippedNoDelegation
		outcome.Err = err
		e.logger.Warn("skipping subscription without usable delegations",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("payer_address", due.PayerAddress),
			ports.Err(err))
		return outcome
	}

	// Step 2: authoritative due-check against the chain. Local
	// next_payment_date may be stale; the contract decides.
	isDue, nextDue, err := e.chain.IsPaymentDue(ctx, payer)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		e.logger.Error("on-chain due check failed",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("payer_address", due.PayerAddress),
			ports.Err(err))
		return outcome
	}
	if !isDue {
		outcome.Status = StatusSkippedNotDue
		outcome.Err = domain.ErrNotDue
		e.logger.Debug("chain reports payment not due",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("payer_address", due.PayerAddress),
			ports.Uint64("next_due_unix", nextDue))
		return outcome
	}

	// Step 3: read the live plan and build both executions from its current
	// price and token, never from the cached ledger copy.
	plan, err := e.chain.GetPlan(ctx, due.OnChainPlanID)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		e.logger.Error("on-chain plan read failed",
			ports.String("subscription_id", due.SubscriptionID),
			ports.Uint64("plan_id", due.OnChainPlanID),
			ports.Err(err))
		return outcome
	}
	if !plan.Active {
		outcome.Status = StatusFailed
		outcome.Err = domain.NewDomainError(domain.ErrorCodePlanInactive, "plan is inactive on-chain").
			WithDetail("plan_id", due.OnChainPlanID)
		e.logger.Warn("plan inactive on-chain, not charging",
			ports.String("subscription_id", due.SubscriptionID),
			ports.Uint64("plan_id", due.OnChainPlanID))
		return outcome
	}

	redemptions, err := e.buildRedemptions(approveDel, chargeDel, payer, plan)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		e.logger.Error("building redemption executions failed",
			ports.String("subscription_id", due.SubscriptionID),
			ports.Err(err))
		return outcome
	}

	// Step 4: one atomic redemption for both legs, signed by the operating
	// key. Either both the approve and the charge apply, or neither does.
	txHash, err := e.chain.RedeemDelegations(ctx, redemptions)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		e.logger.Error("redemption submission failed",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("payer_address", due.PayerAddress),
			ports.Err(err))
		return outcome
	}
	outcome.TxHash = txHash.Hex()

	// Step 5: await finality. A revert is terminal for this cycle and writes
	// nothing locally; the next cycle's due-check re-evaluates from chain
	// state.
	receipt, err := e.chain.WaitForReceipt(ctx, txHash)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		e.logger.Error("awaiting charge receipt failed",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("tx_hash", outcome.TxHash),
			ports.Err(err))
		return outcome
	}
	if !receipt.Success {
		outcome.Status = StatusFailed
		outcome.Err = domain.NewDomainError(domain.ErrorCodeChainReverted, "charge transaction reverted").
			WithDetail("tx_hash", outcome.TxHash)
		e.logger.Error("charge transaction reverted",
			ports.String("subscription_id", due.SubscriptionID),
			ports.String("tx_hash", outcome.TxHash),
			ports.Uint64("block", receipt.BlockNumber))
		return outcome
	}

	// Step 6: reconcile the ledger with the confirmed on-chain outcome.
	if err := e.reconciler.Reconcile(ctx, due, plan, txHash); err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = StatusReconciled
	e.logger.Info("charge reconciled",
		ports.String("subscription_id", due.SubscriptionID),
		ports.String("payer_address", due.PayerAddress),
		ports.String("tx_hash", outcome.TxHash),
		ports.String("amount", plan.PriceDecimal().String()),
		ports.String("token", due.TokenSymbol))
	return outcome
}

func (e *Executor) loadDelegations(due *models.DueSubscription) (approve, charge *models.Delegation, err error) {
	if len(due.ApproveDelegation) == 0 || len(due.ChargeDelegation) == 0 {
		return nil, nil, domain.WrapError(domain.ErrorCodeDelegationMissing, "stored delegation pair is incomplete", domain.ErrNoDelegation)
	}

	approve, err = models.ParseDelegation(due.ApproveDelegation)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrorCodeDelegationInvalid, "parse approve delegation", err)
	}

	charge, err = models.ParseDelegation(due.ChargeDelegation)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrorCodeDelegationInvalid, "parse charge delegation", err)
	}

	return approve, charge, nil
}

// buildRedemptions pairs each delegation with its execution: the approve
// delegation authorizes a token-approve(subscriptionManager, price) on the
// plan's token contract, the charge delegation a charge(payer) on the
// subscription manager itself.
func (e *Executor) buildRedemptions(approveDel, chargeDel *models.Delegation, payer common.Address, plan *models.OnChainPlan) ([]models.Redemption, error) {
	approveCalldata, err := e.codec.EncodeApprove(e.subscriptionManager, plan.Price)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeChainEncodeFailed, "encode approve calldata", err)
	}

	chargeCalldata, err := e.codec.EncodeCharge(payer)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeChainEncodeFailed, "encode charge calldata", err)
	}

	return []models.Redemption{
		{
			Delegation: approveDel,
			Execution: models.Execution{
				Target:   plan.Token,
				Value:    big.NewInt(0),
				Calldata: approveCalldata,
			},
		},
		{
			Delegation: chargeDel,
			Execution: models.Execution{
				Target:   e.subscriptionManager,
				Value:    big.NewInt(0),
				Calldata: chargeCalldata,
			},
		},
	}, nil
}
