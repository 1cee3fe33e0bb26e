package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/onchainbill/collector/internal/domain"
	"github.com/onchainbill/collector/internal/domain/models"
	"github.com/onchainbill/collector/internal/domain/ports"
	"github.com/onchainbill/collector/pkg/resilience"
)

// Backend is the subset of the RPC client the collector uses, extracted so
// tests can inject a fake.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Config holds the chain adapter's wiring: contract addresses, the collector
// operating key, and polling bounds.
type Config struct {
	ChainID             *big.Int
	DelegationManager   common.Address
	SubscriptionManager common.Address
	ReceiptTimeout      time.Duration
	RetryPolicy         resilience.RetryPolicy
	ReceiptBackoff      resilience.BackoffStrategy
}

// Client implements ports.ChainClient over an Ethereum JSON-RPC backend. The
// operating key is read-only after construction; concurrent submissions rely
// on the node to serialize nonce assignment.
type Client struct {
	backend Backend
	codec   *Codec
	cfg     Config
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  ports.Logger
}

// NewClient creates a chain client signing with the collector operating key.
func NewClient(backend Backend, key *ecdsa.PrivateKey, cfg Config, logger ports.Logger) (*Client, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	if cfg.ChainID == nil {
		return nil, fmt.Errorf("chain id is required")
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.RetryPolicy.Backoff == nil {
		cfg.RetryPolicy = resilience.RateLimitRetryPolicy()
	}
	if cfg.ReceiptBackoff == nil {
		cfg.ReceiptBackoff = resilience.ReceiptPollBackoff()
	}

	return &Client{
		backend: backend,
		codec:   codec,
		cfg:     cfg,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}, nil
}

// Codec exposes the calldata codec for callers that build executions.
func (c *Client) Codec() *Codec {
	return c.codec
}

// CollectorAddress returns the address of the operating key.
func (c *Client) CollectorAddress() common.Address {
	return c.from
}

// GetPlan reads the authoritative plan state from the subscription manager.
func (c *Client) GetPlan(ctx context.Context, planID uint64) (*models.OnChainPlan, error) {
	calldata, err := c.codec.EncodeGetPlan(planID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeChainEncodeFailed, "encode getPlan", err)
	}

	data, err := c.call(ctx, c.cfg.SubscriptionManager, calldata)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeChainCallFailed, "getPlan", err)
	}

	plan, err := c.codec.DecodeGetPlan(data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeChainCallFailed, "decode getPlan", err)
	}
	return plan, nil
}

// IsPaymentDue runs the chain's own due predicate for the payer.
func (c *Client) IsPaymentDue(ctx context.Context, payer common.Address) (bool, uint64, error) {
	calldata, err := c.codec.EncodeIsPaymentDue(payer)
	if err != nil {
		return false, 0, domain.WrapError(domain.ErrorCodeChainEncodeFailed, "encode isPaymentDue", err)
	}

	data, err := c.call(ctx, c.cfg.SubscriptionManager, calldata)
	if err != nil {
		return false, 0, domain.WrapError(domain.ErrorCodeChainCallFailed, "isPaymentDue", err)
	}

	due, nextDue, err := c.codec.DecodeIsPaymentDue(data)
	if err != nil {
		return false, 0, domain.WrapError(domain.ErrorCodeChainCallFailed, "decode isPaymentDue", err)
	}
	return due, nextDue, nil
}

// RedeemDelegations signs and submits one transaction exercising all pairs
// atomically against the delegation manager.
func (c *Client) RedeemDelegations(ctx context.Context, redemptions []models.Redemption) (common.Hash, error) {
	calldata, err := c.codec.EncodeRedemption(redemptions)
	if err != nil {
		return common.Hash{}, domain.WrapError(domain.ErrorCodeChainEncodeFailed, "encode redemption", err)
	}

	tx, err := resilience.Retry(ctx, c.cfg.RetryPolicy, IsRateLimited, func(ctx context.Context) (*types.Transaction, error) {
		return c.buildAndSend(ctx, calldata)
	})
	if err != nil {
		return common.Hash{}, domain.WrapError(domain.ErrorCodeChainSendFailed, "redeem delegations", err)
	}

	c.logger.Debug("redemption submitted",
		ports.String("tx_hash", tx.Hash().Hex()),
		ports.Int("pairs", len(redemptions)),
	)
	return tx.Hash(), nil
}

// call runs a read-only contract call, retrying rate-limited responses on
// the escalating backoff sequence.
func (c *Client) call(ctx context.Context, to common.Address, calldata []byte) ([]byte, error) {
	return resilience.Retry(ctx, c.cfg.RetryPolicy, IsRateLimited, func(ctx context.Context) ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{
			From: c.from,
			To:   &to,
			Data: calldata,
		}, nil)
	})
}

func (c *Client) buildAndSend(ctx context.Context, calldata []byte) (*types.Transaction, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	to := c.cfg.DelegationManager
	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.cfg.ChainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	return signed, nil
}

// WaitForReceipt polls for the transaction receipt with escalating backoff
// under a hard wall-clock timeout. A mined-but-reverted transaction is
// reported through the receipt, not an error; the timeout error means the
// transaction may still confirm later out-of-band.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash) (*models.ChargeReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return &models.ChargeReceipt{
				TxHash:      txHash,
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}

		// Pending and rate-limited both mean try again; anything else is a
		// real transport failure.
		if !IsNotFound(err) && !IsRateLimited(err) {
			return nil, domain.WrapError(domain.ErrorCodeChainCallFailed, "transaction receipt", err)
		}

		select {
		case <-ctx.Done():
			return nil, domain.WrapError(domain.ErrorCodeChainTimeout,
				fmt.Sprintf("receipt for %s not found within %s", txHash.Hex(), c.cfg.ReceiptTimeout), ctx.Err())
		case <-time.After(c.cfg.ReceiptBackoff.NextDelay(attempt)):
		}
	}
}

// Dial connects an RPC backend for the given endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	return client, nil
}
