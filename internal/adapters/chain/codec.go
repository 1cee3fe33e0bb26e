package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainbill/collector/internal/domain/models"
)

// ABI fragments for the three contracts the collector talks to. The
// delegation manager is the capability-redemption entry point; the
// subscription manager owns plans and the due-check; the token contract is a
// plain ERC-20.
const (
	delegationManagerABI = `[
		{"name":"redeemDelegations","type":"function","stateMutability":"nonpayable",
		 "inputs":[
			{"name":"_permissionContexts","type":"bytes[]"},
			{"name":"_modes","type":"bytes32[]"},
			{"name":"_executionCallDatas","type":"bytes[]"}],
		 "outputs":[]}
	]`

	subscriptionManagerABI = `[
		{"name":"getPlan","type":"function","stateMutability":"view",
		 "inputs":[{"name":"planId","type":"uint256"}],
		 "outputs":[
			{"name":"price","type":"uint256"},
			{"name":"period","type":"uint256"},
			{"name":"active","type":"bool"},
			{"name":"tokenAddress","type":"address"}]},
		{"name":"isPaymentDue","type":"function","stateMutability":"view",
		 "inputs":[{"name":"user","type":"address"}],
		 "outputs":[
			{"name":"due","type":"bool"},
			{"name":"nextDue","type":"uint256"}]},
		{"name":"charge","type":"function","stateMutability":"nonpayable",
		 "inputs":[{"name":"user","type":"address"}],
		 "outputs":[]}
	]`

	erc20ABI = `[
		{"name":"approve","type":"function","stateMutability":"nonpayable",
		 "inputs":[
			{"name":"spender","type":"address"},
			{"name":"amount","type":"uint256"}],
		 "outputs":[{"name":"","type":"bool"}]}
	]`
)

// SingleDefaultMode is the ERC-7579 execution mode for one call with default
// (revert-on-failure) semantics: call type 0x00, exec type 0x00, all other
// bytes zero.
var SingleDefaultMode [32]byte

// Codec packs and unpacks calldata for the collector's contract surface.
type Codec struct {
	delegationManager abi.ABI
	subscription      abi.ABI
	erc20             abi.ABI

	delegationArgs abi.Arguments
}

// abiCaveat and abiDelegation mirror the on-chain delegation tuple layout;
// field order must match the tuple component order exactly.
type abiCaveat struct {
	Enforcer common.Address
	Terms    []byte
	Args     []byte
}

type abiDelegation struct {
	Delegate  common.Address
	Delegator common.Address
	Authority [32]byte
	Caveats   []abiCaveat
	Salt      *big.Int
	Signature []byte
}

// NewCodec parses the embedded ABI fragments.
func NewCodec() (*Codec, error) {
	dm, err := abi.JSON(strings.NewReader(delegationManagerABI))
	if err != nil {
		return nil, fmt.Errorf("parse delegation manager ABI: %w", err)
	}
	sm, err := abi.JSON(strings.NewReader(subscriptionManagerABI))
	if err != nil {
		return nil, fmt.Errorf("parse subscription manager ABI: %w", err)
	}
	erc, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}

	delegationType, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "delegate", Type: "address"},
		{Name: "delegator", Type: "address"},
		{Name: "authority", Type: "bytes32"},
		{Name: "caveats", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "enforcer", Type: "address"},
			{Name: "terms", Type: "bytes"},
			{Name: "args", Type: "bytes"},
		}},
		{Name: "salt", Type: "uint256"},
		{Name: "signature", Type: "bytes"},
	})
	if err != nil {
		return nil, fmt.Errorf("build delegation tuple type: %w", err)
	}

	return &Codec{
		delegationManager: dm,
		subscription:      sm,
		erc20:             erc,
		delegationArgs:    abi.Arguments{{Type: delegationType}},
	}, nil
}

// EncodePermissionContext ABI-encodes a delegation chain. The collector only
// redeems root-authority delegations, so the chain is a single element.
func (c *Codec) EncodePermissionContext(d *models.Delegation) ([]byte, error) {
	caveats := make([]abiCaveat, len(d.Caveats))
	for i, cv := range d.Caveats {
		terms := cv.Terms
		if terms == nil {
			terms = []byte{}
		}
		args := cv.Args
		if args == nil {
			args = []byte{}
		}
		caveats[i] = abiCaveat{Enforcer: cv.Enforcer, Terms: terms, Args: args}
	}

	salt := d.Salt
	if salt == nil {
		return nil, fmt.Errorf("delegation salt is nil")
	}
	sig := d.Signature
	if sig == nil {
		sig = []byte{}
	}

	return c.delegationArgs.Pack([]abiDelegation{{
		Delegate:  d.Delegate,
		Delegator: d.Delegator,
		Authority: d.Authority,
		Caveats:   caveats,
		Salt:      salt,
		Signature: sig,
	}})
}

// EncodeSingleExecution packs one execution for single-call mode:
// target (20 bytes) || value (32 bytes) || calldata.
func EncodeSingleExecution(e models.Execution) []byte {
	value := e.Value
	if value == nil {
		value = big.NewInt(0)
	}

	out := make([]byte, 0, 52+len(e.Calldata))
	out = append(out, e.Target.Bytes()...)
	out = append(out, common.LeftPadBytes(value.Bytes(), 32)...)
	out = append(out, e.Calldata...)
	return out
}

// EncodeRedemption builds the outer redeemDelegations calldata bundling all
// (delegation, execution) pairs so they apply atomically.
func (c *Codec) EncodeRedemption(redemptions []models.Redemption) ([]byte, error) {
	if len(redemptions) == 0 {
		return nil, fmt.Errorf("no redemptions to encode")
	}

	contexts := make([][]byte, len(redemptions))
	modes := make([][32]byte, len(redemptions))
	executions := make([][]byte, len(redemptions))

	for i, r := range redemptions {
		ctx, err := c.EncodePermissionContext(r.Delegation)
		if err != nil {
			return nil, fmt.Errorf("encode permission context %d: %w", i, err)
		}
		contexts[i] = ctx
		modes[i] = SingleDefaultMode
		executions[i] = EncodeSingleExecution(r.Execution)
	}

	return c.delegationManager.Pack("redeemDelegations", contexts, modes, executions)
}

// EncodeApprove packs an ERC-20 approve(spender, amount) call.
func (c *Codec) EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return c.erc20.Pack("approve", spender, amount)
}

// EncodeCharge packs the subscription manager's charge(user) call.
func (c *Codec) EncodeCharge(payer common.Address) ([]byte, error) {
	return c.subscription.Pack("charge", payer)
}

// EncodeGetPlan packs getPlan(planId).
func (c *Codec) EncodeGetPlan(planID uint64) ([]byte, error) {
	return c.subscription.Pack("getPlan", new(big.Int).SetUint64(planID))
}

// DecodeGetPlan unpacks the getPlan return data.
func (c *Codec) DecodeGetPlan(data []byte) (*models.OnChainPlan, error) {
	values, err := c.subscription.Unpack("getPlan", data)
	if err != nil {
		return nil, fmt.Errorf("unpack getPlan: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unpack getPlan: want 4 values, got %d", len(values))
	}

	price, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack getPlan: price is %T", values[0])
	}
	period, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack getPlan: period is %T", values[1])
	}
	active, ok := values[2].(bool)
	if !ok {
		return nil, fmt.Errorf("unpack getPlan: active is %T", values[2])
	}
	token, ok := values[3].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unpack getPlan: token is %T", values[3])
	}

	return &models.OnChainPlan{
		Price:  price,
		Period: period.Uint64(),
		Active: active,
		Token:  token,
	}, nil
}

// EncodeIsPaymentDue packs isPaymentDue(user).
func (c *Codec) EncodeIsPaymentDue(payer common.Address) ([]byte, error) {
	return c.subscription.Pack("isPaymentDue", payer)
}

// DecodeIsPaymentDue unpacks the isPaymentDue return data.
func (c *Codec) DecodeIsPaymentDue(data []byte) (bool, uint64, error) {
	values, err := c.subscription.Unpack("isPaymentDue", data)
	if err != nil {
		return false, 0, fmt.Errorf("unpack isPaymentDue: %w", err)
	}
	if len(values) != 2 {
		return false, 0, fmt.Errorf("unpack isPaymentDue: want 2 values, got %d", len(values))
	}

	due, ok := values[0].(bool)
	if !ok {
		return false, 0, fmt.Errorf("unpack isPaymentDue: due is %T", values[0])
	}
	nextDue, ok := values[1].(*big.Int)
	if !ok {
		return false, 0, fmt.Errorf("unpack isPaymentDue: nextDue is %T", values[1])
	}

	return due, nextDue.Uint64(), nil
}
