package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RootAuthority is the authority pointer of a delegation granted directly by
// the delegator rather than re-delegated from another delegation.
var RootAuthority = common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

// DelegationJSON is the loose on-the-wire form a delegation is persisted in
// by the upstream checkout flow. Numeric fields may arrive stringified and
// must be normalized before use; hex fields are kept verbatim because the
// payer's signature was computed over the original encoding.
type DelegationJSON struct {
	Delegate  string          `json:"delegate"`
	Delegator string          `json:"delegator"`
	Authority string          `json:"authority"`
	Caveats   []CaveatJSON    `json:"caveats"`
	Salt      json.RawMessage `json:"salt"`
	Signature string          `json:"signature"`
}

// CaveatJSON is the wire form of a single caveat.
type CaveatJSON struct {
	Enforcer string `json:"enforcer"`
	Terms    string `json:"terms"`
	Args     string `json:"args"`
}

// Caveat is one restriction clause within a delegation: the enforcer contract
// plus the encoded terms it checks on redemption.
type Caveat struct {
	Enforcer common.Address
	Terms    hexutil.Bytes
	Args     hexutil.Bytes
}

// Delegation is the strict in-memory form of a signed capability grant.
// Immutable once signed; revocation happens out-of-band in storage.
type Delegation struct {
	Delegate  common.Address
	Delegator common.Address
	Authority common.Hash
	Caveats   []Caveat
	Salt      *big.Int
	Signature hexutil.Bytes

	// Wire retains the original serialized form so re-encoding for
	// redemption reproduces exactly what the delegator signed.
	Wire DelegationJSON
}

// ParseDelegation normalizes a stored delegation JSON document into its
// strict typed form. It fails closed: any ambiguous or malformed field
// rejects the whole delegation rather than guessing.
func ParseDelegation(raw []byte) (*Delegation, error) {
	var wire DelegationJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode delegation: %w", err)
	}
	return NormalizeDelegation(wire)
}

// NormalizeDelegation converts the wire form into the typed form, validating
// every field.
func NormalizeDelegation(wire DelegationJSON) (*Delegation, error) {
	delegate, err := parseAddress("delegate", wire.Delegate)
	if err != nil {
		return nil, err
	}
	delegator, err := parseAddress("delegator", wire.Delegator)
	if err != nil {
		return nil, err
	}
	authority, err := parseHash("authority", wire.Authority)
	if err != nil {
		return nil, err
	}
	salt, err := normalizeSalt(wire.Salt)
	if err != nil {
		return nil, err
	}
	signature, err := parseHexBytes("signature", wire.Signature)
	if err != nil {
		return nil, err
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("delegation field signature: empty")
	}

	caveats := make([]Caveat, len(wire.Caveats))
	for i, c := range wire.Caveats {
		enforcer, err := parseAddress(fmt.Sprintf("caveats[%d].enforcer", i), c.Enforcer)
		if err != nil {
			return nil, err
		}
		terms, err := parseHexBytes(fmt.Sprintf("caveats[%d].terms", i), c.Terms)
		if err != nil {
			return nil, err
		}
		var args hexutil.Bytes
		if c.Args != "" && c.Args != "0x" {
			args, err = parseHexBytes(fmt.Sprintf("caveats[%d].args", i), c.Args)
			if err != nil {
				return nil, err
			}
		}
		caveats[i] = Caveat{Enforcer: enforcer, Terms: terms, Args: args}
	}

	return &Delegation{
		Delegate:  delegate,
		Delegator: delegator,
		Authority: authority,
		Caveats:   caveats,
		Salt:      salt,
		Signature: signature,
		Wire:      wire,
	}, nil
}

// normalizeSalt coerces a salt that may be stored as a JSON number, a decimal
// string, or a 0x-hex string into an exact integer. Fractions, exponents and
// anything else reject.
func normalizeSalt(raw json.RawMessage) (*big.Int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, fmt.Errorf("delegation field salt: missing")
	}

	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return nil, fmt.Errorf("delegation field salt: %w", err)
		}
		s = strings.TrimSpace(unquoted)
	}

	if s == "" {
		return nil, fmt.Errorf("delegation field salt: empty")
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}

	salt, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("delegation field salt: not an exact integer: %q", s)
	}
	if salt.Sign() < 0 {
		return nil, fmt.Errorf("delegation field salt: negative: %q", s)
	}
	return salt, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("delegation field %s: not a hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseHash(field, value string) (common.Hash, error) {
	b, err := hexutil.Decode(value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("delegation field %s: %w", field, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("delegation field %s: want 32 bytes, got %d", field, len(b))
	}
	return common.BytesToHash(b), nil
}

func parseHexBytes(field, value string) (hexutil.Bytes, error) {
	b, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("delegation field %s: %w", field, err)
	}
	return b, nil
}

// saltMu guards same-tick salt minting so two delegations built in the same
// millisecond never collide.
var (
	saltMu   sync.Mutex
	lastSalt int64
)

// NextSalt derives a fresh delegation salt from the current time in
// milliseconds, incrementing past the previous salt when two are minted in
// the same tick.
func NextSalt() *big.Int {
	saltMu.Lock()
	defer saltMu.Unlock()

	salt := time.Now().UnixMilli()
	if salt <= lastSalt {
		salt = lastSalt + 1
	}
	lastSalt = salt
	return big.NewInt(salt)
}

// NewScopedDelegation builds an unsigned delegation from the payer's smart
// account to the collector, with caveats pinning exactly one
// (target, selector) pair. The signature is applied by the payer's wallet
// upstream; construction here exists for the checkout flow and for tests.
func NewScopedDelegation(delegator, delegate, targetEnforcer, methodEnforcer, target common.Address, selector [4]byte) *Delegation {
	return &Delegation{
		Delegate:  delegate,
		Delegator: delegator,
		Authority: RootAuthority,
		Caveats: []Caveat{
			{Enforcer: targetEnforcer, Terms: target.Bytes()},
			{Enforcer: methodEnforcer, Terms: selector[:]},
		},
		Salt: NextSalt(),
	}
}
