package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum"
)

// IsRateLimited reports whether an RPC error is a transport-level rate-limit
// response. These are the only chain errors worth retrying in place; anything
// else propagates. Providers disagree on how they say "slow down", so this
// matches the common shapes.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429",
		"too many requests",
		"rate limit",
		"rate-limit",
		"request limit",
		"capacity exceeded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether an error is the RPC "not found" sentinel
// returned while a transaction is still pending.
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
