package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum"
)

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("Rate-Limit hit for key"), true},
		{errors.New("request limit reached"), true},
		{errors.New("capacity exceeded"), true},
		{fmt.Errorf("send tx: %w", errors.New("too many requests")), true},
		{errors.New("execution reverted"), false},
		{errors.New("nonce too low"), false},
		{ethereum.NotFound, false},
	}

	for _, tc := range cases {
		if got := IsRateLimited(tc.err); got != tc.want {
			t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ethereum.NotFound) {
		t.Error("ethereum.NotFound must classify as not-found")
	}
	if !IsNotFound(fmt.Errorf("receipt: %w", ethereum.NotFound)) {
		t.Error("wrapped ethereum.NotFound must classify as not-found")
	}
	if IsNotFound(errors.New("boom")) {
		t.Error("arbitrary error must not classify as not-found")
	}
}
