package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Delegation errors (DELEGATION_*)
	ErrorCodeDelegationMissing  ErrorCode = "DELEGATION_MISSING"
	ErrorCodeDelegationInvalid  ErrorCode = "DELEGATION_INVALID"
	ErrorCodeDelegationInactive ErrorCode = "DELEGATION_INACTIVE"

	// Plan errors (PLAN_*)
	ErrorCodePlanNotFound ErrorCode = "PLAN_NOT_FOUND"
	ErrorCodePlanInactive ErrorCode = "PLAN_INACTIVE"

	// Chain errors (CHAIN_*)
	ErrorCodeChainCallFailed   ErrorCode = "CHAIN_CALL_FAILED"
	ErrorCodeChainSendFailed   ErrorCode = "CHAIN_SEND_FAILED"
	ErrorCodeChainReverted     ErrorCode = "CHAIN_TX_REVERTED"
	ErrorCodeChainTimeout      ErrorCode = "CHAIN_RECEIPT_TIMEOUT"
	ErrorCodeChainEncodeFailed ErrorCode = "CHAIN_ENCODE_FAILED"

	// Ledger errors (LEDGER_*)
	ErrorCodeLedgerQueryFailed ErrorCode = "LEDGER_QUERY_FAILED"
	ErrorCodeLedgerWriteFailed ErrorCode = "LEDGER_WRITE_FAILED"

	// Validation errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Skip sentinels. These are expected per-cycle outcomes, not failures: the
// subscription is left alone and re-evaluated next cycle.
var (
	// ErrNotDue means the chain's own due-check said no payment is owed,
	// regardless of what local bookkeeping claims.
	ErrNotDue = errors.New("payment not due on-chain")

	// ErrNoDelegation means the stored delegation pair is missing or failed
	// normalization.
	ErrNoDelegation = errors.New("no usable delegation pair")
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// ErrorCodeOf extracts the error code from an error chain, or
// ErrorCodeInternalError when no DomainError is present.
func ErrorCodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrorCodeInternalError
}
