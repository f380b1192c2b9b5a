package types

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Common SDK errors
var (
	// Parameter validation errors
	ErrNilRPC           = errors.New("rpc client is nil")
	ErrNilSigner        = errors.New("signer is nil")
	ErrZeroAmount       = errors.New("amount must be greater than 0")
	ErrInvalidSlippage  = errors.New("slippage must be within [0, 1)")
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrNoInstructions   = errors.New("requires at least one instruction")
	ErrMixedTokens      = errors.New("token amounts denominate different mints")
	ErrAmountOverflow   = errors.New("token amount overflows u64")

	// Preflight errors
	ErrInsufficientFundingBalance = errors.New("insufficient funding wallet balance")
	ErrInsufficientBuyerBalance   = errors.New("insufficient buyer wallet balance")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrMarketNotFound  = errors.New("market not found")
	ErrPoolNotFound    = errors.New("pool account not found")
	ErrMintNotFound    = errors.New("mint account not found")

	// Construction errors
	ErrStaleBlockhash        = errors.New("blockhash not found or expired")
	ErrBundleTooLarge        = errors.New("bundle exceeds relay transaction limit")
	ErrNoTipAccountAvailable = errors.New("relay advertised no tip accounts")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// Submission and settlement errors
	ErrSubmissionRejected  = errors.New("relay rejected bundle")
	ErrBundleRejected      = errors.New("bundle rejected")
	ErrSettlementAmbiguous = errors.New("bundle settlement unknown")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// RPCError wraps RPC failures with operation context.
type RPCError struct {
	Op  string
	Err error
}

func (e RPCError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e RPCError) Unwrap() error {
	return e.Err
}

// ValidationError represents input or preflight validation failures.
// Nothing has been sent when one is returned.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("validation error: %s - %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// WrapValidation attaches a sentinel to a validation failure so callers can match it with errors.Is.
func WrapValidation(field string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

// ConstructionError reports a failure while building transactions or the bundle.
// Step names the stage so the whole operation can be retried with fresh inputs.
type ConstructionError struct {
	Step string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// SubmissionError reports that the relay refused the bundle at admission.
// The bundle never reached consensus.
type SubmissionError struct {
	Step string
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RejectedError is returned when the relay settled the bundle as rejected.
type RejectedError struct {
	BundleID   string
	PoolID     string
	Reason     string
	Signatures []solana.Signature
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("bundle %s rejected (pool %s): %s", e.BundleID, e.PoolID, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrBundleRejected
}

// AmbiguousSettlementError is returned when no verdict arrived in time or the
// relay stream was lost. The transactions may still land: query their status
// before retrying, or the pool may be created twice.
type AmbiguousSettlementError struct {
	BundleID string
	PoolID   string
	Reason   string
	// Signatures of the bundle's transactions in order, tip last.
	Signatures []solana.Signature
}

func (e *AmbiguousSettlementError) Error() string {
	return fmt.Sprintf("bundle %s outcome unknown (pool %s): %s", e.BundleID, e.PoolID, e.Reason)
}

func (e *AmbiguousSettlementError) Unwrap() error {
	return ErrSettlementAmbiguous
}

// Inconclusive is always true; it lets callers test for the property without a type switch.
func (e *AmbiguousSettlementError) Inconclusive() bool {
	return true
}

// ErrorKind classifies errors returned by the orchestration layer.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConstruction
	KindSubmission
	KindRejected
	KindAmbiguous
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConstruction:
		return "construction"
	case KindSubmission:
		return "submission"
	case KindRejected:
		return "rejected"
	case KindAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Kind reports which class of failure err belongs to.
func Kind(err error) ErrorKind {
	var (
		validation   *ValidationError
		construction *ConstructionError
		submission   *SubmissionError
		rejected     *RejectedError
		ambiguous    *AmbiguousSettlementError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &ambiguous):
		return KindAmbiguous
	case errors.As(err, &rejected):
		return KindRejected
	case errors.As(err, &submission):
		return KindSubmission
	case errors.As(err, &construction):
		return KindConstruction
	case errors.As(err, &validation):
		return KindValidation
	default:
		return KindUnknown
	}
}

// IsRetryableError reports whether the whole operation may be rebuilt and resent.
// Ambiguous outcomes are not retryable until reconciled.
func IsRetryableError(err error) bool {
	switch Kind(err) {
	case KindConstruction, KindSubmission, KindRejected:
		return true
	default:
		return false
	}
}
