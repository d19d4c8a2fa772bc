package commerce

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/metrics"
)

// ErrorKind classifies every error returned by the operator and payer clients
type ErrorKind string

const (
	// ErrInvalidConfig means the client is missing a required dependency
	ErrInvalidConfig ErrorKind = "INVALID_CONFIG"
	// ErrInvalidIntent means a field failed local validation
	ErrInvalidIntent ErrorKind = "INVALID_INTENT"
	// ErrIntentAlreadyProcessed means the contract already settled this (operator, id) pair
	ErrIntentAlreadyProcessed ErrorKind = "INTENT_ALREADY_PROCESSED"
	// ErrInsufficientAllowance means the payer approved less than the intent needs
	ErrInsufficientAllowance ErrorKind = "INSUFFICIENT_ALLOWANCE"
	// ErrContractRead wraps RPC or ABI failures of view calls
	ErrContractRead ErrorKind = "CONTRACT_READ_ERROR"
	// ErrContractWrite wraps submission failures and reverted transactions
	ErrContractWrite ErrorKind = "CONTRACT_WRITE_ERROR"
	// ErrSignature means the signer could not produce or verify a signature
	ErrSignature ErrorKind = "SIGNATURE_ERROR"
	// ErrFetch is a network or transport failure not otherwise classified
	ErrFetch ErrorKind = "FETCH_ERROR"
)

// Error is the single error type of the package. Callers branch on Kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error

	// ID is set for INTENT_ALREADY_PROCESSED
	ID IntentID

	// Required, Current and Token are set for INSUFFICIENT_ALLOWANCE
	Required *big.Int
	Current  *big.Int
	Token    common.Address
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: ErrFetch}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// KindOf returns the kind of the first *Error in err's chain, or an empty kind
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewError builds an *Error for collaborators of the clients, such as the intent transport
func NewError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return newError(kind, cause, format, args...)
}

func newError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	metrics.Errors.WithLabelValues(string(kind)).Inc()
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func invalidIntent(format string, args ...interface{}) *Error {
	return newError(ErrInvalidIntent, nil, format, args...)
}

func invalidConfig(format string, args ...interface{}) *Error {
	return newError(ErrInvalidConfig, nil, format, args...)
}

func readError(method string, cause error) *Error {
	return newError(ErrContractRead, errors.WithStack(cause), "failed to call %s", method)
}

func writeError(method string, cause error) *Error {
	return newError(ErrContractWrite, errors.WithStack(cause), "failed to submit %s", method)
}

func alreadyProcessed(id IntentID) *Error {
	e := newError(ErrIntentAlreadyProcessed, nil, "intent %s was already processed", id.Hex())
	e.ID = id
	return e
}

func insufficientAllowance(token common.Address, required, current *big.Int) *Error {
	e := newError(ErrInsufficientAllowance, nil, "allowance %s of token %s is below required %s", current, token.Hex(), required)
	e.Required = new(big.Int).Set(required)
	e.Current = new(big.Int).Set(current)
	e.Token = token
	return e
}
