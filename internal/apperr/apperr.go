// Package apperr defines the internal error kinds shared across the core
// (spec §7) and the stable wire error codes components translate them to
// at the API boundary (spec §6).
package apperr

import "errors"

// Kind classifies an error for recovery-policy decisions. Never exposed
// directly to callers outside the core — handlers translate a Kind (plus
// context) into a stable wire Code.
type Kind string

const (
	KindValidationFailed     Kind = "VALIDATION_FAILED"
	KindNotFound             Kind = "NOT_FOUND"
	KindStateConflict        Kind = "STATE_CONFLICT"
	KindAuthorizationFailed  Kind = "AUTHORIZATION_FAILED"
	KindDownstreamUnavailable Kind = "DOWNSTREAM_UNAVAILABLE"
	KindInternal             Kind = "INTERNAL"
)

// Code is a stable wire-level error code (spec §6).
type Code string

const (
	CodeOutOfStudio        Code = "OUT_OF_STUDIO"
	CodeNoShift            Code = "NO_SHIFT"
	CodeInvalidRate        Code = "INVALID_RATE"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeNoMembers          Code = "NO_MEMBERS"
	CodeChainFailed        Code = "CHAIN_FAILED"
	CodeEmergencyStop      Code = "EMERGENCY_STOP"
	CodeMustSignContract   Code = "MUST_SIGN_CONTRACT"
	CodeUnknownReward      Code = "UNKNOWN_REWARD"
)

// Error is the core's internal error type: a Kind, an optional stable wire
// Code, and an operator-facing message.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wire code (internal-only failure).
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error wrapping a lower-level error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithCode builds an Error carrying a stable wire code, for failures the
// external interface (§6) must surface distinctly.
func WithCode(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// LedgerWriteFailed reports a durable-store failure while sealing a block.
// Per §4.1, the only failure mode of seal().
func LedgerWriteFailed(err error) *Error {
	return &Error{Kind: KindDownstreamUnavailable, Code: CodeChainFailed, Message: "ledger write failed", Err: err}
}

// As is a thin re-export of errors.As for callers that don't want to
// import "errors" just to unwrap an *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
