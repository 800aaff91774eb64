package ledger

import (
	"errors"
	"fmt"
)

// ErrorKind groups error codes by the part of the state machine that rejected
// the action.
type ErrorKind string

const (
	// KindIdentity covers acceptance and referral preconditions.
	KindIdentity ErrorKind = "identity"

	// KindTemporal covers the issue wait and the emission quota.
	KindTemporal ErrorKind = "temporal"

	// KindTrust covers trust edge lookups, revocability and the live-edge cap.
	KindTrust ErrorKind = "trust"

	// KindLedger covers balances, quantities and memos.
	KindLedger ErrorKind = "ledger"

	// KindAuth covers caller authorization.
	KindAuth ErrorKind = "auth"
)

// Code identifies a specific rejection. Codes are stable and appear in the
// action log, so they must never be renamed.
type Code string

const (
	CodeInvalidName     Code = "INVALID_NAME"
	CodeAccountNotFound Code = "ACCOUNT_NOT_FOUND"
	CodeAlreadyLaunched Code = "ALREADY_LAUNCHED"
	CodeNotApplied      Code = "NOT_APPLIED"
	CodeNotAccepted     Code = "NOT_ACCEPTED"
	CodeAlreadyAccepted Code = "ALREADY_ACCEPTED"
	CodeWrongReferral   Code = "WRONG_REFERRAL"

	CodeIssueTooEarly  Code = "ISSUE_TOO_EARLY"
	CodeQuotaExhausted Code = "QUOTA_EXHAUSTED"

	CodeEdgeNotFound    Code = "EDGE_NOT_FOUND"
	CodeEdgeIrrevocable Code = "EDGE_IRREVOCABLE"
	CodeEdgeExpired     Code = "EDGE_EXPIRED"
	CodeEdgeCapExceeded Code = "EDGE_CAP_EXCEEDED"

	CodeNoBalance       Code = "NO_BALANCE"
	CodeOverdrawn       Code = "OVERDRAWN"
	CodeInvalidQuantity Code = "INVALID_QUANTITY"
	CodeNonPositive     Code = "NON_POSITIVE_AMOUNT"
	CodeSymbolMismatch  Code = "SYMBOL_MISMATCH"
	CodeSelfTransfer    Code = "SELF_TRANSFER"
	CodeMemoTooLong     Code = "MEMO_TOO_LONG"
	CodeOverflow        Code = "OVERFLOW"

	CodeMissingAuth Code = "MISSING_AUTH"
)

var codeKinds = map[Code]ErrorKind{
	CodeInvalidName:     KindIdentity,
	CodeAccountNotFound: KindIdentity,
	CodeAlreadyLaunched: KindIdentity,
	CodeNotApplied:      KindIdentity,
	CodeNotAccepted:     KindIdentity,
	CodeAlreadyAccepted: KindIdentity,
	CodeWrongReferral:   KindIdentity,
	CodeIssueTooEarly:   KindTemporal,
	CodeQuotaExhausted:  KindTemporal,
	CodeEdgeNotFound:    KindTrust,
	CodeEdgeIrrevocable: KindTrust,
	CodeEdgeExpired:     KindTrust,
	CodeEdgeCapExceeded: KindTrust,
	CodeNoBalance:       KindLedger,
	CodeOverdrawn:       KindLedger,
	CodeInvalidQuantity: KindLedger,
	CodeNonPositive:     KindLedger,
	CodeSymbolMismatch:  KindLedger,
	CodeSelfTransfer:    KindLedger,
	CodeMemoTooLong:     KindLedger,
	CodeOverflow:        KindLedger,
	CodeMissingAuth:     KindAuth,
}

// Kind returns the category of the code.
func (c Code) Kind() ErrorKind {
	return codeKinds[c]
}

// Error is a rejected action. Every failure the ledger produces is an *Error;
// the action that produced it must leave no state behind.
type Error struct {
	// Code identifies the rejection.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details carries the identities or amounts involved.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind returns the error's category.
func (e *Error) Kind() ErrorKind {
	return e.Code.Kind()
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Permanent reports whether resubmitting the same action can never succeed.
// Only the issue wait clears by itself.
func (e *Error) Permanent() bool {
	return e.Code != CodeIssueTooEarly
}

// Sentinels for errors.Is.
var (
	ErrNotAccepted     = &Error{Code: CodeNotAccepted}
	ErrNotApplied      = &Error{Code: CodeNotApplied}
	ErrAlreadyAccepted = &Error{Code: CodeAlreadyAccepted}
	ErrWrongReferral   = &Error{Code: CodeWrongReferral}
	ErrIssueTooEarly   = &Error{Code: CodeIssueTooEarly}
	ErrQuotaExhausted  = &Error{Code: CodeQuotaExhausted}
	ErrEdgeNotFound    = &Error{Code: CodeEdgeNotFound}
	ErrEdgeIrrevocable = &Error{Code: CodeEdgeIrrevocable}
	ErrEdgeExpired     = &Error{Code: CodeEdgeExpired}
	ErrEdgeCapExceeded = &Error{Code: CodeEdgeCapExceeded}
	ErrOverdrawn       = &Error{Code: CodeOverdrawn}
	ErrMissingAuth     = &Error{Code: CodeMissingAuth}
)

// CodeOf extracts the code from err, or "" if err is not a ledger error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func newErrorf(code Code, details map[string]string, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Details: details}
}
