package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so transports can map them without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInsufficientFunds
	KindConflict
	KindConcurrencyConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindConflict:
		return "conflict"
	case KindConcurrencyConflict:
		return "concurrency_conflict"
	default:
		return "internal"
	}
}

// Error is a kinded failure with a stable machine-readable code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: e.Msg, Err: cause}
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: fmt.Sprintf(format, args...), Err: e.Err}
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	ErrInvalidAmount       = newErr(KindValidation, "INVALID_AMOUNT", "amount must be a positive number")
	ErrInvalidMode         = newErr(KindValidation, "INVALID_MODE", "unsupported currency mode")
	ErrMissingProof        = newErr(KindValidation, "MISSING_PROOF", "at least one proof file is required")
	ErrInvalidStatus       = newErr(KindValidation, "INVALID_STATUS", "invalid transaction status")
	ErrInvalidType         = newErr(KindValidation, "INVALID_TYPE", "invalid transaction type")
	ErrInvalidInput        = newErr(KindValidation, "INVALID_INPUT", "invalid input")
	ErrInvalidBot          = newErr(KindValidation, "INVALID_BOT", "invalid bot definition")
	ErrBotInactive         = newErr(KindValidation, "BOT_INACTIVE", "bot is not available for purchase")
	ErrInvalidCode         = newErr(KindValidation, "INVALID_CODE", "invalid verification code")
	ErrAlreadyVerified     = newErr(KindValidation, "ALREADY_VERIFIED", "user is already verified")
	ErrInsufficientBalance = newErr(KindInsufficientFunds, "INSUFFICIENT_BALANCE", "insufficient balance")
	ErrUnauthenticated     = newErr(KindUnauthorized, "UNAUTHENTICATED", "authentication required")
	ErrInvalidCredentials  = newErr(KindUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	ErrNotVerified         = newErr(KindUnauthorized, "NOT_VERIFIED", "please verify your email first")
	ErrForbidden           = newErr(KindForbidden, "FORBIDDEN", "forbidden")
	ErrNotFound            = newErr(KindNotFound, "NOT_FOUND", "not found")
	ErrNoOpTransition      = newErr(KindConflict, "NO_OP_TRANSITION", "transaction already has this status")
	ErrInvalidTransition   = newErr(KindConflict, "INVALID_TRANSITION", "approved transactions must be rolled back to pending first")
	ErrApprovedDelete      = newErr(KindConflict, "TRANSACTION_APPROVED", "approved transactions must be rolled back before deletion")
	ErrDuplicateEmail      = newErr(KindConflict, "EMAIL_TAKEN", "email is already registered")
	ErrDuplicateName       = newErr(KindConflict, "NAME_TAKEN", "name is already in use")
	ErrConcurrencyConflict = newErr(KindConcurrencyConflict, "CONCURRENCY_CONFLICT", "concurrent update, retry the request")
	ErrInternal            = newErr(KindInternal, "INTERNAL", "internal error")
)

// KindOf extracts the kind of err; unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the machine code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}
