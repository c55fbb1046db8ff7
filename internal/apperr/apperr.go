// Package apperr defines the error taxonomy shared by the ledger services and
// the HTTP layer. Domain failures carry a Kind and a stable Code; anything
// that is not an *Error is treated as an internal failure.
package apperr

import (
	"errors"
	"net/http"
)

// Kind groups codes by how the caller should react.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeAccountNotFound         Code = "ACCOUNT_NOT_FOUND"
	CodeInvalidAccount          Code = "INVALID_ACCOUNT"
	CodeAccountClosed           Code = "ACCOUNT_CLOSED"
	CodeInvalidAmount           Code = "INVALID_AMOUNT"
	CodeInsufficientFunds       Code = "INSUFFICIENT_FUNDS"
	CodeMinimumBalanceViolation Code = "MINIMUM_BALANCE_VIOLATION"

	CodeGroupNotFound        Code = "GROUP_NOT_FOUND"
	CodeInvalidGroupSettings Code = "INVALID_GROUP_SETTINGS"
	CodeGroupNotRecruiting   Code = "GROUP_NOT_RECRUITING"
	CodeGroupFull            Code = "GROUP_FULL"
	CodeGroupNotActive       Code = "GROUP_NOT_ACTIVE"
	CodeAlreadyMember        Code = "ALREADY_MEMBER"
	CodeNotMember            Code = "NOT_MEMBER"
	CodeMemberNotFound       Code = "MEMBER_NOT_FOUND"
	CodeAdminCannotLeave     Code = "ADMIN_CANNOT_LEAVE"
	CodeInvalidRole          Code = "INVALID_ROLE"
	CodeNoUpdateFields       Code = "NO_UPDATE_FIELDS"

	CodeAmountMismatch       Code = "AMOUNT_MISMATCH"
	CodeInvalidPaymentMethod Code = "INVALID_PAYMENT_METHOD"
	CodeInvalidPagination    Code = "INVALID_PAGINATION"

	CodeForbidden Code = "FORBIDDEN"
	CodeConflict  Code = "CONFLICT"
	CodeInternal  Code = "INTERNAL"
)

// Error is a classified failure. Message is safe to show to the caller for
// every kind except KindInternal.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Kind == KindInternal {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, or by kind when the target carries no code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Code == t.Code
}

func newError(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code Code, message string) *Error {
	return newError(KindNotFound, code, message)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, CodeForbidden, message)
}

func Validation(code Code, message string) *Error {
	return newError(KindValidation, code, message)
}

// ValidationWithMetadata attaches values the caller may need to correct the request.
func ValidationWithMetadata(code Code, message string, metadata map[string]string) *Error {
	err := newError(KindValidation, code, message)
	err.Metadata = metadata
	return err
}

func Conflict(message string, cause error) *Error {
	err := newError(KindConflict, CodeConflict, message)
	err.Cause = cause
	return err
}

func Internal(cause error) *Error {
	err := newError(KindInternal, CodeInternal, "internal error")
	err.Cause = cause
	return err
}

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrInternal   = &Error{Kind: KindInternal}
)

// As extracts the *Error from err, classifying unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return As(err).Code
}

// HTTPStatus maps a kind to the status code the HTTP layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
