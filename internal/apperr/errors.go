package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers; it maps 1:1 onto an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindBadRequest
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Stable codes surfaced to API clients.
const (
	CodeIllegalTransition   = "ILLEGAL_TRANSITION"
	CodeRevisionLimit       = "REVISION_LIMIT_REACHED"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeDuplicatePayment    = "DUPLICATE_PAYMENT"
	CodeAlreadyCommitted    = "DRAFT_COMMITTED"
	CodeNotReady            = "DRAFT_NOT_READY"
	CodeWorkloadLimit       = "DESIGNER_WORKLOAD_LIMIT"
	CodeAlreadyAssigned     = "DRAFT_ALREADY_ASSIGNED"
	CodeConcurrentUpdate    = "CONCURRENT_UPDATE"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeOrderNotPayable     = "ORDER_NOT_PAYABLE"
	CodeNotRefundable       = "PAYMENT_NOT_REFUNDABLE"
	CodeNotRetryable        = "PAYMENT_NOT_RETRYABLE"
	CodeAmountMismatch      = "AMOUNT_MISMATCH"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(message string) *Error {
	return New(KindNotFound, "NOT_FOUND", message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, "FORBIDDEN", message)
}

func BadRequest(message string) *Error {
	return New(KindBadRequest, "BAD_REQUEST", message)
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

// Internal wraps an unexpected failure. The message is what clients may see
// in logs; HTTP responses never expose it.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest, KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Wrap returns err unchanged when it is already classified and wraps it as
// Internal otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(op, err)
}
