package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	InternalError Kind = iota
	AuthError
	ValidationError
	UpstreamError
)

func (k Kind) String() string {
	switch k {
	case AuthError:
		return "auth"
	case ValidationError:
		return "validation"
	case UpstreamError:
		return "upstream"
	default:
		return "internal"
	}
}

// Status is the request-level HTTP status for k. Upstream failures only
// reach this point when they happen before any item is processed.
func (k Kind) Status() int {
	switch k {
	case AuthError:
		return http.StatusUnauthorized
	case ValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a request-fatal failure. Reason is safe to show to callers for
// auth and validation kinds.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PublicReason is the error code written to the response body.
func (e *Error) PublicReason() string {
	switch e.Kind {
	case AuthError, ValidationError:
		return e.Reason
	default:
		return "internal_error"
	}
}

// asError finds the *Error in err's chain. Anything else is internal.
func asError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: InternalError, Reason: "unexpected", Err: err}
}

func authError(reason string) *Error {
	return &Error{Kind: AuthError, Reason: reason}
}

func validationError(reason string, err error) *Error {
	return &Error{Kind: ValidationError, Reason: reason, Err: err}
}

func upstreamError(reason string, err error) *Error {
	return &Error{Kind: UpstreamError, Reason: reason, Err: err}
}
