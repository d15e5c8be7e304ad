// Package errs defines the error kinds shared by services and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind uint8

const (
	Internal Kind = iota
	InvalidCredentials
	InvalidCode
	SecondFactorRequired
	Unauthorized
	Forbidden
	NotFound
	Conflict
	Validation
	RateLimited
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case InvalidCode:
		return "invalid_code"
	case SecondFactorRequired:
		return "two_factor_required"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Validation:
		return "validation"
	case RateLimited:
		return "rate_limited"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error carries a kind, a caller-safe message and an optional cause.
type Error struct {
	Kind    Kind
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

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// E builds an *Error.
func E(kind Kind, msg string, cause ...error) *Error {
	e := &Error{Kind: kind, Message: msg}
	if len(cause) > 0 {
		e.Err = cause[0]
	}
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials   = &Error{Kind: InvalidCredentials, Message: "invalid credentials"}
	ErrInvalidCode          = &Error{Kind: InvalidCode, Message: "invalid verification code"}
	ErrSecondFactorRequired = &Error{Kind: SecondFactorRequired, Message: "two-factor code required"}
	ErrUnauthorized         = &Error{Kind: Unauthorized, Message: "unauthorized"}
	ErrForbidden            = &Error{Kind: Forbidden, Message: "forbidden"}
	ErrNotFound             = &Error{Kind: NotFound}
	ErrConflict             = &Error{Kind: Conflict}
	ErrRateLimited          = &Error{Kind: RateLimited, Message: "too many attempts, try again later"}
)
