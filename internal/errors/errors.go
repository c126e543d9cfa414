// Package errors defines the failure taxonomy of the tokens API. Every
// operation of the engine returns either a domain value or one of these
// kinds; the HTTP layer maps each kind to exactly one status code.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	// KindInvalidToken means the identity token failed signature or format
	// verification.
	KindInvalidToken Kind = "invalid_token"
	// KindExpiredToken means the identity token is well formed but expired.
	KindExpiredToken Kind = "expired_token"
	// KindNotFound means the account has no document in the store.
	KindNotFound Kind = "not_found"
	// KindDeviceMismatch means the account exists but has no matching device
	// association.
	KindDeviceMismatch Kind = "device_mismatch"
	// KindAccessToken means the partner rejected an access token.
	KindAccessToken Kind = "access_token"
	// KindInvalidRefreshToken means the partner reported the refresh token as
	// invalid or expired during logout.
	KindInvalidRefreshToken Kind = "invalid_refresh_token"
	// KindPartner covers any other partner-side error.
	KindPartner Kind = "partner"
	// KindValidation means the request input was malformed.
	KindValidation Kind = "validation"
	// KindRateLimited means the caller exceeded its request budget.
	KindRateLimited Kind = "rate_limited"
	// KindInternal is the catch-all for uncategorised failures.
	KindInternal Kind = "internal"
)

// Error carries a classified failure. Partner-originated kinds also carry the
// partner name and the status code the partner answered with.
type Error struct {
	Kind    Kind
	Code    string
	Message string

	// Partner and StatusCode are set for partner-originated kinds only.
	Partner    string
	StatusCode int

	cause error
}

func (e *Error) Error() string {
	if e.Partner != "" {
		return fmt.Sprintf("%s: partner=%s status=%d: %s", e.Code, e.Partner, e.StatusCode, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches errors by kind, so callers can use errors.Is with a bare kind
// sentinel such as errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// HTTPStatus returns the status code the transport layer must answer with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidToken, KindExpiredToken:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDeviceMismatch, KindAccessToken, KindInvalidRefreshToken, KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPartner:
		if e.StatusCode != 0 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// InvalidToken wraps an identity-token verification failure.
func InvalidToken(err error) *Error {
	return &Error{Kind: KindInvalidToken, Code: "CONNECT_ID_TOKEN_ERROR", Message: "invalid id token", cause: err}
}

// ExpiredToken wraps an expired identity token.
func ExpiredToken(err error) *Error {
	return &Error{Kind: KindExpiredToken, Code: "CONNECT_ID_TOKEN_ERROR", Message: "expired id token", cause: err}
}

// AccountNotFound reports a missing account document.
func AccountNotFound(accountID string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "CONNECT_ACCOUNT_NOT_FOUND",
		Message: fmt.Sprintf("account with id %s does not exist", accountID),
	}
}

// DeviceMismatch reports a missing or inactive device association.
func DeviceMismatch(message string) *Error {
	return &Error{Kind: KindDeviceMismatch, Code: "CONNECT_ACCOUNT_INFO_BAD_REQUEST", Message: message}
}

// AccessToken reports a partner access-token rejection.
func AccessToken(statusCode int, description string) *Error {
	return &Error{
		Kind:       KindAccessToken,
		Code:       "CONNECT_ACCESS_TOKEN_ERROR",
		Message:    description,
		Partner:    "Connect",
		StatusCode: statusCode,
	}
}

// InvalidRefreshToken reports a partner refresh-token rejection during logout.
func InvalidRefreshToken(statusCode int, description string) *Error {
	return &Error{
		Kind:       KindInvalidRefreshToken,
		Code:       "CONNECT_INVALID_REFRESH_TOKEN",
		Message:    description,
		Partner:    "Connect",
		StatusCode: statusCode,
	}
}

// Partner reports any other partner-side failure, preserving the partner's
// status code and error description.
func Partner(code, partner string, statusCode int, description string) *Error {
	return &Error{Kind: KindPartner, Code: code, Message: description, Partner: partner, StatusCode: statusCode}
}

// Validation reports malformed request input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "CONNECT_BAD_REQUEST", Message: message}
}

// RateLimited reports an exhausted request budget.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Code: "RATE_LIMIT_EXCEEDED", Message: message}
}

// Internal wraps an uncategorised failure. The wrapped cause is kept for logs
// but never serialised to callers.
func Internal(message string, err error) *Error {
	if message == "" {
		message = "unexpected error"
	}
	return &Error{Kind: KindInternal, Code: "CONNECT_UNEXPECTED_ERROR", Message: message, cause: err}
}

// Get extracts an *Error from err, or nil when err is not classified.
func Get(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return nil
}

// IsKind reports whether err is classified as the given kind.
func IsKind(err error, kind Kind) bool {
	e := Get(err)
	return e != nil && e.Kind == kind
}
