package graph

import (
	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/tidwall/gjson"
)

const (
	// oauthExceptionType is the error type the Graph API uses for
	// every authentication failure.
	oauthExceptionType = "OAuthException"

	// expiredTokenCode is the OAuthException code for an invalid or
	// expired access token.
	expiredTokenCode = 190
)

// ErrorKind classifies a provider error.
type ErrorKind int

const (
	// KindProvider is any structured error reported by the provider.
	KindProvider ErrorKind = iota
	// KindExpiredToken is an OAuthException with code 190. The client
	// re-triggers sign-in before returning it.
	KindExpiredToken
)

func (k ErrorKind) String() string {
	if k == KindExpiredToken {
		return "expired_token"
	}

	return "provider"
}

// APIError is a structured `error` object found in a response body.
// Error returns the provider message verbatim so callers see exactly
// what the provider said.
type APIError struct {
	Type    string
	Code    int64
	Subcode int64
	Message string
	// Status is the HTTP status the error arrived with. The Graph API
	// reports errors under both 200 and 4xx statuses.
	Status int
}

func (e *APIError) Error() string {
	return e.Message
}

// Kind reports whether the error signals an expired session.
func (e *APIError) Kind() ErrorKind {
	if e.Type == oauthExceptionType && e.Code == expiredTokenCode {
		return KindExpiredToken
	}

	return KindProvider
}

// IsExpiredToken reports whether the error is the provider's
// invalid/expired token error.
func (e *APIError) IsExpiredToken() bool {
	return e.Kind() == KindExpiredToken
}

// Unwrap lets errors.Is match ErrInvalidToken for expired sessions.
func (e *APIError) Unwrap() error {
	if e.IsExpiredToken() {
		return apperrors.ErrInvalidToken
	}

	return nil
}

// newAPIError builds an APIError from the value of a body's top-level
// `error` member. Non-object values become the message.
func newAPIError(v gjson.Result, status int) *APIError {
	if !v.IsObject() {
		return &APIError{Message: v.String(), Status: status}
	}

	return &APIError{
		Type:    v.Get("type").String(),
		Code:    v.Get("code").Int(),
		Subcode: v.Get("error_subcode").Int(),
		Message: v.Get("message").String(),
		Status:  status,
	}
}

// truthy mirrors how a page script would test `if (body.error)`.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}

	return v.Exists()
}
