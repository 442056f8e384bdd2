package errors

import "errors"

// Widget construction errors.
var (
	ErrInvalidAttribute  = errors.New("invalid element attribute")
	ErrNotBuilt          = errors.New("element not built")
	ErrUnknownElement    = errors.New("unknown element")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrDuplicateElement  = errors.New("element already registered")
	ErrNoPage            = errors.New("no such page")
)

// Session and auth errors.
var (
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrNavigationUnavailable = errors.New("page cannot navigate")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)
