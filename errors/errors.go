package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies authentication failures so the HTTP layer can map them to
// status codes without inspecting messages.
type Kind int

const (
	// KindConfiguration signals missing or broken provider configuration
	// (absent client credentials, malfunctioning session backend). Operator
	// facing, surfaced as 5xx.
	KindConfiguration Kind = iota + 1
	// KindInvalidProvider signals an unknown or unresolvable provider name.
	KindInvalidProvider
	// KindDisabledProvider signals a configured but disabled provider.
	KindDisabledProvider
	// KindInvalidRequest signals a protocol violation in the OAuth2 round
	// trip: missing code, missing or non-matching state token.
	KindInvalidRequest
	// KindInvalidCredentials signals a failed local password check. The
	// public message never reveals which field was wrong.
	KindInvalidCredentials
	// KindInvalidCookie signals an access-token cookie without a backing
	// session record.
	KindInvalidCookie
	// KindStorage signals a persistence backend failure. Callers catch and
	// log these at the boundary; they never reach the response path.
	KindStorage
)

// AuthError is the error type used across the module.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewConfiguration(message string) *AuthError {
	return &AuthError{Kind: KindConfiguration, Message: message}
}

func NewInvalidProvider(message string) *AuthError {
	return &AuthError{Kind: KindInvalidProvider, Message: message}
}

func NewDisabledProvider(message string) *AuthError {
	return &AuthError{Kind: KindDisabledProvider, Message: message}
}

func NewInvalidRequest(message string) *AuthError {
	return &AuthError{Kind: KindInvalidRequest, Message: message}
}

func NewInvalidCredentials() *AuthError {
	return &AuthError{Kind: KindInvalidCredentials, Message: "Invalid user name or password"}
}

func NewInvalidCookie(message string) *AuthError {
	return &AuthError{Kind: KindInvalidCookie, Message: message}
}

// NewStorage wraps a backend error with full context for boundary logging.
func NewStorage(message string, err error) *AuthError {
	return &AuthError{Kind: KindStorage, Message: message, Err: err}
}

// IsKind reports whether err is an AuthError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// HTTPStatus maps an error to the response status the entrypoints return.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	var ae *AuthError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindInvalidProvider:
		return http.StatusBadRequest
	case KindDisabledProvider, KindInvalidRequest, KindInvalidCredentials:
		return http.StatusForbidden
	case KindInvalidCookie:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a user-safe message for err. Storage and
// configuration details are never echoed back to visitors.
func PublicMessage(err error) string {
	var ae *AuthError
	if !errors.As(err, &ae) {
		return "Authentication failed"
	}
	switch ae.Kind {
	case KindConfiguration, KindStorage:
		return "Authentication is temporarily unavailable"
	default:
		return ae.Message
	}
}
