package errors

import (
	"errors"
	"fmt"
)

// Common error types for the OIDC gateway
var (
	// Provider errors
	ErrDiscovery     = errors.New("oidc discovery failed")
	ErrTokenExchange = errors.New("token exchange failed")

	// Caller contract errors
	ErrMissingCode  = errors.New("authorization code required")
	ErrMissingToken = errors.New("access token required")

	// Session token errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")

	// Client flow errors
	ErrStateMismatch = errors.New("invalid state parameter - possible CSRF attack")
)

// ProviderError is returned when the OIDC provider rejects a request or
// cannot be reached. Kind is one of the provider sentinels above.
type ProviderError struct {
	Kind       error
	StatusCode int    // 0 when no response was received
	Body       []byte // raw provider response body, if any
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: provider returned %d: %s", e.Kind, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
