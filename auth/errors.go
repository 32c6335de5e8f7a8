package auth

import (
	"fmt"

	"github.com/jrsteele09/cyberguard-client/internal/errors"
)

// ErrSessionExpired is returned for a request whose 401 ended the session.
var ErrSessionExpired = errors.ErrSessionExpired

// ValidationError is a client-side field check that failed before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthError is a login, refresh or provider login rejection. Message is fit to show a user.
type AuthError struct {
	Op         string
	Message    string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Detail includes the operation and the underlying cause, for logs.
func (e *AuthError) Detail() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

// RegistrationError carries the server's registration rejection verbatim.
type RegistrationError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RegistrationError) Error() string {
	return e.Message
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

var (
	ErrUnknownProvider = errors.ErrUnknownProvider
	ErrMissingToken    = errors.ErrMissingToken
)
