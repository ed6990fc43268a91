package tinder

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the upstream API rejected the auth token.
var ErrUnauthorized = errors.New("tinder: unauthorized")

// LoginError indicates the eager authentication handshake failed. It is
// terminal: callers must not retry with the same token.
type LoginError struct {
	Err error
}

// Error implements the error interface.
func (e *LoginError) Error() string {
	return fmt.Sprintf("tinder: login failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoginError) Unwrap() error { return e.Err }

// RequestError indicates a non-2xx response from the upstream API.
type RequestError struct {
	Method     string
	Route      string
	StatusCode int
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("tinder: %s %s: status %d", e.Method, e.Route, e.StatusCode)
}

// IsLoginError reports whether err is a terminal login failure.
func IsLoginError(err error) bool {
	var loginErr *LoginError
	return errors.As(err, &loginErr)
}
