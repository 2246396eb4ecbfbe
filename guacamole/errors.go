package guacamole

import (
	"errors"

	devhttp "github.com/randalmurphal/guaclink/http"
)

// Configuration errors.
var (
	ErrConfigURLRequired       = errors.New("guacamole url is required")
	ErrConfigURLInvalid        = errors.New("guacamole url must be an absolute http or https url")
	ErrConfigUsernameRequired  = errors.New("guacamole username is required")
	ErrConfigPasswordRequired  = errors.New("guacamole password is required")
	ErrConfigDataSourceInvalid = errors.New("data source must be a single path segment")
	ErrConfigTimeoutInvalid    = errors.New("timeouts must not be negative")
)

// Authentication errors.
var (
	ErrAuthenticationFailed = errors.New("guacamole authentication failed")
	ErrTokenMissing         = errors.New("guacamole returned no auth token")
	ErrTokenRequired        = errors.New("auth token is required")
	ErrDataSourceUnknown    = errors.New("no data source configured or reported at login")
)

// Connection errors.
var (
	ErrConnectionNotFound     = errors.New("guacamole connection not found")
	ErrConnectionIDRequired   = errors.New("connection identifier is required")
	ErrConnectionNameRequired = errors.New("connection name is required")
	ErrIdentifierMissing      = errors.New("guacamole returned a connection without identifier")
)

// Deep link errors.
var (
	ErrClientIdentifierInvalid = errors.New("invalid client identifier")
)

// IsNotFound reports whether the error indicates a connection was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound) || errors.Is(err, devhttp.ErrNotFound)
}

// IsAuthFailure reports whether the error indicates rejected credentials
// or an invalid session token.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, devhttp.ErrUnauthorized)
}

// IsTimeout reports whether the call failed because it timed out.
func IsTimeout(err error) bool {
	return devhttp.IsTimeout(err)
}

// IsRetryable reports whether the error is transient and should be retried.
func IsRetryable(err error) bool {
	return devhttp.IsRetryable(err)
}
