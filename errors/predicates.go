package errors

import (
	"errors"
	"strings"

	"github.com/randalmurphal/guaclink/guacamole"
	devhttp "github.com/randalmurphal/guaclink/http"
	"github.com/randalmurphal/guaclink/sshkey"
)

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrSessionExpired) ||
		guacamole.IsAuthFailure(err)
}

// IsConnectionError checks if an error is connection-related.
// This includes TLS errors, timeouts, and network connectivity issues.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConnectionFailed) || devhttp.IsTransport(err) {
		return true
	}

	return isNetworkError(err)
}

// IsPermissionError checks if an error is permission-related.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrPermissionDenied) || devhttp.IsForbidden(err)
}

// IsConfigError checks if an error is fixed by changing settings.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidConfig) {
		return true
	}
	for _, target := range configErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsSSHKeyError checks if an error came from loading the private key.
func IsSSHKeyError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrSSHKey) ||
		errors.Is(err, sshkey.ErrKeyNotFound) ||
		errors.Is(err, sshkey.ErrNoSSHKeys) ||
		errors.Is(err, sshkey.ErrPassphraseRequired) ||
		errors.Is(err, sshkey.ErrPassphraseIncorrect) ||
		errors.Is(err, sshkey.ErrInvalidKeyFormat)
}

// isNetworkError matches dial failures that reach us as plain text.
func isNetworkError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp")
}
