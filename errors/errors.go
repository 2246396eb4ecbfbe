package errors

import "errors"

// CLI error categories with actionable guidance.
var (
	// ErrNotAuthenticated indicates the broker rejected the credentials.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired indicates the session token stopped being accepted.
	ErrSessionExpired = errors.New("session expired")

	// ErrPermissionDenied indicates the account may not manage connections.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConnectionFailed indicates the broker is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionMissing indicates the created connection cannot be found.
	ErrConnectionMissing = errors.New("connection missing")

	// ErrInvalidConfig indicates missing or malformed settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSSHKey indicates the SSH private key could not be used.
	ErrSSHKey = errors.New("ssh key unusable")
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitAuth    = 3
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrSSHKey):
		return ExitUsage
	case errors.Is(err, ErrNotAuthenticated):
		return ExitAuth
	default:
		return ExitFailure
	}
}
