// Package errors turns guaclink failures into terminal-friendly messages.
//
// Core types:
//   - CLIError: Wraps an error with message, suggestion, and details
//   - ErrorMessenger: Interface for customizing error messages
//
// Categories:
//   - ErrNotAuthenticated: The broker rejected the credentials
//   - ErrSessionExpired: The session token stopped being accepted
//   - ErrPermissionDenied: The account may not manage connections
//   - ErrConnectionFailed: The broker is unreachable or timed out
//   - ErrConnectionMissing: The created connection cannot be found
//   - ErrInvalidConfig: Settings are missing or malformed
//   - ErrSSHKey: The SSH private key cannot be used
//
// Example usage:
//
//	if err := runner.Run(ctx); err != nil {
//	    err = errors.Wrap(err, errors.Context{
//	        ServerURL:    cfg.URL,
//	        DashboardURL: client.DashboardURL(),
//	        Username:     cfg.Auth.Username,
//	    })
//	    fmt.Fprintln(os.Stderr, err)
//	    os.Exit(errors.ExitCode(err))
//	}
package errors
