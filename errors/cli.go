package errors

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/guaclink/config"
	"github.com/randalmurphal/guaclink/guacamole"
	devhttp "github.com/randalmurphal/guaclink/http"
	"github.com/randalmurphal/guaclink/provision"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the error category, one of the sentinels in this package.
	Err error

	// Cause is the underlying error, kept for errors.Is and errors.As.
	Cause error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// ErrorMessenger provides customizable error messages.
type ErrorMessenger interface {
	// AuthErrorMessage is used when the broker rejects the credentials.
	AuthErrorMessage(username string) (message, suggestion string)

	// SessionExpiredMessage is used when a token is rejected mid-run.
	SessionExpiredMessage() (message, suggestion string)

	// PermissionDeniedMessage is used for 403 responses after login.
	PermissionDeniedMessage() (message, suggestion string)

	// ConnectionErrorMessage is used when the broker cannot be reached.
	ConnectionErrorMessage(serverURL string) (message, suggestion string)

	// TLSErrorMessage is used for certificate failures.
	TLSErrorMessage(serverURL string) (message, suggestion string)

	// TimeoutErrorMessage is used when a request runs out of time.
	TimeoutErrorMessage(serverURL string) (message, suggestion string)

	// ConnectionMissingMessage is used when a created connection cannot be
	// found. dashboardURL is where the user can look for it.
	ConnectionMissingMessage(dashboardURL string) (message, suggestion string)

	// ConfigErrorMessage is used for missing or malformed settings.
	ConfigErrorMessage() (message, suggestion string)

	// SSHKeyErrorMessage is used when the private key cannot be loaded.
	SSHKeyErrorMessage(path string) (message, suggestion string)
}

// DefaultMessenger provides the guaclink error messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) AuthErrorMessage(username string) (string, string) {
	if username == "" {
		return "Guacamole rejected the login.", "Check the username and password settings."
	}
	return fmt.Sprintf("Guacamole rejected the login for %q.", username),
		"Check the password, or set it with GUACLINK_PASSWORD."
}

func (m DefaultMessenger) SessionExpiredMessage() (string, string) {
	return "The Guacamole session was rejected.", "Run guaclink again to start a new session."
}

func (m DefaultMessenger) PermissionDeniedMessage() (string, string) {
	return "The Guacamole account may not manage connections.",
		"Grant the account the \"Create new connections\" permission."
}

func (m DefaultMessenger) ConnectionErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Cannot connect to Guacamole at %s", serverURL),
		"Check that:\n  - The server is running\n  - The URL is correct\n  - Your network connection is working"
}

func (m DefaultMessenger) TLSErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("TLS/certificate error connecting to %s", serverURL),
		"Check that the server certificate is valid."
}

func (m DefaultMessenger) TimeoutErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Request to %s timed out", serverURL),
		"The server may be overloaded or unreachable.\nRaise read_timeout or create_timeout, or try again in a moment."
}

func (m DefaultMessenger) ConnectionMissingMessage(dashboardURL string) (string, string) {
	if dashboardURL == "" {
		return "The new connection could not be found.", "Check the connection list in the Guacamole web UI."
	}
	return "The new connection could not be found.",
		fmt.Sprintf("Check the connection list at %s", dashboardURL)
}

func (m DefaultMessenger) ConfigErrorMessage() (string, string) {
	return "The configuration is incomplete or invalid.",
		"Set values with 'guaclink config set <key> <value>', GUACLINK_<KEY> variables, or flags."
}

func (m DefaultMessenger) SSHKeyErrorMessage(path string) (string, string) {
	return fmt.Sprintf("Cannot use SSH private key %s", path),
		"Check the ssh_private_key path and ssh_passphrase."
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) ErrorMessenger {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// WrapAuthError wraps authentication and authorization failures.
// Other errors are returned unchanged.
func WrapAuthError(err error, username string, opts ...Option) error {
	if err == nil {
		return nil
	}

	messenger := getMessenger(opts)

	switch {
	case errors.Is(err, guacamole.ErrAuthenticationFailed):
		msg, suggestion := messenger.AuthErrorMessage(username)
		return newCLIError(ErrNotAuthenticated, err, msg, suggestion, err.Error())
	case errors.Is(err, devhttp.ErrUnauthorized):
		msg, suggestion := messenger.SessionExpiredMessage()
		return newCLIError(ErrSessionExpired, err, msg, suggestion, "")
	case errors.Is(err, devhttp.ErrForbidden):
		msg, suggestion := messenger.PermissionDeniedMessage()
		return newCLIError(ErrPermissionDenied, err, msg, suggestion, err.Error())
	}

	return err
}

// WrapConnectionError wraps transport failures reaching serverURL.
// Other errors are returned unchanged.
func WrapConnectionError(err error, serverURL string, opts ...Option) error {
	if err == nil {
		return nil
	}

	messenger := getMessenger(opts)

	if devhttp.IsTimeout(err) {
		msg, suggestion := messenger.TimeoutErrorMessage(serverURL)
		return newCLIError(ErrConnectionFailed, err, msg, suggestion, "")
	}

	if isTLSError(err) {
		msg, suggestion := messenger.TLSErrorMessage(serverURL)
		return newCLIError(ErrConnectionFailed, err, msg, suggestion, err.Error())
	}

	if devhttp.IsTransport(err) || isNetworkError(err) {
		msg, suggestion := messenger.ConnectionErrorMessage(serverURL)
		return newCLIError(ErrConnectionFailed, err, msg, suggestion, "")
	}

	return err
}

// WrapNotFoundError wraps a missing-connection failure.
// Other errors are returned unchanged.
func WrapNotFoundError(err error, dashboardURL string, opts ...Option) error {
	if err == nil || !guacamole.IsNotFound(err) {
		return err
	}

	msg, suggestion := getMessenger(opts).ConnectionMissingMessage(dashboardURL)
	return newCLIError(ErrConnectionMissing, err, msg, suggestion, "")
}

// WrapConfigError wraps configuration failures.
// Other errors are returned unchanged.
func WrapConfigError(err error, opts ...Option) error {
	if err == nil || !IsConfigError(err) {
		return err
	}

	msg, suggestion := getMessenger(opts).ConfigErrorMessage()
	return newCLIError(ErrInvalidConfig, err, msg, suggestion, err.Error())
}

// WrapSSHKeyError wraps private key failures for the key at path.
// Other errors are returned unchanged.
func WrapSSHKeyError(err error, path string, opts ...Option) error {
	if err == nil || !IsSSHKeyError(err) {
		return err
	}

	msg, suggestion := getMessenger(opts).SSHKeyErrorMessage(path)
	return newCLIError(ErrSSHKey, err, msg, suggestion, err.Error())
}

// Context carries what the wrappers need to describe a failure.
type Context struct {
	ServerURL    string
	DashboardURL string
	Username     string
	KeyPath      string
}

// Wrap applies every wrapper in turn and returns the first CLIError
// produced, or err unchanged.
func Wrap(err error, c Context, opts ...Option) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	wrappers := []func(error) error{
		func(e error) error { return WrapConfigError(e, opts...) },
		func(e error) error { return WrapSSHKeyError(e, c.KeyPath, opts...) },
		func(e error) error { return WrapAuthError(e, c.Username, opts...) },
		func(e error) error { return WrapConnectionError(e, c.ServerURL, opts...) },
		func(e error) error { return WrapNotFoundError(e, c.DashboardURL, opts...) },
	}
	for _, wrap := range wrappers {
		if wrapped := wrap(err); wrapped != err {
			return wrapped
		}
	}

	return err
}

func newCLIError(kind, cause error, msg, suggestion, details string) *CLIError {
	return &CLIError{
		Err:        kind,
		Cause:      cause,
		Message:    msg,
		Suggestion: suggestion,
		Details:    details,
	}
}

func isTLSError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) || errors.As(err, &invalid) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "tls:") ||
		strings.Contains(errStr, "x509")
}

// configErrors are the failures fixed by changing settings.
var configErrors = []error{
	config.ErrInvalidValue,
	config.ErrUnknownKey,
	config.ErrSecretInLocal,
	guacamole.ErrConfigURLRequired,
	guacamole.ErrConfigURLInvalid,
	guacamole.ErrConfigUsernameRequired,
	guacamole.ErrConfigPasswordRequired,
	guacamole.ErrConfigDataSourceInvalid,
	guacamole.ErrConfigTimeoutInvalid,
	provision.ErrCredentialsRequired,
	provision.ErrSSHUsernameRequired,
}
