package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/randalmurphal/guaclink/config"
	"github.com/randalmurphal/guaclink/guacamole"
	devhttp "github.com/randalmurphal/guaclink/http"
	"github.com/randalmurphal/guaclink/provision"
	"github.com/randalmurphal/guaclink/sshkey"
)

func TestCLIError(t *testing.T) {
	cause := errors.New("boom")
	err := &CLIError{
		Err:        ErrNotAuthenticated,
		Cause:      cause,
		Message:    "Test message",
		Suggestion: "Test suggestion",
		Details:    "Test details",
	}

	want := "Test message\nTest details\n\nTest suggestion"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if !errors.Is(err, ErrNotAuthenticated) {
		t.Error("expected error to unwrap to ErrNotAuthenticated")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to the cause")
	}
}

func TestCLIError_MinimalFields(t *testing.T) {
	err := &CLIError{
		Err:     ErrConnectionFailed,
		Message: "Connection failed",
	}

	if errStr := err.Error(); errStr != "Connection failed" {
		t.Errorf("expected 'Connection failed', got %q", errStr)
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Error("expected error to unwrap to ErrConnectionFailed")
	}
}

func authFailure(status int) error {
	apiErr := &devhttp.APIError{Service: "guacamole", StatusCode: status, Message: "Invalid login.", Endpoint: "/api/tokens"}
	return fmt.Errorf("%w: %w", guacamole.ErrAuthenticationFailed, &devhttp.AuthError{
		Service: "guacamole",
		Reason:  "status 403",
		Err:     apiErr,
	})
}

func TestWrapAuthError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   error
		wantNil    bool
		wantSubstr string
	}{
		{
			name:    "nil error",
			err:     nil,
			wantNil: true,
		},
		{
			name:       "rejected login",
			err:        authFailure(403),
			wantType:   ErrNotAuthenticated,
			wantSubstr: `rejected the login for "guacadmin"`,
		},
		{
			name:       "token rejected later",
			err:        &devhttp.APIError{StatusCode: 401, Endpoint: "/api/session/data/mysql/connections"},
			wantType:   ErrSessionExpired,
			wantSubstr: "session was rejected",
		},
		{
			name:       "forbidden",
			err:        &devhttp.APIError{StatusCode: 403, Endpoint: "/api/session/data/mysql/connections"},
			wantType:   ErrPermissionDenied,
			wantSubstr: "may not manage connections",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapAuthError(tt.err, "guacadmin")
			if tt.wantNil {
				if result != nil {
					t.Errorf("expected nil, got %v", result)
				}
				return
			}

			if !errors.Is(result, tt.wantType) {
				t.Errorf("expected %v, got %v", tt.wantType, result)
			}
			if !strings.Contains(result.Error(), tt.wantSubstr) {
				t.Errorf("expected %q in %q", tt.wantSubstr, result.Error())
			}
		})
	}

	t.Run("unrelated error passes through", func(t *testing.T) {
		orig := errors.New("something else")
		if got := WrapAuthError(orig, "u"); got != orig {
			t.Errorf("got %v, want original", got)
		}
	})
}

func TestWrapConnectionError(t *testing.T) {
	const server = "http://34.55.20.1:8080/guacamole"

	tests := []struct {
		name       string
		err        error
		wantSubstr string
	}{
		{
			name:       "timeout",
			err:        &devhttp.TransportError{Service: "guacamole", Endpoint: "/api/tokens", Err: context.DeadlineExceeded},
			wantSubstr: "timed out",
		},
		{
			name:       "refused",
			err:        &devhttp.TransportError{Service: "guacamole", Endpoint: "/api/tokens", Err: errors.New("dial tcp 34.55.20.1:8080: connect: connection refused")},
			wantSubstr: "Cannot connect to Guacamole at " + server,
		},
		{
			name:       "certificate",
			err:        errors.New("tls: failed to verify certificate: x509: certificate signed by unknown authority"),
			wantSubstr: "TLS/certificate error",
		},
		{
			name:       "plain dial text",
			err:        errors.New("dial tcp: lookup broker: no such host"),
			wantSubstr: "Cannot connect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapConnectionError(tt.err, server)
			if !errors.Is(result, ErrConnectionFailed) {
				t.Fatalf("expected ErrConnectionFailed, got %v", result)
			}
			if !strings.Contains(result.Error(), tt.wantSubstr) {
				t.Errorf("expected %q in %q", tt.wantSubstr, result.Error())
			}
		})
	}

	if got := WrapConnectionError(nil, server); got != nil {
		t.Errorf("WrapConnectionError(nil) = %v", got)
	}
}

func TestWrapNotFoundError(t *testing.T) {
	err := fmt.Errorf("%w: %q", guacamole.ErrConnectionNotFound, "SSH_Connection_1")

	result := WrapNotFoundError(err, "http://broker/guacamole/#/")
	if !errors.Is(result, ErrConnectionMissing) || !errors.Is(result, guacamole.ErrConnectionNotFound) {
		t.Errorf("result = %v", result)
	}
	if !strings.Contains(result.Error(), "http://broker/guacamole/#/") {
		t.Errorf("dashboard URL missing from %q", result.Error())
	}

	other := errors.New("other")
	if WrapNotFoundError(other, "") != other {
		t.Error("unrelated error was wrapped")
	}
}

func TestWrapConfigAndKeyErrors(t *testing.T) {
	cfgErr := WrapConfigError(guacamole.ErrConfigPasswordRequired)
	if !errors.Is(cfgErr, ErrInvalidConfig) {
		t.Errorf("WrapConfigError() = %v", cfgErr)
	}

	keyErr := WrapSSHKeyError(sshkey.ErrPassphraseRequired, "/home/ops/.ssh/id_ed25519")
	if !errors.Is(keyErr, ErrSSHKey) || !strings.Contains(keyErr.Error(), "/home/ops/.ssh/id_ed25519") {
		t.Errorf("WrapSSHKeyError() = %v", keyErr)
	}
}

func TestWrap(t *testing.T) {
	c := Context{
		ServerURL:    "http://broker/guacamole",
		DashboardURL: "http://broker/guacamole/#/",
		Username:     "guacadmin",
		KeyPath:      "~/.ssh/id_rsa",
	}

	tests := []struct {
		name     string
		err      error
		wantType error
	}{
		{"config", fmt.Errorf("load: %w", config.ErrInvalidValue), ErrInvalidConfig},
		{"key", fmt.Errorf("load key: %w", sshkey.ErrKeyNotFound), ErrSSHKey},
		{"key passphrase", fmt.Errorf("load key: %w", sshkey.ErrPassphraseIncorrect), ErrSSHKey},
		{"run options", &provision.StageError{Stage: provision.StageUnauthenticated, Op: "validate options", Err: provision.ErrSSHUsernameRequired}, ErrInvalidConfig},
		{"auth", authFailure(401), ErrNotAuthenticated},
		{"transport", &devhttp.TransportError{Err: errors.New("connection refused")}, ErrConnectionFailed},
		{"not found", guacamole.ErrConnectionNotFound, ErrConnectionMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wrap(tt.err, c); !errors.Is(got, tt.wantType) {
				t.Errorf("Wrap() = %v, want %v", got, tt.wantType)
			}
		})
	}

	t.Run("already wrapped", func(t *testing.T) {
		cliErr := &CLIError{Err: ErrSSHKey, Message: "x"}
		if got := Wrap(cliErr, c); got != cliErr {
			t.Errorf("Wrap() rewrapped a CLIError")
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", &CLIError{Err: ErrInvalidConfig}, ExitUsage},
		{"key", &CLIError{Err: ErrSSHKey}, ExitUsage},
		{"auth", &CLIError{Err: ErrNotAuthenticated}, ExitAuth},
		{"session", &CLIError{Err: ErrSessionExpired}, ExitFailure},
		{"other", errors.New("x"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsAuthError(authFailure(403)) {
		t.Error("IsAuthError(auth failure) = false")
	}
	if IsAuthError(nil) || IsConnectionError(nil) || IsPermissionError(nil) || IsConfigError(nil) || IsSSHKeyError(nil) {
		t.Error("predicates should be false for nil")
	}
	if !IsConnectionError(&devhttp.TransportError{Err: errors.New("eof")}) {
		t.Error("IsConnectionError(transport) = false")
	}
	if !IsPermissionError(&devhttp.APIError{StatusCode: 403}) {
		t.Error("IsPermissionError(403) = false")
	}
	if !IsConfigError(fmt.Errorf("x: %w", guacamole.ErrConfigURLRequired)) {
		t.Error("IsConfigError(url required) = false")
	}
	if IsConfigError(errors.New("x")) {
		t.Error("IsConfigError(plain) = true")
	}
}
