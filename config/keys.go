package config

import "strings"

// Configuration keys.
const (
	KeyURL        = "url"
	KeyDataSource = "data_source"
	KeyUsername   = "username"
	KeyPassword   = "password"

	KeySSHHostname   = "ssh_hostname"
	KeySSHPort       = "ssh_port"
	KeySSHUsername   = "ssh_username"
	KeySSHPassword   = "ssh_password"
	KeySSHPrivateKey = "ssh_private_key"
	KeySSHPassphrase = "ssh_passphrase"
	KeySSHHostKey    = "ssh_host_key"

	KeyTestTunnel     = "test_tunnel"
	KeyVerifyAttempts = "verify_attempts"
	KeyVerifyInitial  = "verify_initial"
	KeyVerifyMax      = "verify_max"
	KeyRetryMax       = "retry_max"
	KeyAuthTimeout    = "auth_timeout"
	KeyReadTimeout    = "read_timeout"
	KeyCreateTimeout  = "create_timeout"

	KeyWebhookURL      = "webhook_url"
	KeySlackWebhookURL = "slack_webhook_url"

	KeyLogLevel = "log_level"
	KeyNoColor  = "no_color"
)

// Keys lists every recognized key in display order.
var Keys = []string{
	KeyURL,
	KeyDataSource,
	KeyUsername,
	KeyPassword,
	KeySSHHostname,
	KeySSHPort,
	KeySSHUsername,
	KeySSHPassword,
	KeySSHPrivateKey,
	KeySSHPassphrase,
	KeySSHHostKey,
	KeyTestTunnel,
	KeyVerifyAttempts,
	KeyVerifyInitial,
	KeyVerifyMax,
	KeyRetryMax,
	KeyAuthTimeout,
	KeyReadTimeout,
	KeyCreateTimeout,
	KeyWebhookURL,
	KeySlackWebhookURL,
	KeyLogLevel,
	KeyNoColor,
}

// secretKeys hold credentials. They are masked on display and refused in
// the local config file, which is usually committed.
var secretKeys = []string{
	KeyPassword,
	KeySSHPassword,
	KeySSHPassphrase,
}

// Defaults returns the built-in default values. Credentials and the broker
// URL have no defaults.
func Defaults() map[string]string {
	return map[string]string{
		KeyDataSource:     "mysql",
		KeySSHPort:        "22",
		KeyTestTunnel:     "false",
		KeyVerifyAttempts: "5",
		KeyVerifyInitial:  "1s",
		KeyVerifyMax:      "10s",
		KeyRetryMax:       "3",
		KeyAuthTimeout:    "10s",
		KeyReadTimeout:    "10s",
		KeyCreateTimeout:  "30s",
		KeyLogLevel:       "info",
		KeyNoColor:        "false",
	}
}

// LocalKeys returns the keys allowed in the local config file.
func LocalKeys() []string {
	keys := make([]string, 0, len(Keys))
	for _, k := range Keys {
		if !IsSecret(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return contains(secretKeys, key)
}

// Mask hides secret values for display.
func Mask(key, value string) string {
	if value == "" || !IsSecret(key) {
		return value
	}
	return strings.Repeat("*", 8)
}
