package sshkey

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Config holds configuration for key discovery.
type Config struct {
	// SSHDir is the SSH directory path.
	// Defaults to ~/.ssh if empty.
	SSHDir string

	// PreferredKeys is the preference order for key files.
	// Defaults to ed25519, ecdsa, rsa if empty.
	PreferredKeys []string
}

// DefaultPreferredKeys is the default key preference order.
var DefaultPreferredKeys = []string{
	"id_ed25519",
	"id_ecdsa",
	"id_rsa",
}

func (c Config) sshDir() (string, error) {
	if c.SSHDir != "" {
		return c.SSHDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".ssh"), nil
}

func (c Config) preferredKeys() []string {
	if len(c.PreferredKeys) > 0 {
		return c.PreferredKeys
	}
	return DefaultPreferredKeys
}

// PrivateKey is a validated private key.
type PrivateKey struct {
	// Path is the file the key was read from.
	Path string

	// PEM is the key file content as sent to the broker.
	PEM string

	// Type is the key algorithm (e.g., "ssh-ed25519", "ssh-rsa").
	Type string

	// Fingerprint is the SHA256 fingerprint of the public half.
	Fingerprint string

	// PublicKey is the public half in authorized_keys format.
	PublicKey string

	// Encrypted reports whether a passphrase was needed.
	Encrypted bool
}

// LoadPrivateKey reads and validates a private key. A leading "~/" is
// expanded to the home directory.
func LoadPrivateKey(path, passphrase string) (*PrivateKey, error) {
	resolved, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved) //nolint:gosec // user-provided path expected
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, resolved)
		}
		return nil, fmt.Errorf("read private key: %w", err)
	}

	key, err := ParsePrivateKey(data, passphrase)
	if err != nil {
		return nil, err
	}
	key.Path = resolved
	return key, nil
}

// ParsePrivateKey validates PEM or OpenSSH key data.
func ParsePrivateKey(data []byte, passphrase string) (*PrivateKey, error) {
	encrypted := false

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		encrypted = true
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if errors.Is(err, x509.IncorrectPasswordError) {
			return nil, ErrPassphraseIncorrect
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFormat, err)
	}

	pub := signer.PublicKey()
	return &PrivateKey{
		PEM:         string(data),
		Type:        pub.Type(),
		Fingerprint: ssh.FingerprintSHA256(pub),
		PublicKey:   strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))),
		Encrypted:   encrypted,
	}, nil
}

// FindDefaultKey returns the path of the first preferred key that exists.
func FindDefaultKey(cfg Config) (string, error) {
	sshDir, err := cfg.sshDir()
	if err != nil {
		return "", err
	}

	for _, name := range cfg.preferredKeys() {
		path := filepath.Join(sshDir, name)
		if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", ErrNoSSHKeys
}

// ParseHostKey validates a server public key in authorized_keys format and
// returns it normalized to "type base64".
func ParseHostKey(line string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(line)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKeyFormat, err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
