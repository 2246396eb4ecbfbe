package sshkey

import "errors"

// SSH key errors.
var (
	// ErrKeyNotFound is returned when the key file does not exist.
	ErrKeyNotFound = errors.New("SSH private key not found")

	// ErrNoSSHKeys is returned when no default key exists in the SSH directory.
	ErrNoSSHKeys = errors.New("no SSH private keys found")

	// ErrPassphraseRequired is returned for an encrypted key without passphrase.
	ErrPassphraseRequired = errors.New("SSH private key is encrypted and needs a passphrase")

	// ErrPassphraseIncorrect is returned when the passphrase does not decrypt the key.
	ErrPassphraseIncorrect = errors.New("SSH private key passphrase is incorrect")

	// ErrInvalidKeyFormat is returned when a key cannot be parsed.
	ErrInvalidKeyFormat = errors.New("invalid SSH key format")
)
