// Package sshkey loads SSH credentials that are handed to the broker as
// connection parameters.
//
// A private key is sent to the broker as PEM text in the connection's
// private-key parameter. LoadPrivateKey validates it locally first so that
// a wrong path or passphrase fails before any connection is created:
//
//	key, err := sshkey.LoadPrivateKey("~/.ssh/id_ed25519", "")
//	if errors.Is(err, sshkey.ErrPassphraseRequired) {
//	    // prompt or fail
//	}
//	params.PrivateKey = key.PEM
//
// FindDefaultKey looks for the usual key names under ~/.ssh.
//
// ParseHostKey validates a pinned server key in authorized_keys format.
package sshkey
