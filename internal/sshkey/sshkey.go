// Package sshkey validates identity files referenced by connection profiles
// and reports their public-key fingerprints.
package sshkey

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// ErrEncrypted marks a key that parsed fine but is passphrase-protected, so
// its private half cannot be inspected.
var ErrEncrypted = errors.New("key is passphrase-protected")

// Validate checks that path names a parseable private key. Encrypted keys
// pass validation since ssh prompts for the passphrase itself.
func Validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read key file: %w", err)
	}

	if _, err := ssh.ParsePrivateKey(data); err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("not a valid private key: %w", err)
	}
	return nil
}

// Fingerprint returns the SHA256 fingerprint of the key's public half.
// Encrypted keys still report a fingerprint when the envelope embeds the
// public key (OpenSSH format does); otherwise ErrEncrypted.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			if missing.PublicKey != nil {
				return ssh.FingerprintSHA256(missing.PublicKey), nil
			}
			return "", ErrEncrypted
		}
		return "", fmt.Errorf("not a valid private key: %w", err)
	}

	return ssh.FingerprintSHA256(signer.PublicKey()), nil
}
