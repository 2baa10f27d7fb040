package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

// writeTestKey generates an ed25519 key and writes it in OpenSSH format.
func writeTestKey(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "test key")
	if err != nil {
		t.Fatalf("MarshalPrivateKey() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestValidate(t *testing.T) {
	path := writeTestKey(t)

	if err := Validate(path); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-key")
	if err := os.WriteFile(path, []byte("certainly not PEM"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := Validate(path); err == nil {
		t.Error("Validate() = nil, want error for garbage file")
	}
}

func TestValidateMissingFile(t *testing.T) {
	if err := Validate(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Validate() = nil, want error for missing file")
	}
}

func TestFingerprint(t *testing.T) {
	path := writeTestKey(t)

	fp, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if !strings.HasPrefix(fp, "SHA256:") {
		t.Errorf("Fingerprint() = %q, want SHA256: prefix", fp)
	}

	// The fingerprint is a pure function of the key.
	again, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if fp != again {
		t.Errorf("Fingerprint() not stable: %q then %q", fp, again)
	}
}

func TestFingerprintGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-key")
	if err := os.WriteFile(path, []byte("nope"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Fingerprint(path); err == nil {
		t.Error("Fingerprint() = nil error, want failure for garbage file")
	}
}
