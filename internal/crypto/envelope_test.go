package crypto

import (
	"testing"

	"go.uber.org/zap"
)

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	key, err := DeriveKey("test-machine-id")
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	return New(key, zap.NewNop())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := testEnvelope(t)
	plaintext := "sk-or-v1-abc123"

	ciphertext := e.Encrypt(plaintext)
	if !IsEncrypted(ciphertext) {
		t.Fatal("expected ciphertext to carry enc: prefix")
	}

	got := e.Decrypt(ciphertext)
	if got != plaintext {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestIsEncryptedFalseForPlaintext(t *testing.T) {
	if IsEncrypted("sk-or-v1-plain") {
		t.Fatal("plain value should not be reported as encrypted")
	}
}

func TestDecryptPassesThroughLegacyPlaintext(t *testing.T) {
	e := testEnvelope(t)
	legacy := "sk-or-v1-legacy-plaintext"
	if got := e.Decrypt(legacy); got != legacy {
		t.Fatalf("got %q, want passthrough %q", got, legacy)
	}
}

func TestEncryptEmptyPassesThrough(t *testing.T) {
	e := testEnvelope(t)
	if got := e.Encrypt(""); got != "" {
		t.Fatalf("expected empty string passthrough, got %q", got)
	}
}

func TestDecryptMalformedReturnsEmpty(t *testing.T) {
	e := testEnvelope(t)
	if got := e.Decrypt("enc:not-valid-base64!!!"); got != "" {
		t.Fatalf("expected empty string on malformed ciphertext, got %q", got)
	}
}

func TestDeriveKeyRejectsEmpty(t *testing.T) {
	if _, err := DeriveKey(""); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}
