// Package crypto provides the AES-256-GCM envelope used to encrypt secrets
// (the OpenRouter API key, provisioning tokens) before they touch the
// settings store.
//
// Encrypted values carry an "enc:" prefix followed by base64(nonce+sealed),
// so isEncrypted can tell a freshly-encrypted value apart from a legacy
// plaintext one written before this envelope existed.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

const encPrefix = "enc:"

// Envelope encrypts and decrypts secrets with a single derived key.
type Envelope struct {
	key    []byte
	logger *zap.Logger
}

// New builds an Envelope from a 32-byte AES-256 key, typically produced by
// DeriveKey.
func New(key []byte, logger *zap.Logger) *Envelope {
	return &Envelope{key: key, logger: logger}
}

// DeriveKey hashes an arbitrary-length machine-local passphrase down to a
// 32-byte AES-256 key with SHA-256. The passphrase need not be secret on
// its own — it only needs to be stable across restarts on this machine.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: passphrase must not be empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:], nil
}

// Encrypt seals plaintext and returns "enc:<base64(nonce+ciphertext)>". An
// empty plaintext passes through unchanged — there's nothing to protect.
// Encrypt never fails for a valid key; a cipher/GCM construction error here
// would mean the crypto subsystem itself is broken, so it panics rather
// than returning a silently-unencrypted secret.
func (e *Envelope) Encrypt(plaintext string) string {
	if plaintext == "" {
		return plaintext
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		panic("crypto: invalid AES key: " + err.Error())
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic("crypto: GCM init failed: " + err.Error())
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		panic("crypto: reading random nonce: " + err.Error())
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed)
}

// Decrypt opens a value produced by Encrypt. A value without the "enc:"
// prefix is returned unchanged, so legacy plaintext survives one migration
// cycle. On integrity failure it logs at warn and returns "" rather than
// propagating an error every caller would have to handle.
func (e *Envelope) Decrypt(ciphertext string) string {
	if !IsEncrypted(ciphertext) {
		return ciphertext
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, encPrefix))
	if err != nil {
		e.logger.Warn("crypto: malformed envelope base64", zap.Error(err))
		return ""
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		e.logger.Warn("crypto: invalid AES key", zap.Error(err))
		return ""
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		e.logger.Warn("crypto: GCM init failed", zap.Error(err))
		return ""
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		e.logger.Warn("crypto: ciphertext too short")
		return ""
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		e.logger.Warn("crypto: decrypt integrity check failed", zap.Error(err))
		return ""
	}
	return string(plaintext)
}

// IsEncrypted reports whether value carries the envelope's "enc:" prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}
