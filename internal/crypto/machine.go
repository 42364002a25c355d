package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const saltFileName = "machine.salt"

// MachineKey derives the envelope's AES key from a passphrase stable across
// restarts on this host but not guessable from outside it: the machine's
// hostname plus a random salt persisted under homeDir on first run. Losing
// the salt file (e.g. a fresh install) simply rotates the key, which is
// why Decrypt treats integrity failures as "return empty" rather than fatal.
func MachineKey(homeDir string) ([]byte, error) {
	salt, err := loadOrCreateSalt(homeDir)
	if err != nil {
		return nil, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return DeriveKey(hostname + ":" + salt)
}

func loadOrCreateSalt(homeDir string) (string, error) {
	path := filepath.Join(homeDir, saltFileName)

	if data, err := os.ReadFile(path); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("crypto: reading machine salt: %w", err)
	}

	if err := os.MkdirAll(homeDir, 0o700); err != nil {
		return "", fmt.Errorf("crypto: creating home dir for salt: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("crypto: generating machine salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	if err := os.WriteFile(path, []byte(salt), 0o600); err != nil {
		return "", fmt.Errorf("crypto: persisting machine salt: %w", err)
	}
	return salt, nil
}
