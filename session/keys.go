package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// KeyFile is the name of the sealing key inside the data directory.
	KeyFile = "session.key"

	keyLength    = 32
	keyHexLength = keyLength * 2
)

// LoadOrCreateKey reads the hex-encoded sealing key from dir/session.key,
// generating and saving a new one with 0600 permissions if it does not exist.
func LoadOrCreateKey(dir string) (*[keyLength]byte, error) {
	path := filepath.Join(dir, KeyFile)

	//#nosec G304 -- path is the configured data directory
	if raw, err := os.ReadFile(path); err == nil {
		keyHex := strings.TrimSpace(string(raw))
		if len(keyHex) != keyHexLength {
			return nil, fmt.Errorf("invalid session key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
		}
		b, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid session key format: not valid hex: %w", err)
		}
		var key [keyLength]byte
		copy(key[:], b)
		return &key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	var key [keyLength]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key[:])), 0o600); err != nil {
		return nil, fmt.Errorf("save session key: %w", err)
	}
	return &key, nil
}
