package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrUnsealFailed means a persisted credential could not be opened,
// either because the seal key changed or the record is corrupt.
var ErrUnsealFailed = errors.New("session: unseal failed")

const sealKeySize = 32

// Sealer encrypts credentials before they touch the persistence layer.
type Sealer struct {
	key [sealKeySize]byte
}

// NewSealer creates a sealer from a 64-character hex key.
func NewSealer(hexKey string) (*Sealer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session: seal key is not valid hex: %w", err)
	}
	if len(raw) != sealKeySize {
		return nil, fmt.Errorf("session: seal key must be %d bytes, got %d", sealKeySize, len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext with a fresh random nonce. The nonce is
// prepended to the returned ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("session: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, ErrUnsealFailed
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}

// GenerateSealKey returns a fresh random seal key in hex form.
func GenerateSealKey() (string, error) {
	raw := make([]byte, sealKeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session: generate seal key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
