package metastore

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// Cipher encrypts and decrypts controller credentials at rest. Grounded on
// original_source's api/utils/encryption.py, which wraps every credential
// field in Fernet (symmetric authenticated encryption keyed by one shared
// secret). nacl/secretbox is the Go-idiomatic equivalent: authenticated
// secret-key encryption from a single fixed-size key, and already a direct
// dependency of this module (the teacher used the same golang.org/x/crypto
// package for bcrypt password hashing).
type Cipher struct {
	key [32]byte
}

// NewCipher builds a Cipher from a 32-byte key, analogous to the original's
// FERNET_KEY environment variable.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("metastore: encryption key must be 32 bytes, got %d", len(key))
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// Seal encrypts plaintext, prefixing the output with a random 24-byte nonce
// the way secretbox examples conventionally lay out their wire format.
func (c *Cipher) Seal(plaintext string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("metastore: cipher not configured")
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("metastore: generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return out, nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(ciphertext []byte) (string, error) {
	if c == nil {
		return "", fmt.Errorf("metastore: cipher not configured")
	}
	if len(ciphertext) < 24 {
		return "", fmt.Errorf("metastore: ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plain, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("metastore: decryption failed (wrong key or corrupt data)")
	}
	return string(plain), nil
}
