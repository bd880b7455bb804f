// Package vault provides authenticated symmetric encryption for stored
// credentials. The key is the SHA-256 digest of the process secret;
// every secret that leaves the process boundary goes through here.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
)

// Vault encrypts and decrypts credential secrets with AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// New derives the encryption key from secret and constructs the vault.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext. The returned blob is nonce || ciphertext.
func (v *Vault) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt. Tampered or truncated
// ciphertext yields ErrDecrypt; the secret is never partially returned.
func (v *Vault) Decrypt(blob []byte) (string, error) {
	if len(blob) < v.aead.NonceSize() {
		return "", apierrors.ErrDecrypt
	}
	nonce, ciphertext := blob[:v.aead.NonceSize()], blob[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apierrors.ErrDecrypt
	}
	return string(plaintext), nil
}
