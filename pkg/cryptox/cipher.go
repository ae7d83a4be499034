package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrMissingKey is returned when neither a dedicated key nor the
	// application-wide fallback secret is configured.
	ErrMissingKey = errors.New("cryptox: encryption key not configured")

	// ErrDecrypt covers malformed, truncated or tampered ciphertext.
	ErrDecrypt = errors.New("cryptox: decryption failed")
)

// Cipher is AES-256-GCM keyed by a subkey derived for one purpose, so the
// same application secret can back several cookies without key reuse.
// Output is base64url text safe for cookies and session values.
type Cipher struct {
	aead    cipher.AEAD
	purpose []byte
}

// NewCipher derives a subkey for purpose from key, or from fallback when key
// is empty.
func NewCipher(key, fallback, purpose string) (*Cipher, error) {
	material := strings.TrimSpace(key)
	if material == "" {
		material = strings.TrimSpace(fallback)
	}
	if material == "" {
		return nil, ErrMissingKey
	}
	if purpose == "" {
		return nil, errors.New("cryptox: cipher purpose is required")
	}

	subkey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(material), nil, []byte("twofactor/"+purpose))
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("failed to derive subkey: %w", err)
	}

	block, err := aes.NewCipher(subkey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: gcm, purpose: []byte(purpose)}, nil
}

// Encrypt seals value under a fresh random nonce.
// Layout before encoding: [nonce][ciphertext][tag].
func (c *Cipher) Encrypt(value string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(value), c.purpose)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens text produced by Encrypt. Empty input means nothing was
// stored and reports ok=false without an error.
func (c *Cipher) Decrypt(text string) (value string, ok bool, err error) {
	if text == "" {
		return "", false, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", false, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, ciphertext, c.purpose)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return string(plain), true, nil
}
