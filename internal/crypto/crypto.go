// Package crypto provides the symmetric encryption boundary for draft content.
//
// A single process-wide AES-256-GCM cipher is constructed at startup. Decrypt
// failures never propagate to callers: content encrypted under a rotated or
// lost key degrades to a fixed sentinel instead of failing the request.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Sentinel is returned by Decrypt in place of content that cannot be
// decrypted under the current key.
const Sentinel = "[ENCRYPTED]"

// ErrKeyRequired is returned when no key is configured in production.
var ErrKeyRequired = errors.New("encryption key must be set in production")

// Cipher encrypts and decrypts opaque string payloads with a process-wide key.
type Cipher struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

// New constructs a Cipher from a base64-encoded 32-byte key. In production
// a missing key is a fatal configuration error. Outside production a
// transient key is generated, which makes previously encrypted data
// unreadable after a restart.
func New(key string, env string, logger *zap.Logger) (*Cipher, error) {
	var raw []byte
	if key == "" {
		if env == "production" {
			return nil, ErrKeyRequired
		}
		logger.Warn("ENCRYPTION_KEY not set, generating temporary key for development")
		logger.Warn("all encrypted data will be lost on restart")
		raw = make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate temporary key: %w", err)
		}
	} else {
		var err error
		raw, err = base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
		}
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Cipher{aead: aead, logger: logger}, nil
}

// GenerateKey returns a fresh base64-encoded 32-byte key, suitable for the
// ENCRYPTION_KEY environment variable.
func GenerateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Encrypt seals plaintext under the process key. The nonce is prepended to
// the ciphertext and the result is base64-encoded. Empty input passes
// through unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext produced by Encrypt. Empty input passes through
// unchanged. Malformed or wrong-key ciphertext is logged and replaced with
// the Sentinel value; Decrypt never fails the caller.
func (c *Cipher) Decrypt(ciphertext string) string {
	if ciphertext == "" {
		return ciphertext
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		c.logger.Warn("decryption failed: ciphertext is not valid base64", zap.Error(err))
		return Sentinel
	}
	if len(sealed) < c.aead.NonceSize() {
		c.logger.Warn("decryption failed: ciphertext shorter than nonce")
		return Sentinel
	}

	nonce, body := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		// Data may have been written under a previous key.
		c.logger.Warn("decryption failed", zap.Error(err))
		return Sentinel
	}

	return string(plaintext)
}
