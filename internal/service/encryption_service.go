package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"solana-custody-gateway/internal/core/domain"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyDerivationSalt       = "salt"
	keyDerivationIterations = 100_000
	aesKeySize              = 32
	gcmIVSize               = 16
	gcmTagSize              = 16
)

// AESCipher implements ports.EncryptionService using AES-256-GCM with a key
// derived from the deployment secret by PBKDF2-HMAC-SHA512.
type AESCipher struct {
	key []byte // nil when no secret is configured
}

// NewAESCipher derives the encryption key from secret. An empty secret yields
// a cipher whose every operation fails with domain.ErrEncryptionUnavailable.
func NewAESCipher(secret string) *AESCipher {
	if secret == "" {
		return &AESCipher{}
	}
	key := pbkdf2.Key([]byte(secret), []byte(keyDerivationSalt), keyDerivationIterations, aesKeySize, sha512.New)
	return &AESCipher{key: key}
}

// Available reports whether a secret was configured.
func (c *AESCipher) Available() bool {
	return c.key != nil
}

// Encrypt returns "hex(iv):hex(tag):hex(ciphertext)".
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcmIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens an envelope produced by Encrypt. Any malformed or tampered
// input fails with domain.ErrIntegrity.
func (c *AESCipher) Decrypt(envelope string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	fields := strings.Split(envelope, ":")
	if len(fields) != 3 {
		return "", fmt.Errorf("envelope has %d fields: %w", len(fields), domain.ErrIntegrity)
	}

	iv, err := hex.DecodeString(fields[0])
	if err != nil || len(iv) != gcmIVSize {
		return "", fmt.Errorf("decoding iv: %w", domain.ErrIntegrity)
	}
	tag, err := hex.DecodeString(fields[1])
	if err != nil || len(tag) != gcmTagSize {
		return "", fmt.Errorf("decoding tag: %w", domain.ErrIntegrity)
	}
	ct, err := hex.DecodeString(fields[2])
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", domain.ErrIntegrity)
	}

	plaintext, err := aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("opening envelope: %w", domain.ErrIntegrity)
	}

	return string(plaintext), nil
}

func (c *AESCipher) aead() (cipher.AEAD, error) {
	if c.key == nil {
		return nil, domain.ErrEncryptionUnavailable
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, gcmIVSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
