// Package vault encrypts provider API keys at rest. Ciphertext is wrapped in
// a versioned envelope ("gcmv1:" + base64) so that encryption state is an
// explicit tag rather than something inferred from a decryption attempt.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// envelopePrefix marks vault ciphertext. Bump the version when the cipher
// or envelope layout changes.
const envelopePrefix = "gcmv1:"

// ErrDecryption indicates the input is not valid ciphertext for this vault.
var ErrDecryption = errors.New("malformed or undecryptable ciphertext")

// Vault performs AES-256-GCM encryption of provider secrets. The 256-bit
// cipher key is derived from the configured secret with SHA-256, so any
// non-empty secret string is acceptable.
type Vault struct {
	aead cipher.AEAD
}

// New derives the cipher key from secret and prepares the AEAD.
func New(secret string) (*Vault, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("vault secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("initialise cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initialise GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext and returns the enveloped ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens enveloped ciphertext produced by Encrypt. It fails with
// ErrDecryption for input that is not vault ciphertext, including plaintext.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, envelopePrefix)
	if !ok {
		return "", ErrDecryption
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}
	if len(sealed) < v.aead.NonceSize() {
		return "", ErrDecryption
	}

	nonce, payload := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether the value carries the vault envelope.
func (v *Vault) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}

// EnsureEncrypted makes ingestion idempotent: an already-enveloped value that
// still decrypts is stored unchanged, anything else is treated as plaintext
// and encrypted. Re-saving a stored record therefore never double-encrypts.
func (v *Vault) EnsureEncrypted(value string) (string, error) {
	if v.IsEncrypted(value) {
		if _, err := v.Decrypt(value); err != nil {
			return "", fmt.Errorf("enveloped value does not decrypt: %w", err)
		}
		return value, nil
	}
	return v.Encrypt(value)
}
