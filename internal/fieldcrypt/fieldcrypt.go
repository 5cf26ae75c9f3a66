// Package fieldcrypt seals registry attributes one at a time so a single
// damaged ciphertext never hides the rest of a record.
package fieldcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/dtroode/memberpass/internal/model"
)

// Version is prepended to every sealed value and authenticated as AAD.
const Version byte = 0x01

// DefaultPlaceholder replaces values that fail to decrypt.
const DefaultPlaceholder = "?"

var hkdfInfo = []byte("memberpass.registry.field.v1")

// Policy controls what happens when a stored field cannot be opened.
type Policy struct {
	// Mask substitutes Placeholder instead of failing the read.
	Mask        bool
	Placeholder string
}

// Cipher seals and opens individual registry fields.
type Cipher struct {
	aead   cipher.AEAD
	policy Policy
}

// New derives the field key from the process secret.
func New(secret string, policy Policy) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("registry field cipher: %w", model.ErrMissingSecret)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive field key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create field cipher: %w", err)
	}
	if policy.Placeholder == "" {
		policy.Placeholder = DefaultPlaceholder
	}
	return &Cipher{aead: aead, policy: policy}, nil
}

// Seal encrypts plaintext bound to the field name.
func (c *Cipher) Seal(field, plaintext string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 1, 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	out[0] = Version
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, []byte(plaintext), aad(field))

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal for the same field.
func (c *Cipher) Open(field, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %s: bad encoding", model.ErrDecrypt, field)
	}
	if len(raw) < 1+chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return "", fmt.Errorf("%w: %s: value too short", model.ErrDecrypt, field)
	}
	if raw[0] != Version {
		return "", fmt.Errorf("%w: %s: unsupported version %d", model.ErrDecrypt, field, raw[0])
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := c.aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSizeX:], aad(field))
	if err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrDecrypt, field)
	}
	return string(plaintext), nil
}

// OpenMasked opens a field under the configured policy. masked is true
// when the placeholder was substituted; err is only returned when
// masking is disabled.
func (c *Cipher) OpenMasked(field, sealed string) (value string, masked bool, err error) {
	value, err = c.Open(field, sealed)
	if err == nil {
		return value, false, nil
	}
	if !c.policy.Mask {
		return "", false, err
	}
	return c.policy.Placeholder, true, nil
}

func aad(field string) []byte {
	return append([]byte{Version}, field...)
}
