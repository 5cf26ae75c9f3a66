// Package vault encrypts photo blobs with AES-256-CBC. A blob is the
// random IV followed by the PKCS#7 padded ciphertext.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// KeySize is the AES-256 key length.
const KeySize = 32

var (
	ErrBlobTooShort = errors.New("blob shorter than one block")
	ErrBlobSize     = errors.New("ciphertext is not a multiple of the block size")
	ErrPadding      = errors.New("invalid padding")
)

// Encrypt seals plaintext under key with a fresh IV.
func Encrypt(key [KeySize]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt. A wrong key is reported as
// a padding error or, rarely, as garbage plaintext.
func Decrypt(key [KeySize]byte, blob []byte) ([]byte, error) {
	if len(blob) < 2*aes.BlockSize {
		return nil, ErrBlobTooShort
	}
	body := blob[aes.BlockSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, ErrBlobSize
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, blob[:aes.BlockSize]).CryptBlocks(plain, body)
	return unpad(plain, aes.BlockSize)
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	out := make([]byte, len(data)+n)
	copy(out, data)
	copy(out[len(data):], bytes.Repeat([]byte{byte(n)}, n))
	return out
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, ErrPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-n], nil
}
