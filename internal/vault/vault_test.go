package vault

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) [KeySize]byte {
	var k [KeySize]byte
	for i := range k {
		k[i] = b + byte(i)
	}
	return k
}

func TestEncryptDecrypt(t *testing.T) {
	binary := make([]byte, 1000)
	for i := range binary {
		binary[i] = byte(i * 7)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "empty", plaintext: []byte{}},
		{name: "one byte", plaintext: []byte{0}},
		{name: "exact block", plaintext: bytes.Repeat([]byte{0x10}, aes.BlockSize)},
		{name: "binary", plaintext: binary},
		{name: "jpeg header", plaintext: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encrypt(key(1), tt.plaintext)
			require.NoError(t, err)
			assert.Zero(t, len(blob)%aes.BlockSize)
			assert.Greater(t, len(blob), len(tt.plaintext)+aes.BlockSize-1)

			got, err := Decrypt(key(1), blob)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestEncrypt_FreshIV(t *testing.T) {
	a, err := Encrypt(key(1), []byte("same"))
	require.NoError(t, err)
	b, err := Encrypt(key(1), []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a[:aes.BlockSize], b[:aes.BlockSize])
	assert.NotEqual(t, a, b)
}

func TestDecrypt_WrongKey(t *testing.T) {
	plaintext := []byte("a portrait that must not leak")
	blob, err := Encrypt(key(1), plaintext)
	require.NoError(t, err)

	got, err := Decrypt(key(2), blob)
	if err == nil {
		assert.NotEqual(t, plaintext, got)
		return
	}
	assert.ErrorIs(t, err, ErrPadding)
}

func TestDecrypt_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		blob    []byte
		wantErr error
	}{
		{name: "empty", blob: nil, wantErr: ErrBlobTooShort},
		{name: "iv only", blob: make([]byte, aes.BlockSize), wantErr: ErrBlobTooShort},
		{name: "ragged", blob: make([]byte, 2*aes.BlockSize+3), wantErr: ErrBlobSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(key(1), tt.blob)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUnpad(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr bool
	}{
		{name: "full block of padding", data: bytes.Repeat([]byte{16}, 16), want: []byte{}},
		{name: "single pad byte", data: append(bytes.Repeat([]byte{'x'}, 15), 1), want: bytes.Repeat([]byte{'x'}, 15)},
		{name: "zero pad byte", data: make([]byte, 16), wantErr: true},
		{name: "pad larger than block", data: append(make([]byte, 15), 17), wantErr: true},
		{name: "inconsistent padding", data: append(bytes.Repeat([]byte{'x'}, 13), 2, 3, 3), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unpad(tt.data, aes.BlockSize)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPadding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
