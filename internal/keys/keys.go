// Package keys derives every email-bound value used by the registry and
// the photo vault. All derivations go through Derive with an explicit
// purpose so a pseudonym can never be used as a key or vice versa.
package keys

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Purpose is a BLAKE3 derive-key context string.
type Purpose string

const (
	// PurposePseudonym derives the registry primary key.
	PurposePseudonym Purpose = "memberpass 2025-10 registry pseudonym v1"
	// PurposePhotoKey derives the AES-256 key of a subject's photo.
	PurposePhotoKey Purpose = "memberpass 2025-10 photo encryption key v1"
)

// Size is the output length of Derive.
const Size = 32

// PhotoIDLength is the number of pseudonym hex characters exposed as a
// photo identifier.
const PhotoIDLength = 16

// Normalize lowercases and trims an email address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Derive returns the purpose-bound digest of a normalized email.
func Derive(purpose Purpose, email string) [Size]byte {
	var out [Size]byte
	blake3.DeriveKey(string(purpose), []byte(Normalize(email)), out[:])
	return out
}

// Pseudonym returns the hex registry key of an email.
func Pseudonym(email string) string {
	d := Derive(PurposePseudonym, email)
	return hex.EncodeToString(d[:])
}

// PhotoKey returns the symmetric key of a subject's photo.
func PhotoKey(email string) [Size]byte {
	return Derive(PurposePhotoKey, email)
}

// PhotoID returns the public identifier of a subject's photo.
func PhotoID(email string) string {
	return Pseudonym(email)[:PhotoIDLength]
}
