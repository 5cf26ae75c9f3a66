package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrMissingField     = errors.New("missing required field")
	ErrEmptyInput       = errors.New("input has no header row")
	ErrValidationFailed = errors.New("batch contains invalid rows")
	ErrInvalidRow       = errors.New("row is not commit-eligible")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrInvalidPayload   = errors.New("token payload must be a non-empty flat mapping")
	ErrPhotoNotFound    = errors.New("photo not found")
	ErrPhotoDecrypt     = errors.New("photo decryption failed")
	ErrDecrypt          = errors.New("field decryption failed")
	ErrNotMember        = errors.New("email is not a registered member")
	ErrRateLimited      = errors.New("too many requests")
	ErrMissingSecret    = errors.New("required secret is not configured")
)

// IngestError reports an upload whose header row cannot be mapped.
type IngestError struct {
	Missing []string
	Seen    []string
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("missing required field(s) %s; headers seen: [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Seen, ", "))
}

// Unwrap allows errors.Is(err, ErrMissingField).
func (e *IngestError) Unwrap() error {
	return ErrMissingField
}
