// Package token issues and verifies self-contained signed tokens.
// Each domain signs with its own key derived from the shared secret and
// a domain salt, so a token from one domain never verifies in another.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/dtroode/memberpass/internal/model"
)

const (
	keySize = 32
	keyInfo = "memberpass.token.signer.v1"
)

// Reasons a token fails verification. Callers outside this package
// must collapse them into model.ErrInvalidToken.
var (
	ErrExpired   = errors.New("token expired")
	ErrSignature = errors.New("bad token signature")
	ErrMalformed = errors.New("malformed token")
	ErrDomain    = errors.New("token issued for another domain")
)

// Claims is the signed body of a token.
type Claims struct {
	jwt.RegisteredClaims
	Salt string        `json:"slt"`
	Data model.Payload `json:"dat,omitempty"`
}

// Signer signs and verifies tokens of a single domain.
type Signer struct {
	key  []byte
	salt string
	now  func() time.Time
}

// NewSigner derives a domain key from secret and salt.
func NewSigner(secret, salt string, now func() time.Time) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: token secret", model.ErrMissingSecret)
	}
	if now == nil {
		now = time.Now
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	return &Signer{key: key, salt: salt, now: now}, nil
}

// Issue signs a flat key/value payload.
func (s *Signer) Issue(payload model.Payload) (string, error) {
	if len(payload) == 0 {
		return "", model.ErrInvalidPayload
	}

	data := make(model.Payload, len(payload))
	for k, v := range payload {
		data[k] = v
	}
	return s.sign(Claims{Data: data})
}

// IssueSubject signs a token carrying only a subject.
func (s *Signer) IssueSubject(subject string) (string, error) {
	if subject == "" {
		return "", model.ErrInvalidPayload
	}
	return s.sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}})
}

func (s *Signer) sign(claims Claims) (string, error) {
	claims.IssuedAt = jwt.NewNumericDate(s.now())
	claims.Salt = s.salt

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify checks the signature and that the token is no older than
// maxAge. Errors wrap one of the package reasons.
func (s *Signer) Verify(tokenString string, maxAge time.Duration) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, fmt.Errorf("%w: %w", ErrSignature, err)
		case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return Claims{}, fmt.Errorf("%w: issued in the future", ErrMalformed)
		default:
			return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	if !token.Valid {
		return Claims{}, ErrMalformed
	}
	if claims.Salt != s.salt {
		return Claims{}, ErrDomain
	}
	if claims.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing issue time", ErrMalformed)
	}

	age := s.now().Sub(claims.IssuedAt.Time)
	if age < 0 {
		return Claims{}, fmt.Errorf("%w: issued in the future", ErrMalformed)
	}
	if age > maxAge {
		return Claims{}, fmt.Errorf("%w: age %s exceeds %s", ErrExpired, age.Truncate(time.Second), maxAge)
	}

	return claims, nil
}
