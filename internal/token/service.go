package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/model"
)

// Domain salts. Changing one invalidates every outstanding token of
// that domain.
const (
	CardSalt      = "member-card"
	PhotoSalt     = "member-photo"
	MagicLinkSalt = "email-login"
)

const (
	// DefaultCardMaxAge bounds card and photo tokens unless overridden.
	DefaultCardMaxAge = time.Hour
	// MagicLinkMaxAge is fixed and not configurable.
	MagicLinkMaxAge = 15 * time.Minute
)

// Service issues and verifies card, photo, and magic-link tokens.
// It is stateless and safe for concurrent use.
type Service struct {
	card       *Signer
	photo      *Signer
	magic      *Signer
	cardMaxAge time.Duration
	log        *logger.Logger
}

// NewService builds every token domain from one secret. A zero
// cardMaxAge selects DefaultCardMaxAge.
func NewService(secret string, cardMaxAge time.Duration, now func() time.Time, log *logger.Logger) (*Service, error) {
	card, err := NewSigner(secret, CardSalt, now)
	if err != nil {
		return nil, err
	}
	photo, err := NewSigner(secret, PhotoSalt, now)
	if err != nil {
		return nil, err
	}
	magic, err := NewSigner(secret, MagicLinkSalt, now)
	if err != nil {
		return nil, err
	}
	if cardMaxAge <= 0 {
		cardMaxAge = DefaultCardMaxAge
	}

	return &Service{
		card:       card,
		photo:      photo,
		magic:      magic,
		cardMaxAge: cardMaxAge,
		log:        log,
	}, nil
}

// CardMaxAge returns the configured card and photo token lifetime.
func (s *Service) CardMaxAge() time.Duration {
	return s.cardMaxAge
}

// IssueCard signs a membership card payload.
func (s *Service) IssueCard(payload model.Payload) (string, error) {
	return s.card.Issue(payload)
}

// IssuePhoto signs a card payload bound to one photo identifier.
func (s *Service) IssuePhoto(payload model.Payload, photoID string) (string, error) {
	if photoID == "" {
		return "", fmt.Errorf("%w: empty photo id", model.ErrInvalidPayload)
	}

	bound := make(model.Payload, len(payload)+1)
	for k, v := range payload {
		bound[k] = v
	}
	bound[model.PayloadPhotoID] = photoID
	return s.photo.Issue(bound)
}

// IssueMagicLink signs a login token for email.
func (s *Service) IssueMagicLink(email string) (string, error) {
	return s.magic.IssueSubject(email)
}

// VerifyCard returns the payload of a valid card token.
func (s *Service) VerifyCard(token string) (model.Payload, error) {
	return s.VerifyCardWithMaxAge(token, s.cardMaxAge)
}

// VerifyCardWithMaxAge verifies a card token against an explicit lifetime.
func (s *Service) VerifyCardWithMaxAge(token string, maxAge time.Duration) (model.Payload, error) {
	claims, err := s.card.Verify(token, maxAge)
	if err != nil {
		s.reject("card", token, err)
		return nil, model.ErrInvalidToken
	}
	if len(claims.Data) == 0 {
		s.reject("card", token, ErrMalformed)
		return nil, model.ErrInvalidToken
	}
	return claims.Data, nil
}

// VerifyPhoto verifies a photo token and requires its embedded photo
// identifier to equal photoID. Card tokens are rejected.
func (s *Service) VerifyPhoto(token, photoID string) (model.Payload, error) {
	claims, err := s.photo.Verify(token, s.cardMaxAge)
	if err != nil {
		s.reject("photo", token, err)
		return nil, model.ErrInvalidToken
	}
	payload := claims.Data
	if photoID == "" || payload[model.PayloadPhotoID] != photoID {
		s.log.Info("TokenService: photo id mismatch", "token", logger.ShortToken(token))
		return nil, model.ErrInvalidToken
	}
	return payload, nil
}

// VerifyMagicLink returns the email of a valid magic-link token.
func (s *Service) VerifyMagicLink(token string) (string, error) {
	claims, err := s.magic.Verify(token, MagicLinkMaxAge)
	if err != nil {
		s.reject("magic-link", token, err)
		return "", model.ErrInvalidToken
	}
	if claims.Subject == "" {
		s.reject("magic-link", token, ErrMalformed)
		return "", model.ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *Service) reject(domain, token string, err error) {
	reason := "malformed"
	switch {
	case errors.Is(err, ErrExpired):
		reason = "expired"
	case errors.Is(err, ErrSignature):
		reason = "bad signature"
	case errors.Is(err, ErrDomain):
		reason = "wrong domain"
	}
	s.log.Info("TokenService: token rejected",
		"domain", domain, "reason", reason, "token", logger.ShortToken(token), "error", err)
}
