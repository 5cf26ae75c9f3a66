package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dtroode/memberpass/internal/ingest"
	"github.com/dtroode/memberpass/internal/keys"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/metrics"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/ratelimit"
	"github.com/dtroode/memberpass/internal/token"
)

// Token domains reported to metrics.
const (
	domainCard  = "card"
	domainPhoto = "photo"
	domainMagic = "magic-link"
)

const unknownName = "Unknown"

// Cards builds membership card payloads and drives the magic-link login.
type Cards struct {
	registry *Registry
	tokens   *token.Service
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewCards(
	registry *Registry,
	tokens *token.Service,
	limiter ratelimit.Limiter,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Cards {
	return &Cards{
		registry: registry,
		tokens:   tokens,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger,
	}
}

// BuildCardPayload assembles the card payload for a verified identity.
// Role and join year come from the registry when the member is known.
func (s *Cards) BuildCardPayload(ctx context.Context, id model.Identity) (model.Payload, error) {
	email := keys.Normalize(id.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: identity has no email", model.ErrInvalidPayload)
	}

	first, last := splitName(id)
	payload := model.Payload{
		model.PayloadUserID:    email,
		model.PayloadFirstName: first,
		model.PayloadLastName:  last,
		model.PayloadRole:      "",
		model.PayloadPhotoID:   keys.PhotoID(email),
		model.PayloadJoinYear:  "",
	}

	view, err := s.registry.Lookup(ctx, email)
	switch {
	case err == nil:
		if !slices.Contains(view.Masked, model.FieldRole) {
			payload[model.PayloadRole] = view.Role
		}
		if !slices.Contains(view.Masked, model.FieldJoinDate) {
			payload[model.PayloadJoinYear] = view.JoinYear
		}
	case errors.Is(err, model.ErrNotFound):
	default:
		s.logger.Error("CardService: registry lookup failed", "email", logger.MaskEmail(email), "error", err)
	}

	return payload, nil
}

// IssueCardToken signs a card token for a verified identity.
func (s *Cards) IssueCardToken(ctx context.Context, id model.Identity) (string, error) {
	payload, err := s.BuildCardPayload(ctx, id)
	if err != nil {
		return "", err
	}

	tok, err := s.tokens.IssueCard(payload)
	if err != nil {
		return "", fmt.Errorf("failed to issue card token: %w", err)
	}

	s.metrics.TokenIssued(domainCard)
	s.logger.Info("CardService: card token issued", "email", logger.MaskEmail(payload[model.PayloadUserID]))
	return tok, nil
}

// IssuePhotoToken signs a token that grants access to the identity's
// own photo and returns the photo identifier it is bound to.
func (s *Cards) IssuePhotoToken(ctx context.Context, id model.Identity) (string, string, error) {
	payload, err := s.BuildCardPayload(ctx, id)
	if err != nil {
		return "", "", err
	}

	photoID := payload[model.PayloadPhotoID]
	tok, err := s.tokens.IssuePhoto(payload, photoID)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue photo token: %w", err)
	}

	s.metrics.TokenIssued(domainPhoto)
	return tok, photoID, nil
}

// VerifyCard returns the payload of a valid card token.
func (s *Cards) VerifyCard(tok string) (model.Payload, error) {
	payload, err := s.tokens.VerifyCard(tok)
	s.metrics.TokenVerified(domainCard, err == nil)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// RequestMagicLink issues a login token for a registered member.
// Requests are limited per requester; an empty requester falls back
// to the email's pseudonym.
func (s *Cards) RequestMagicLink(ctx context.Context, email, requester string) (model.MagicLink, error) {
	email = keys.Normalize(email)
	if !ingest.IsEmail(email) {
		return model.MagicLink{}, fmt.Errorf("%w: %s", model.ErrInvalidRow, ingest.MsgInvalidEmail)
	}

	pseudonym := keys.Pseudonym(email)
	key := requester
	if key == "" {
		key = pseudonym
	}

	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return model.MagicLink{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		s.logger.Warn("CardService: magic link rate limited", "pseudonym", pseudonym)
		return model.MagicLink{}, model.ErrRateLimited
	}

	view, err := s.registry.Get(ctx, pseudonym)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("CardService: magic link requested for unknown email", "pseudonym", pseudonym)
		return model.MagicLink{}, model.ErrNotMember
	}
	if err != nil {
		return model.MagicLink{}, fmt.Errorf("failed to look up member: %w", err)
	}

	tok, err := s.tokens.IssueMagicLink(email)
	if err != nil {
		return model.MagicLink{}, fmt.Errorf("failed to issue magic link: %w", err)
	}

	s.metrics.TokenIssued(domainMagic)
	s.logger.Info("CardService: magic link issued", "email", logger.MaskEmail(email), "pseudonym", pseudonym)

	return model.MagicLink{
		Token: tok,
		Identity: model.Identity{
			Email:     email,
			FirstName: view.FirstName,
			LastName:  view.LastName,
		},
	}, nil
}

// ConsumeMagicLink verifies a login token and returns the identity of
// the member it was issued for. A member removed since issuance is
// rejected.
func (s *Cards) ConsumeMagicLink(ctx context.Context, tok string) (model.Identity, error) {
	email, err := s.tokens.VerifyMagicLink(tok)
	s.metrics.TokenVerified(domainMagic, err == nil)
	if err != nil {
		return model.Identity{}, err
	}

	view, err := s.registry.Lookup(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("CardService: magic link for removed member", "pseudonym", keys.Pseudonym(email))
		return model.Identity{}, model.ErrNotMember
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to look up member: %w", err)
	}

	s.logger.Info("CardService: magic link consumed", "email", logger.MaskEmail(email))
	return model.Identity{
		Email:     email,
		FirstName: view.FirstName,
		LastName:  view.LastName,
	}, nil
}

// splitName prefers explicit first and last names and otherwise splits
// the display name at the first space.
func splitName(id model.Identity) (string, string) {
	first := strings.TrimSpace(id.FirstName)
	last := strings.TrimSpace(id.LastName)
	if first != "" && last != "" {
		return first, last
	}

	parts := strings.Fields(id.Name)
	if len(parts) == 0 {
		return unknownName, ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
