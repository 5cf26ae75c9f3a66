package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/memberpass/internal/api/http/response"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/model"
)

const maxLoginBody = 4 << 10

// LinkSender delivers an issued magic link to its member.
type LinkSender interface {
	SendMagicLink(ctx context.Context, link model.MagicLink) error
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CardToken string `json:"card_token"`
}

// Login drives the passwordless magic-link login.
type Login struct {
	cards  CardService
	sender LinkSender
	logger *logger.Logger
}

// NewLogin creates a new Login handler.
func NewLogin(cards CardService, sender LinkSender, logger *logger.Logger) *Login {
	return &Login{cards: cards, sender: sender, logger: logger}
}

// RequestLink issues and sends a magic link. Unknown addresses get the
// same 202 answer as members so membership cannot be probed.
func (h *Login) RequestLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.cards.RequestMagicLink(r.Context(), req.Email, clientIP(r))
	switch {
	case errors.Is(err, model.ErrNotMember):
		response.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
		return
	case err != nil:
		handleError(w, err)
		return
	}

	if err := h.sender.SendMagicLink(r.Context(), link); err != nil {
		h.logger.Error("LoginHandler: failed to send magic link",
			"email", logger.MaskEmail(link.Identity.Email), "error", err)
		response.WriteError(w, http.StatusBadGateway, "failed to send login link")
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// Consume redeems a magic link and answers with a card token.
func (h *Login) Consume(w http.ResponseWriter, r *http.Request) {
	id, err := h.cards.ConsumeMagicLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleError(w, err)
		return
	}

	cardToken, err := h.cards.IssueCardToken(r.Context(), id)
	if err != nil {
		h.logger.Error("LoginHandler: failed to issue card token", "error", err)
		handleError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, loginResponse{
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		CardToken: cardToken,
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
