package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dtroode/memberpass/internal/api/http/response"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/model"
)

// CardService issues and verifies card, photo and login tokens.
type CardService interface {
	IssueCardToken(ctx context.Context, id model.Identity) (string, error)
	IssuePhotoToken(ctx context.Context, id model.Identity) (string, string, error)
	VerifyCard(token string) (model.Payload, error)
	RequestMagicLink(ctx context.Context, email, requester string) (model.MagicLink, error)
	ConsumeMagicLink(ctx context.Context, token string) (model.Identity, error)
}

type photoTokenResponse struct {
	PhotoID string `json:"photo_id"`
	Token   string `json:"token"`
	URL     string `json:"url"`
}

// Card serves the membership card of an authenticated holder.
type Card struct {
	cards          CardService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewCard creates a new Card handler.
func NewCard(cards CardService, contextManager model.ContextManager, logger *logger.Logger) *Card {
	return &Card{cards: cards, contextManager: contextManager, logger: logger}
}

// Show returns the verified card payload.
func (h *Card) Show(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.contextManager.GetPayloadFromContext(r.Context())
	if !ok {
		h.logger.Error("CardHandler: payload missing from context")
		response.WriteError(w, http.StatusInternalServerError, "authentication context error")
		return
	}
	response.WriteJSON(w, http.StatusOK, payload)
}

// PhotoToken issues a photo token bound to the card holder's own photo.
func (h *Card) PhotoToken(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.contextManager.GetPayloadFromContext(r.Context())
	if !ok {
		h.logger.Error("CardHandler: payload missing from context")
		response.WriteError(w, http.StatusInternalServerError, "authentication context error")
		return
	}

	token, photoID, err := h.cards.IssuePhotoToken(r.Context(), identityFromPayload(payload))
	if err != nil {
		h.logger.Error("CardHandler: failed to issue photo token", "error", err)
		handleError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, photoTokenResponse{
		PhotoID: photoID,
		Token:   token,
		URL:     "/photos/" + url.PathEscape(photoID) + "?token=" + url.QueryEscape(token),
	})
}

func identityFromPayload(payload model.Payload) model.Identity {
	return model.Identity{
		Email:     payload[model.PayloadUserID],
		FirstName: payload[model.PayloadFirstName],
		LastName:  payload[model.PayloadLastName],
	}
}
