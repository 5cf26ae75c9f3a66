package middleware

import (
	"net/http"
	"strings"

	"github.com/dtroode/memberpass/internal/api/http/response"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/model"
)

// TokenVerifier resolves a card token into its payload.
type TokenVerifier interface {
	VerifyCard(token string) (model.Payload, error)
}

// Authenticate validates card tokens and injects the payload into context.
type Authenticate struct {
	verifier       TokenVerifier
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(verifier TokenVerifier, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{verifier: verifier, contextManager: contextManager, logger: logger}
}

// Handle rejects requests without a valid card token with 401.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			response.WriteError(w, http.StatusUnauthorized, "missing card token")
			return
		}

		payload, err := m.verifier.VerifyCard(token)
		if err != nil {
			m.logger.Info("Authenticate: card token rejected", "token", logger.ShortToken(token))
			response.WriteError(w, http.StatusUnauthorized, model.ErrInvalidToken.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetPayloadToContext(r.Context(), payload)))
	})
}

// tokenFromRequest reads a bearer token, falling back to the token
// query parameter used by links embedded in card pages.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
