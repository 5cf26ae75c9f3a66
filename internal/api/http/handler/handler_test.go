package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpctx "github.com/dtroode/memberpass/internal/api/http/context"
	"github.com/dtroode/memberpass/internal/mocks"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/testutil"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{err: model.ErrInvalidToken, wantStatus: http.StatusUnauthorized},
		{err: model.ErrPhotoNotFound, wantStatus: http.StatusNotFound},
		{err: model.ErrNotMember, wantStatus: http.StatusNotFound},
		{err: model.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{err: errors.Join(model.ErrInvalidRow, errors.New("invalid email address")), wantStatus: http.StatusBadRequest},
		{err: model.ErrPhotoDecrypt, wantStatus: http.StatusInternalServerError},
		{err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			handleError(w, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestHealth_Check(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		db := mocks.NewHealthChecker(t)
		db.On("PingContext", mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		NewHealth(map[string]model.HealthChecker{"registry": db}, testutil.MakeNoopLogger()).
			Check(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode(t, w)["status"])
	})

	t.Run("dependency down", func(t *testing.T) {
		db := mocks.NewHealthChecker(t)
		db.On("PingContext", mock.Anything).Return(nil)
		photos := mocks.NewHealthChecker(t)
		photos.On("PingContext", mock.Anything).Return(errors.New("bucket missing"))

		w := httptest.NewRecorder()
		NewHealth(map[string]model.HealthChecker{"registry": db, "photos": photos}, testutil.MakeNoopLogger()).
			Check(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode(t, w)
		assert.Equal(t, "unavailable", body["status"])
		assert.Equal(t, []any{"photos"}, body["failed"])
	})
}

func TestCard_Show(t *testing.T) {
	payload := model.Payload{model.PayloadUserID: "ana@x.de", model.PayloadRole: "Vorstand"}
	cm := httpctx.NewManager()

	t.Run("payload in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/card", nil)
		req = req.WithContext(cm.SetPayloadToContext(req.Context(), payload))

		w := httptest.NewRecorder()
		NewCard(mocks.NewCardService(t), cm, testutil.MakeNoopLogger()).Show(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Vorstand", decode(t, w)[model.PayloadRole])
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	})

	t.Run("payload missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewCard(mocks.NewCardService(t), cm, testutil.MakeNoopLogger()).
			Show(w, httptest.NewRequest(http.MethodGet, "/card", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCard_PhotoToken(t *testing.T) {
	cm := httpctx.NewManager()
	payload := model.Payload{
		model.PayloadUserID:    "ana@x.de",
		model.PayloadFirstName: "Ana",
		model.PayloadLastName:  "Schmidt",
	}
	id := model.Identity{Email: "ana@x.de", FirstName: "Ana", LastName: "Schmidt"}

	t.Run("issued", func(t *testing.T) {
		svc := mocks.NewCardService(t)
		svc.On("IssuePhotoToken", mock.Anything, id).Return("tok.en", "abcd", nil)

		req := httptest.NewRequest(http.MethodGet, "/card/photo-token", nil)
		req = req.WithContext(cm.SetPayloadToContext(req.Context(), payload))
		w := httptest.NewRecorder()
		NewCard(svc, cm, testutil.MakeNoopLogger()).PhotoToken(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "abcd", body["photo_id"])
		assert.Equal(t, "/photos/abcd?token=tok.en", body["url"])
	})

	t.Run("service error", func(t *testing.T) {
		svc := mocks.NewCardService(t)
		svc.On("IssuePhotoToken", mock.Anything, id).Return("", "", errors.New("boom"))

		req := httptest.NewRequest(http.MethodGet, "/card/photo-token", nil)
		req = req.WithContext(cm.SetPayloadToContext(req.Context(), payload))
		w := httptest.NewRecorder()
		NewCard(svc, cm, testutil.MakeNoopLogger()).PhotoToken(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestPhoto_Show(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	tests := []struct {
		name       string
		data       []byte
		err        error
		wantStatus int
	}{
		{name: "served", data: png, wantStatus: http.StatusOK},
		{name: "bad token", err: model.ErrInvalidToken, wantStatus: http.StatusUnauthorized},
		{name: "missing", err: model.ErrPhotoNotFound, wantStatus: http.StatusNotFound},
		{name: "undecryptable", err: model.ErrPhotoDecrypt, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewPhotoService(t)
			svc.On("ReadPhotoWithToken", mock.Anything, "tok", "abcd").Return(tt.data, tt.err)

			req := withURLParam(httptest.NewRequest(http.MethodGet, "/photos/abcd?token=tok", nil), "photoID", "abcd")
			w := httptest.NewRecorder()
			NewPhoto(svc, testutil.MakeNoopLogger()).Show(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, png, w.Body.Bytes())
				assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestLogin_RequestLink(t *testing.T) {
	link := model.MagicLink{Token: "tok", Identity: model.Identity{Email: "ana@x.de"}}

	tests := []struct {
		name       string
		body       string
		mockSetup  func(*mocks.CardService, *mocks.LinkSender)
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       "{",
			mockSetup:  func(*mocks.CardService, *mocks.LinkSender) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "member",
			body: `{"email":"ana@x.de"}`,
			mockSetup: func(c *mocks.CardService, s *mocks.LinkSender) {
				c.On("RequestMagicLink", mock.Anything, "ana@x.de", "192.0.2.1").Return(link, nil)
				s.On("SendMagicLink", mock.Anything, link).Return(nil)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "unknown email looks the same",
			body: `{"email":"eve@x.de"}`,
			mockSetup: func(c *mocks.CardService, _ *mocks.LinkSender) {
				c.On("RequestMagicLink", mock.Anything, "eve@x.de", "192.0.2.1").Return(model.MagicLink{}, model.ErrNotMember)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "rate limited",
			body: `{"email":"ana@x.de"}`,
			mockSetup: func(c *mocks.CardService, _ *mocks.LinkSender) {
				c.On("RequestMagicLink", mock.Anything, "ana@x.de", "192.0.2.1").Return(model.MagicLink{}, model.ErrRateLimited)
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "sender fails",
			body: `{"email":"ana@x.de"}`,
			mockSetup: func(c *mocks.CardService, s *mocks.LinkSender) {
				c.On("RequestMagicLink", mock.Anything, "ana@x.de", "192.0.2.1").Return(link, nil)
				s.On("SendMagicLink", mock.Anything, link).Return(errors.New("smtp down"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewCardService(t)
			sender := mocks.NewLinkSender(t)
			tt.mockSetup(svc, sender)

			req := httptest.NewRequest(http.MethodPost, "/login/magic", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			NewLogin(svc, sender, testutil.MakeNoopLogger()).RequestLink(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "tok")
		})
	}
}

func TestLogin_Consume(t *testing.T) {
	id := model.Identity{Email: "ana@x.de", FirstName: "Ana", LastName: "Schmidt"}

	t.Run("success", func(t *testing.T) {
		svc := mocks.NewCardService(t)
		svc.On("ConsumeMagicLink", mock.Anything, "login-tok").Return(id, nil)
		svc.On("IssueCardToken", mock.Anything, id).Return("card-tok", nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/login/magic/login-tok", nil), "token", "login-tok")
		w := httptest.NewRecorder()
		NewLogin(svc, mocks.NewLinkSender(t), testutil.MakeNoopLogger()).Consume(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "card-tok", body["card_token"])
		assert.Equal(t, "Schmidt", body["last_name"])
	})

	t.Run("expired", func(t *testing.T) {
		svc := mocks.NewCardService(t)
		svc.On("ConsumeMagicLink", mock.Anything, "old").Return(model.Identity{}, model.ErrInvalidToken)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/login/magic/old", nil), "token", "old")
		w := httptest.NewRecorder()
		NewLogin(svc, mocks.NewLinkSender(t), testutil.MakeNoopLogger()).Consume(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("member removed", func(t *testing.T) {
		svc := mocks.NewCardService(t)
		svc.On("ConsumeMagicLink", mock.Anything, "tok").Return(model.Identity{}, model.ErrNotMember)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/login/magic/tok", bytes.NewReader(nil)), "token", "tok")
		w := httptest.NewRecorder()
		NewLogin(svc, mocks.NewLinkSender(t), testutil.MakeNoopLogger()).Consume(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
