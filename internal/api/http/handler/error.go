package handler

import (
	"errors"
	"net/http"

	"github.com/dtroode/memberpass/internal/api/http/response"
	"github.com/dtroode/memberpass/internal/model"
)

func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidToken):
		response.WriteError(w, http.StatusUnauthorized, model.ErrInvalidToken.Error())
	case errors.Is(err, model.ErrPhotoNotFound):
		response.WriteError(w, http.StatusNotFound, "photo not found")
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNotMember):
		response.WriteError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, model.ErrRateLimited):
		response.WriteError(w, http.StatusTooManyRequests, model.ErrRateLimited.Error())
	case errors.Is(err, model.ErrInvalidRow), errors.Is(err, model.ErrInvalidPayload):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
