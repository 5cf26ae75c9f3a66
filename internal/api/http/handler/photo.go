package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/memberpass/internal/logger"
)

// PhotoService returns decrypted photos for valid photo tokens.
type PhotoService interface {
	ReadPhotoWithToken(ctx context.Context, token, photoID string) ([]byte, error)
}

// Photo streams decrypted member photos.
type Photo struct {
	photos PhotoService
	logger *logger.Logger
}

// NewPhoto creates a new Photo handler.
func NewPhoto(photos PhotoService, logger *logger.Logger) *Photo {
	return &Photo{photos: photos, logger: logger}
}

// Show writes the photo named in the path if the token grants it.
func (h *Photo) Show(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoID")
	token := r.URL.Query().Get("token")

	data, err := h.photos.ReadPhotoWithToken(r.Context(), token, photoID)
	if err != nil {
		h.logger.Info("PhotoHandler: photo not served", "photo_id", photoID, "error", err)
		handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
