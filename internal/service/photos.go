package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dtroode/memberpass/internal/keys"
	"github.com/dtroode/memberpass/internal/logger"
	"github.com/dtroode/memberpass/internal/metrics"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/token"
	"github.com/dtroode/memberpass/internal/vault"
)

const photoSuffix = ".enc"

// MaxPhotoSize bounds a single uploaded photo.
const MaxPhotoSize = 10 << 20

// ErrPhotoTooLarge is returned for uploads above MaxPhotoSize.
var ErrPhotoTooLarge = errors.New("photo exceeds maximum size")

// Photos encrypts member photos under per-member keys.
type Photos struct {
	storage model.Storage
	tokens  *token.Service
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewPhotos(storage model.Storage, tokens *token.Service, metrics *metrics.Metrics, logger *logger.Logger) *Photos {
	return &Photos{
		storage: storage,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}
}

// ObjectKey is the storage key of an email's photo blob.
func ObjectKey(email string) string {
	return keys.Pseudonym(email) + photoSuffix
}

// StorePhoto encrypts data for email, overwriting any previous photo,
// and returns the photo identifier.
func (s *Photos) StorePhoto(ctx context.Context, email string, data []byte) (string, error) {
	if len(data) > MaxPhotoSize {
		return "", ErrPhotoTooLarge
	}

	blob, err := vault.Encrypt(keys.PhotoKey(email), data)
	if err != nil {
		s.metrics.PhotoOperation("store", err)
		return "", fmt.Errorf("failed to encrypt photo: %w", err)
	}

	err = s.storage.Upload(ctx, ObjectKey(email), blob)
	s.metrics.PhotoOperation("store", err)
	if err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}

	photoID := keys.PhotoID(email)
	s.logger.Info("PhotoService: photo stored", "email", logger.MaskEmail(email), "photo_id", photoID, "bytes", len(data))
	return photoID, nil
}

// DeletePhoto removes the photo of email and reports whether one existed.
func (s *Photos) DeletePhoto(ctx context.Context, email string) (bool, error) {
	key := ObjectKey(email)

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check photo: %w", err)
	}
	if !exists {
		return false, nil
	}

	err = s.storage.Delete(ctx, key)
	s.metrics.PhotoOperation("delete", err)
	if err != nil {
		return false, fmt.Errorf("failed to delete photo: %w", err)
	}

	s.logger.Info("PhotoService: photo deleted", "email", logger.MaskEmail(email))
	return true, nil
}

// PhotoExists reports whether email has a stored photo.
func (s *Photos) PhotoExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.storage.Exists(ctx, ObjectKey(email))
	if err != nil {
		return false, fmt.Errorf("failed to check photo: %w", err)
	}
	return exists, nil
}

// ReadPhoto decrypts the photo named by photoID for the holder of a
// verified photo payload. The payload must be bound to photoID and to
// its own subject.
func (s *Photos) ReadPhoto(ctx context.Context, payload model.Payload, photoID string) ([]byte, error) {
	email := payload[model.PayloadUserID]
	if photoID == "" || payload[model.PayloadPhotoID] != photoID || email == "" || keys.PhotoID(email) != photoID {
		s.logger.Warn("PhotoService: photo id does not match token", "photo_id", photoID)
		s.metrics.PhotoOperation("read", model.ErrInvalidToken)
		return nil, model.ErrInvalidToken
	}

	data, err := s.readBlob(ctx, email)
	s.metrics.PhotoOperation("read", err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadPhotoWithToken verifies a photo token and returns the photo.
func (s *Photos) ReadPhotoWithToken(ctx context.Context, tok, photoID string) ([]byte, error) {
	payload, err := s.tokens.VerifyPhoto(tok, photoID)
	s.metrics.TokenVerified(domainPhoto, err == nil)
	if err != nil {
		return nil, err
	}
	return s.ReadPhoto(ctx, payload, photoID)
}

func (s *Photos) readBlob(ctx context.Context, email string) ([]byte, error) {
	rc, err := s.storage.Download(ctx, ObjectKey(email))
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download photo: %w", err)
	}
	defer rc.Close()

	blob, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}

	data, err := vault.Decrypt(keys.PhotoKey(email), blob)
	if err != nil {
		s.logger.Error("PhotoService: photo decryption failed", "email", logger.MaskEmail(email), "error", err)
		return nil, fmt.Errorf("%w: %w", model.ErrPhotoDecrypt, err)
	}
	return data, nil
}
