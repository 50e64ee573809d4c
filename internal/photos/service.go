package photos

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/apperr"
	"github.com/keepmyplanet/backend/pkg/storage"
)

// PhotoRepository is the photo metadata persistence surface.
type PhotoRepository interface {
	Create(ctx context.Context, p *models.Photo) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	IsReferenced(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service implements photo upload and lifecycle.
type Service struct {
	photos PhotoRepository
	store  *storage.S3
	logger *zap.Logger
}

// NewService creates the photo service. store may be nil when object
// storage is not configured; uploads then fail cleanly and reads fall
// back to the stored URL.
func NewService(photos PhotoRepository, store *storage.S3, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{photos: photos, store: store, logger: logger}
}

// Upload validates and stores a photo, returning its metadata. The object
// key embeds the owner so ownership survives metadata loss.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, filename, contentType string, body io.Reader, size int64) (*models.Photo, error) {
	if size <= 0 {
		return nil, apperr.Validation("photo is empty")
	}
	if size > storage.MaxPhotoSize {
		return nil, apperr.Validation("photo exceeds the 10MB size limit")
	}
	if !storage.ValidatePhotoFileType(contentType, filename) {
		return nil, apperr.Validation("unsupported photo type; use jpeg, png or webp")
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(filename)
	}
	if s.store == nil {
		return nil, apperr.Internal("photo storage is not configured", nil)
	}

	photoID := uuid.New()
	key := storage.PhotoKey(ownerID.String(), photoID.String(), filename)
	url, err := s.store.Upload(ctx, key, contentType, body, size)
	if err != nil {
		return nil, apperr.Internal("upload photo", err)
	}

	photo := &models.Photo{OwnerID: ownerID, URL: url, S3Key: key}
	if err := s.photos.Create(ctx, photo); err != nil {
		// Metadata failed; remove the orphaned object.
		if delErr := s.store.DeleteObject(ctx, key); delErr != nil {
			s.logger.Warn("orphaned photo object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, apperr.Internal("store photo metadata", err)
	}
	return photo, nil
}

// Get fetches photo metadata with a fresh pre-signed download URL.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("photo not found")
		}
		return nil, apperr.Internal("load photo", err)
	}
	if s.store != nil {
		if url, err := s.store.GeneratePresignedDownloadURL(ctx, photo.S3Key, s.store.PresignExpire()); err == nil {
			photo.URL = url
		}
	}
	return photo, nil
}

// Delete removes a photo. Only the owner deletes, and only while no zone
// still references the photo. The S3 object removal is best-effort.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("photo not found")
		}
		return apperr.Internal("load photo", err)
	}
	if photo.OwnerID != userID {
		return apperr.Authorization("only the owner may delete a photo")
	}
	referenced, err := s.photos.IsReferenced(ctx, id)
	if err != nil {
		return apperr.Internal("check photo references", err)
	}
	if referenced {
		return apperr.Conflict("photo is attached to a zone")
	}

	if err := s.photos.DeleteByID(ctx, id); err != nil {
		return apperr.Internal("delete photo metadata", err)
	}
	if s.store != nil {
		if err := s.store.DeleteObject(ctx, photo.S3Key); err != nil {
			s.logger.Warn("photo object not removed", zap.String("key", photo.S3Key), zap.Error(err))
		}
	}
	return nil
}
