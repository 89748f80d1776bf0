package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/observability"
	"github.com/vedran77/activities/internal/repository"
	"github.com/vedran77/activities/internal/storage"
)

var (
	ErrPhotoNotFound    = domain.NewError(domain.ErrNotFound, "photo not found")
	ErrCannotDeleteMain = domain.NewError(domain.ErrInvalidOperation, "cannot delete the main photo")
	ErrInvalidImage     = domain.NewError(domain.ErrValidation, "file is not a supported image")
	ErrImageTooLarge    = domain.NewError(domain.ErrValidation, "image dimensions are too large")
)

const (
	photoMaxDimension = 1024
	photoJPEGQuality  = 85
	// decoding allocates width*height pixels up front
	photoMaxPixels = 40_000_000
)

type PhotoService struct {
	photoRepo repository.PhotoRepository
	store     storage.Storage
}

func NewPhotoService(photoRepo repository.PhotoRepository, store storage.Storage) *PhotoService {
	return &PhotoService{photoRepo: photoRepo, store: store}
}

// Upload shrinks the image to fit photoMaxDimension and stores it as JPEG.
// A user's first photo becomes their main photo.
func (s *PhotoService) Upload(ctx context.Context, userID uuid.UUID, r io.Reader) (photo *domain.Photo, err error) {
	defer func() { observability.RecordCommand("photo.upload", err) }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > photoMaxPixels {
		return nil, ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrInvalidImage
	}

	var buf bytes.Buffer
	resized := imaging.Fit(img, photoMaxDimension, photoMaxDimension, imaging.Lanczos)
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(photoJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	id := uuid.New()
	key := fmt.Sprintf("photos/%s/%s.jpg", userID, id)
	if err := s.store.Write(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return nil, fmt.Errorf("storing photo: %w", err)
	}

	p := &domain.Photo{
		ID:         id,
		UserID:     userID,
		URL:        s.store.URL(key),
		StorageKey: key,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.photoRepo.Create(ctx, p); err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("saving photo: %w", err)
	}

	return p, nil
}

func (s *PhotoService) SetMain(ctx context.Context, userID, photoID uuid.UUID) (err error) {
	defer func() { observability.RecordCommand("photo.set_main", err) }()

	if err := s.photoRepo.SetMain(ctx, userID, photoID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrPhotoNotFound
		}
		return fmt.Errorf("setting main photo: %w", err)
	}
	return nil
}

// Delete removes a non-main photo. Storage cleanup runs after the row is gone.
func (s *PhotoService) Delete(ctx context.Context, userID, photoID uuid.UUID) (err error) {
	defer func() { observability.RecordCommand("photo.delete", err) }()

	p, err := s.photoRepo.GetByID(ctx, photoID)
	if err != nil {
		return err
	}
	if p == nil || p.UserID != userID {
		return ErrPhotoNotFound
	}
	if p.IsMain {
		return ErrCannotDeleteMain
	}

	removed, err := s.photoRepo.Delete(ctx, userID, photoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrPhotoNotFound
		}
		return fmt.Errorf("deleting photo: %w", err)
	}
	if !removed {
		// became main or vanished since the lookup
		current, err := s.photoRepo.GetByID(ctx, photoID)
		if err != nil {
			return err
		}
		if current != nil && current.IsMain {
			return ErrCannotDeleteMain
		}
		return ErrPhotoNotFound
	}

	s.removeObject(ctx, p.StorageKey)
	return nil
}

func (s *PhotoService) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("removing stored photo failed")
	}
}
