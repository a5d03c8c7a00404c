package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/blob"
)

// allowedImageTypes maps accepted extensions to their content type.
var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// BackgroundService manages the gallery of background images.
// store may be nil when object storage is not configured; every call then
// returns apperror.ErrUnavailable.
type BackgroundService struct {
	store  blob.Store
	logger *slog.Logger
}

func NewBackgroundService(store blob.Store, logger *slog.Logger) *BackgroundService {
	return &BackgroundService{store: store, logger: logger}
}

// List returns the public URLs of every gallery image.
func (s *BackgroundService) List(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, apperror.Unavailable("image storage is not configured")
	}

	urls, err := s.store.List(ctx, blob.BackgroundPrefix)
	if err != nil {
		s.logger.Error("failed to list backgrounds", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing backgrounds: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// Upload stores an image under a fresh UUID name and returns its public URL.
// The size limit is enforced before the store is contacted.
func (s *BackgroundService) Upload(ctx context.Context, filename string, size int64, body io.Reader) (string, error) {
	if err := blob.CheckSize(size); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedImageTypes[ext]
	if !ok {
		return "", apperror.ValidationFailed("file", "only jpg, png, webp and gif images are accepted")
	}

	if s.store == nil {
		return "", apperror.Unavailable("image storage is not configured")
	}

	key := blob.NewKey(blob.BackgroundPrefix, filename)
	// Cap the read at the declared size so a lying client cannot exceed the limit.
	url, err := s.store.Put(ctx, key, contentType, io.LimitReader(body, size), size)
	if err != nil {
		s.logger.Error("failed to upload background",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("uploading background: %w", err)
	}

	s.logger.Info("background uploaded", slog.String("key", key), slog.Int64("size", size))
	return url, nil
}

// Delete removes a gallery image given its public URL.
// URLs outside the store's public base or outside the gallery prefix are rejected.
func (s *BackgroundService) Delete(ctx context.Context, url string) error {
	if s.store == nil {
		return apperror.Unavailable("image storage is not configured")
	}

	based, ok := s.store.(interface{ PublicBaseURL() string })
	if !ok {
		return apperror.Unavailable("image storage cannot resolve URLs")
	}
	key, ok := blob.KeyFromURL(based.PublicBaseURL(), url)
	if !ok || !strings.HasPrefix(key, blob.BackgroundPrefix) {
		return apperror.ValidationFailed("url", "not a gallery image")
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting background: %w", err)
	}
	s.logger.Info("background deleted", slog.String("key", key))
	return nil
}
