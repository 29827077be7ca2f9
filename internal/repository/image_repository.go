package repository

import (
	"context"
	"errors"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/pkg/validation"
)

// ImageRepository resolves remote image URLs to file bytes
type ImageRepository interface {
	FetchImage(ctx context.Context, imageURL string) (*storage.RemoteImage, error)
	ValidateImageURL(imageURL string) error
}

// HTTPImageRepository validates URLs before handing them to the fetcher
type HTTPImageRepository struct {
	fetcher   storage.ImageFetcher
	validator *validation.URLValidator
}

// NewHTTPImageRepository creates an image repository; a nil validator accepts any http(s) URL
func NewHTTPImageRepository(fetcher storage.ImageFetcher, validator *validation.URLValidator) *HTTPImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &HTTPImageRepository{fetcher: fetcher, validator: validator}
}

func (r *HTTPImageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}

// FetchImage maps transport failures onto the application error types
func (r *HTTPImageRepository) FetchImage(ctx context.Context, imageURL string) (*storage.RemoteImage, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	img, err := r.fetcher.FetchImage(ctx, imageURL)
	if err == nil {
		return img, nil
	}

	var tooLarge *storage.TooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return nil, apperrors.NewValidationError("Remote image is too large", err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.NewTimeoutError("Timed out fetching image", err)
	default:
		return nil, apperrors.NewNetworkError("Failed to fetch image", err)
	}
}
