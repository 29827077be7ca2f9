// Package validation checks user input before it reaches the analyzers.
package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
)

// MaxURLLength bounds accepted image URLs
const MaxURLLength = 2048

// URLValidator accepts image URLs by scheme and, optionally, host
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts http and https URLs on any host
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithOptions([]string{"http", "https"}, nil)
}

// NewURLValidatorWithOptions restricts schemes and hosts; no hosts means any host
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	v := &URLValidator{}
	for _, s := range schemes {
		v.allowedSchemes = append(v.allowedSchemes, strings.ToLower(s))
	}
	for _, h := range hosts {
		v.allowedHosts = append(v.allowedHosts, strings.ToLower(h))
	}
	return v
}

// ValidateImageURL returns a ValidationError describing the first problem found
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}
	if len(imageURL) > MaxURLLength {
		return apperrors.NewValidationError("URL is too long", nil)
	}

	parsed, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}
	if !contains(v.allowedSchemes, strings.ToLower(parsed.Scheme)) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}
	if parsed.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if len(v.allowedHosts) > 0 && !contains(v.allowedHosts, strings.ToLower(parsed.Hostname())) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
