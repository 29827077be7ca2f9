package validation

import (
	"mime"
	"strings"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
)

// NotAnImageMessage is shown when a non-image file is selected
const NotAnImageMessage = "Please select an image file"

// ValidateImageMIME rejects any media type outside image/*
func ValidateImageMIME(mimeType string) error {
	mt := strings.TrimSpace(mimeType)
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if !strings.HasPrefix(strings.ToLower(mt), "image/") {
		return apperrors.NewInputRejectedError(NotAnImageMessage, nil).
			WithDetails("received " + quoteOrEmpty(mimeType))
	}
	return nil
}

// ValidateFileSize rejects empty files and files over limit bytes; limit <= 0 disables the cap
func ValidateFileSize(size, limit int64) error {
	if size <= 0 {
		return apperrors.NewInputRejectedError("The selected file is empty", nil)
	}
	if limit > 0 && size > limit {
		return apperrors.NewValidationError("The selected file is too large", nil)
	}
	return nil
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "no media type"
	}
	return `"` + s + `"`
}
