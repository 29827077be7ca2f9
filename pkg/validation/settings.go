package validation

import (
	"strings"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// AnimationSpeeds lists the accepted animation speeds
var AnimationSpeeds = []string{"slow", "normal", "fast"}

// ValidateSettings checks the free-form fields of a settings document
func ValidateSettings(s models.Settings) error {
	if strings.TrimSpace(s.Theme) == "" {
		return apperrors.NewValidationError("Theme cannot be empty", nil)
	}
	if !contains(AnimationSpeeds, s.AnimationSpeed) {
		return apperrors.NewValidationError("Animation speed must be one of slow, normal, fast", nil).
			WithDetails("received " + quoteOrEmpty(s.AnimationSpeed))
	}
	return nil
}
