package validation

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

func TestValidateImageURL(t *testing.T) {
	open := NewURLValidator()
	restricted := NewURLValidatorWithOptions([]string{"HTTPS"}, []string{"Example.com"})

	tests := []struct {
		name      string
		validator *URLValidator
		url       string
		wantMsg   string
	}{
		{"plain http", open, "http://example.com/image.jpg", ""},
		{"https with path", open, "https://sub.example.com/path/to/image.gif", ""},
		{"ip host", open, "http://192.168.1.1/image.jpg", ""},
		{"mixed case scheme", open, "HTTPS://example.com/a.png", ""},
		{"empty", open, "", "URL cannot be empty"},
		{"whitespace", open, " \t\n", "URL cannot be empty"},
		{"too long", open, "https://example.com/" + strings.Repeat("a", MaxURLLength), "URL is too long"},
		{"missing scheme", open, "://missing-scheme", "Invalid URL format"},
		{"relative", open, "not-a-url", "URL scheme not allowed"},
		{"ftp", open, "ftp://example.com/image.jpg", "URL scheme not allowed"},
		{"data uri", open, "data:image/png;base64,iVBORw0KGgo=", "URL scheme not allowed"},
		{"no host", open, "http:///path", "URL must have a valid host"},
		{"port only", open, "http://:8080/a.png", "URL must have a valid host"},
		{"allowed host with port", restricted, "https://example.com:8443/a.png", ""},
		{"restricted scheme", restricted, "http://example.com/a.png", "URL scheme not allowed"},
		{"restricted host", restricted, "https://untrusted.com/a.png", "URL host not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.ValidateImageURL(tt.url)
			if tt.wantMsg == "" {
				if err != nil {
					t.Errorf("Expected %q to pass, got %v", tt.url, err)
				}
				return
			}

			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Expected AppError, got %T (%v)", err, err)
			}
			if appErr.Type != apperrors.ErrorTypeValidation {
				t.Errorf("Expected validation error, got %s", appErr.Type)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("Expected %q, got %q", tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestValidateImageMIME(t *testing.T) {
	tests := []struct {
		mime    string
		wantErr bool
	}{
		{"image/png", false},
		{"image/jpeg", false},
		{"IMAGE/WEBP", false},
		{"image/svg+xml", false},
		{"image/jpeg; charset=binary", false},
		{"application/pdf", true},
		{"text/plain", true},
		{"imagefile", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			err := ValidateImageMIME(tt.mime)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("Expected %q accepted, got %v", tt.mime, err)
				}
				return
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeInputRejected) {
				t.Fatalf("Expected input_rejected for %q, got %v", tt.mime, err)
			}
			var appErr *apperrors.AppError
			errors.As(err, &appErr)
			if appErr.Message != NotAnImageMessage {
				t.Errorf("Expected %q, got %q", NotAnImageMessage, appErr.Message)
			}
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(0, 100); !apperrors.IsType(err, apperrors.ErrorTypeInputRejected) {
		t.Errorf("Expected empty file rejected, got %v", err)
	}
	if err := ValidateFileSize(101, 100); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected oversize file rejected, got %v", err)
	}
	if err := ValidateFileSize(100, 100); err != nil {
		t.Errorf("Expected file at the limit accepted, got %v", err)
	}
	if err := ValidateFileSize(1<<40, 0); err != nil {
		t.Errorf("Expected no cap when limit is 0, got %v", err)
	}
}

func TestValidateSettings(t *testing.T) {
	valid := models.DefaultSettings()
	if err := ValidateSettings(valid); err != nil {
		t.Errorf("Expected defaults to be valid, got %v", err)
	}

	noTheme := valid
	noTheme.Theme = " "
	badSpeed := valid
	badSpeed.AnimationSpeed = "warp"

	for name, s := range map[string]models.Settings{"empty theme": noTheme, "unknown speed": badSpeed} {
		t.Run(name, func(t *testing.T) {
			if err := ValidateSettings(s); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}
