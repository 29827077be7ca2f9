package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "HISTORY_LIMIT", "COLOR_SAMPLE_STRIDE", "STORAGE_BACKEND", "FACE_DETECTOR"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected defaults to load, got %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", cfg.ServerAddress())
	}
	if cfg.HistoryLimit != 20 {
		t.Errorf("Expected history limit 20, got %d", cfg.HistoryLimit)
	}
	if cfg.ColorSampleStride != 16 {
		t.Errorf("Expected stride 16, got %d", cfg.ColorSampleStride)
	}
	if cfg.StorageBackend != BackendMemory || cfg.FaceDetector != DetectorNone {
		t.Errorf("Unexpected backends: %s/%s", cfg.StorageBackend, cfg.FaceDetector)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"PORT": "99999"}, "invalid PORT"},
		{"stride not pixel aligned", map[string]string{"COLOR_SAMPLE_STRIDE": "6"}, "COLOR_SAMPLE_STRIDE"},
		{"zero history", map[string]string{"HISTORY_LIMIT": "0"}, "HISTORY_LIMIT"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "redis"}, "unknown STORAGE_BACKEND"},
		{"azure without key", map[string]string{"STORAGE_BACKEND": "azure", "AZURE_STORAGE_ACCOUNT": "acct", "AZURE_STORAGE_KEY": ""}, "AZURE_STORAGE_KEY"},
		{"unknown detector", map[string]string{"FACE_DETECTOR": "opencv"}, "unknown FACE_DETECTOR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
