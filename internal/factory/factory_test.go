package factory

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/anime-shed/image-inspector-go/internal/config"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/internal/vision"
)

func TestCreateStore(t *testing.T) {
	f := NewStoreFactory()
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     *config.Config
		check   func(storage.KeyValueStore) bool
		wantErr bool
	}{
		{
			name: "memory",
			cfg:  &config.Config{StorageBackend: config.BackendMemory},
			check: func(s storage.KeyValueStore) bool {
				_, ok := s.(*storage.MemoryStore)
				return ok
			},
		},
		{
			name: "sqlite",
			cfg:  &config.Config{StorageBackend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "kv.db")},
			check: func(s storage.KeyValueStore) bool {
				_, ok := s.(*storage.SQLiteStore)
				return ok
			},
		},
		{
			name:    "unknown",
			cfg:     &config.Config{StorageBackend: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := f.CreateStore(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			defer store.Close()
			if !tt.check(store) {
				t.Errorf("Unexpected store type %T", store)
			}
		})
	}
}

func TestCreateDetector(t *testing.T) {
	f := NewComponentFactory().DetectorFactory

	d, err := f.CreateDetector(&config.Config{FaceDetector: config.DetectorNone})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := d.(vision.Unavailable); !ok {
		t.Errorf("Expected vision.Unavailable, got %T", d)
	}

	d, err = f.CreateDetector(&config.Config{
		FaceDetector: config.DetectorOllama,
		OllamaURL:    "http://localhost:11434",
		OllamaModel:  "llava",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := d.(*vision.OllamaDetector); !ok {
		t.Errorf("Expected *vision.OllamaDetector, got %T", d)
	}

	if _, err := f.CreateDetector(&config.Config{FaceDetector: config.DetectorOllama, OllamaURL: "not a url"}); err == nil {
		t.Error("Expected an invalid ollama URL to fail")
	}
	if _, err := f.CreateDetector(&config.Config{FaceDetector: "opencv"}); err == nil {
		t.Error("Expected an unknown detector to fail")
	}
}

func TestCreateDetector_AnalysisTimeoutBoundsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	tests := []struct {
		name            string
		factory         DetectorFactory
		analysisTimeout time.Duration
	}{
		{"analysis timeout", NewDetectorFactory(), 100 * time.Millisecond},
		{"option overrides", NewDetectorFactory(vision.WithRequestTimeout(100 * time.Millisecond)), time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.factory.CreateDetector(&config.Config{
				FaceDetector:    config.DetectorOllama,
				OllamaURL:       srv.URL,
				AnalysisTimeout: tt.analysisTimeout,
			})
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			start := time.Now()
			_, err = d.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
			if err == nil {
				t.Fatal("Expected the stalled request to time out")
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("Expected failure within 2s, got %v", elapsed)
			}
		})
	}
}
