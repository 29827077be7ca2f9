package factory

import (
	"context"
	"fmt"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	"github.com/anime-shed/image-inspector-go/internal/config"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/internal/vision"
)

// StoreFactory creates the key/value store behind history and settings
type StoreFactory interface {
	CreateStore(ctx context.Context, cfg *config.Config) (storage.KeyValueStore, error)
}

// DetectorFactory creates the face detection capability
type DetectorFactory interface {
	CreateDetector(cfg *config.Config) (analyzer.FaceDetector, error)
}

type storeFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() StoreFactory {
	return &storeFactory{}
}

// CreateStore opens the configured backend. The azure container is created
// when missing.
func (f *storeFactory) CreateStore(ctx context.Context, cfg *config.Config) (storage.KeyValueStore, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory, "":
		return storage.NewMemoryStore(), nil
	case config.BackendSQLite:
		return storage.NewSQLiteStore(cfg.SQLitePath)
	case config.BackendAzure:
		store, err := storage.NewAzureBlobStore(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

type detectorFactory struct {
	opts []vision.OllamaOption
}

// NewDetectorFactory creates a detector factory; opts apply to the ollama detector
func NewDetectorFactory(opts ...vision.OllamaOption) DetectorFactory {
	return &detectorFactory{opts: opts}
}

// CreateDetector returns vision.Unavailable when detection is switched off,
// so results report faces as unsupported rather than failing. Ollama requests
// are bounded by the analysis timeout unless a factory option overrides it.
func (f *detectorFactory) CreateDetector(cfg *config.Config) (analyzer.FaceDetector, error) {
	switch cfg.FaceDetector {
	case config.DetectorNone, "":
		return vision.Unavailable{}, nil
	case config.DetectorOllama:
		opts := append([]vision.OllamaOption{vision.WithRequestTimeout(cfg.AnalysisTimeout)}, f.opts...)
		return vision.NewOllamaDetector(cfg.OllamaURL, cfg.OllamaModel, opts...)
	default:
		return nil, fmt.Errorf("unsupported face detector: %s", cfg.FaceDetector)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StoreFactory    StoreFactory
	DetectorFactory DetectorFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		StoreFactory:    NewStoreFactory(),
		DetectorFactory: NewDetectorFactory(),
	}
}
