package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	"github.com/anime-shed/image-inspector-go/internal/config"
	"github.com/anime-shed/image-inspector-go/internal/exiftag"
	"github.com/anime-shed/image-inspector-go/internal/factory"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/internal/observer"
	"github.com/anime-shed/image-inspector-go/internal/repository"
	"github.com/anime-shed/image-inspector-go/internal/service"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/internal/transport"
	"github.com/anime-shed/image-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	pool      *analyzer.WorkerPool
	store     storage.KeyValueStore
	metrics   *observer.MetricsObserver
	publisher *observer.EventPublisher
	service   service.InspectionService
	handler   http.Handler
}

// NewContainer builds the dependency graph for cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	return NewContainerWithFactory(cfg, factory.NewComponentFactory())
}

// NewContainerWithFactory builds the graph using the given backend factories
func NewContainerWithFactory(cfg *config.Config, components *factory.ComponentFactory) (*Container, error) {
	store, err := components.StoreFactory.CreateStore(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StorageBackend, err)
	}

	detector, err := components.DetectorFactory.CreateDetector(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}

	pool := analyzer.NewWorkerPool(0)
	pool.Start()

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	fetcher := storage.NewHTTPImageFetcher(
		storage.WithTimeout(cfg.ImageFetchTimeout),
		storage.WithMaxBytes(cfg.MaxRequestBodySize),
	)

	svc := service.NewInspectionService(
		analyzer.NewOrchestrator(exiftag.NewSource(), detector, pool),
		repository.NewHTTPImageRepository(fetcher, validation.NewURLValidator()),
		repository.NewHistoryRepository(store, cfg.HistoryLimit),
		repository.NewSettingsRepository(store),
		publisher,
		service.WithMaxUploadSize(cfg.MaxRequestBodySize),
		service.WithSampleStride(cfg.ColorSampleStride),
		service.WithAnalysisTimeout(cfg.AnalysisTimeout),
	)

	logger.WithFields(map[string]interface{}{
		"storage_backend": cfg.StorageBackend,
		"face_detector":   cfg.FaceDetector,
		"workers":         pool.Workers(),
	}).Info("Container initialized")

	return &Container{
		config:    cfg,
		pool:      pool,
		store:     store,
		metrics:   metrics,
		publisher: publisher,
		service:   svc,
		handler:   transport.NewHandler(svc, metrics, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the inspection service
func (c *Container) Service() service.InspectionService {
	return c.service
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops the worker pool and closes the store
func (c *Container) Close() error {
	c.pool.Close()
	stats := c.pool.Stats()
	logger.WithFields(map[string]interface{}{
		"workers":        stats.Workers,
		"submitted_jobs": stats.SubmittedJobs,
		"completed_jobs": stats.CompletedJobs,
	}).Info("Worker pool stopped")
	return c.store.Close()
}
