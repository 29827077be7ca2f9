package service

import (
	"bytes"
	"context"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/internal/observer"
	"github.com/anime-shed/image-inspector-go/internal/repository"
	"github.com/anime-shed/image-inspector-go/pkg/models"
	"github.com/anime-shed/image-inspector-go/pkg/validation"
)

// Upload is one image file handed to the service
type Upload struct {
	// Session groups uploads from one client; a newer upload in the same
	// session makes older in-flight results stale. Empty means never stale.
	Session      string
	Name         string
	MIMEType     string
	LastModified time.Time
	Data         []byte
	ImageURL     *string
	SkipHistory  bool
	// SkipFaces turns face detection off for this upload regardless of settings
	SkipFaces bool
}

// InspectionService runs inspections and manages their history and settings
type InspectionService interface {
	Analyze(ctx context.Context, upload Upload) (*models.AnalyzeResponse, error)
	AnalyzeURL(ctx context.Context, session, imageURL string, skipHistory bool) (*models.AnalyzeResponse, error)

	ListHistory(ctx context.Context, query models.HistoryQuery) ([]models.HistoryRecord, error)
	GetHistory(ctx context.Context, id int64) (models.HistoryRecord, error)
	DeleteHistory(ctx context.Context, id int64) error
	ClearHistory(ctx context.Context) error
	ExportHistory(ctx context.Context) ([]byte, error)
	ExportMetadata(ctx context.Context, id int64) ([]byte, error)

	Settings(ctx context.Context) models.Settings
	SaveSettings(ctx context.Context, settings models.Settings) error
	ResetSettings(ctx context.Context) (models.Settings, error)
}

type inspectionService struct {
	orchestrator *analyzer.Orchestrator
	tracker      *analyzer.Tracker
	images       repository.ImageRepository
	history      repository.HistoryRepository
	settings     repository.SettingsRepository
	events       observer.Subject

	maxUploadSize int64
	sampleStride  int
	timeout       time.Duration
}

// Option configures the inspection service
type Option func(*inspectionService)

// WithMaxUploadSize caps accepted file sizes; 0 disables the cap
func WithMaxUploadSize(n int64) Option {
	return func(s *inspectionService) { s.maxUploadSize = n }
}

// WithSampleStride overrides the color sampling stride
func WithSampleStride(stride int) Option {
	return func(s *inspectionService) { s.sampleStride = stride }
}

// WithAnalysisTimeout bounds the capability calls of one analysis
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *inspectionService) { s.timeout = d }
}

// NewInspectionService creates the service. images may be nil when URL
// analysis is not offered; events may be nil.
func NewInspectionService(
	orchestrator *analyzer.Orchestrator,
	images repository.ImageRepository,
	history repository.HistoryRepository,
	settings repository.SettingsRepository,
	events observer.Subject,
	opts ...Option,
) InspectionService {
	s := &inspectionService{
		orchestrator: orchestrator,
		tracker:      analyzer.NewTracker(),
		images:       images,
		history:      history,
		settings:     settings,
		events:       events,
		sampleStride: analyzer.DefaultSampleStride,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *inspectionService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, event)
}

// Analyze validates, decodes and inspects one upload. A non-image upload is
// rejected before anything is decoded or stored.
func (s *inspectionService) Analyze(ctx context.Context, upload Upload) (*models.AnalyzeResponse, error) {
	if err := validation.ValidateImageMIME(upload.MIMEType); err != nil {
		s.reject(ctx, upload, err)
		return nil, err
	}
	if err := validation.ValidateFileSize(int64(len(upload.Data)), s.maxUploadSize); err != nil {
		s.reject(ctx, upload, err)
		return nil, err
	}

	sourceID := analyzer.SourceID(upload.Data)
	ticket := s.tracker.Begin(upload.Session, sourceID)
	defer s.tracker.Finish(ticket)

	start := time.Now()
	s.publish(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		SourceID:  sourceID,
		FileName:  upload.Name,
	})

	img, err := imaging.Decode(bytes.NewReader(upload.Data), imaging.AutoOrientation(true))
	if err != nil {
		rejected := apperrors.NewInputRejectedError("The image could not be decoded", err)
		s.fail(ctx, sourceID, upload.Name, start, rejected)
		return nil, rejected
	}

	settings := s.settings.Get(ctx)
	opts := analyzer.OptionsFromSettings(settings).
		WithSampleStride(s.sampleStride).
		WithTimeout(s.timeout)
	if upload.SkipFaces {
		opts = opts.WithoutFaceDetection()
	}

	lastModified := upload.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now()
	}

	result, err := s.orchestrator.Analyze(ctx, analyzer.Source{
		File: analyzer.FileInfo{
			Name:         upload.Name,
			Size:         int64(len(upload.Data)),
			MIMEType:     upload.MIMEType,
			LastModified: lastModified,
		},
		Data:     upload.Data,
		Image:    img,
		SourceID: sourceID,
	}, opts)
	if err != nil {
		s.fail(ctx, sourceID, upload.Name, start, err)
		return nil, err
	}

	resp := &models.AnalyzeResponse{Result: result}

	if !s.tracker.Accept(ticket) {
		resp.Discarded = true
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisDiscarded,
			SourceID:       sourceID,
			FileName:       upload.Name,
			ProcessingTime: time.Since(start),
		})
		return resp, nil
	}

	if !upload.SkipHistory {
		rec, err := s.history.Add(ctx, result.Metadata, upload.ImageURL)
		resp.HistoryID = rec.ID
		resp.Archived = err == nil
		if err != nil {
			result.Notices = append(result.Notices, models.Notice{
				Component: "history",
				Kind:      string(apperrors.GetType(err)),
				Message:   err.Error(),
			})
		}
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		SourceID:       sourceID,
		FileName:       upload.Name,
		ProcessingTime: time.Since(start),
		Notices:        len(result.Notices),
		Metadata: map[string]interface{}{
			"archived": resp.Archived,
			"colors":   len(result.Colors),
			"faces":    result.Faces.Status,
		},
	})

	return resp, nil
}

func (s *inspectionService) reject(ctx context.Context, upload Upload, err error) {
	s.publish(ctx, observer.AnalysisEvent{
		EventType:    observer.InputRejected,
		FileName:     upload.Name,
		ErrorMessage: err.Error(),
		Metadata:     map[string]interface{}{"mime_type": upload.MIMEType},
	})
}

func (s *inspectionService) fail(ctx context.Context, sourceID, name string, start time.Time, err error) {
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisFailed,
		SourceID:       sourceID,
		FileName:       name,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
	})
}

// AnalyzeURL fetches a remote image and inspects it like an upload
func (s *inspectionService) AnalyzeURL(ctx context.Context, session, imageURL string, skipHistory bool) (*models.AnalyzeResponse, error) {
	if s.images == nil {
		return nil, apperrors.NewCapabilityUnavailableError("URL analysis is not configured", analyzer.ErrUnsupported)
	}

	start := time.Now()
	remote, err := s.images.FetchImage(ctx, imageURL)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.ImageFetchFailed,
			ImageURL:       imageURL,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		ImageURL:       imageURL,
		FileName:       remote.Name,
		ProcessingTime: time.Since(start),
		Metadata:       map[string]interface{}{"bytes": len(remote.Data)},
	})

	url := imageURL
	return s.Analyze(ctx, Upload{
		Session:      session,
		Name:         remote.Name,
		MIMEType:     remote.ContentType,
		LastModified: remote.FetchedAt,
		Data:         remote.Data,
		ImageURL:     &url,
		SkipHistory:  skipHistory,
	})
}

func (s *inspectionService) ListHistory(ctx context.Context, query models.HistoryQuery) ([]models.HistoryRecord, error) {
	return s.history.List(ctx, query)
}

func (s *inspectionService) GetHistory(ctx context.Context, id int64) (models.HistoryRecord, error) {
	return s.history.Get(ctx, id)
}

func (s *inspectionService) DeleteHistory(ctx context.Context, id int64) error {
	return s.history.Delete(ctx, id)
}

func (s *inspectionService) ClearHistory(ctx context.Context) error {
	return s.history.Clear(ctx)
}

func (s *inspectionService) ExportHistory(ctx context.Context) ([]byte, error) {
	return s.history.Export(ctx)
}

// ExportMetadata renders one record's metadata as indented JSON
func (s *inspectionService) ExportMetadata(ctx context.Context, id int64) ([]byte, error) {
	rec, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ExportMetadata(rec.Metadata)
}

// ExportMetadata renders metadata as indented JSON in insertion order
func ExportMetadata(m *models.Metadata) ([]byte, error) {
	if m.Len() == 0 {
		return nil, apperrors.NewValidationError("No metadata to export", repository.ErrEmptyExport)
	}
	data, err := m.MarshalIndent()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode metadata", err)
	}
	return data, nil
}

func (s *inspectionService) Settings(ctx context.Context) models.Settings {
	return s.settings.Get(ctx)
}

func (s *inspectionService) SaveSettings(ctx context.Context, settings models.Settings) error {
	if err := validation.ValidateSettings(settings); err != nil {
		return err
	}
	if err := s.settings.Save(ctx, settings); err != nil {
		return err
	}
	logger.WithComponent("settings").WithFields(map[string]interface{}{
		"theme":           settings.Theme,
		"face_detection":  settings.EnableFaceDetection,
		"color_analysis":  settings.EnableColorAnalysis,
		"quality_metrics": settings.EnableQualityMetrics,
	}).Info("Settings updated")
	return nil
}

func (s *inspectionService) ResetSettings(ctx context.Context) (models.Settings, error) {
	return s.settings.Reset(ctx)
}
