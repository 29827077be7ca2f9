package analyzer

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// Analysis component names used in notices and logs
const (
	ComponentMetadata = "metadata"
	ComponentColors   = "colors"
	ComponentQuality  = "quality"
	ComponentFaces    = "faces"
)

// Source is one decoded image together with the file it came from
type Source struct {
	File  FileInfo
	Data  []byte
	Image image.Image

	// SourceID overrides the content hash of Data when set
	SourceID string
}

// Orchestrator runs the metadata, color, quality and face analyses of one
// image concurrently and assembles a single AnalysisResult.
type Orchestrator struct {
	normalizer MetadataNormalizer
	colors     ColorAnalyzer
	quality    QualityAnalyzer
	faces      FaceSummarizer
	tagSource  TagSource
	detector   FaceDetector
}

// OrchestratorOption replaces one of the default analyzers
type OrchestratorOption func(*Orchestrator)

func WithMetadataNormalizer(n MetadataNormalizer) OrchestratorOption {
	return func(o *Orchestrator) { o.normalizer = n }
}

func WithColorAnalyzer(c ColorAnalyzer) OrchestratorOption {
	return func(o *Orchestrator) { o.colors = c }
}

func WithQualityAnalyzer(q QualityAnalyzer) OrchestratorOption {
	return func(o *Orchestrator) { o.quality = q }
}

// NewOrchestrator wires the default analyzers. tagSource and detector may be
// nil; their analyses then degrade instead of failing.
func NewOrchestrator(tagSource TagSource, detector FaceDetector, pool *WorkerPool, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		normalizer: NewMetadataNormalizer(),
		colors:     NewColorAnalyzer(),
		quality:    NewQualityAnalyzer(pool),
		faces:      NewFaceSummarizer(),
		tagSource:  tagSource,
		detector:   detector,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze returns an error only when the pixel data cannot be read. Every
// other failure is recorded as a notice on the result.
func (o *Orchestrator) Analyze(ctx context.Context, src Source, opts AnalysisOptions) (*models.AnalysisResult, error) {
	start := time.Now()

	buf, err := acquirePixels(src.Image)
	if err != nil {
		return nil, apperrors.NewComputationError("failed to read pixel data", err)
	}

	sourceID := src.SourceID
	if sourceID == "" {
		if len(src.Data) > 0 {
			sourceID = SourceID(src.Data)
		} else {
			sourceID = SourceID(buf.Pix)
		}
	}
	log := logger.WithComponent("orchestrator").WithField("source_id", sourceID)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		wg       sync.WaitGroup
		noticeMu sync.Mutex
		notices  []models.Notice

		metadata *models.Metadata
		colors   = []models.ColorBucket{}
		quality  *models.QualityReport
		faces    = DisabledFaces()
	)

	note := func(component string, err error) {
		entry := log.WithError(err).WithField("analysis", component)
		if apperrors.IsType(err, apperrors.ErrorTypeCapabilityUnavailable) {
			entry.Warn("Analysis degraded")
		} else {
			entry.Error("Analysis failed")
		}
		noticeMu.Lock()
		notices = append(notices, models.Notice{
			Component: component,
			Kind:      string(apperrors.GetType(err)),
			Message:   err.Error(),
		})
		noticeMu.Unlock()
	}

	size := ImageSize{Width: buf.Width, Height: buf.Height}

	wg.Add(1)
	go func() {
		defer wg.Done()
		metadata = o.metadata(ctx, src, size, note)
	}()

	if opts.EnableColorAnalysis {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out []models.ColorBucket
			if err := guard(ComponentColors, func() {
				out = o.colors.Analyze(buf, opts.ColorSampleStride)
			}); err != nil {
				note(ComponentColors, err)
				return
			}
			colors = out
		}()
	}

	if opts.EnableQualityMetrics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var report models.QualityReport
			if err := guard(ComponentQuality, func() {
				report = o.quality.Analyze(buf)
			}); err != nil {
				note(ComponentQuality, err)
				return
			}
			quality = &report
		}()
	}

	if opts.EnableFaceDetection {
		wg.Add(1)
		go func() {
			defer wg.Done()
			faces = o.detectFaces(ctx, src.Image, note)
		}()
	}

	wg.Wait()

	sort.SliceStable(notices, func(i, j int) bool {
		return notices[i].Component < notices[j].Component
	})

	result := &models.AnalysisResult{
		SourceID: sourceID,
		Metadata: metadata,
		Colors:   colors,
		Quality:  quality,
		Faces:    faces,
		Notices:  notices,
	}

	log.WithFields(logrus.Fields{
		"processing_time_ms": time.Since(start).Milliseconds(),
		"width":              buf.Width,
		"height":             buf.Height,
		"metadata_keys":      metadata.Len(),
		"colors":             len(colors),
		"faces":              faces.Status,
		"notices":            len(notices),
	}).Debug("Image analysis assembled")

	return result, nil
}

func (o *Orchestrator) metadata(ctx context.Context, src Source, size ImageSize, note func(string, error)) *models.Metadata {
	var tags models.TagSet
	switch {
	case o.tagSource == nil:
		note(ComponentMetadata, apperrors.NewCapabilityUnavailableError("tag source not configured", ErrUnsupported))
	case len(src.Data) == 0:
		note(ComponentMetadata, apperrors.NewCapabilityUnavailableError("no file bytes to read tags from", ErrUnsupported))
	default:
		t, err := o.tagSource.Tags(ctx, src.Data)
		if err != nil {
			note(ComponentMetadata, apperrors.NewCapabilityUnavailableError("tag extraction failed", err))
		} else {
			tags = t
		}
	}

	var md *models.Metadata
	if err := guard(ComponentMetadata, func() {
		md = o.normalizer.Normalize(src.File, size, tags)
	}); err != nil {
		note(ComponentMetadata, err)
		// retry without tags so the file and image keys survive a bad tag
		if err := guard(ComponentMetadata, func() {
			md = o.normalizer.Normalize(src.File, size, nil)
		}); err != nil {
			md = models.NewMetadata()
		}
	}
	return md
}

func (o *Orchestrator) detectFaces(ctx context.Context, img image.Image, note func(string, error)) models.FaceSummary {
	if o.detector == nil {
		err := apperrors.NewCapabilityUnavailableError("face detector not configured", ErrUnsupported)
		note(ComponentFaces, err)
		return o.faces.Summarize(nil, err)
	}

	var (
		boxes     []models.FaceBox
		detectErr error
	)
	if err := guard(ComponentFaces, func() {
		boxes, detectErr = o.detector.DetectFaces(ctx, img)
	}); err != nil {
		detectErr = err
	}
	if detectErr != nil {
		note(ComponentFaces, apperrors.NewCapabilityUnavailableError("face detection unavailable", detectErr))
	}
	return o.faces.Summarize(boxes, detectErr)
}

func acquirePixels(img image.Image) (buf *PixelBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reading pixels: %v", r)
		}
	}()
	return NewPixelBuffer(img)
}

// guard converts a panic inside an analysis into a ComputationError
func guard(component string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewComputationError(component+" analysis failed", fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
	return nil
}
