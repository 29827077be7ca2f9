package analyzer

import (
	"context"
	"errors"
	"image"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// ErrUnsupported is returned by capabilities that are absent in the running environment
var ErrUnsupported = errors.New("capability not supported")

// ColorAnalyzer ranks exact-match dominant colors
type ColorAnalyzer interface {
	// Analyze samples buf every sampleStride channel entries; 0 selects the default stride
	Analyze(buf *PixelBuffer, sampleStride int) []models.ColorBucket
}

// QualityAnalyzer computes brightness, contrast and Laplacian sharpness
type QualityAnalyzer interface {
	Analyze(buf *PixelBuffer) models.QualityReport
}

// MetadataNormalizer flattens file attributes and raw tags into display metadata
type MetadataNormalizer interface {
	// Normalize never fails; a nil tags set yields only the file and image keys
	Normalize(file FileInfo, size ImageSize, tags models.TagSet) *models.Metadata
}

// FaceSummarizer turns a detection outcome into a FaceSummary
type FaceSummarizer interface {
	Summarize(detections []models.FaceBox, detectErr error) models.FaceSummary
}

// TagSource reads raw embedded tags from the original file bytes
type TagSource interface {
	Tags(ctx context.Context, data []byte) (models.TagSet, error)
}

// FaceDetector finds face bounding boxes in a decoded image
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]models.FaceBox, error)
}
