package analyzer

import (
	"time"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// AnalysisOptions selects which analyses run and how
type AnalysisOptions struct {
	// Feature toggles
	EnableColorAnalysis  bool
	EnableQualityMetrics bool
	EnableFaceDetection  bool

	// ColorSampleStride is in channel entries; 0 means DefaultSampleStride
	ColorSampleStride int

	// Timeout bounds the external capability calls; 0 means no bound
	Timeout time.Duration
}

// DefaultOptions runs every analysis
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		EnableColorAnalysis:  true,
		EnableQualityMetrics: true,
		EnableFaceDetection:  true,
		ColorSampleStride:    DefaultSampleStride,
	}
}

// OptionsFromSettings maps user preferences onto analysis options
func OptionsFromSettings(s models.Settings) AnalysisOptions {
	opts := DefaultOptions()
	opts.EnableColorAnalysis = s.EnableColorAnalysis
	opts.EnableQualityMetrics = s.EnableQualityMetrics
	opts.EnableFaceDetection = s.EnableFaceDetection
	return opts
}

// WithoutFaceDetection disables face detection
func (opts AnalysisOptions) WithoutFaceDetection() AnalysisOptions {
	opts.EnableFaceDetection = false
	return opts
}

// WithSampleStride sets the color sampling stride
func (opts AnalysisOptions) WithSampleStride(stride int) AnalysisOptions {
	opts.ColorSampleStride = stride
	return opts
}

// WithTimeout bounds capability calls
func (opts AnalysisOptions) WithTimeout(d time.Duration) AnalysisOptions {
	opts.Timeout = d
	return opts
}
