package models

// AnalysisResult is the assembled outcome of inspecting one image.
// SourceID identifies the image bytes the result was computed from.
type AnalysisResult struct {
	SourceID string         `json:"source_id"`
	Metadata *Metadata      `json:"metadata"`
	Colors   []ColorBucket  `json:"colors"`
	Quality  *QualityReport `json:"quality"`
	Faces    FaceSummary    `json:"faces"`

	// Notices lists analyses that failed or were skipped
	Notices []Notice `json:"notices,omitempty"`
}

// Notice records a degraded analysis
type Notice struct {
	Component string `json:"component"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// ColorBucket is one exact-match dominant color
type ColorBucket struct {
	Color    string  `json:"color"`
	Hex      string  `json:"hex"`
	Coverage float64 `json:"coverage"`
}

// QualityReport holds the coarse quality heuristics
type QualityReport struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Sharpness  float64 `json:"sharpness"`
}

// FaceBox is a detected face in image pixel coordinates
type FaceBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceEntry is a summarized face with its area in hundreds of pixels
type FaceEntry struct {
	FaceBox
	Area int `json:"area"`
}

// FaceStatus distinguishes detection outcomes
type FaceStatus string

const (
	// FacesDetected means detection ran; Count may be zero
	FacesDetected FaceStatus = "detected"
	// FacesUnsupported means the detection capability is absent or failed
	FacesUnsupported FaceStatus = "unsupported"
	// FacesDisabled means detection was switched off in settings
	FacesDisabled FaceStatus = "disabled"
)

// FaceSummary is the result of face detection
type FaceSummary struct {
	Status FaceStatus  `json:"status"`
	Count  int         `json:"count"`
	Faces  []FaceEntry `json:"faces"`
}

// Supported reports whether detection actually ran
func (f FaceSummary) Supported() bool {
	return f.Status == FacesDetected
}
