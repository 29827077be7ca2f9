package analyzer

import (
	"math"

	"github.com/anime-shed/image-inspector-go/pkg/models"
)

type faceSummarizer struct{}

// NewFaceSummarizer creates a FaceSummarizer
func NewFaceSummarizer() FaceSummarizer {
	return faceSummarizer{}
}

// Summarize reports FacesUnsupported whenever detectErr is set, so a failed
// detector is never mistaken for an image without faces.
func (faceSummarizer) Summarize(detections []models.FaceBox, detectErr error) models.FaceSummary {
	if detectErr != nil {
		return UnsupportedFaces()
	}

	faces := make([]models.FaceEntry, 0, len(detections))
	for _, box := range detections {
		faces = append(faces, models.FaceEntry{
			FaceBox: box,
			Area:    int(math.Floor(box.Width*box.Height/100 + 0.5)),
		})
	}
	return models.FaceSummary{
		Status: models.FacesDetected,
		Count:  len(faces),
		Faces:  faces,
	}
}

// UnsupportedFaces is the marker for an absent or failing detector
func UnsupportedFaces() models.FaceSummary {
	return models.FaceSummary{Status: models.FacesUnsupported, Faces: []models.FaceEntry{}}
}

// DisabledFaces is the marker for detection switched off in settings
func DisabledFaces() models.FaceSummary {
	return models.FaceSummary{Status: models.FacesDisabled, Faces: []models.FaceEntry{}}
}
