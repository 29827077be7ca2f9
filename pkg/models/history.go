package models

// HistoryRecord is one archived inspection
type HistoryRecord struct {
	ID        int64     `json:"id"`
	Timestamp string    `json:"timestamp"`
	Metadata  *Metadata `json:"metadata"`
	ImageURL  *string   `json:"imageUrl"`
}

// HistorySort names a history ordering
type HistorySort string

const (
	SortNewest HistorySort = "newest"
	SortOldest HistorySort = "oldest"
	SortName   HistorySort = "name"
	SortSize   HistorySort = "size"
)

// HistoryQuery filters and orders a history listing
type HistoryQuery struct {
	Search string      `form:"q"`
	Type   string      `form:"type"`
	Sort   HistorySort `form:"sort"`
}

// Settings are the user preferences persisted next to the history
type Settings struct {
	Theme                string `json:"theme"`
	AnimationSpeed       string `json:"animationSpeed"`
	EnableFaceDetection  bool   `json:"enableFaceDetection"`
	EnableColorAnalysis  bool   `json:"enableColorAnalysis"`
	EnableQualityMetrics bool   `json:"enableQualityMetrics"`
	ShowTutorial         bool   `json:"showTutorial"`
}

// DefaultSettings returns the factory preferences
func DefaultSettings() Settings {
	return Settings{
		Theme:                "red",
		AnimationSpeed:       "normal",
		EnableFaceDetection:  true,
		EnableColorAnalysis:  true,
		EnableQualityMetrics: true,
		ShowTutorial:         true,
	}
}
