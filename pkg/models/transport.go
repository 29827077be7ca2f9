package models

// AnalyzeURLRequest asks the service to fetch and inspect a remote image
type AnalyzeURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// AnalyzeResponse wraps an analysis with the history record it was archived as
type AnalyzeResponse struct {
	HistoryID int64           `json:"history_id,omitempty"`
	Archived  bool            `json:"archived"`
	Discarded bool            `json:"discarded,omitempty"`
	Result    *AnalysisResult `json:"result"`
}

// HistoryResponse is a filtered history listing
type HistoryResponse struct {
	Count int             `json:"count"`
	Items []HistoryRecord `json:"items"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
