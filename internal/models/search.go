package models

// Rejection reasons surfaced by the validators. These are results, not
// errors: a rejected query still produces a well-formed SearchResponse.
const (
	ReasonTooShort      = "TOO_SHORT"
	ReasonSpam          = "SPAM"
	ReasonNoResults     = "NO_RESULTS"
	ReasonOffTopic      = "OFF_TOPIC"
	WarningLowConfidence = "LOW_CONFIDENCE"
)

// Confidence levels derived from the calibrated score. The level drives
// display and warning behavior, never a hard reject by itself.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// SearchResult is one surviving candidate, ready for display.
type SearchResult struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	Answer          string  `json:"answer"`
	Confidence      float64 `json:"confidence"`
	ConfidenceLevel string  `json:"confidence_level"`
	AudioRef        string  `json:"audio_ref,omitempty"`
}

// SearchResponse is the full outcome of a search request.
type SearchResponse struct {
	Success         bool           `json:"success"`
	Results         []SearchResult `json:"results"`
	Warning         string         `json:"warning,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}
