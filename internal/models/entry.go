package models

import "time"

// Entry is a single archive record: either a question (free text, no
// transcript) or an answer (voice message transcript, optionally linked to
// exactly one question). The link is revisable, not append-only.
type Entry struct {
	ID              string     `bson:"_id" json:"id"`
	GroupID         string     `bson:"group_id" json:"group_id"`
	Sender          string     `bson:"sender" json:"sender"`
	Timestamp       time.Time  `bson:"timestamp" json:"timestamp"`
	Text            string     `bson:"text,omitempty" json:"text,omitempty"`
	AudioRef        string     `bson:"audio_ref,omitempty" json:"audio_ref,omitempty"`
	TranscriptRaw   string     `bson:"transcript_raw,omitempty" json:"transcript_raw,omitempty"`
	TranscriptClean string     `bson:"transcript_clean,omitempty" json:"transcript_clean,omitempty"`
	LinkQuestionID  *string    `bson:"link_question_id,omitempty" json:"link_question_id,omitempty"`
	LinkConfidence  float64    `bson:"link_confidence,omitempty" json:"link_confidence,omitempty"`
	LinkMethod      string     `bson:"link_method,omitempty" json:"link_method,omitempty"`
	RelevanceScore  float64    `bson:"relevance_score" json:"relevance_score"`
	FeedbackCount   int64      `bson:"feedback_count" json:"feedback_count"`
	HasEmbedding    bool       `bson:"has_embedding" json:"has_embedding"`
	EmbeddedAt      *time.Time `bson:"embedded_at,omitempty" json:"embedded_at,omitempty"`
	Deleted         bool       `bson:"deleted" json:"deleted"`
}

// IsAnswer reports whether the entry carries a transcript.
func (e *Entry) IsAnswer() bool {
	return e.TranscriptRaw != "" || e.TranscriptClean != ""
}

// BestText returns the text to embed and match against: the cleaned
// transcript when present, then the raw transcript, then the question text.
func (e *Entry) BestText() string {
	if e.TranscriptClean != "" {
		return e.TranscriptClean
	}
	if e.TranscriptRaw != "" {
		return e.TranscriptRaw
	}
	return e.Text
}

// DefaultRelevance is the feedback-adjusted relevance an entry starts with
// before any user votes arrive.
const DefaultRelevance = 0.5

// VectorRecord is one row of the in-memory vector cache: the persisted
// embedding joined with the entry fields the ranker and scorer need.
// Cache rows are derived data, never authoritative.
type VectorRecord struct {
	ID             string
	Vector         []float32
	Payload        VectorPayload
	RelevanceScore float64
}

// VectorPayload carries the displayable entry fields alongside a cached vector.
type VectorPayload struct {
	Question  string
	Answer    string
	AudioRef  string
	GroupID   string
	Timestamp time.Time
}
