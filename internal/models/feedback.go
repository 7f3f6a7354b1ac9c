package models

import "time"

// FeedbackEvent is an immutable user relevance vote. Events are only ever
// appended; the aggregate lives on the entry as RelevanceScore/FeedbackCount.
type FeedbackEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Query     string    `gorm:"size:1024" json:"query"`
	EntryID   string    `gorm:"size:36;index" json:"entry_id"`
	Relevant  bool      `json:"relevant"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the GORM table name stable across driver defaults.
func (FeedbackEvent) TableName() string { return "feedback_events" }

// FeedbackStats aggregates the feedback log for curation.
type FeedbackStats struct {
	TotalEvents   int64         `json:"total_events"`
	RelevantCount int64         `json:"relevant_count"`
	AverageRating float64       `json:"average_rating"`
	LowestEntries []EntryRating `json:"lowest_entries"`
}

// EntryRating pairs an entry with its running relevance score.
type EntryRating struct {
	EntryID        string  `json:"entry_id"`
	RelevanceScore float64 `json:"relevance_score"`
	FeedbackCount  int64   `json:"feedback_count"`
}
