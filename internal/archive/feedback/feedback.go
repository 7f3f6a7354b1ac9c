package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"responsa/internal/models"
	"responsa/pkg/logger"
)

// EventStore appends to and aggregates the immutable feedback log.
type EventStore interface {
	Append(ctx context.Context, event models.FeedbackEvent) error
	Totals(ctx context.Context) (total, relevant int64, err error)
}

// EntryStore reads and updates the per-entry relevance aggregate.
type EntryStore interface {
	Get(ctx context.Context, id string) (*models.Entry, error)
	UpdateRelevance(ctx context.Context, id string, score float64, count int64) error
	ListLowestRelevance(ctx context.Context, limit int) ([]models.Entry, error)
}

// Invalidator forces the vector cache to rebuild on its next read.
type Invalidator interface {
	Invalidate()
}

// Service is the feedback loop: it records user relevance votes and folds
// them into each entry's running relevance score.
type Service struct {
	events  EventStore
	entries EntryStore
	cache   Invalidator
	log     *logger.Logger
	nowFunc func() time.Time
}

// NewService creates the feedback service.
func NewService(events EventStore, entries EntryStore, cache Invalidator, log *logger.Logger) *Service {
	return &Service{
		events:  events,
		entries: entries,
		cache:   cache,
		log:     log,
		nowFunc: time.Now,
	}
}

// Add records one vote. The event is appended first; the entry aggregate is
// then advanced with the online running average
// new = (old*count + vote) / (count+1) and the vector cache invalidated so
// the next search sees the updated relevance.
func (s *Service) Add(ctx context.Context, query, entryID string, relevant bool) error {
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("failed to load entry %s: %w", entryID, err)
	}

	event := models.FeedbackEvent{
		ID:        uuid.NewString(),
		Query:     query,
		EntryID:   entryID,
		Relevant:  relevant,
		CreatedAt: s.nowFunc(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append feedback event: %w", err)
	}

	vote := 0.0
	if relevant {
		vote = 1.0
	}
	count := entry.FeedbackCount
	score := (entry.RelevanceScore*float64(count) + vote) / float64(count+1)

	if err := s.entries.UpdateRelevance(ctx, entryID, score, count+1); err != nil {
		return fmt.Errorf("failed to update relevance for %s: %w", entryID, err)
	}

	s.cache.Invalidate()
	s.log.WithPayload(map[string]interface{}{
		"entry_id": entryID,
		"relevant": relevant,
		"score":    score,
		"count":    count + 1,
	}).Debug("Feedback recorded")
	return nil
}

// Stats aggregates the feedback log and lists the lowest-scoring entries for
// curation.
func (s *Service) Stats(ctx context.Context, lowestLimit int) (*models.FeedbackStats, error) {
	total, relevant, err := s.events.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback events: %w", err)
	}

	stats := &models.FeedbackStats{
		TotalEvents:   total,
		RelevantCount: relevant,
	}
	if total > 0 {
		stats.AverageRating = float64(relevant) / float64(total)
	}

	lowest, err := s.entries.ListLowestRelevance(ctx, lowestLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list lowest-rated entries: %w", err)
	}
	for _, e := range lowest {
		stats.LowestEntries = append(stats.LowestEntries, models.EntryRating{
			EntryID:        e.ID,
			RelevanceScore: e.RelevanceScore,
			FeedbackCount:  e.FeedbackCount,
		})
	}
	return stats, nil
}
