package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"responsa/internal/models"
)

// GormFeedbackStore implements the append-only feedback event log on MySQL.
type GormFeedbackStore struct {
	db *gorm.DB
}

// NewGormFeedbackStore creates the store and migrates the events table.
func NewGormFeedbackStore(db *gorm.DB) (*GormFeedbackStore, error) {
	if err := db.AutoMigrate(&models.FeedbackEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate feedback_events: %w", err)
	}
	return &GormFeedbackStore{db: db}, nil
}

// Append inserts one immutable event. Events are never updated or deleted.
func (s *GormFeedbackStore) Append(ctx context.Context, event models.FeedbackEvent) error {
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to append feedback event: %w", err)
	}
	return nil
}

// Totals returns the event count and how many were marked relevant.
func (s *GormFeedbackStore) Totals(ctx context.Context) (int64, int64, error) {
	var total, relevant int64
	if err := s.db.WithContext(ctx).Model(&models.FeedbackEvent{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count feedback events: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.FeedbackEvent{}).
		Where("relevant = ?", true).Count(&relevant).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count relevant events: %w", err)
	}
	return total, relevant, nil
}

// ListByEntry returns the raw votes for one entry, newest first.
func (s *GormFeedbackStore) ListByEntry(ctx context.Context, entryID string, limit int) ([]models.FeedbackEvent, error) {
	var events []models.FeedbackEvent
	err := s.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback events: %w", err)
	}
	return events, nil
}
