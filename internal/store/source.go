package store

import (
	"context"
	"fmt"

	"responsa/internal/models"
)

// CacheSource joins the entry store with the vector store into the rows the
// vector cache snapshots: one row per embedded, non-deleted answer, carrying
// the linked question text for display.
type CacheSource struct {
	entries EntryStore
	vectors VectorStore
}

// NewCacheSource wires the join.
func NewCacheSource(entries EntryStore, vectors VectorStore) *CacheSource {
	return &CacheSource{entries: entries, vectors: vectors}
}

// ReadVectors builds the cache rows. Entries without a stored vector are
// skipped; they become searchable once the indexer catches up.
func (s *CacheSource) ReadVectors(ctx context.Context) ([]models.VectorRecord, error) {
	entries, err := s.entries.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	vectors, err := s.vectors.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vectors: %w", err)
	}

	byID := make(map[string]*models.Entry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}

	records := make([]models.VectorRecord, 0, len(vectors))
	for i := range entries {
		e := &entries[i]
		if !e.IsAnswer() {
			continue
		}
		vec, ok := vectors[e.ID]
		if !ok {
			continue
		}

		question := ""
		if e.LinkQuestionID != nil {
			if q, ok := byID[*e.LinkQuestionID]; ok {
				question = q.BestText()
			}
		}

		records = append(records, models.VectorRecord{
			ID:     e.ID,
			Vector: vec,
			Payload: models.VectorPayload{
				Question:  question,
				Answer:    e.BestText(),
				AudioRef:  e.AudioRef,
				GroupID:   e.GroupID,
				Timestamp: e.Timestamp,
			},
			RelevanceScore: e.RelevanceScore,
		})
	}
	return records, nil
}
