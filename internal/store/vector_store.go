package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"responsa/internal/database/milvus"
	"responsa/internal/embedding"
	"responsa/internal/models"
)

// VectorStore is the persistence interface for entry embeddings.
type VectorStore interface {
	Upsert(ctx context.Context, entryID string, vector []float32) error
	UpsertBatch(ctx context.Context, entryIDs []string, vectors [][]float32) error
	Get(ctx context.Context, entryID string) ([]float32, error)
	FetchAll(ctx context.Context) (map[string][]float32, error)
	Delete(ctx context.Context, entryID string) error
}

// The Milvus client is the production VectorStore.
var _ VectorStore = (*milvus.MilvusClient)(nil)

// VectorResolver returns an entry's embedding, computing and persisting it
// on a miss. It backs the linker's lazy per-entry vector lookups.
type VectorResolver struct {
	entries  EntryStore
	vectors  VectorStore
	embedder embedding.Embedding
	nowFunc  func() time.Time
}

// NewVectorResolver wires the resolver.
func NewVectorResolver(entries EntryStore, vectors VectorStore, embedder embedding.Embedding) *VectorResolver {
	return &VectorResolver{
		entries:  entries,
		vectors:  vectors,
		embedder: embedder,
		nowFunc:  time.Now,
	}
}

// Vector returns the stored embedding for the entry, or computes, persists
// and returns a fresh one when none exists.
func (r *VectorResolver) Vector(ctx context.Context, entry *models.Entry) ([]float32, error) {
	if entry.HasEmbedding {
		vec, err := r.vectors.Get(ctx, entry.ID)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, milvus.ErrNotFound) {
			return nil, fmt.Errorf("failed to read vector for '%s': %w", entry.ID, err)
		}
		// Flag said embedded but the vector is gone. Recompute.
	}

	text := entry.BestText()
	if text == "" {
		return nil, fmt.Errorf("entry '%s' has no text to embed", entry.ID)
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed entry '%s': %w", entry.ID, err)
	}

	if err := r.vectors.Upsert(ctx, entry.ID, vec); err != nil {
		return nil, fmt.Errorf("failed to persist vector for '%s': %w", entry.ID, err)
	}
	if err := r.entries.MarkEmbedded(ctx, entry.ID, r.nowFunc()); err != nil {
		return nil, err
	}
	entry.HasEmbedding = true
	return vec, nil
}
