package indexer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"responsa/internal/config"
	"responsa/internal/embedding"
	"responsa/internal/models"
	"responsa/pkg/logger"
)

// EntrySource lists entries that need a vector and records completion.
type EntrySource interface {
	ListUnembedded(ctx context.Context, limit int) ([]models.Entry, error)
	MarkEmbedded(ctx context.Context, id string, at time.Time) error
}

// VectorSink persists computed vectors.
type VectorSink interface {
	Upsert(ctx context.Context, entryID string, vector []float32) error
}

// Invalidator forces the vector cache to rebuild after a batch lands.
type Invalidator interface {
	Invalidate()
}

// Report summarizes one indexing run.
type Report struct {
	Indexed int
	Failed  int
}

// Indexer re-embeds entries in batches through a bounded worker pool.
// Per-entry failures are retried with exponential backoff inside the worker;
// an entry that still fails is counted and skipped, never blocks the batch.
type Indexer struct {
	entries  EntrySource
	vectors  VectorSink
	embedder embedding.Embedding
	cache    Invalidator
	cfg      config.IndexerConfig
	log      *logger.Logger
	nowFunc  func() time.Time
	sleep    func(time.Duration)
}

// New creates an Indexer.
func New(entries EntrySource, vectors VectorSink, embedder embedding.Embedding, cache Invalidator, cfg config.IndexerConfig, log *logger.Logger) *Indexer {
	return &Indexer{
		entries:  entries,
		vectors:  vectors,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		nowFunc:  time.Now,
		sleep:    time.Sleep,
	}
}

// Run drains the unembedded backlog batch by batch until the source is empty
// or the context is cancelled.
func (ix *Indexer) Run(ctx context.Context) (Report, error) {
	var report Report
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := ix.entries.ListUnembedded(ctx, ix.cfg.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list unembedded entries: %w", err)
		}
		if len(batch) == 0 {
			return report, nil
		}

		indexed, failed := ix.runBatch(ctx, batch)
		report.Indexed += indexed
		report.Failed += failed

		ix.cache.Invalidate()
		ix.log.WithPayload(map[string]interface{}{
			"indexed": indexed,
			"failed":  failed,
		}).Info("Indexed batch")

		// A batch where nothing succeeded will not shrink the backlog.
		if indexed == 0 {
			return report, fmt.Errorf("indexing stalled: %d entries failed", failed)
		}
	}
}

func (ix *Indexer) runBatch(ctx context.Context, batch []models.Entry) (indexed, failed int) {
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ix.cfg.Concurrency)

	results := make([]bool, len(batch))
	for i := range batch {
		i := i
		entry := batch[i]
		eg.Go(func() error {
			if err := ix.indexOne(gCtx, &entry); err != nil {
				ix.log.WithError(models.ErrorInfo{Kind: "indexer", Message: err.Error()}).
					Warn(fmt.Sprintf("Failed to index entry %s", entry.ID))
				return nil
			}
			results[i] = true
			return nil
		})
	}
	// Workers never return errors; Wait only propagates context cancellation.
	_ = eg.Wait()

	for _, ok := range results {
		if ok {
			indexed++
		} else {
			failed++
		}
	}
	return indexed, failed
}

// indexOne embeds one entry with bounded retries.
func (ix *Indexer) indexOne(ctx context.Context, entry *models.Entry) error {
	text := entry.BestText()
	if text == "" {
		return fmt.Errorf("entry has no text to embed")
	}

	var vec []float32
	var err error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			ix.sleep(backoff)
			backoff *= 2
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		vec, err = ix.embedder.Embed(ctx, text)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if err := ix.vectors.Upsert(ctx, entry.ID, vec); err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}
	return ix.entries.MarkEmbedded(ctx, entry.ID, ix.nowFunc())
}
