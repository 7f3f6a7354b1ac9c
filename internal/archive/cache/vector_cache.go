package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"responsa/internal/models"
	"responsa/pkg/logger"
)

// Source provides the joined (embedding, metadata, relevance) rows the cache
// snapshots. The production source joins the entry store with the vector
// store; tests substitute a fake.
type Source interface {
	ReadVectors(ctx context.Context) ([]models.VectorRecord, error)
}

// VectorCache holds a periodically refreshed in-memory snapshot of the
// archive's vectors. It is an injected service object, not a singleton.
//
// Readers never block on a rebuild: Get serves the previous snapshot while a
// concurrent caller refreshes, and concurrent rebuilds are tolerated (last
// write wins). The staleness window is bounded by the TTL or by the rebuild
// latency after an explicit Invalidate; that window is an accepted
// inconsistency of the design.
type VectorCache struct {
	source Source
	ttl    time.Duration
	log    *logger.Logger

	mu        sync.RWMutex
	snapshot  []models.VectorRecord
	loadedAt  time.Time
	populated bool

	nowFunc func() time.Time
}

// New creates a VectorCache over the given source.
func New(source Source, ttl time.Duration, log *logger.Logger) *VectorCache {
	return &VectorCache{
		source:  source,
		ttl:     ttl,
		log:     log,
		nowFunc: time.Now,
	}
}

// WithClock substitutes the time source. Test hook.
func (c *VectorCache) WithClock(now func() time.Time) *VectorCache {
	c.nowFunc = now
	return c
}

// Get returns the current snapshot, rebuilding it first if it has never been
// loaded or its age exceeds the TTL. A failed rebuild degrades to an empty
// snapshot instead of surfacing an error: search produces "no results"
// rather than a crash.
func (c *VectorCache) Get(ctx context.Context) []models.VectorRecord {
	c.mu.RLock()
	fresh := c.populated && c.nowFunc().Sub(c.loadedAt) < c.ttl
	snapshot := c.snapshot
	c.mu.RUnlock()

	if fresh {
		return snapshot
	}
	return c.rebuild(ctx)
}

// Invalidate forces the next Get to refetch immediately. Called from the
// edit, delete and feedback paths.
func (c *VectorCache) Invalidate() {
	c.mu.Lock()
	c.populated = false
	c.mu.Unlock()
}

// LastRefreshedAt reports when the snapshot was last rebuilt successfully.
func (c *VectorCache) LastRefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *VectorCache) rebuild(ctx context.Context) []models.VectorRecord {
	records, err := c.source.ReadVectors(ctx)
	if err != nil {
		c.log.Warn(fmt.Sprintf("Vector cache rebuild failed, serving empty snapshot: %v", err))
		records = nil
	}

	c.mu.Lock()
	c.snapshot = records
	c.loadedAt = c.nowFunc()
	c.populated = true
	c.mu.Unlock()

	c.log.Debug(fmt.Sprintf("Vector cache rebuilt with %d records", len(records)))
	return records
}
