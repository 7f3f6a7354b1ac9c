package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"responsa/internal/config"
	"responsa/internal/models"
	"responsa/pkg/logger"
)

type fakeSource struct {
	mu       sync.Mutex
	pending  []models.Entry
	embedded map[string]bool
}

func (f *fakeSource) ListUnembedded(ctx context.Context, limit int) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Entry
	for _, e := range f.pending {
		if !f.embedded[e.ID] {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) MarkEmbedded(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedded == nil {
		f.embedded = make(map[string]bool)
	}
	f.embedded[id] = true
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	vectors map[string][]float32
}

func (f *fakeSink) Upsert(ctx context.Context, entryID string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vectors == nil {
		f.vectors = make(map[string][]float32)
	}
	f.vectors[entryID] = vector
	return nil
}

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failFor  map[string]int // text -> remaining failures
	inFlight int
	maxSeen  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	remaining := f.failFor[text]
	if remaining > 0 {
		f.failFor[text] = remaining - 1
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if remaining > 0 {
		return nil, errors.New("provider unavailable")
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func entriesNamed(ids ...string) []models.Entry {
	out := make([]models.Entry, len(ids))
	for i, id := range ids {
		out[i] = models.Entry{ID: id, TranscriptClean: "texte de " + id}
	}
	return out
}

func newTestIndexer(src *fakeSource, embedder *fakeEmbedder, concurrency int) (*Indexer, *fakeSink, *fakeInvalidator) {
	sink := &fakeSink{}
	inv := &fakeInvalidator{}
	cfg := config.IndexerConfig{Concurrency: concurrency, BatchSize: 10}
	ix := New(src, sink, embedder, inv, cfg, logger.New("indexer-test", "test"))
	ix.sleep = func(time.Duration) {}
	return ix, sink, inv
}

func TestRunIndexesBacklog(t *testing.T) {
	src := &fakeSource{pending: entriesNamed("e1", "e2", "e3")}
	embedder := &fakeEmbedder{}
	ix, sink, inv := newTestIndexer(src, embedder, 2)

	report, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Indexed != 3 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 indexed", report)
	}
	if len(sink.vectors) != 3 {
		t.Errorf("stored %d vectors, want 3", len(sink.vectors))
	}
	if inv.calls == 0 {
		t.Error("cache never invalidated")
	}
	if embedder.maxSeen > 2 {
		t.Errorf("concurrency %d exceeded limit 2", embedder.maxSeen)
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	src := &fakeSource{pending: entriesNamed("e1")}
	embedder := &fakeEmbedder{failFor: map[string]int{"texte de e1": 2}}
	ix, sink, _ := newTestIndexer(src, embedder, 1)

	report, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Indexed != 1 {
		t.Errorf("report = %+v, want 1 indexed after retries", report)
	}
	if _, ok := sink.vectors["e1"]; !ok {
		t.Error("vector for e1 not stored")
	}
}

func TestRunStallsWhenNothingSucceeds(t *testing.T) {
	src := &fakeSource{pending: entriesNamed("e1")}
	embedder := &fakeEmbedder{failFor: map[string]int{"texte de e1": 100}}
	ix, _, _ := newTestIndexer(src, embedder, 1)

	report, err := ix.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with a permanently failing provider")
	}
	if report.Failed != 1 || report.Indexed != 0 {
		t.Errorf("report = %+v, want 1 failed", report)
	}
}

func TestRunEmptyBacklog(t *testing.T) {
	ix, _, inv := newTestIndexer(&fakeSource{}, &fakeEmbedder{}, 2)

	report, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Indexed != 0 || inv.calls != 0 {
		t.Errorf("report = %+v, invalidations = %d, want no work", report, inv.calls)
	}
}
