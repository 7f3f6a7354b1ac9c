package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"responsa/internal/archive/cache"
	"responsa/internal/config"
	"responsa/internal/models"
	"responsa/pkg/logger"
)

type fakeSource struct {
	records []models.VectorRecord
	err     error
}

func (f *fakeSource) ReadVectors(ctx context.Context) ([]models.VectorRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestService(records []models.VectorRecord, embedder *fakeEmbedder) *Service {
	log := logger.New("search-test", "test")
	vc := cache.New(&fakeSource{records: records}, 5*time.Minute, log)
	return NewService(config.DefaultScoring(), vc, embedder, log)
}

// archivedPair is a stored Q&A sharing the "bougie"/"chabbat" vocabulary:
// 250-character answer, audio evidence, fresh timestamp.
func archivedPair(now time.Time) models.VectorRecord {
	answer := "pour chabbat il faut allumer la bougie environ dix-huit minutes avant le coucher du soleil " +
		strings.Repeat("et reciter la benediction ", 6) + "selon la tradition"
	return models.VectorRecord{
		ID:     "e1",
		Vector: []float32{0.6, 0.8},
		Payload: models.VectorPayload{
			Question:  "quand faut-il allumer la bougie de chabbat",
			Answer:    answer,
			AudioRef:  "audio/e1.ogg",
			GroupID:   "g1",
			Timestamp: now,
		},
		RelevanceScore: models.DefaultRelevance,
	}
}

func TestSearchBougieChabbatScenario(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}} // cosine with record = 0.6
	svc := newTestService([]models.VectorRecord{archivedPair(time.Now())}, embedder)

	resp := svc.Search(context.Background(), "allumer une bougie chabbat", 10)
	if !resp.Success {
		t.Fatalf("search rejected: %+v", resp)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	r := resp.Results[0]
	if r.ID != "e1" || r.AudioRef == "" {
		t.Errorf("result = %+v", r)
	}
	if r.ConfidenceLevel != models.LevelMedium && r.ConfidenceLevel != models.LevelHigh {
		t.Errorf("level = %s, want medium or high (confidence %v)", r.ConfidenceLevel, r.Confidence)
	}
}

func TestSearchEmptyCache(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	svc := newTestService(nil, embedder)

	resp := svc.Search(context.Background(), "allumer une bougie chabbat", 10)
	if resp.Success || resp.RejectionReason != models.ReasonNoResults {
		t.Errorf("resp = %+v, want NO_RESULTS rejection", resp)
	}
}

func TestSearchTooShortSkipsProviders(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	svc := newTestService([]models.VectorRecord{archivedPair(time.Now())}, embedder)

	resp := svc.Search(context.Background(), "abc", 10)
	if resp.Success || resp.RejectionReason != models.ReasonTooShort {
		t.Errorf("resp = %+v, want TOO_SHORT rejection", resp)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for a rejected query", embedder.calls)
	}
}

func TestSearchEmbeddingFailureDegrades(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	svc := newTestService([]models.VectorRecord{archivedPair(time.Now())}, embedder)

	// Keyword-only ranking leaves the vector score at zero, so the output
	// guardrail reports no results instead of raising.
	resp := svc.Search(context.Background(), "allumer une bougie chabbat", 10)
	if resp.Success || resp.RejectionReason != models.ReasonNoResults {
		t.Errorf("resp = %+v, want structured NO_RESULTS", resp)
	}
}

func TestSearchOffTopicQueryRejected(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	svc := newTestService([]models.VectorRecord{archivedPair(time.Now())}, embedder)

	// No domain vocabulary: confidence is halved below the low bar.
	resp := svc.Search(context.Background(), "comment reparer ma voiture rapidement", 10)
	if resp.Success || resp.RejectionReason != models.ReasonOffTopic {
		t.Errorf("resp = %+v, want OFF_TOPIC rejection", resp)
	}
}

func TestSearchLimitTruncates(t *testing.T) {
	now := time.Now()
	first := archivedPair(now)
	second := archivedPair(now)
	second.ID = "e2"
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	svc := newTestService([]models.VectorRecord{first, second}, embedder)

	resp := svc.Search(context.Background(), "allumer une bougie chabbat", 1)
	if !resp.Success {
		t.Fatalf("search rejected: %+v", resp)
	}
	if len(resp.Results) != 1 {
		t.Errorf("got %d results, want 1 after limit", len(resp.Results))
	}
}
