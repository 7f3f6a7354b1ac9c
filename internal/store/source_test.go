package store

import (
	"context"
	"testing"
	"time"

	"responsa/internal/models"
)

type fakeEntries struct {
	EntryStore
	entries []models.Entry
}

func (f *fakeEntries) ListActive(ctx context.Context) ([]models.Entry, error) {
	return f.entries, nil
}

type fakeVectors struct {
	VectorStore
	vectors map[string][]float32
}

func (f *fakeVectors) FetchAll(ctx context.Context) (map[string][]float32, error) {
	return f.vectors, nil
}

func TestCacheSourceJoinsAnswersWithVectors(t *testing.T) {
	now := time.Now()
	qID := "q1"
	entries := &fakeEntries{entries: []models.Entry{
		{ID: "q1", GroupID: "g1", Text: "quand allumer les bougies", Timestamp: now.Add(-time.Hour)},
		{
			ID: "a1", GroupID: "g1", TranscriptClean: "avant le coucher du soleil",
			AudioRef: "audio/a1.ogg", LinkQuestionID: &qID,
			RelevanceScore: 0.7, HasEmbedding: true, Timestamp: now,
		},
		// Answer without a stored vector: skipped until indexed.
		{ID: "a2", GroupID: "g1", TranscriptClean: "pas encore indexée", HasEmbedding: false, Timestamp: now},
	}}
	vectors := &fakeVectors{vectors: map[string][]float32{
		"a1": {0.1, 0.2},
	}}

	records, err := NewCacheSource(entries, vectors).ReadVectors(context.Background())
	if err != nil {
		t.Fatalf("ReadVectors returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.ID != "a1" || rec.RelevanceScore != 0.7 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Payload.Question != "quand allumer les bougies" {
		t.Errorf("question = %q, want the linked question text", rec.Payload.Question)
	}
	if rec.Payload.Answer != "avant le coucher du soleil" || rec.Payload.AudioRef != "audio/a1.ogg" {
		t.Errorf("payload = %+v", rec.Payload)
	}
}

func TestCacheSourceUnlinkedAnswer(t *testing.T) {
	entries := &fakeEntries{entries: []models.Entry{
		{ID: "a1", TranscriptClean: "réponse orpheline", HasEmbedding: true, Timestamp: time.Now()},
	}}
	vectors := &fakeVectors{vectors: map[string][]float32{"a1": {1}}}

	records, err := NewCacheSource(entries, vectors).ReadVectors(context.Background())
	if err != nil {
		t.Fatalf("ReadVectors returned error: %v", err)
	}
	if len(records) != 1 || records[0].Payload.Question != "" {
		t.Errorf("records = %+v, want one record with empty question", records)
	}
}
