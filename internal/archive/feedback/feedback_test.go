package feedback

import (
	"context"
	"errors"
	"testing"

	"responsa/internal/models"
	"responsa/pkg/logger"
)

type fakeEventStore struct {
	events    []models.FeedbackEvent
	appendErr error
}

func (f *fakeEventStore) Append(ctx context.Context, event models.FeedbackEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventStore) Totals(ctx context.Context) (int64, int64, error) {
	var relevant int64
	for _, e := range f.events {
		if e.Relevant {
			relevant++
		}
	}
	return int64(len(f.events)), relevant, nil
}

type fakeEntryStore struct {
	entries map[string]*models.Entry
}

func (f *fakeEntryStore) Get(ctx context.Context, id string) (*models.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, errors.New("entry not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEntryStore) UpdateRelevance(ctx context.Context, id string, score float64, count int64) error {
	e := f.entries[id]
	e.RelevanceScore = score
	e.FeedbackCount = count
	return nil
}

func (f *fakeEntryStore) ListLowestRelevance(ctx context.Context, limit int) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range f.entries {
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate() { f.calls++ }

func newTestService() (*Service, *fakeEventStore, *fakeEntryStore, *fakeInvalidator) {
	events := &fakeEventStore{}
	entries := &fakeEntryStore{entries: map[string]*models.Entry{
		"e1": {ID: "e1", RelevanceScore: models.DefaultRelevance},
	}}
	inv := &fakeInvalidator{}
	return NewService(events, entries, inv, logger.New("feedback-test", "test")), events, entries, inv
}

func TestAddAppendsEventAndInvalidates(t *testing.T) {
	svc, events, entries, inv := newTestService()

	if err := svc.Add(context.Background(), "bougie chabbat", "e1", true); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("got %d events, want 1", len(events.events))
	}
	ev := events.events[0]
	if ev.Query != "bougie chabbat" || ev.EntryID != "e1" || !ev.Relevant || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
	if inv.calls != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.calls)
	}
	e := entries.entries["e1"]
	// (0.5*0 + 1) / 1 = 1.0
	if e.RelevanceScore != 1.0 || e.FeedbackCount != 1 {
		t.Errorf("entry = score %v count %d, want 1.0 and 1", e.RelevanceScore, e.FeedbackCount)
	}
}

func TestAddRunningAverageMonotoneAndBounded(t *testing.T) {
	svc, _, entries, _ := newTestService()

	prev := entries.entries["e1"].RelevanceScore
	for i := 0; i < 10; i++ {
		if err := svc.Add(context.Background(), "q", "e1", true); err != nil {
			t.Fatalf("Add #%d returned error: %v", i, err)
		}
		score := entries.entries["e1"].RelevanceScore
		if score < prev {
			t.Fatalf("score decreased from %v to %v on consecutive relevant votes", prev, score)
		}
		if score < 0 || score > 1 {
			t.Fatalf("score %v out of [0,1]", score)
		}
		prev = score
	}
	if entries.entries["e1"].FeedbackCount != 10 {
		t.Errorf("count = %d, want 10", entries.entries["e1"].FeedbackCount)
	}
}

func TestAddNegativeVotePullsScoreDown(t *testing.T) {
	svc, _, entries, _ := newTestService()

	if err := svc.Add(context.Background(), "q", "e1", false); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	// (0.5*0 + 0) / 1 = 0
	if got := entries.entries["e1"].RelevanceScore; got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestAddUnknownEntry(t *testing.T) {
	svc, events, _, inv := newTestService()

	if err := svc.Add(context.Background(), "q", "missing", true); err == nil {
		t.Fatal("Add succeeded for an unknown entry")
	}
	if len(events.events) != 0 || inv.calls != 0 {
		t.Errorf("side effects on failed Add: events=%d invalidations=%d", len(events.events), inv.calls)
	}
}

func TestStats(t *testing.T) {
	svc, _, _, _ := newTestService()

	for i := 0; i < 3; i++ {
		if err := svc.Add(context.Background(), "q", "e1", i < 2); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background(), 5)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalEvents != 3 || stats.RelevantCount != 2 {
		t.Errorf("stats = %+v, want 3 total, 2 relevant", stats)
	}
	if diff := stats.AverageRating - 2.0/3.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("average = %v, want 2/3", stats.AverageRating)
	}
	if len(stats.LowestEntries) != 1 {
		t.Errorf("lowest entries = %d, want 1", len(stats.LowestEntries))
	}
}
