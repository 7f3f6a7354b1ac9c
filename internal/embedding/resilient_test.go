package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"responsa/internal/config"
)

type flakyModel struct {
	failures int
	calls    int
	vec      []float32
}

func (f *flakyModel) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("provider unavailable")
	}
	return f.vec, nil
}

func (f *flakyModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func newTestResilient(inner Embedding, maxAttempts int) (*ResilientModel, *[]time.Duration) {
	r := NewResilientModel(inner, &config.EmbeddingConfig{
		TimeoutSec:  1,
		MaxAttempts: maxAttempts,
		BackoffMS:   100,
	})
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestResilientEmbedFirstTry(t *testing.T) {
	inner := &flakyModel{vec: []float32{1, 2, 3}}
	r, slept := newTestResilient(inner, 3)

	vec, err := r.Embed(context.Background(), "bougie")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vec) != 3 || inner.calls != 1 {
		t.Errorf("got %d calls, vec len %d; want 1 call, len 3", inner.calls, len(vec))
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times on a clean first attempt", len(*slept))
	}
}

func TestResilientRetriesWithExponentialBackoff(t *testing.T) {
	inner := &flakyModel{failures: 2, vec: []float32{1}}
	r, slept := newTestResilient(inner, 3)

	if _, err := r.Embed(context.Background(), "chabbat"); err != nil {
		t.Fatalf("Embed returned error after retries: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("backoff[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestResilientExhaustsAttempts(t *testing.T) {
	inner := &flakyModel{failures: 10}
	r, _ := newTestResilient(inner, 3)

	_, err := r.Embed(context.Background(), "kiddouch")
	if err == nil {
		t.Fatal("Embed succeeded despite a permanently failing provider")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error does not mention attempt count: %v", err)
	}
}

func TestResilientStopsOnCancelledContext(t *testing.T) {
	inner := &flakyModel{failures: 10}
	r, _ := newTestResilient(inner, 5)

	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(time.Duration) { cancel() }

	_, err := r.Embed(ctx, "havdala")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 before cancellation", inner.calls)
	}
}

func TestResilientEmbedBatch(t *testing.T) {
	inner := &flakyModel{failures: 1, vec: []float32{0.5}}
	r, _ := newTestResilient(inner, 2)

	vecs, err := r.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch returned error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
}
