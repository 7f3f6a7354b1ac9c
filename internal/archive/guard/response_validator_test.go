package guard

import (
	"testing"

	"responsa/internal/config"
	"responsa/internal/models"
)

func scored(id string, confidence, vectorScore float64, answerLen int, audio bool) ScoredCandidate {
	return ScoredCandidate{
		Result: models.SearchResult{
			ID:         id,
			Confidence: confidence,
		},
		VectorScore:  vectorScore,
		AnswerLength: answerLen,
		HasAudio:     audio,
	}
}

func TestValidateDropsWeakVectors(t *testing.T) {
	v := NewResponseValidator(config.DefaultScoring())

	dec := v.Validate([]ScoredCandidate{
		scored("weak", 0.6, 0.2, 400, false),
		scored("ok", 0.6, 0.6, 400, false),
	}, false)

	if dec.Rejected {
		t.Fatalf("unexpected rejection: %q", dec.RejectionReason)
	}
	if len(dec.Results) != 1 || dec.Results[0].ID != "ok" {
		t.Errorf("expected only 'ok' to survive, got %v", dec.Results)
	}
}

func TestValidateDropsShortAnswersWithoutAudio(t *testing.T) {
	v := NewResponseValidator(config.DefaultScoring())

	dec := v.Validate([]ScoredCandidate{
		scored("short-no-audio", 0.7, 0.6, 10, false),
		scored("short-with-audio", 0.7, 0.6, 10, true),
	}, false)

	if len(dec.Results) != 1 || dec.Results[0].ID != "short-with-audio" {
		t.Errorf("audio evidence should rescue a short answer, got %v", dec.Results)
	}
}

func TestValidateNoResults(t *testing.T) {
	v := NewResponseValidator(config.DefaultScoring())

	dec := v.Validate(nil, false)
	if !dec.Rejected || dec.RejectionReason != models.ReasonNoResults {
		t.Errorf("empty candidates: rejected=%v reason=%q", dec.Rejected, dec.RejectionReason)
	}

	dec = v.Validate([]ScoredCandidate{
		scored("a", 0.3, 0.1, 400, true),
	}, false)
	if !dec.Rejected || dec.RejectionReason != models.ReasonNoResults {
		t.Errorf("all-weak candidates: rejected=%v reason=%q", dec.Rejected, dec.RejectionReason)
	}
}

func TestValidateOffTopicRejection(t *testing.T) {
	v := NewResponseValidator(config.DefaultScoring())

	// Off-topic query whose best (already halved) confidence stays low.
	dec := v.Validate([]ScoredCandidate{
		scored("a", 0.35, 0.6, 400, false),
	}, true)
	if !dec.Rejected || dec.RejectionReason != models.ReasonOffTopic {
		t.Errorf("rejected=%v reason=%q, want OFF_TOPIC", dec.Rejected, dec.RejectionReason)
	}

	// Off-topic but strong enough to surface anyway.
	dec = v.Validate([]ScoredCandidate{
		scored("a", 0.7, 0.8, 400, false),
	}, true)
	if dec.Rejected {
		t.Errorf("strong off-topic result should not be rejected")
	}
}

func TestValidateLowConfidenceWarning(t *testing.T) {
	v := NewResponseValidator(config.DefaultScoring())

	dec := v.Validate([]ScoredCandidate{
		scored("a", 0.47, 0.6, 400, false),
	}, false)
	if dec.Rejected {
		t.Fatalf("low confidence must warn, not reject")
	}
	if dec.Warning != models.WarningLowConfidence {
		t.Errorf("warning = %q, want LOW_CONFIDENCE", dec.Warning)
	}
}

func TestValidateDeterministicTieBreak(t *testing.T) {
	v := NewResponseValidator(config.DefaultScoring())

	in := []ScoredCandidate{
		scored("first", 0.6, 0.6, 400, false),
		scored("second", 0.6, 0.6, 400, false),
		scored("third", 0.8, 0.7, 400, false),
	}

	for i := 0; i < 5; i++ {
		dec := v.Validate(in, false)
		if len(dec.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(dec.Results))
		}
		if dec.Results[0].ID != "third" || dec.Results[1].ID != "first" || dec.Results[2].ID != "second" {
			t.Fatalf("run %d: order = %q,%q,%q", i, dec.Results[0].ID, dec.Results[1].ID, dec.Results[2].ID)
		}
	}
}
