package verifier

import "context"

// Result is the verifier's judgement on one question/answer pair.
type Result struct {
	// Score is the plausibility in [0,1] that the answer addresses the
	// question.
	Score float64 `json:"score"`
	// Label is a short tag explaining the judgement, e.g. "direct_answer",
	// "partial", "unrelated".
	Label string `json:"label"`
}

// Verifier judges whether an answer plausibly responds to a question. The
// linker blends its score into borderline link candidates; a returned error
// means the verdict is unavailable and the caller must proceed without it.
type Verifier interface {
	Verify(ctx context.Context, question, answer string) (Result, error)
}
