package guard

import (
	"sort"

	"responsa/internal/config"
	"responsa/internal/models"
)

// ScoredCandidate is a ranked candidate after confidence scoring, carrying
// the raw signals the output guardrail filters on.
type ScoredCandidate struct {
	Result models.SearchResult
	// VectorScore is the raw semantic similarity from the ranker.
	VectorScore  float64
	AnswerLength int
	HasAudio     bool
}

// Decision is the global outcome of the output guardrail.
type Decision struct {
	Rejected        bool
	RejectionReason string
	Warning         string
	Results         []models.SearchResult
}

// ResponseValidator drops weak candidates and decides whole-query rejection
// or warning.
type ResponseValidator struct {
	cfg config.ScoringConfig
}

// NewResponseValidator builds the output guardrail.
func NewResponseValidator(cfg config.ScoringConfig) *ResponseValidator {
	return &ResponseValidator{cfg: cfg}
}

// Validate filters candidates and produces the global decision. Candidates
// must arrive in ranker order; surviving results are reordered by descending
// confidence with ties keeping that original order, so repeated runs over
// the same input produce identical output.
func (v *ResponseValidator) Validate(candidates []ScoredCandidate, offTopic bool) Decision {
	bestRaw := 0.0
	for _, c := range candidates {
		if c.VectorScore > bestRaw {
			bestRaw = c.VectorScore
		}
	}

	survivors := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.VectorScore < v.cfg.MinVectorScore {
			continue
		}
		if c.AnswerLength < v.cfg.MinAnswerLength && !c.HasAudio {
			continue
		}
		survivors = append(survivors, c)
	}

	if len(survivors) == 0 || bestRaw < v.cfg.MinVectorScore {
		reason := models.ReasonNoResults
		if offTopic {
			reason = models.ReasonOffTopic
		}
		return Decision{Rejected: true, RejectionReason: reason}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Result.Confidence > survivors[j].Result.Confidence
	})

	best := survivors[0].Result.Confidence
	dec := Decision{}
	if offTopic && best < v.cfg.LowConfidence {
		return Decision{Rejected: true, RejectionReason: models.ReasonOffTopic}
	}
	if best < v.cfg.LowConfidence {
		dec.Warning = models.WarningLowConfidence
	}

	dec.Results = make([]models.SearchResult, len(survivors))
	for i, s := range survivors {
		dec.Results[i] = s.Result
	}
	return dec
}
