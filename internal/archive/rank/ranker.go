package rank

import (
	"math"
	"sort"
	"strings"

	"responsa/internal/config"
	"responsa/internal/models"
)

// Candidate is a cache row scored against one query.
type Candidate struct {
	Record models.VectorRecord
	// Semantic is the raw cosine similarity before boosts. Downstream
	// guardrails filter on it independently of the combined score.
	Semantic float64
	// Score is the combined ranking score:
	// cosine * (1 + feedbackBoost) + keywordBonus.
	Score float64
	// KeywordHits counts literal keyword matches in the candidate text.
	KeywordHits int
}

// Ranker orders vector cache rows against a query embedding, blending
// semantic similarity with feedback and lexical signals.
type Ranker struct {
	cfg config.ScoringConfig
}

// New creates a Ranker reading its knobs from the scoring config.
func New(cfg config.ScoringConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Cosine returns the cosine similarity of two vectors. A zero-norm or
// mismatched input yields 0, never NaN.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every record against the query vector and returns candidates
// sorted by descending score. A nil query vector degrades to keyword-only
// ranking: the semantic term is 0 and lexical overlap decides the order.
func (r *Ranker) Rank(queryVec []float32, records []models.VectorRecord, keywords []string) []Candidate {
	if len(keywords) > r.cfg.MaxKeywords {
		keywords = keywords[:r.cfg.MaxKeywords]
	}

	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		semantic := 0.0
		if queryVec != nil {
			semantic = Cosine(queryVec, rec.Vector)
		}

		hits := countKeywordHits(rec, keywords)
		score := semantic*(1+r.feedbackBoost(rec.RelevanceScore)) + float64(hits)*r.cfg.KeywordBonus

		candidates = append(candidates, Candidate{
			Record:      rec,
			Semantic:    semantic,
			Score:       score,
			KeywordHits: hits,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// feedbackBoost maps the feedback-adjusted relevance score onto a bounded
// multiplier. Relevance 0.5 is neutral; the clamp keeps user votes a nudge
// on top of semantic similarity, never the dominant term.
func (r *Ranker) feedbackBoost(relevance float64) float64 {
	boost := (relevance - models.DefaultRelevance) * 2 * r.cfg.FeedbackBoostLimit
	limit := r.cfg.FeedbackBoostLimit
	if boost > limit {
		return limit
	}
	if boost < -limit {
		return -limit
	}
	return boost
}

func countKeywordHits(rec models.VectorRecord, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}
	text := strings.ToLower(rec.Payload.Question + " " + rec.Payload.Answer)
	hits := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}
