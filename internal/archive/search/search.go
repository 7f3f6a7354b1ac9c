package search

import (
	"context"
	"unicode/utf8"

	"responsa/internal/archive/cache"
	"responsa/internal/archive/guard"
	"responsa/internal/archive/rank"
	"responsa/internal/archive/score"
	"responsa/internal/config"
	"responsa/internal/embedding"
	"responsa/internal/models"
	"responsa/pkg/logger"
)

// Service is the read path: it runs a query through the input guardrail,
// the vector cache, the ranker, the confidence scorer and the output
// guardrail. Every failure mode is a structured response, never a panic or
// an error surfaced to the caller.
type Service struct {
	queries   *guard.QueryValidator
	responses *guard.ResponseValidator
	ranker    *rank.Ranker
	scorer    *score.Scorer
	cache     *cache.VectorCache
	embedder  embedding.Embedding
	log       *logger.Logger
}

// NewService wires the search pipeline.
func NewService(cfg config.ScoringConfig, vc *cache.VectorCache, embedder embedding.Embedding, log *logger.Logger) *Service {
	return &Service{
		queries:   guard.NewQueryValidator(cfg),
		responses: guard.NewResponseValidator(cfg),
		ranker:    rank.New(cfg),
		scorer:    score.New(cfg),
		cache:     vc,
		embedder:  embedder,
		log:       log,
	}
}

// Search answers one query with up to limit ranked results.
func (s *Service) Search(ctx context.Context, query string, limit int) models.SearchResponse {
	qres := s.queries.Validate(query)
	if !qres.Valid {
		return models.SearchResponse{RejectionReason: qres.Reason}
	}
	keywords := s.queries.Keywords(qres.CleanedText)

	records := s.cache.Get(ctx)
	if len(records) == 0 {
		return models.SearchResponse{RejectionReason: models.ReasonNoResults}
	}

	// Embedding failure degrades to keyword-only ranking.
	queryVec, err := s.embedder.Embed(ctx, qres.CleanedText)
	if err != nil {
		s.log.WithError(models.ErrorInfo{Kind: "provider", Message: err.Error()}).
			Warn("Query embedding unavailable, ranking on keywords only")
		queryVec = nil
	}

	candidates := s.ranker.Rank(queryVec, records, keywords)

	scored := make([]guard.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		res := s.scorer.Score(score.Input{
			VectorScore:   c.Semantic,
			AnswerText:    c.Record.Payload.Answer,
			HasAudio:      c.Record.Payload.AudioRef != "",
			Timestamp:     c.Record.Payload.Timestamp,
			QueryKeywords: keywords,
		})
		confidence := res.Score * qres.Multiplier
		scored = append(scored, guard.ScoredCandidate{
			Result: models.SearchResult{
				ID:              c.Record.ID,
				Question:        c.Record.Payload.Question,
				Answer:          c.Record.Payload.Answer,
				Confidence:      confidence,
				ConfidenceLevel: s.scorer.Level(confidence),
				AudioRef:        c.Record.Payload.AudioRef,
			},
			VectorScore:  c.Semantic,
			AnswerLength: utf8.RuneCountInString(c.Record.Payload.Answer),
			HasAudio:     c.Record.Payload.AudioRef != "",
		})
	}

	decision := s.responses.Validate(scored, !qres.IsDomainRelevant)
	if decision.Rejected {
		return models.SearchResponse{RejectionReason: decision.RejectionReason}
	}

	results := decision.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return models.SearchResponse{
		Success: true,
		Results: results,
		Warning: decision.Warning,
	}
}
