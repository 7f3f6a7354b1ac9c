package link

import (
	"context"
	"fmt"
	"strings"
	"time"

	"responsa/internal/archive/rank"
	"responsa/internal/config"
	"responsa/internal/models"
	"responsa/internal/verifier"
	"responsa/pkg/logger"
)

// CandidateStore reads linkable questions and persists link decisions.
type CandidateStore interface {
	// ListCandidates returns non-deleted question entries of the group with
	// timestamps in (before-window, before], most recent first, capped at
	// limit.
	ListCandidates(ctx context.Context, groupID string, before time.Time, window time.Duration, limit int) ([]models.Entry, error)
	// UpsertLink overwrites the link fields on the answer. Re-running the
	// linker on the same answer replaces any previous link.
	UpsertLink(ctx context.Context, answerID string, decision models.LinkDecision) error
}

// VectorResolver returns the embedding for an entry, computing and persisting
// it when missing.
type VectorResolver interface {
	Vector(ctx context.Context, entry *models.Entry) ([]float32, error)
}

// Linker assigns a newly transcribed answer to the question it addresses.
// It walks a fixed pipeline: reply hardlink, candidate search, multi-signal
// scoring, optional external verification, accept or reject.
type Linker struct {
	store   CandidateStore
	vectors VectorResolver
	verify  verifier.Verifier // nil disables the verification blend
	cfg     config.ScoringConfig
	domain  map[string]struct{}
	log     *logger.Logger
}

// NewLinker creates a Linker. verify may be nil when no verifier is
// configured.
func NewLinker(store CandidateStore, vectors VectorResolver, verify verifier.Verifier, cfg config.ScoringConfig, log *logger.Logger) *Linker {
	domain := make(map[string]struct{}, len(cfg.DomainKeywords))
	for _, kw := range cfg.DomainKeywords {
		domain[strings.ToLower(kw)] = struct{}{}
	}
	return &Linker{
		store:   store,
		vectors: vectors,
		verify:  verify,
		cfg:     cfg,
		domain:  domain,
		log:     log,
	}
}

// Link runs the pipeline on one answer and persists the decision. replyToID
// comes from an explicit reply reference on the source message; contextHint
// is optional free text describing what the answer is about.
func (l *Linker) Link(ctx context.Context, answer *models.Entry, replyToID, contextHint string) (models.LinkDecision, error) {
	// An explicit reply reference settles the question. No provider calls.
	if replyToID != "" {
		decision := models.LinkDecision{
			QuestionID: &replyToID,
			Confidence: 1.0,
			Method:     models.LinkMethodReply,
		}
		return l.persist(ctx, answer.ID, decision)
	}

	window := time.Duration(l.cfg.CandidateWindowHrs) * time.Hour
	candidates, err := l.store.ListCandidates(ctx, answer.GroupID, answer.Timestamp, window, l.cfg.CandidateLimit)
	if err != nil {
		return models.LinkDecision{}, fmt.Errorf("failed to list link candidates: %w", err)
	}
	if len(candidates) == 0 {
		return l.persist(ctx, answer.ID, models.LinkDecision{Method: models.LinkMethodNoCandidates})
	}

	// Embedding failures degrade the semantic term to zero; text and context
	// signals still run.
	answerVec, err := l.vectors.Vector(ctx, answer)
	if err != nil {
		l.log.WithError(models.ErrorInfo{Kind: "provider", Message: err.Error()}).
			Warn("Answer embedding unavailable, linking on text signals only")
		answerVec = nil
	}

	best, bestScore := l.pickBest(ctx, answer, answerVec, candidates, contextHint)

	decision := models.LinkDecision{Confidence: bestScore, Method: models.LinkMethodLowScore}
	if bestScore > l.cfg.VerifyThreshold && l.verify != nil {
		if res, err := l.verify.Verify(ctx, best.BestText(), answer.BestText()); err != nil {
			// Verdict unavailable: keep the algorithmic score.
			l.log.WithError(models.ErrorInfo{Kind: "provider", Message: err.Error()}).
				Warn("Verifier unavailable, keeping algorithmic link score")
		} else {
			w := l.cfg.VerifierBlendWeight
			decision.Confidence = (1-w)*bestScore + w*res.Score
			decision.Verified = true
		}
	}

	if decision.Confidence >= l.cfg.AcceptThreshold {
		id := best.ID
		decision.QuestionID = &id
		decision.Method = models.LinkMethodSemantic
	}
	return l.persist(ctx, answer.ID, decision)
}

func (l *Linker) persist(ctx context.Context, answerID string, decision models.LinkDecision) (models.LinkDecision, error) {
	if err := l.store.UpsertLink(ctx, answerID, decision); err != nil {
		return models.LinkDecision{}, fmt.Errorf("failed to persist link decision: %w", err)
	}
	return decision, nil
}

// pickBest scores every candidate and returns the winner. Ties break by the
// most recent timestamp so re-runs stay deterministic.
func (l *Linker) pickBest(ctx context.Context, answer *models.Entry, answerVec []float32, candidates []models.Entry, contextHint string) (*models.Entry, float64) {
	answerTokens := tokenize(answer.BestText())
	answerScript := DetectScript(answer.BestText())
	hintTokens := tokenize(contextHint)

	var best *models.Entry
	bestScore := 0.0
	for i := range candidates {
		cand := &candidates[i]
		score := l.scoreCandidate(ctx, answer, answerVec, answerTokens, answerScript, cand, hintTokens)
		if best == nil || score > bestScore ||
			(score == bestScore && cand.Timestamp.After(best.Timestamp)) {
			best = cand
			bestScore = score
		}
	}
	return best, bestScore
}

func (l *Linker) scoreCandidate(ctx context.Context, answer *models.Entry, answerVec []float32, answerTokens []string, answerScript Script, cand *models.Entry, hintTokens []string) float64 {
	candText := cand.BestText()
	candTokens := tokenize(candText)

	semantic := 0.0
	if answerVec != nil {
		candVec, err := l.vectors.Vector(ctx, cand)
		if err != nil {
			l.log.WithError(models.ErrorInfo{Kind: "provider", Message: err.Error()}).
				Warn("Candidate embedding unavailable, semantic term dropped")
		} else {
			semantic = rank.Cosine(answerVec, candVec)
		}
	}

	text := overlapRatio(answerTokens, candTokens)

	gap := answer.Timestamp.Sub(cand.Timestamp)
	contextScore := l.thematicCoOccurrence(answerTokens, candTokens)
	if gap > time.Duration(l.cfg.ContextGapHrs)*time.Hour {
		contextScore -= 0.5
	}

	score := l.cfg.LinkSemanticWeight*semantic +
		l.cfg.LinkTextWeight*text +
		l.cfg.LinkContextWeight*contextScore

	if answer.Sender != "" && answer.Sender == cand.Sender {
		score += l.cfg.SameAuthorBonus
	}
	if DetectScript(candText) == answerScript {
		score += l.cfg.LanguageBonus
	}
	if len(hintTokens) > 0 {
		score += l.cfg.LinkContextWeight * overlapRatio(hintTokens, candTokens)
	}

	score -= l.timeDecay(gap)
	return score
}

// thematicCoOccurrence counts domain keywords present in both token sets,
// scaled the same way as the scorer's thematic factor.
func (l *Linker) thematicCoOccurrence(a, b []string) float64 {
	inA := make(map[string]struct{})
	for _, tok := range a {
		if _, ok := l.domain[tok]; ok {
			inA[tok] = struct{}{}
		}
	}
	shared := 0
	seen := make(map[string]struct{})
	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := inA[tok]; ok {
			shared++
		}
	}
	score := 0.2 * float64(shared)
	if score > 1 {
		score = 1
	}
	return score
}

// timeDecay is a linear penalty growing with the question/answer gap, capped
// at TimeDecayCapHrs.
func (l *Linker) timeDecay(gap time.Duration) float64 {
	if gap <= 0 {
		return 0
	}
	limit := time.Duration(l.cfg.TimeDecayCapHrs) * time.Hour
	if gap >= limit {
		return l.cfg.TimeDecayMax
	}
	return l.cfg.TimeDecayMax * float64(gap) / float64(limit)
}

// tokenize lowercases s and keeps tokens longer than two runes.
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len([]rune(f)) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// overlapRatio is the share of distinct tokens of a that also occur in b.
func overlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		inB[tok] = struct{}{}
	}
	distinct := make(map[string]struct{}, len(a))
	matched := 0
	for _, tok := range a {
		if _, dup := distinct[tok]; dup {
			continue
		}
		distinct[tok] = struct{}{}
		if _, ok := inB[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(distinct))
}
