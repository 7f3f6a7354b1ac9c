package score

import (
	"strings"
	"time"

	"responsa/internal/config"
	"responsa/internal/models"
)

// Input carries the signals the scorer needs for one candidate.
type Input struct {
	// VectorScore is the raw ranker similarity, [0,1].
	VectorScore float64
	AnswerText  string
	HasAudio    bool
	Timestamp   time.Time
	// QueryKeywords are the lexical terms extracted from the query.
	QueryKeywords []string
}

// Scored is the calibrated result for one candidate.
type Scored struct {
	Score float64
	Level string
}

// Scorer combines four normalized factors into one calibrated confidence.
type Scorer struct {
	cfg     config.ScoringConfig
	domain  map[string]struct{}
	nowFunc func() time.Time
}

// New creates a Scorer. nowFunc defaults to time.Now and exists so tests can
// pin the clock.
func New(cfg config.ScoringConfig) *Scorer {
	domain := make(map[string]struct{}, len(cfg.DomainKeywords))
	for _, kw := range cfg.DomainKeywords {
		domain[strings.ToLower(kw)] = struct{}{}
	}
	return &Scorer{cfg: cfg, domain: domain, nowFunc: time.Now}
}

// WithClock substitutes the time source. Test hook.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.nowFunc = now
	return s
}

// Score computes the weighted sum of the four factors. The weights are
// validated to sum to 1.0 at config load, so the result stays in [0,1]
// before any external multiplier.
func (s *Scorer) Score(in Input) Scored {
	total := s.cfg.WeightVector*clamp01(in.VectorScore) +
		s.cfg.WeightThematic*s.thematic(in) +
		s.cfg.WeightQuality*s.quality(in) +
		s.cfg.WeightRecency*s.recency(in.Timestamp)

	return Scored{Score: total, Level: s.Level(total)}
}

// Level maps a confidence score to its discrete bucket. The bucket drives
// display and warnings, never a hard reject.
func (s *Scorer) Level(score float64) string {
	switch {
	case score > s.cfg.HighThreshold:
		return models.LevelHigh
	case score > s.cfg.MediumThreshold:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// thematic rewards shared domain vocabulary between query and answer:
// min(1, 0.2 x shared keyword count).
func (s *Scorer) thematic(in Input) float64 {
	answer := strings.ToLower(in.AnswerText)
	shared := 0
	for _, kw := range in.QueryKeywords {
		kw = strings.ToLower(kw)
		if _, ok := s.domain[kw]; !ok {
			continue
		}
		if strings.Contains(answer, kw) {
			shared++
		}
	}
	v := 0.2 * float64(shared)
	if v > 1 {
		return 1
	}
	return v
}

// quality is a step function of answer length, with a bonus for audio
// evidence, capped at 1.0.
func (s *Scorer) quality(in Input) float64 {
	n := len([]rune(in.AnswerText))
	var v float64
	switch {
	case n >= 500:
		v = 1.0
	case n >= 200:
		v = 0.8
	case n >= 100:
		v = 0.6
	case n >= 50:
		v = 0.4
	default:
		v = 0.2
	}
	if in.HasAudio {
		v += 0.1
	}
	if v > 1 {
		return 1
	}
	return v
}

// recency decays linearly with age: max(0, 1 - 0.1 x ageYears). A missing
// timestamp scores the neutral 0.5.
func (s *Scorer) recency(ts time.Time) float64 {
	if ts.IsZero() {
		return 0.5
	}
	ageYears := s.nowFunc().Sub(ts).Hours() / (24 * 365)
	v := 1 - 0.1*ageYears
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
