package guard

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"responsa/internal/config"
	"responsa/internal/models"
)

// QueryResult is the outcome of the input guardrail. A rejected query is a
// value, not an error: Reason carries the structured rejection code.
type QueryResult struct {
	Valid            bool
	OriginalText     string
	CleanedText      string
	IsDomainRelevant bool
	// Multiplier scales downstream confidence. 1.0 for on-topic queries,
	// the configured off-topic multiplier otherwise.
	Multiplier float64
	Reason     string
}

// Spam and injection patterns. Matching runs on the lowercased, whitespace-
// normalized text.
var (
	sqlPattern      = regexp.MustCompile(`(?i)(\bselect\b.+\bfrom\b|\binsert\s+into\b|\bdrop\s+table\b|\bunion\s+select\b|\bdelete\s+from\b|--\s|;\s*drop)`)
	markupPattern   = regexp.MustCompile(`(?i)(<\s*script|<\s*/?\s*[a-z]+\s*>|javascript\s*:|\{\{.*\}\})`)
	greetingPattern = regexp.MustCompile(`(?i)^\s*(bonjour|bonsoir|salut|coucou|hello|hi|hey|shalom|chalom)[\s!.,?]*$`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// hasRepeatedRun reports whether any rune other than newline occurs five or
// more times consecutively, i.e. the pattern `(.)\1{4,}`, which Go's RE2
// engine cannot express (no backreferences).
func hasRepeatedRun(s string) bool {
	var prev rune
	count := 0
	for _, r := range s {
		if r == prev && r != '\n' {
			count++
			if count >= 5 {
				return true
			}
		} else {
			prev = r
			count = 1
		}
	}
	return false
}

// QueryValidator normalizes and screens incoming search queries before any
// provider or cache work happens.
type QueryValidator struct {
	cfg      config.ScoringConfig
	keywords map[string]struct{}
}

// NewQueryValidator builds the validator with its domain vocabulary.
func NewQueryValidator(cfg config.ScoringConfig) *QueryValidator {
	kws := make(map[string]struct{}, len(cfg.DomainKeywords))
	for _, kw := range cfg.DomainKeywords {
		kws[strings.ToLower(kw)] = struct{}{}
	}
	return &QueryValidator{cfg: cfg, keywords: kws}
}

// Validate runs the single-pass pipeline: normalize, length check, spam
// screen, domain classification. Domain non-membership never rejects; it
// halves the confidence downstream.
func (v *QueryValidator) Validate(query string) QueryResult {
	res := QueryResult{
		OriginalText: query,
		Multiplier:   1.0,
	}

	cleaned := strings.ToLower(strings.TrimSpace(spacePattern.ReplaceAllString(query, " ")))
	res.CleanedText = cleaned

	if utf8.RuneCountInString(cleaned) < v.cfg.MinQueryLength {
		res.Reason = models.ReasonTooShort
		return res
	}

	if sqlPattern.MatchString(cleaned) || markupPattern.MatchString(cleaned) ||
		hasRepeatedRun(cleaned) || greetingPattern.MatchString(cleaned) {
		res.Reason = models.ReasonSpam
		return res
	}

	res.Valid = true
	res.IsDomainRelevant = v.isDomainRelevant(cleaned)
	if !res.IsDomainRelevant {
		res.Multiplier = v.cfg.OffTopicMultiplier
	}
	return res
}

// Keywords extracts the lexical matching terms from a cleaned query: tokens
// longer than 2 runes, capped at the configured maximum.
func (v *QueryValidator) Keywords(cleaned string) []string {
	var kws []string
	for _, tok := range strings.Fields(cleaned) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if utf8.RuneCountInString(tok) > 2 {
			kws = append(kws, tok)
		}
		if len(kws) == v.cfg.MaxKeywords {
			break
		}
	}
	return kws
}

func (v *QueryValidator) isDomainRelevant(cleaned string) bool {
	for _, tok := range strings.Fields(cleaned) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if _, ok := v.keywords[tok]; ok {
			return true
		}
	}
	return false
}
