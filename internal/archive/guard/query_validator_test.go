package guard

import (
	"strings"
	"testing"

	"responsa/internal/config"
	"responsa/internal/models"
)

func TestValidateTooShort(t *testing.T) {
	v := NewQueryValidator(config.DefaultScoring())

	for _, q := range []string{"", "a", "abcd", "  ab  ", "hi"} {
		res := v.Validate(q)
		if res.Valid {
			t.Errorf("Validate(%q) should be invalid", q)
		}
		if res.Reason != models.ReasonTooShort {
			t.Errorf("Validate(%q) reason = %q, want TOO_SHORT", q, res.Reason)
		}
	}
}

func TestValidateSpam(t *testing.T) {
	v := NewQueryValidator(config.DefaultScoring())

	cases := []string{
		"select password from users",
		"DROP TABLE entries; --",
		"<script>alert(1)</script>",
		"aaaaaaaa question",
		"bonjour",
		"Hello!!",
	}
	for _, q := range cases {
		res := v.Validate(q)
		if res.Valid {
			t.Errorf("Validate(%q) should be rejected as spam", q)
			continue
		}
		if res.Reason != models.ReasonSpam {
			t.Errorf("Validate(%q) reason = %q, want SPAM", q, res.Reason)
		}
	}
}

func TestValidateNormalization(t *testing.T) {
	v := NewQueryValidator(config.DefaultScoring())

	res := v.Validate("  Allumer   une BOUGIE  de chabbat ")
	if !res.Valid {
		t.Fatalf("expected valid query, got reason %q", res.Reason)
	}
	if res.CleanedText != "allumer une bougie de chabbat" {
		t.Errorf("cleaned = %q", res.CleanedText)
	}
	if !strings.Contains(res.OriginalText, "BOUGIE") {
		t.Errorf("original text must be preserved for display")
	}
}

func TestValidateDomainClassification(t *testing.T) {
	v := NewQueryValidator(config.DefaultScoring())

	on := v.Validate("quand allumer les bougies de chabbat")
	if !on.IsDomainRelevant || on.Multiplier != 1.0 {
		t.Errorf("domain query: relevant=%v multiplier=%v", on.IsDomainRelevant, on.Multiplier)
	}

	off := v.Validate("quelle est la capitale de la France")
	if !off.Valid {
		t.Fatalf("off-topic query must not be rejected, got reason %q", off.Reason)
	}
	if off.IsDomainRelevant {
		t.Errorf("off-topic query classified as domain relevant")
	}
	if off.Multiplier != 0.5 {
		t.Errorf("off-topic multiplier = %v, want 0.5", off.Multiplier)
	}
}

func TestKeywordsExtraction(t *testing.T) {
	v := NewQueryValidator(config.DefaultScoring())

	kws := v.Keywords("allumer une bougie de chabbat ce soir vendredi samedi")
	if len(kws) > 6 {
		t.Fatalf("keywords capped at 6, got %d", len(kws))
	}
	for _, kw := range kws {
		if len([]rune(kw)) <= 2 {
			t.Errorf("keyword %q too short", kw)
		}
	}
	// "une", "de", "ce" are dropped as short tokens.
	want := []string{"allumer", "bougie", "chabbat", "soir", "vendredi", "samedi"}
	if len(kws) != len(want) {
		t.Fatalf("keywords = %v, want %v", kws, want)
	}
	for i := range want {
		if kws[i] != want[i] {
			t.Errorf("keywords[%d] = %q, want %q", i, kws[i], want[i])
		}
	}
}
