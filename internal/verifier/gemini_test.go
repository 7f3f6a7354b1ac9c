package verifier

import (
	"strings"
	"testing"
)

func TestParseResultPlainJSON(t *testing.T) {
	res, err := ParseResult(`{"score": 0.8, "label": "direct_answer"}`)
	if err != nil {
		t.Fatalf("ParseResult returned error: %v", err)
	}
	if res.Score != 0.8 || res.Label != "direct_answer" {
		t.Errorf("got %+v, want score 0.8 label direct_answer", res)
	}
}

func TestParseResultMarkdownFence(t *testing.T) {
	raw := "```json\n{\"score\": 0.3, \"label\": \"partial\"}\n```"
	res, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("ParseResult returned error: %v", err)
	}
	if res.Score != 0.3 || res.Label != "partial" {
		t.Errorf("got %+v, want score 0.3 label partial", res)
	}
}

func TestParseResultMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"prose", "The answer seems relevant."},
		{"empty", ""},
		{"truncated", `{"score": 0.5,`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseResult(tc.raw); err == nil {
				t.Fatalf("ParseResult(%q) succeeded, want error", tc.raw)
			} else if !strings.Contains(err.Error(), "malformed") {
				t.Errorf("error does not mention malformed JSON: %v", err)
			}
		})
	}
}

func TestParseResultOutOfRangeScore(t *testing.T) {
	if _, err := ParseResult(`{"score": 1.5, "label": "direct_answer"}`); err == nil {
		t.Fatal("out-of-range score accepted")
	}
}
