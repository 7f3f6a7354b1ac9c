package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"responsa/internal/config"
)

const verifyPrompt = `You are checking a voice message archive. Given a question and a candidate answer, judge whether the answer plausibly responds to the question.
Respond with a single JSON object, nothing else:
{"score": <number between 0 and 1>, "label": "<direct_answer|partial|unrelated>"}

Question: %s
Answer: %s`

// GeminiVerifier implements Verifier on the Gemini API.
type GeminiVerifier struct {
	model   *genai.GenerativeModel
	timeout time.Duration
}

var _ Verifier = (*GeminiVerifier)(nil)

// NewGeminiVerifier creates a GeminiVerifier from the verifier configuration.
func NewGeminiVerifier(ctx context.Context, cfg *config.VerifierConfig) (*GeminiVerifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel(cfg.Gemini.Model)
	model.ResponseMIMEType = "application/json"

	return &GeminiVerifier{
		model:   model,
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}, nil
}

// Verify asks the model for a plausibility judgement. A response that is not
// the expected JSON object is an error: the caller must see that the verdict
// is missing rather than receive a made-up score.
func (v *GeminiVerifier) Verify(ctx context.Context, question, answer string) (Result, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(verifyPrompt, question, answer)
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Result{}, fmt.Errorf("verifier call failed: %w", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return Result{}, err
	}
	return ParseResult(text)
}

// firstText extracts the first text part of a Gemini response.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("verifier returned an empty response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}
	return "", fmt.Errorf("verifier returned no text part")
}

// ParseResult parses the verifier's JSON verdict. Models sometimes wrap the
// object in a markdown fence; that is stripped before parsing.
func ParseResult(raw string) (Result, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var res Result
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		return Result{}, fmt.Errorf("verifier returned malformed JSON: %w", err)
	}
	if res.Score < 0 || res.Score > 1 {
		return Result{}, fmt.Errorf("verifier score %v out of range", res.Score)
	}
	return res, nil
}
