package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/internal/model"
	"dailysignal/pkg/llm"
	"dailysignal/pkg/prompt"
)

// Score bounds.
const (
	MinScore = -100
	MaxScore = 100
)

// Scorer rates a single article for the instrument.
type Scorer interface {
	Score(ctx context.Context, a model.Article) (int, error)
}

// Verdict is the structured reply requested from the model.
type Verdict struct {
	Score      int     `json:"score" description:"integer sentiment from -100 (very negative) to 100 (very positive)"`
	Confidence float64 `json:"confidence" description:"confidence in the score between 0 and 1"`
	Reasoning  string  `json:"reasoning" description:"one or two sentences explaining the score"`
}

// LLMScorer scores articles through a chat model with a strict JSON schema.
type LLMScorer struct {
	client      llm.LLMClient
	catalog     *prompt.Catalog
	model       string
	temperature float64
	symbol      string
	company     string
}

// ScorerOption customises an LLMScorer.
type ScorerOption func(*LLMScorer)

// WithModel selects the model alias; empty keeps the client default.
func WithModel(alias string) ScorerOption {
	return func(s *LLMScorer) { s.model = strings.TrimSpace(alias) }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ScorerOption {
	return func(s *LLMScorer) { s.temperature = t }
}

// WithInstrument names the instrument in the prompts.
func WithInstrument(symbol, company string) ScorerOption {
	return func(s *LLMScorer) {
		if symbol != "" {
			s.symbol = symbol
		}
		if company != "" {
			s.company = company
		}
	}
}

// NewLLMScorer builds a scorer. A nil catalog uses the embedded prompts.
func NewLLMScorer(client llm.LLMClient, catalog *prompt.Catalog, opts ...ScorerOption) (*LLMScorer, error) {
	if client == nil {
		return nil, fmt.Errorf("sentiment: llm client is required")
	}
	if catalog == nil {
		var err error
		if catalog, err = prompt.Default(); err != nil {
			return nil, err
		}
	}
	s := &LLMScorer{
		client:      client,
		catalog:     catalog,
		temperature: 0.3,
		symbol:      "NVDA",
		company:     "NVIDIA",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PromptDigest identifies the prompt set used for scoring.
func (s *LLMScorer) PromptDigest() string { return s.catalog.CombinedDigest() }

// Score asks the model for a verdict on a and clamps it to [-100, 100].
func (s *LLMScorer) Score(ctx context.Context, a model.Article) (int, error) {
	system, user, err := s.catalog.Render(prompt.Input{
		Symbol:   s.symbol,
		Company:  s.company,
		Kind:     string(a.Type),
		Date:     a.Date.String(),
		Title:    a.Title,
		Source:   a.Source,
		Tier:     a.SourceTier,
		Summary:  a.Summary,
		ScaleMin: MinScore,
		ScaleMax: MaxScore,
	})
	if err != nil {
		return 0, err
	}

	temperature := s.temperature
	var verdict Verdict
	err = s.client.ChatStructured(ctx, &llm.ChatRequest{
		Model:       s.model,
		Temperature: &temperature,
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
	}, &verdict)
	if err != nil {
		return 0, fmt.Errorf("sentiment: score %q: %w", a.URL, err)
	}

	score := Clamp(verdict.Score)
	logx.WithContext(ctx).Debugf("[sentiment] %s %s score=%d confidence=%.2f", a.Type, a.Source, score, verdict.Confidence)
	return score, nil
}

// Clamp bounds v to the score range.
func Clamp(v int) int {
	switch {
	case v < MinScore:
		return MinScore
	case v > MaxScore:
		return MaxScore
	default:
		return v
	}
}
