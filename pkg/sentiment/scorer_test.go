package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"dailysignal/internal/model"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/llm"
	"dailysignal/pkg/prompt"
)

type fakeLLM struct {
	reply    string
	err      error
	requests []*llm.ChatRequest
}

func (f *fakeLLM) Chat(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeLLM) ChatStructured(_ context.Context, req *llm.ChatRequest, target any) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), target)
}

func (f *fakeLLM) Close() error { return nil }

func article(typ model.ArticleType) model.Article {
	return model.Article{
		Date:       model.MustParseDate("2026-01-17"),
		URL:        "https://www.reuters.com/nvda",
		Source:     "Reuters",
		Title:      "NVIDIA supplier raises outlook",
		Summary:    "Demand for AI chips stays strong.",
		Type:       typ,
		SourceTier: 1,
	}
}

func TestLLMScorerScore(t *testing.T) {
	client := &fakeLLM{reply: `{"score": 42, "confidence": 0.8, "reasoning": "strong demand"}`}
	scorer, err := NewLLMScorer(client, nil, WithModel("sentiment"), WithInstrument("NVDA", "NVIDIA"))
	require.NoError(t, err)

	score, err := scorer.Score(context.Background(), article(model.ArticleCompany))
	require.NoError(t, err)
	require.Equal(t, 42, score)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	require.Equal(t, "sentiment", req.Model)
	require.InDelta(t, 0.3, *req.Temperature, 1e-9)
	require.Len(t, req.Messages, 2)
	require.Equal(t, "system", req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "NVIDIA (NVDA)")
	require.Contains(t, req.Messages[1].Content, "COMPANY NEWS for 2026-01-17")
	require.Contains(t, req.Messages[1].Content, "NVIDIA supplier raises outlook")
}

func TestLLMScorerUsesMacroPrompt(t *testing.T) {
	client := &fakeLLM{reply: `{"score": -5, "confidence": 0.4, "reasoning": "rates"}`}
	scorer, err := NewLLMScorer(client, nil)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), article(model.ArticleMacro))
	require.NoError(t, err)
	require.Contains(t, client.requests[0].Messages[0].Content, "macroeconomic")
}

func TestLLMScorerClamps(t *testing.T) {
	for reply, want := range map[string]int{
		`{"score": 250, "confidence": 1, "reasoning": "x"}`:  100,
		`{"score": -300, "confidence": 1, "reasoning": "x"}`: -100,
	} {
		scorer, err := NewLLMScorer(&fakeLLM{reply: reply}, nil)
		require.NoError(t, err)
		got, err := scorer.Score(context.Background(), article(model.ArticleCompany))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestLLMScorerPropagatesKind(t *testing.T) {
	client := &fakeLLM{err: faults.Wrap(faults.KindProviderUnavailable, "llm: upstream 503")}
	scorer, err := NewLLMScorer(client, nil)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), article(model.ArticleCompany))
	require.ErrorIs(t, err, faults.ErrProviderUnavailable)
	require.Contains(t, err.Error(), "https://www.reuters.com/nvda")
}

func TestLLMScorerDigest(t *testing.T) {
	catalog, err := prompt.Default()
	require.NoError(t, err)
	scorer, err := NewLLMScorer(&fakeLLM{}, catalog)
	require.NoError(t, err)
	require.Equal(t, catalog.CombinedDigest(), scorer.PromptDigest())

	_, err = NewLLMScorer(nil, catalog)
	require.Error(t, err)
}
