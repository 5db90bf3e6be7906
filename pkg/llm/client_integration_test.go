//go:build integration

package llm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailysignal/pkg/confkit"
)

func TestIntegrationStructuredScore(t *testing.T) {
	confkit.LoadDotenvOnce()
	if os.Getenv(envAPIKey) == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	cfg := &Config{
		BaseURL:      confkit.EnvOr(envBaseURL, defaultBaseURL),
		APIKey:       os.Getenv(envAPIKey),
		DefaultModel: confkit.EnvOr(envDefaultModel, "gpt-4o-mini"),
		Timeout:      60 * time.Second,
		MaxRetries:   1,
		LogLevel:     "info",
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	var out struct {
		Score      int     `json:"score"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	err = client.ChatStructured(ctx, &ChatRequest{Messages: []Message{
		System("Rate the sentiment of the headline for NVIDIA stock from -100 to 100."),
		User("NVIDIA beats revenue estimates and raises guidance on data center demand"),
	}}, &out)
	require.NoError(t, err)
	require.GreaterOrEqual(t, out.Score, -100)
	require.LessOrEqual(t, out.Score, 100)
}
