package yahoo

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Replays a recorded chart call. Skips unless the cassette exists or
// RECORD_CASSETTES=1 is set.
func TestDailyBars_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "yahoo_chart_nvda")
	if _, err := os.Stat(cassette + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	r, err := recorder.New(cassette)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	recordedAt := time.Date(2026, time.January, 17, 12, 0, 0, 0, time.UTC)
	p := NewProvider("yahoo",
		WithClock(func() time.Time { return recordedAt }),
		WithClientOptions(WithHTTPClient(&http.Client{Transport: r})),
	)
	series, err := p.DailyBars(context.Background(), "NVDA", 260)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", series.Symbol)
	assert.NotZero(t, series.Len())
	assert.NoError(t, series.Validate())
}
