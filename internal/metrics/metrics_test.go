package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCollects(t *testing.T) {
	r := New("NVDA", Config{})

	r.RecordStep("MARKET", "ok", 150*time.Millisecond)
	r.RecordStep("NEWS", "degraded", time.Second)
	r.RecordStep("NEWS", "degraded", time.Second)
	r.RecordArticles("company", 3)
	r.RecordArticles("macro", 0)
	r.RecordClose(181.25)
	r.RecordSentiment("combined", 22)
	r.RecordRun(true)

	require.InDelta(t, 1, testutil.ToFloat64(r.steps.WithLabelValues("market", "ok")), 1e-9)
	require.InDelta(t, 2, testutil.ToFloat64(r.steps.WithLabelValues("news", "degraded")), 1e-9)
	require.InDelta(t, 3, testutil.ToFloat64(r.articles.WithLabelValues("NVDA", "company")), 1e-9)
	require.InDelta(t, 181.25, testutil.ToFloat64(r.lastClose.WithLabelValues("NVDA")), 1e-9)
	require.InDelta(t, 22, testutil.ToFloat64(r.sentiment.WithLabelValues("NVDA", "combined")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("success")), 1e-9)

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	require.Contains(t, names, "dailysignal_step_duration_seconds")
	require.NotContains(t, names, "go_goroutines", "private registry carries no default collectors")
}

func TestRecordersAreIndependent(t *testing.T) {
	a := New("NVDA", Config{})
	b := New("NVDA", Config{})
	a.RecordRun(false)
	require.InDelta(t, 1, testutil.ToFloat64(a.runs.WithLabelValues("failure")), 1e-9)
	require.InDelta(t, 0, testutil.ToFloat64(b.runs.WithLabelValues("failure")), 1e-9)
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		mu.Lock()
		paths = append(paths, req.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New("NVDA", Config{PushGateway: srv.URL, Job: "dailysignal_test"})
	r.RecordRun(true)
	require.NoError(t, r.Push(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	require.Equal(t, "/metrics/job/dailysignal_test/symbol/NVDA", paths[0])
	require.NotEmpty(t, bodies[0])
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New("NVDA", Config{PushGateway: srv.URL})
	err := r.Push(context.Background())
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "metrics: push"))
}

func TestPushDisabled(t *testing.T) {
	require.NoError(t, New("NVDA", Config{}).Push(context.Background()))
}
