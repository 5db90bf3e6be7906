package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysignal/internal/config"
	"dailysignal/internal/model"
	"dailysignal/internal/store"
	"dailysignal/internal/workflow"
	"dailysignal/pkg/calendar"
	"dailysignal/pkg/confkit"
	llmpkg "dailysignal/pkg/llm"
	"dailysignal/pkg/predict"
)

func TestConfigSummaryLines(t *testing.T) {
	require.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))

	cfg := &config.Config{
		Env:      "dev",
		Symbol:   "NVDA",
		Company:  "NVIDIA",
		Pipeline: config.PipelineConf{CompanyWeight: 0.6, MacroWeight: 0.4, MinHistory: 10, HistoryWindow: 250},
		Store:    store.Config{Driver: store.DriverPostgres, Postgres: store.PostgresConf{DSN: "postgres://secret@db/x"}},
		Journal:  config.JournalConf{Dir: "data/journal", Format: "msgpack"},
		LLM: confkit.Section[llmpkg.Config]{
			File:  "/etc/dailysignal/llm.yaml",
			Value: &llmpkg.Config{APIKey: "sk-secret"},
		},
	}
	lines := ConfigSummaryLines(cfg)
	joined := strings.Join(lines, "\n")

	assert.Contains(t, joined, "Instrument: NVDA (NVIDIA)")
	assert.Contains(t, joined, "Timezone: UTC")
	assert.Contains(t, joined, "Weights (company/macro): 0.60 / 0.40")
	assert.Contains(t, joined, "Store: postgres (dsn configured)")
	assert.Contains(t, joined, "Redis: not configured")
	assert.Contains(t, joined, "Journal: data/journal (msgpack)")
	assert.Contains(t, joined, "LLM config: /etc/dailysignal/llm.yaml")
	assert.Contains(t, joined, "Calendar config: not configured")
	assert.Contains(t, joined, "LLM API key: configured")
	assert.NotContains(t, joined, "secret")

	cfg.Calendar = confkit.Section[calendar.Config]{Value: &calendar.Config{
		Timezone:        "America/New_York",
		MaxLookbackDays: 14,
		Dates:           []model.Date{model.MustParseDate("2026-01-19"), model.MustParseDate("2026-02-16")},
	}}
	joined = strings.Join(ConfigSummaryLines(cfg), "\n")
	assert.Contains(t, joined, "Calendar config: inline")
	assert.Contains(t, joined, "Calendar: tz=America/New_York holidays=2 lookback=14d")
}

func TestReportLines(t *testing.T) {
	require.Equal(t, []string{"Run: <nil>"}, ReportLines(nil))

	start := time.Date(2026, 1, 18, 18, 0, 0, 0, time.UTC)
	rep := &workflow.RunReport{
		Symbol:     "NVDA",
		Target:     model.MustParseDate("2026-01-18"),
		Effective:  model.MustParseDate("2026-01-16"),
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Steps: []workflow.StepResult{
			{Name: workflow.StepResolve, Status: workflow.StatusOK, Detail: "not a trading day"},
			{Name: workflow.StepMarket, Status: workflow.StatusSkipped, Detail: "no session"},
			{Name: workflow.StepNews, Status: workflow.StatusFailed, Detail: "company=0 macro=0", Error: "serper: timeout"},
		},
		Articles:   workflow.ArticleCounts{Company: 2, Macro: 1},
		Sentiment:  model.Sentiment{Company: model.Float(50), Macro: model.Float(-20), Combined: model.Float(22)},
		Prediction: &workflow.PredictionSummary{Outcome: predict.OutcomeInsufficientData, TrainingRows: 4},
		Evaluation: predict.Evaluation{Total: 3, Correct: 2, Accuracy: 66.67},
	}
	lines := ReportLines(rep)

	require.Equal(t, "Run NVDA for 2026-01-18: failed in 1.5s", lines[0])
	require.Equal(t, "Trading day: false, effective 2026-01-16", lines[1])
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "NEWS      failed   company=0 macro=0 | error: serper: timeout")
	assert.Contains(t, joined, "Sentiment: combined=22.00 company=50.00 macro=-20.00")
	assert.Contains(t, joined, "Prediction: INSUFFICIENT_DATA (4 training rows)")
	assert.Contains(t, joined, "Accuracy: 66.67% (2/3)")
	assert.NotContains(t, joined, "Market date")
}
