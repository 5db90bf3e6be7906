package workflow

import (
	"time"

	"dailysignal/internal/model"
	"dailysignal/pkg/predict"
)

// Step names a stage of the daily run.
type Step string

const (
	StepResolve   Step = "RESOLVE"
	StepMarket    Step = "MARKET"
	StepNews      Step = "NEWS"
	StepSentiment Step = "SENTIMENT"
	StepPredict   Step = "PREDICT"
	StepReport    Step = "REPORT"
)

// Steps lists every step in execution order.
var Steps = []Step{StepResolve, StepMarket, StepNews, StepSentiment, StepPredict, StepReport}

// Status is the outcome of one step.
type Status string

const (
	StatusOK       Status = "ok"
	StatusSkipped  Status = "skipped"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

func (s Status) tag() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSkipped:
		return "SKIP"
	case StatusDegraded:
		return "DEGRADED"
	default:
		return "FAIL"
	}
}

// StepResult is one step entry on the report.
type StepResult struct {
	Name       Step   `json:"name"`
	Status     Status `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ArticleCounts tallies the NEWS step.
type ArticleCounts struct {
	Company    int `json:"company"`
	Macro      int `json:"macro"`
	Duplicates int `json:"duplicates"`
	Unscored   int `json:"unscored"`
}

func (c *ArticleCounts) add(kind model.ArticleType, n int) {
	switch kind {
	case model.ArticleCompany:
		c.Company += n
	case model.ArticleMacro:
		c.Macro += n
	}
}

// Stored returns the number of articles appended by the run.
func (c ArticleCounts) Stored() int { return c.Company + c.Macro }

// PredictionSummary is the PREDICT step outcome.
type PredictionSummary struct {
	Outcome      predict.Outcome    `json:"outcome"`
	Label        model.Movement     `json:"label,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"`
	TrainingRows int                `json:"training_rows"`
	Importances  map[string]float64 `json:"importances,omitempty"`
	Missing      []string           `json:"missing,omitempty"`
}

// RunReport describes one invocation. It is never stored alongside snapshots
// or articles; the journal may write it to disk.
type RunReport struct {
	Symbol       string             `json:"symbol"`
	Target       model.Date         `json:"target_date"`
	Effective    model.Date         `json:"effective_date"`
	IsTradingDay bool               `json:"is_trading_day"`
	MarketDate   model.Date         `json:"market_date"`
	DryRun       bool               `json:"dry_run"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Steps        []StepResult       `json:"steps"`
	Articles     ArticleCounts      `json:"articles"`
	Sentiment    model.Sentiment    `json:"sentiment"`
	Prediction   *PredictionSummary `json:"prediction,omitempty"`
	Evaluation   predict.Evaluation `json:"evaluation"`
	PromptDigest string             `json:"prompt_digest,omitempty"`
	JournalPath  string             `json:"journal_path,omitempty"`
	// Aborted is set when a configuration error stopped the run.
	Aborted bool   `json:"aborted"`
	Error   string `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without an abort or a failed step.
func (r *RunReport) Succeeded() bool {
	if r == nil || r.Aborted {
		return false
	}
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Step returns the entry for name.
func (r *RunReport) Step(name Step) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Duration is the wall time between start and finish.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
