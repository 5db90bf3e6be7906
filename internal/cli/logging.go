package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/internal/config"
	"dailysignal/internal/store"
	"dailysignal/internal/workflow"
	"dailysignal/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app
// config. Secrets are reported only as present or absent.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	w := cfg.Weights()
	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Instrument: %s (%s)", cfg.Symbol, cfg.Company),
		fmt.Sprintf("Timezone: %s", cfg.Location()),
		fmt.Sprintf("Weights (company/macro): %.2f / %.2f", w.Company, w.Macro),
		fmt.Sprintf("Prediction history (min/window): %d / %d", cfg.Pipeline.MinHistory, cfg.Pipeline.HistoryWindow),
		fmt.Sprintf("Store: %s", storeLine(cfg)),
		fmt.Sprintf("Redis: %s", presence(cfg.RedisEnabled())),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Journal: %s", journalLine(cfg)),
		fmt.Sprintf("Metrics push: %s", presence(strings.TrimSpace(cfg.Metrics.PushGateway) != "")),
		sectionLine("LLM config", cfg.LLM),
		sectionLine("Market config", cfg.Market),
		sectionLine("News config", cfg.News),
		sectionLine("Calendar config", cfg.Calendar),
	}
	if cfg.Calendar.Value != nil {
		lines = append(lines, fmt.Sprintf("Calendar: %s", cfg.Calendar.Value))
	}
	if cfg.LLM.Value != nil {
		lines = append(lines, fmt.Sprintf("LLM API key: %s", presence(strings.TrimSpace(cfg.LLM.Value.APIKey) != "")))
	}
	if cfg.News.Value != nil {
		lines = append(lines, fmt.Sprintf("Serper API key: %s", presence(strings.TrimSpace(cfg.News.Value.Serper.APIKey) != "")))
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

// ReportLines renders a run report for the terminal.
func ReportLines(rep *workflow.RunReport) []string {
	if rep == nil {
		return []string{"Run: <nil>"}
	}

	result := "succeeded"
	if !rep.Succeeded() {
		result = "failed"
	}
	mode := ""
	if rep.DryRun {
		mode = " (dry run)"
	}
	lines := []string{
		fmt.Sprintf("Run %s for %s%s: %s in %s", rep.Symbol, rep.Target, mode, result, rep.Duration().Round(time.Millisecond)),
		fmt.Sprintf("Trading day: %t, effective %s", rep.IsTradingDay, orDash(rep.Effective.String())),
	}
	if !rep.MarketDate.IsZero() {
		lines = append(lines, fmt.Sprintf("Market date: %s", rep.MarketDate))
	}
	for _, s := range rep.Steps {
		line := fmt.Sprintf("  %-9s %-8s %s", s.Name, s.Status, s.Detail)
		if s.Error != "" {
			line += " | error: " + s.Error
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}

	a := rep.Articles
	lines = append(lines, fmt.Sprintf("Articles: company=%d macro=%d duplicates=%d unscored=%d",
		a.Company, a.Macro, a.Duplicates, a.Unscored))
	sent := rep.Sentiment
	if !sent.Empty() {
		lines = append(lines, fmt.Sprintf("Sentiment: combined=%s company=%s macro=%s",
			floatOrDash(sent.Combined), floatOrDash(sent.Company), floatOrDash(sent.Macro)))
	}
	if p := rep.Prediction; p != nil {
		if p.Label != "" {
			lines = append(lines, fmt.Sprintf("Prediction: %s %s (confidence %.2f, %d training rows)",
				p.Outcome, p.Label, p.Confidence, p.TrainingRows))
		} else {
			lines = append(lines, fmt.Sprintf("Prediction: %s (%d training rows)", p.Outcome, p.TrainingRows))
		}
	}
	if ev := rep.Evaluation; ev.Total > 0 {
		lines = append(lines, fmt.Sprintf("Accuracy: %.2f%% (%d/%d)", ev.Accuracy, ev.Correct, ev.Total))
	}
	if rep.JournalPath != "" {
		lines = append(lines, fmt.Sprintf("Journal: %s", rep.JournalPath))
	}
	if rep.Error != "" {
		lines = append(lines, fmt.Sprintf("Aborted: %s", rep.Error))
	}
	return lines
}

func storeLine(cfg *config.Config) string {
	switch cfg.Store.Driver {
	case store.DriverSQLite:
		return fmt.Sprintf("sqlite (%s)", cfg.Store.SQLitePath)
	case store.DriverPostgres:
		return fmt.Sprintf("postgres (dsn %s)", presence(strings.TrimSpace(cfg.Store.Postgres.DSN) != ""))
	default:
		return cfg.Store.Driver
	}
}

func journalLine(cfg *config.Config) string {
	if cfg.Journal.Disabled {
		return "disabled"
	}
	return fmt.Sprintf("%s (%s)", cfg.Journal.Dir, cfg.Journal.Format)
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
