// Package metrics records pipeline outcomes on a private Prometheus registry
// and optionally pushes them to a Pushgateway at the end of a run.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "dailysignal"

// Config controls the optional Pushgateway export.
type Config struct {
	PushGateway string `json:",optional"`
	Job         string `json:",default=dailysignal"`
}

// Recorder holds the run metrics for one process.
type Recorder struct {
	registry *prometheus.Registry
	symbol   string
	cfg      Config

	steps     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	articles  *prometheus.CounterVec
	lastClose *prometheus.GaugeVec
	sentiment *prometheus.GaugeVec
	runs      *prometheus.CounterVec
}

// New creates a recorder bound to a fresh registry.
func New(symbol string, cfg Config) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	if cfg.Job == "" {
		cfg.Job = namespace
	}
	return &Recorder{
		registry: reg,
		symbol:   symbol,
		cfg:      cfg,
		steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_total",
				Help:      "Pipeline steps by final status",
			},
			[]string{"step", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of pipeline steps in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		articles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_total",
				Help:      "Articles stored by type",
			},
			[]string{"symbol", "type"},
		),
		lastClose: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_close",
				Help:      "Close of the most recent ingested snapshot",
			},
			[]string{"symbol"},
		),
		sentiment: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sentiment",
				Help:      "Latest aggregated sentiment by component",
			},
			[]string{"symbol", "component"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by result",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordStep records one step's status and duration.
func (r *Recorder) RecordStep(step, status string, d time.Duration) {
	step = strings.ToLower(step)
	r.steps.WithLabelValues(step, status).Inc()
	r.duration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordArticles adds n stored articles of the given type.
func (r *Recorder) RecordArticles(kind string, n int) {
	if n <= 0 {
		return
	}
	r.articles.WithLabelValues(r.symbol, kind).Add(float64(n))
}

// RecordClose records the latest snapshot close.
func (r *Recorder) RecordClose(price float64) {
	r.lastClose.WithLabelValues(r.symbol).Set(price)
}

// RecordSentiment sets the gauge for one sentiment component.
func (r *Recorder) RecordSentiment(component string, value float64) {
	r.sentiment.WithLabelValues(r.symbol, component).Set(value)
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(succeeded bool) {
	result := "success"
	if !succeeded {
		result = "failure"
	}
	r.runs.WithLabelValues(result).Inc()
}

// Push sends the registry to the configured Pushgateway. Without one it is a
// no-op.
func (r *Recorder) Push(ctx context.Context) error {
	if strings.TrimSpace(r.cfg.PushGateway) == "" {
		return nil
	}
	err := push.New(r.cfg.PushGateway, r.cfg.Job).
		Gatherer(r.registry).
		Grouping("symbol", r.symbol).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", r.cfg.PushGateway, err)
	}
	return nil
}
