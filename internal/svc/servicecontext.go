package svc

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"dailysignal/internal/config"
	"dailysignal/internal/lock"
	"dailysignal/internal/metrics"
	"dailysignal/internal/store"
	"dailysignal/internal/workflow"
	"dailysignal/pkg/calendar"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/journal"
	llmpkg "dailysignal/pkg/llm"
	marketpkg "dailysignal/pkg/market"
	"dailysignal/pkg/predict"
	"dailysignal/pkg/prompt"
	"dailysignal/pkg/sentiment"
)

// ServiceContext owns every long-lived dependency of a pipeline run.
type ServiceContext struct {
	Config *config.Config
	DryRun bool

	Store    *store.Bundle
	Redis    *redis.Redis
	Resolver *calendar.Resolver
	Market   marketpkg.Provider
	News     workflow.NewsSource
	LLM      llmpkg.LLMClient
	Scorer   *sentiment.LLMScorer
	Gate     *predict.Gate
	Journal  *journal.Writer
	Metrics  *metrics.Recorder
	Locker   lock.Locker
}

// Option overrides a dependency, mostly for tests.
type Option func(*ServiceContext)

// WithDryRun routes every store write to an in-memory overlay and disables the run lock.
func WithDryRun(dry bool) Option {
	return func(s *ServiceContext) { s.DryRun = dry }
}

// WithStore uses bundle instead of opening the configured backend.
func WithStore(bundle *store.Bundle) Option {
	return func(s *ServiceContext) { s.Store = bundle }
}

// WithMarket uses p instead of the configured default provider.
func WithMarket(p marketpkg.Provider) Option {
	return func(s *ServiceContext) { s.Market = p }
}

// WithNews uses src instead of the configured collector.
func WithNews(src workflow.NewsSource) Option {
	return func(s *ServiceContext) { s.News = src }
}

// WithLLM uses client instead of building one from the llm section.
func WithLLM(client llmpkg.LLMClient) Option {
	return func(s *ServiceContext) { s.LLM = client }
}

// NewServiceContext wires c into ready dependencies. Missing sections and
// credentials are configuration errors.
func NewServiceContext(ctx context.Context, c *config.Config, opts ...Option) (*ServiceContext, error) {
	if c == nil {
		return nil, faults.Wrap(faults.KindConfiguration, "svc: config is nil")
	}
	svc := &ServiceContext{Config: c}
	for _, opt := range opts {
		opt(svc)
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"store", svc.initStore},
		{"calendar", svc.initCalendar},
		{"market", svc.initMarket},
		{"news", svc.initNews},
		{"llm", svc.initScorer},
		{"journal", svc.initJournal},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("svc: init %s: %w", step.name, err)
		}
	}

	svc.Gate = predict.NewGate(c.Pipeline.MinHistory)
	svc.Metrics = metrics.New(c.Symbol, c.Metrics)
	if svc.DryRun {
		svc.Locker = lock.Nop{}
	} else {
		svc.Locker = lock.New(c.Lock, svc.Redis, c.TTLSet())
	}
	return svc, nil
}

func (s *ServiceContext) initStore(ctx context.Context) error {
	c := s.Config
	if s.Store == nil {
		bundle, err := store.Open(ctx, c.Store)
		if err != nil {
			return err
		}
		s.Store = bundle
	}
	if c.RedisEnabled() {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return faults.Mark(faults.KindConfiguration, err)
		}
		s.Redis = rds
		s.Store.Snapshots = store.NewCachedSnapshots(s.Store.Snapshots, rds, c.Symbol, c.TTLSet())
	}
	if s.DryRun {
		s.Store = store.DryRun(s.Store)
	}
	return nil
}

func (s *ServiceContext) initCalendar(context.Context) error {
	cal := s.Config.Calendar.Value
	if cal == nil {
		return faults.Wrap(faults.KindConfiguration, "calendar section is required")
	}
	s.Resolver = cal.Resolver()
	return nil
}

func (s *ServiceContext) initMarket(context.Context) error {
	if s.Market != nil {
		return nil
	}
	cfg := s.Config.Market.Value
	if cfg == nil {
		return faults.Wrap(faults.KindConfiguration, "market section is required")
	}
	p, err := cfg.BuildDefault()
	if err != nil {
		return faults.Mark(faults.KindConfiguration, err)
	}
	s.Market = p
	return nil
}

func (s *ServiceContext) initNews(context.Context) error {
	if s.News != nil {
		return nil
	}
	cfg := s.Config.News.Value
	if cfg == nil {
		return faults.Wrap(faults.KindConfiguration, "news section is required")
	}
	if n := s.Config.Pipeline.MaxArticles; n > 0 {
		cfg.MaxArticles = n
	}
	collector, err := cfg.Build()
	if err != nil {
		return err
	}
	s.News = collector
	return nil
}

func (s *ServiceContext) initScorer(context.Context) error {
	c := s.Config
	if s.LLM == nil {
		cfg := c.LLM.Value
		if cfg == nil {
			return faults.Wrap(faults.KindConfiguration, "llm section is required")
		}
		client, err := llmpkg.NewClient(cfg)
		if err != nil {
			return err
		}
		s.LLM = client
	}

	catalog, err := prompt.Default()
	if err != nil {
		return err
	}
	if dir := c.Pipeline.PromptDir; dir != "" {
		loaded, err := prompt.LoadDir(dir)
		if err != nil {
			return faults.Mark(faults.KindConfiguration, err)
		}
		catalog = loaded
	}

	opts := []sentiment.ScorerOption{sentiment.WithInstrument(c.Symbol, c.Company)}
	if c.Pipeline.ScoringModel != "" {
		opts = append(opts, sentiment.WithModel(c.Pipeline.ScoringModel))
	}
	// Test environment: deterministic scoring.
	if c.IsTestEnv() {
		opts = append(opts, sentiment.WithTemperature(0))
	}
	scorer, err := sentiment.NewLLMScorer(s.LLM, catalog, opts...)
	if err != nil {
		return err
	}
	s.Scorer = scorer
	return nil
}

func (s *ServiceContext) initJournal(context.Context) error {
	jc := s.Config.Journal
	if jc.Disabled {
		return nil
	}
	format, err := journal.ParseFormat(jc.Format)
	if err != nil {
		return faults.Mark(faults.KindConfiguration, err)
	}
	w, err := journal.NewWriter(jc.Dir, format)
	if err != nil {
		return err
	}
	s.Journal = w
	return nil
}

// Workflow builds an orchestrator over the context's dependencies.
func (s *ServiceContext) Workflow() (*workflow.Orchestrator, error) {
	c := s.Config
	deps := workflow.Deps{
		Resolver:  s.Resolver,
		Market:    s.Market,
		News:      s.News,
		Scorer:    s.Scorer,
		Gate:      s.Gate,
		Snapshots: s.Store.Snapshots,
		Articles:  s.Store.Articles,
		Metrics:   s.Metrics,
		Locker:    s.Locker,
	}
	if s.Journal != nil {
		deps.Journal = s.Journal
	}
	return workflow.New(deps, workflow.Options{
		Symbol:         c.Symbol,
		Weights:        c.Weights(),
		HistoryWindow:  c.Pipeline.HistoryWindow,
		MarketLookback: c.Pipeline.MarketLookback,
		Indicators:     marketpkg.DefaultIndicators(),
		DryRun:         s.DryRun,
		PromptDigest:   s.Scorer.PromptDigest(),
	})
}

// Close releases the LLM client and the store.
func (s *ServiceContext) Close() error {
	var errs []error
	if s.LLM != nil {
		errs = append(errs, s.LLM.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		logx.Errorf("svc: close: %v", err)
	}
	return err
}
