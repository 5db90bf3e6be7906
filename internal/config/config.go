package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "dailysignal/internal/cache"
	"dailysignal/internal/lock"
	"dailysignal/internal/metrics"
	"dailysignal/internal/store"
	"dailysignal/pkg/calendar"
	"dailysignal/pkg/confkit"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/journal"
	llmpkg "dailysignal/pkg/llm"
	marketpkg "dailysignal/pkg/market"
	_ "dailysignal/pkg/market/yahoo" // register the yahoo provider type
	newspkg "dailysignal/pkg/news"
	"dailysignal/pkg/sentiment"
)

// PipelineConf holds the tunables of the daily run.
type PipelineConf struct {
	CompanyWeight float64 `json:",default=0.6"`
	MacroWeight   float64 `json:",default=0.4"`
	// MinHistory is the number of labelled, feature-complete days required
	// before a prediction is attempted.
	MinHistory     int    `json:",default=10"`
	HistoryWindow  int    `json:",default=250"`
	MarketLookback int    `json:",default=300"`
	MaxArticles    int    `json:",default=3"`
	ScoringModel   string `json:",optional"`
	// PromptDir may hold company.tmpl, macro.tmpl or article.tmpl overrides.
	PromptDir string `json:",optional"`
}

// JournalConf controls the per-run journal.
type JournalConf struct {
	Disabled bool   `json:",optional"`
	Dir      string `json:",default=data/journal"`
	Format   string `json:",default=json,options=json|msgpack"`
}

type Config struct {
	// Env indicates the running environment: test | dev | prod.
	Env      string `json:",default=dev"`
	Symbol   string `json:",default=NVDA"`
	Company  string `json:",default=NVIDIA"`
	Timezone string `json:",default=America/New_York"`

	Log      logx.LogConf      `json:",optional"`
	Pipeline PipelineConf      `json:",optional"`
	Store    store.Config      `json:",optional"`
	Redis    redis.RedisConf   `json:",optional"`
	TTL      cachekeys.TTLConf `json:",optional"`
	Lock     lock.Config       `json:",optional"`
	Journal  JournalConf       `json:",optional"`
	Metrics  metrics.Config    `json:",optional"`

	LLM      confkit.Section[llmpkg.Config]    `json:",optional"`
	Market   confkit.Section[marketpkg.Config] `json:",optional"`
	News     confkit.Section[newspkg.Config]   `json:",optional"`
	Calendar confkit.Section[calendar.Config]  `json:",optional"`

	mainPath string
	baseDir  string
	location *time.Location
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test"
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the main file, validates it and hydrates every section file.
// All errors are configuration errors.
func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, fmt.Errorf("config: resolve path %s: %w", path, err))
	}
	cfg, err := confkit.LoadFile[Config](absPath, true)
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, fmt.Errorf("config: %w", err))
	}
	cfg.mainPath = absPath
	cfg.baseDir = confkit.BaseDir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = "dev"
	}
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		c.Symbol = "NVDA"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	p := &c.Pipeline
	if p.CompanyWeight == 0 && p.MacroWeight == 0 {
		w := sentiment.DefaultWeights()
		p.CompanyWeight, p.MacroWeight = w.Company, w.Macro
	}
	if p.MinHistory == 0 {
		p.MinHistory = 10
	}
	if p.HistoryWindow == 0 {
		p.HistoryWindow = 250
	}
	if p.MarketLookback == 0 {
		p.MarketLookback = 300
	}
	if p.MaxArticles == 0 {
		p.MaxArticles = 3
	}
	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverSQLite
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join("data", "dailysignal.db")
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = filepath.Join("data", "journal")
	}
	if c.Lock.Dir == "" {
		c.Lock.Dir = filepath.Join("data", "locks")
	}
}

// Validate normalises defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	c.applyDefaults()
	switch c.Env {
	case "test", "dev", "prod":
	default:
		return faults.Wrap(faults.KindConfiguration, "config: env must be one of test|dev|prod, got %q", c.Env)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return faults.Wrap(faults.KindConfiguration, "config: timezone %q: %v", c.Timezone, err)
	}
	c.location = loc

	if err := c.Weights().Validate(); err != nil {
		return err
	}
	p := c.Pipeline
	if p.MinHistory < 1 {
		return faults.Wrap(faults.KindConfiguration, "config: pipeline.minHistory must be at least 1")
	}
	if p.HistoryWindow <= p.MinHistory {
		return faults.Wrap(faults.KindConfiguration, "config: pipeline.historyWindow (%d) must exceed minHistory (%d)", p.HistoryWindow, p.MinHistory)
	}
	if p.MarketLookback < 1 || p.MaxArticles < 1 {
		return faults.Wrap(faults.KindConfiguration, "config: pipeline.marketLookback and maxArticles must be positive")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if _, err := journal.ParseFormat(c.Journal.Format); err != nil {
		return faults.Mark(faults.KindConfiguration, fmt.Errorf("config: %w", err))
	}
	return c.validateTTL()
}

func (c *Config) validateTTL() error {
	for name, v := range map[string]int{"short": c.TTL.Short, "medium": c.TTL.Medium, "long": c.TTL.Long} {
		if v < 0 {
			return faults.Wrap(faults.KindConfiguration, "config: ttl.%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) hydrateSections() error {
	base := c.baseDir
	if err := c.LLM.Hydrate(base, llmpkg.LoadConfig); err != nil {
		return fmt.Errorf("load llm config: %w", err)
	}
	if err := c.Market.Hydrate(base, marketpkg.LoadConfig); err != nil {
		return fmt.Errorf("load market config: %w", err)
	}
	if err := c.News.Hydrate(base, newspkg.LoadConfig); err != nil {
		return fmt.Errorf("load news config: %w", err)
	}
	if err := c.Calendar.Hydrate(base, calendar.LoadConfig); err != nil {
		return fmt.Errorf("load calendar config: %w", err)
	}
	if c.Pipeline.PromptDir != "" {
		c.Pipeline.PromptDir = confkit.ResolvePath(base, c.Pipeline.PromptDir)
	}
	return nil
}

// Weights returns the configured sentiment split.
func (c *Config) Weights() sentiment.Weights {
	return sentiment.Weights{Company: c.Pipeline.CompanyWeight, Macro: c.Pipeline.MacroWeight}
}

// Location is the market timezone; valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// RedisEnabled reports whether a Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Host) != ""
}

// TTLSet converts the TTL buckets.
func (c *Config) TTLSet() cachekeys.TTLSet {
	return cachekeys.NewTTLSet(c.TTL)
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}
