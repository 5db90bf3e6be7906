package calendar

import (
	"fmt"
	"io"
	"time"

	"dailysignal/internal/model"
	"dailysignal/pkg/confkit"
	"dailysignal/pkg/faults"
)

// Config is the on-disk calendar description (etc/calendar.yaml).
type Config struct {
	Timezone        string   `yaml:"timezone"`
	MaxLookbackDays int      `yaml:"max_lookback_days"`
	Holidays        []string `yaml:"holidays"`

	Location *time.Location `yaml:"-"`
	Dates    []model.Date   `yaml:"-"`
}

const defaultTimezone = "America/New_York"

// LoadConfig reads and validates a calendar file.
func LoadConfig(path string) (*Config, error) {
	cfg, err := confkit.ReadYAML[Config](path, "calendar")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.normalise()
}

// LoadConfigFromReader is LoadConfig for an already opened document.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg, err := confkit.DecodeYAML[Config](r, "calendar")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.normalise()
}

func (c *Config) normalise() error {
	c.Timezone = confkit.Expand(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.MaxLookbackDays == 0 {
		c.MaxLookbackDays = DefaultMaxLookbackDays
	}
	return c.Validate()
}

// Validate loads the timezone and parses every holiday.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return faults.Wrap(faults.KindConfiguration, "calendar: load timezone %q: %v", c.Timezone, err)
	}
	if c.MaxLookbackDays < 1 {
		return faults.Wrap(faults.KindConfiguration, "calendar: max_lookback_days must be positive, got %d", c.MaxLookbackDays)
	}
	dates := make([]model.Date, 0, len(c.Holidays))
	for i, raw := range c.Holidays {
		d, err := model.ParseDate(raw)
		if err != nil {
			return faults.Wrap(faults.KindConfiguration, "calendar: holidays[%d]: %v", i, err)
		}
		dates = append(dates, d)
	}
	c.Location, c.Dates = loc, dates
	return nil
}

// Resolver builds a WeekdayCalendar resolver from the configuration.
func (c *Config) Resolver() *Resolver {
	return NewResolver(NewWeekdayCalendar(c.Dates...), c.MaxLookbackDays)
}

// String summarises the configuration for the CLI.
func (c *Config) String() string {
	return fmt.Sprintf("tz=%s holidays=%d lookback=%dd", c.Timezone, len(c.Dates), c.MaxLookbackDays)
}
