// Package market defines the daily OHLCV series consumed by the pipeline and
// the snapshot record derived from it.
package market

import (
	"context"
	"fmt"

	"dailysignal/internal/model"
	"dailysignal/pkg/faults"
)

// Provider serves daily bars for a symbol.
type Provider interface {
	// Name identifies the provider in logs and reports.
	Name() string
	// DailyBars returns up to lookback most recent daily bars, oldest first.
	// The last bar is the most recent session the provider has published.
	DailyBars(ctx context.Context, symbol string, lookback int) (*Series, error)
}

// Bar is one regular-session OHLCV bar.
type Bar struct {
	Date   model.Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Series is an ascending run of bars.
type Series struct {
	Symbol   string
	Timezone string
	Bars     []Bar
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// LatestDate is the provider's most recent published trading date.
func (s *Series) LatestDate() model.Date {
	if s.Len() == 0 {
		return model.Date{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

// Latest returns the final bar.
func (s *Series) Latest() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns the close prices in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, 0, s.Len())
	for _, b := range s.Bars {
		out = append(out, b.Close)
	}
	return out
}

// Volumes returns volumes as floats in order.
func (s *Series) Volumes() []float64 {
	out := make([]float64, 0, s.Len())
	for _, b := range s.Bars {
		out = append(out, float64(b.Volume))
	}
	return out
}

// Tail returns the last n bars as a new series sharing the backing array.
func (s *Series) Tail(n int) *Series {
	if n >= s.Len() {
		return s
	}
	return &Series{Symbol: s.Symbol, Timezone: s.Timezone, Bars: s.Bars[s.Len()-n:]}
}

// Until returns the bars dated on or before d, sharing the backing array.
func (s *Series) Until(d model.Date) *Series {
	n := s.Len()
	for n > 0 && s.Bars[n-1].Date.After(d) {
		n--
	}
	if n == s.Len() {
		return s
	}
	return &Series{Symbol: s.Symbol, Timezone: s.Timezone, Bars: s.Bars[:n]}
}

// Validate checks the series is non-empty and strictly ascending by date.
func (s *Series) Validate() error {
	if s.Len() == 0 {
		return faults.Wrap(faults.KindDataIncomplete, "market: empty series")
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i-1].Date.Before(s.Bars[i].Date) {
			return fmt.Errorf("market: bars out of order at %s", s.Bars[i].Date)
		}
	}
	return nil
}
