// Package calendar decides which dates are trading days and maps non-trading
// dates onto the trading day their data belongs to.
package calendar

import (
	"time"

	"dailysignal/internal/model"
	"dailysignal/pkg/faults"
)

// DefaultMaxLookbackDays bounds the backward and forward walks.
const DefaultMaxLookbackDays = 14

// Calendar reports whether the market holds a regular session on a date.
type Calendar interface {
	IsTradingDay(d model.Date) bool
}

// WeekdayCalendar treats Saturdays, Sundays and the listed holidays as closed.
type WeekdayCalendar struct {
	holidays map[model.Date]struct{}
}

// NewWeekdayCalendar builds a calendar from explicit holiday dates.
func NewWeekdayCalendar(holidays ...model.Date) *WeekdayCalendar {
	set := make(map[model.Date]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}
	return &WeekdayCalendar{holidays: set}
}

// IsTradingDay implements Calendar.
func (c *WeekdayCalendar) IsTradingDay(d model.Date) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := c.holidays[d]
	return !closed
}

// Resolver walks a Calendar. It holds no clock and is safe for concurrent use.
type Resolver struct {
	cal      Calendar
	lookback int
}

// NewResolver returns a Resolver bounded by maxLookback days (DefaultMaxLookbackDays when <= 0).
func NewResolver(cal Calendar, maxLookback int) *Resolver {
	if maxLookback <= 0 {
		maxLookback = DefaultMaxLookbackDays
	}
	return &Resolver{cal: cal, lookback: maxLookback}
}

// Resolve returns whether target is a trading day and the trading day its data
// is attributed to: target itself, or the closest trading day strictly before it.
func (r *Resolver) Resolve(target model.Date) (bool, model.Date, error) {
	if target.IsZero() {
		return false, model.Date{}, faults.Wrap(faults.KindConfiguration, "calendar: empty target date")
	}
	if r.cal.IsTradingDay(target) {
		return true, target, nil
	}
	for i := 1; i <= r.lookback; i++ {
		d := target.AddDays(-i)
		if r.cal.IsTradingDay(d) {
			return false, d, nil
		}
	}
	return false, model.Date{}, faults.Wrap(faults.KindConfiguration,
		"calendar: no trading day within %d days before %s", r.lookback, target)
}

// NextTradingDay returns the first trading day strictly after d.
func (r *Resolver) NextTradingDay(d model.Date) (model.Date, error) {
	for i := 1; i <= r.lookback; i++ {
		next := d.AddDays(i)
		if r.cal.IsTradingDay(next) {
			return next, nil
		}
	}
	return model.Date{}, faults.Wrap(faults.KindConfiguration,
		"calendar: no trading day within %d days after %s", r.lookback, d)
}

// Today returns the civil date of now in loc. Only the CLI should call this.
func Today(now time.Time, loc *time.Location) model.Date {
	if loc == nil {
		loc = time.UTC
	}
	return model.DateOf(now.In(loc))
}
