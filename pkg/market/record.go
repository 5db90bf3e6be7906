package market

import (
	"strings"

	"dailysignal/internal/model"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/market/indicators"
)

// IndicatorConfig sets the indicator windows.
type IndicatorConfig struct {
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	MAShort      int
	MALong       int
	VolumeWindow int
}

// DefaultIndicators returns RSI(14), MACD(12,26,9), MA(50), MA(200) and a 20-day volume window.
func DefaultIndicators() IndicatorConfig {
	return IndicatorConfig{
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		MAShort:      50,
		MALong:       200,
		VolumeWindow: 20,
	}
}

// Record is the latest bar of a series plus indicators computed over the whole series.
type Record struct {
	Bar
	Symbol      string
	RSI         *float64
	MACD        *float64
	MACDSignal  *float64
	MA50        *float64
	MA200       *float64
	ChangePct   *float64
	VolumeRatio *float64
	// Missing names indicators whose window the series could not fill.
	Missing []string
}

// BuildRecord computes the snapshot record for the latest bar. When some
// indicator windows are too short the record is still returned, together
// with an ErrDataIncomplete error naming the missing fields.
func BuildRecord(series *Series, cfg IndicatorConfig) (*Record, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	latest, _ := series.Latest()
	rec := &Record{Bar: latest, Symbol: series.Symbol}

	closes := series.Closes()
	set := func(name string, dst **float64, v float64, ok bool) {
		if !ok {
			rec.Missing = append(rec.Missing, name)
			return
		}
		*dst = model.Float(v)
	}

	v, ok := indicators.Last(indicators.RSI(closes, cfg.RSIPeriod))
	set("rsi", &rec.RSI, v, ok)

	macd, signal, _ := indicators.MACDWith(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	v, ok = indicators.Last(macd)
	set("macd", &rec.MACD, v, ok)
	v, ok = indicators.Last(signal)
	set("macd_signal", &rec.MACDSignal, v, ok)

	v, ok = indicators.Last(indicators.SMA(closes, cfg.MAShort))
	set("ma50", &rec.MA50, v, ok)
	v, ok = indicators.Last(indicators.SMA(closes, cfg.MALong))
	set("ma200", &rec.MA200, v, ok)

	v, ok = indicators.PctChange(closes)
	set("change_pct", &rec.ChangePct, v, ok)
	v, ok = indicators.VolumeRatio(series.Volumes(), cfg.VolumeWindow)
	set("volume_ratio", &rec.VolumeRatio, v, ok)

	if len(rec.Missing) > 0 {
		return rec, faults.Wrap(faults.KindDataIncomplete,
			"market: %s on %s: %d bars too short for %s",
			rec.Symbol, rec.Date, series.Len(), strings.Join(rec.Missing, ","))
	}
	return rec, nil
}

// Snapshot converts the record into a new snapshot row.
func (r *Record) Snapshot() *model.Snapshot {
	return &model.Snapshot{
		Date:        r.Date,
		Symbol:      r.Symbol,
		Open:        r.Open,
		High:        r.High,
		Low:         r.Low,
		Close:       r.Close,
		Volume:      r.Volume,
		RSI:         r.RSI,
		MACD:        r.MACD,
		MACDSignal:  r.MACDSignal,
		MA50:        r.MA50,
		MA200:       r.MA200,
		ChangePct:   r.ChangePct,
		VolumeRatio: r.VolumeRatio,
	}
}
