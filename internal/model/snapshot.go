package model

import (
	"math"
	"time"
)

// Movement is a realized or predicted next-day direction.
type Movement string

const (
	MovementUp   Movement = "UP"
	MovementDown Movement = "DOWN"
)

// MovementOf returns UP when next closes strictly above close.
func MovementOf(close, next float64) Movement {
	if next > close {
		return MovementUp
	}
	return MovementDown
}

// Snapshot is the per-trading-day record: OHLCV, indicators fixed at ingestion,
// sentiment that stays mutable until the next trading day lands, and prediction fields.
type Snapshot struct {
	Date   Date   `json:"date"`
	Symbol string `json:"symbol"`

	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`

	RSI         *float64 `json:"rsi,omitempty"`
	MACD        *float64 `json:"macd,omitempty"`
	MACDSignal  *float64 `json:"macd_signal,omitempty"`
	MA50        *float64 `json:"ma50,omitempty"`
	MA200       *float64 `json:"ma200,omitempty"`
	ChangePct   *float64 `json:"change_pct,omitempty"`
	VolumeRatio *float64 `json:"volume_ratio,omitempty"`

	CompanySentiment  *float64 `json:"company_sentiment,omitempty"`
	MacroSentiment    *float64 `json:"macro_sentiment,omitempty"`
	CombinedSentiment *float64 `json:"combined_sentiment,omitempty"`

	NextDayClose     *float64 `json:"next_day_close,omitempty"`
	NextDayChangePct *float64 `json:"next_day_change_pct,omitempty"`
	ActualMovement   Movement `json:"actual_movement,omitempty"`

	Prediction           Movement `json:"prediction,omitempty"`
	PredictionConfidence *float64 `json:"prediction_confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sentiment holds the three daily sentiment values; nil means absent.
type Sentiment struct {
	Company  *float64 `json:"company,omitempty"`
	Macro    *float64 `json:"macro,omitempty"`
	Combined *float64 `json:"combined,omitempty"`
}

// Empty reports whether no sentiment component is present.
func (s Sentiment) Empty() bool {
	return s.Company == nil && s.Macro == nil && s.Combined == nil
}

// Sentiment returns the snapshot's sentiment fields.
func (s *Snapshot) Sentiment() Sentiment {
	return Sentiment{Company: s.CompanySentiment, Macro: s.MacroSentiment, Combined: s.CombinedSentiment}
}

// MarketEqual compares the write-once market and indicator fields. It is the
// equality used to decide whether a duplicate insert is a no-op or a violation.
func (s *Snapshot) MarketEqual(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Date.Equal(o.Date) &&
		s.Symbol == o.Symbol &&
		floatEq(s.Open, o.Open) &&
		floatEq(s.High, o.High) &&
		floatEq(s.Low, o.Low) &&
		floatEq(s.Close, o.Close) &&
		s.Volume == o.Volume &&
		ptrEq(s.RSI, o.RSI) &&
		ptrEq(s.MACD, o.MACD) &&
		ptrEq(s.MACDSignal, o.MACDSignal) &&
		ptrEq(s.MA50, o.MA50) &&
		ptrEq(s.MA200, o.MA200) &&
		ptrEq(s.ChangePct, o.ChangePct) &&
		ptrEq(s.VolumeRatio, o.VolumeRatio)
}

// HasNextDay reports whether the next trading day's close is already known.
func (s *Snapshot) HasNextDay() bool { return s.NextDayClose != nil }

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.RSI = clonePtr(s.RSI)
	cp.MACD = clonePtr(s.MACD)
	cp.MACDSignal = clonePtr(s.MACDSignal)
	cp.MA50 = clonePtr(s.MA50)
	cp.MA200 = clonePtr(s.MA200)
	cp.ChangePct = clonePtr(s.ChangePct)
	cp.VolumeRatio = clonePtr(s.VolumeRatio)
	cp.CompanySentiment = clonePtr(s.CompanySentiment)
	cp.MacroSentiment = clonePtr(s.MacroSentiment)
	cp.CombinedSentiment = clonePtr(s.CombinedSentiment)
	cp.NextDayClose = clonePtr(s.NextDayClose)
	cp.NextDayChangePct = clonePtr(s.NextDayChangePct)
	cp.PredictionConfidence = clonePtr(s.PredictionConfidence)
	return &cp
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

const floatTolerance = 1e-9

// FloatEqual compares with a relative tolerance that absorbs storage round-trips.
func FloatEqual(a, b float64) bool { return floatEq(a, b) }

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func ptrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return floatEq(*a, *b)
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
