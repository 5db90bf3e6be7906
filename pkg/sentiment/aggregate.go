// Package sentiment turns scored articles into the daily company, macro and
// combined sentiment written onto a trading snapshot.
package sentiment

import (
	"math"

	"dailysignal/internal/model"
	"dailysignal/pkg/calendar"
	"dailysignal/pkg/faults"
)

// Weights split the combined score between company and macro news.
type Weights struct {
	Company float64
	Macro   float64
}

// DefaultWeights is the 60/40 company/macro split.
func DefaultWeights() Weights { return Weights{Company: 0.6, Macro: 0.4} }

const weightTolerance = 1e-9

// Validate requires non-negative weights summing to one.
func (w Weights) Validate() error {
	if w.Company < 0 || w.Macro < 0 {
		return faults.Wrap(faults.KindConfiguration, "sentiment: weights must be non-negative (company=%v macro=%v)", w.Company, w.Macro)
	}
	if math.Abs(w.Company+w.Macro-1) > weightTolerance {
		return faults.Wrap(faults.KindConfiguration, "sentiment: weights must sum to 1 (company=%v macro=%v)", w.Company, w.Macro)
	}
	return nil
}

// Breakdown reports how many scored articles fed each component.
type Breakdown struct {
	Company int `json:"company"`
	Macro   int `json:"macro"`
}

// Total is the number of scored articles aggregated.
func (b Breakdown) Total() int { return b.Company + b.Macro }

// Aggregate averages the scored articles per type and merges the two means.
// Unscored articles are ignored. A type without scored articles is absent
// rather than neutral, and the combined value is renormalised to the types
// present.
func Aggregate(articles []model.Article, w Weights) (model.Sentiment, Breakdown) {
	var (
		sums  = map[model.ArticleType]float64{}
		count Breakdown
	)
	for _, a := range articles {
		if !a.Scored() {
			continue
		}
		switch a.Type {
		case model.ArticleCompany:
			count.Company++
		case model.ArticleMacro:
			count.Macro++
		default:
			continue
		}
		sums[a.Type] += float64(*a.SentimentScore)
	}

	var out model.Sentiment
	if count.Company > 0 {
		out.Company = model.Float(model.Round2(sums[model.ArticleCompany] / float64(count.Company)))
	}
	if count.Macro > 0 {
		out.Macro = model.Float(model.Round2(sums[model.ArticleMacro] / float64(count.Macro)))
	}
	// Combined is derived from the stored, rounded components.
	switch {
	case out.Company != nil && out.Macro != nil:
		out.Combined = model.Float(Combine(*out.Company, *out.Macro, w))
	case out.Company != nil:
		out.Combined = model.Float(*out.Company)
	case out.Macro != nil:
		out.Combined = model.Float(*out.Macro)
	}
	return out, count
}

// Combine weights a company and macro score, rounded to two decimals.
func Combine(company, macro float64, w Weights) float64 {
	total := w.Company + w.Macro
	if total <= 0 {
		return model.Round2((company + macro) / 2)
	}
	return model.Round2((w.Company*company + w.Macro*macro) / total)
}

// Span is an inclusive date range.
type Span struct {
	From model.Date
	To   model.Date
}

// Window returns the articles attributed to effective as of target: every
// date from effective up to the day before the next trading day, cut at
// target so a run never reads ahead of itself.
func Window(r *calendar.Resolver, effective, target model.Date) (Span, error) {
	next, err := r.NextTradingDay(effective)
	if err != nil {
		return Span{}, err
	}
	to := next.AddDays(-1)
	if target.Before(to) {
		to = target
	}
	if to.Before(effective) {
		to = effective
	}
	return Span{From: effective, To: to}, nil
}
