package model

import (
	"fmt"
	"strings"
	"time"
)

// ArticleType scopes a news item to the instrument itself or the wider market.
type ArticleType string

const (
	ArticleCompany ArticleType = "company"
	ArticleMacro   ArticleType = "macro"
)

// ArticleTypes lists every type in collection order.
var ArticleTypes = []ArticleType{ArticleCompany, ArticleMacro}

// ParseArticleType accepts "company" or "macro" in any case.
func ParseArticleType(s string) (ArticleType, error) {
	switch ArticleType(strings.ToLower(strings.TrimSpace(s))) {
	case ArticleCompany:
		return ArticleCompany, nil
	case ArticleMacro:
		return ArticleMacro, nil
	default:
		return "", fmt.Errorf("model: unknown article type %q", s)
	}
}

// Article is an append-only news record. Date is the day the news concerns,
// which may be a weekend or holiday; there is no link to a snapshot row.
type Article struct {
	ID             int64       `json:"id"`
	Date           Date        `json:"date"`
	URL            string      `json:"url"`
	Source         string      `json:"source"`
	Title          string      `json:"title"`
	Summary        string      `json:"summary"`
	SentimentScore *int        `json:"sentiment_score,omitempty"`
	Type           ArticleType `json:"article_type"`
	SourceTier     int         `json:"source_tier"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Scored reports whether a sentiment score is attached.
func (a Article) Scored() bool { return a.SentimentScore != nil }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
