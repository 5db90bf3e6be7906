// Package news searches for dated news items and filters them down to a few
// articles from trusted outlets.
package news

import (
	"context"

	"dailysignal/internal/model"
)

// Query is one search request.
type Query struct {
	Text string
	Num  int
	Date model.Date
}

// RawArticle is a search hit before filtering.
type RawArticle struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

// Searcher runs a news search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]RawArticle, error)
}
