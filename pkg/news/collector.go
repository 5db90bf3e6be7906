package news

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/internal/model"
)

const (
	defaultMaxArticles  = 3
	defaultCompanyQuery = `NVIDIA OR NVDA OR "Jensen Huang" stock news {date}`
	defaultMacroQuery   = `(site:bloomberg.com OR site:reuters.com OR site:cnbc.com OR site:wsj.com OR site:marketwatch.com OR site:barrons.com) stock market NASDAQ {date}`
)

// Collector turns search hits into a short, ranked list of articles.
type Collector struct {
	searcher    Searcher
	sources     Sources
	queries     map[model.ArticleType]string
	maxArticles int
	num         int
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithSources replaces the trust and keyword lists.
func WithSources(s Sources) CollectorOption {
	return func(c *Collector) { c.sources = s.withDefaults() }
}

// WithQuery sets the query template for kind. "{date}" is replaced with the
// target date.
func WithQuery(kind model.ArticleType, tmpl string) CollectorOption {
	return func(c *Collector) {
		if tmpl = strings.TrimSpace(tmpl); tmpl != "" {
			c.queries[kind] = tmpl
		}
	}
}

// WithMaxArticles caps the articles kept per type.
func WithMaxArticles(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.maxArticles = n
		}
	}
}

// WithResultsPerQuery sets how many hits are requested before filtering.
func WithResultsPerQuery(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.num = n
		}
	}
}

// NewCollector builds a collector over searcher.
func NewCollector(searcher Searcher, opts ...CollectorOption) *Collector {
	c := &Collector{
		searcher: searcher,
		sources:  DefaultSources(),
		queries: map[model.ArticleType]string{
			model.ArticleCompany: defaultCompanyQuery,
			model.ArticleMacro:   defaultMacroQuery,
		},
		maxArticles: defaultMaxArticles,
		num:         defaultNum,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryFor renders the search text for kind on date.
func (c *Collector) QueryFor(kind model.ArticleType, date model.Date) string {
	return strings.ReplaceAll(c.queries[kind], "{date}", date.String())
}

// Collect searches kind news for date and returns at most maxArticles
// articles from trusted, relevant sources, best tier first. Every article is
// dated date, the day the search was run for.
func (c *Collector) Collect(ctx context.Context, kind model.ArticleType, date model.Date) ([]model.Article, error) {
	if _, ok := c.queries[kind]; !ok {
		return nil, fmt.Errorf("news: unknown article type %q", kind)
	}
	hits, err := c.searcher.Search(ctx, Query{Text: c.QueryFor(kind, date), Num: c.num, Date: date})
	if err != nil {
		return nil, fmt.Errorf("news: search %s news for %s: %w", kind, date, err)
	}

	logger := logx.WithContext(ctx)
	articles := make([]model.Article, 0, len(hits))
	for _, hit := range hits {
		title, source, link := strings.TrimSpace(hit.Title), strings.TrimSpace(hit.Source), strings.TrimSpace(hit.Link)
		if title == "" || source == "" || link == "" {
			continue
		}
		if c.sources.IsExcluded(source) {
			logger.Debugf("news: excluded source %s", source)
			continue
		}
		tier := c.sources.Tier(kind, source)
		if tier == 0 {
			logger.Debugf("news: untrusted %s source %s", kind, source)
			continue
		}
		if !c.sources.Relevant(kind, title, hit.Snippet) {
			continue
		}
		articles = append(articles, model.Article{
			Date:       date,
			URL:        link,
			Source:     source,
			Title:      title,
			Summary:    strings.TrimSpace(hit.Snippet),
			Type:       kind,
			SourceTier: tier,
		})
	}

	sort.SliceStable(articles, func(i, j int) bool { return articles[i].SourceTier < articles[j].SourceTier })
	if len(articles) > c.maxArticles {
		articles = articles[:c.maxArticles]
	}
	logger.Infof("news: %s %s kept %d of %d hits", kind, date, len(articles), len(hits))
	return articles, nil
}
