package news

import (
	"strings"

	"dailysignal/internal/model"
)

// TierList ranks outlets from 1 (best) to 3.
type TierList struct {
	Tier1 []string `yaml:"tier1"`
	Tier2 []string `yaml:"tier2"`
	Tier3 []string `yaml:"tier3"`
}

// Tier returns 1..3 for a trusted source and 0 otherwise. Matching is a
// case-insensitive substring test, so "Reuters UK" counts as Reuters.
func (l TierList) Tier(source string) int {
	for i, tier := range [][]string{l.Tier1, l.Tier2, l.Tier3} {
		if containsAny(source, tier) {
			return i + 1
		}
	}
	return 0
}

func (l TierList) empty() bool {
	return len(l.Tier1)+len(l.Tier2)+len(l.Tier3) == 0
}

// Sources holds the trust and relevance lists per article type.
type Sources struct {
	Company         TierList `yaml:"company"`
	Macro           TierList `yaml:"macro"`
	Excluded        []string `yaml:"excluded"`
	CompanyKeywords []string `yaml:"company_keywords"`
	MacroKeywords   []string `yaml:"macro_keywords"`
}

// DefaultSources returns the built-in outlet and keyword lists.
func DefaultSources() Sources {
	return Sources{
		Company: TierList{
			Tier1: []string{"Bloomberg", "Reuters", "The Wall Street Journal", "CNBC", "Financial Times"},
			Tier2: []string{
				"Seeking Alpha", "Barron's", "Forbes", "Business Insider", "Motley Fool",
				"Investor's Business Daily", "TheStreet",
				"TechCrunch", "The Verge", "Ars Technica", "Tom's Hardware", "AnandTech", "Wired",
			},
			Tier3: []string{"Yahoo Finance", "MarketWatch", "CNET", "ZDNet", "VentureBeat", "Benzinga"},
		},
		Macro: TierList{
			Tier1: []string{"Bloomberg", "Reuters", "The Wall Street Journal", "Financial Times", "CNBC"},
			Tier2: []string{"MarketWatch", "Barron's", "Forbes", "Business Insider", "The Economist"},
			Tier3: []string{"BBC Business", "CNN Business", "Yahoo Finance", "Investing.com"},
		},
		Excluded: []string{"reddit", "twitter", "facebook", "stocktwits", "4chan", "youtube comments"},
		CompanyKeywords: []string{
			"NVIDIA", "NVDA", "Jensen Huang", "GeForce", "RTX", "CUDA", "AI chips", "GPU",
			"data center", "gaming graphics", "automotive", "Mellanox",
		},
		MacroKeywords: []string{
			"stock market", "nasdaq", "dow jones", "s&p 500", "wall street",
			"federal reserve", "fed", "interest rate", "inflation", "cpi",
			"gdp", "economy", "recession", "unemployment",
			"china", "trade war", "tariff", "geopolitical", "war",
			"tech sector", "semiconductor", "ai sector", "tech stocks",
		},
	}
}

// withDefaults fills every empty list from DefaultSources.
func (s Sources) withDefaults() Sources {
	def := DefaultSources()
	if s.Company.empty() {
		s.Company = def.Company
	}
	if s.Macro.empty() {
		s.Macro = def.Macro
	}
	if len(s.Excluded) == 0 {
		s.Excluded = def.Excluded
	}
	if len(s.CompanyKeywords) == 0 {
		s.CompanyKeywords = def.CompanyKeywords
	}
	if len(s.MacroKeywords) == 0 {
		s.MacroKeywords = def.MacroKeywords
	}
	return s
}

// Tier returns the source's tier for the given article type, 0 if untrusted.
func (s Sources) Tier(kind model.ArticleType, source string) int {
	if kind == model.ArticleMacro {
		return s.Macro.Tier(source)
	}
	return s.Company.Tier(source)
}

// IsExcluded reports whether source is on the block list.
func (s Sources) IsExcluded(source string) bool {
	return containsAny(source, s.Excluded)
}

// Relevant reports whether title or snippet mention a keyword for kind.
func (s Sources) Relevant(kind model.ArticleType, title, snippet string) bool {
	keywords := s.CompanyKeywords
	if kind == model.ArticleMacro {
		keywords = s.MacroKeywords
	}
	return containsAny(title+" "+snippet, keywords)
}

func containsAny(text string, needles []string) bool {
	text = strings.ToLower(text)
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
