package gate

import (
	"regexp"
	"strings"
)

// ContentFilter decides whether the text of a submission looks like spam.
type ContentFilter interface {
	IsSuspicious(text string) bool
}

// ContentFilterFunc adapts a plain function to ContentFilter.
type ContentFilterFunc func(text string) bool

func (f ContentFilterFunc) IsSuspicious(text string) bool { return f(text) }

var defaultSpamKeywords = []string{
	"viagra",
	"casino",
	"lottery",
	"winner",
	"congratulations",
	"click here",
	"free money",
}

// PatternFilter flags bare URLs, HTML-like tags and a keyword denylist.
// Matching is case-insensitive.
type PatternFilter struct {
	patterns []*regexp.Regexp
}

func NewPatternFilter(keywords ...string) *PatternFilter {
	if len(keywords) == 0 {
		keywords = defaultSpamKeywords
	}
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(k)))
	}
	return &PatternFilter{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://\S+`),
			regexp.MustCompile(`<[^>]*>`),
			regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`),
		},
	}
}

func (f *PatternFilter) IsSuspicious(text string) bool {
	text = strings.ToLower(text)
	for _, p := range f.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
