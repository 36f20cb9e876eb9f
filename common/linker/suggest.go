package linker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinKeywordLength is the shortest keyword, in runes, that is ever suggested
	MinKeywordLength = 4

	DefaultSuggestLimit = 10
	DefaultPathPrefix   = "/recipes/"
)

var wordPattern = regexp.MustCompile(`\w+`)

// Suggester proposes links from content to catalog entries
type Suggester struct {
	// PathPrefix is prepended to the entry slug to build the link URL
	PathPrefix string
	// Limit caps the number of suggestions returned
	Limit int
}

// NewSuggester creates a suggester, falling back to defaults for zero values
func NewSuggester(pathPrefix string, limit int) *Suggester {
	if pathPrefix == "" {
		pathPrefix = DefaultPathPrefix
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return &Suggester{PathPrefix: pathPrefix, Limit: limit}
}

// SuggestLinks suggests links using the default path prefix and limit
func SuggestLinks(content string, catalog []CatalogEntry) []Suggestion {
	return NewSuggester("", 0).Suggest(content, catalog)
}

// Suggest matches the visible words of content against each entry's title
// words, ingredient words and tags. Markup and attribute values never match. Titles and ingredients match per word; a tag matches when the
// whole tag occurs anywhere in the content. Results keep catalog order, are
// unique by keyword (first wins) and are capped at Limit.
func (s *Suggester) Suggest(content string, catalog []CatalogEntry) []Suggestion {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	lowered := strings.ToLower(matchableText(content))
	tokens := make(map[string]struct{})
	for _, w := range words(lowered) {
		tokens[w] = struct{}{}
	}

	suggestions := make([]Suggestion, 0, limit)
	seen := make(map[string]struct{})

	add := func(keyword string, entry CatalogEntry) bool {
		if utf8.RuneCountInString(keyword) < MinKeywordLength {
			return false
		}
		if _, dup := seen[keyword]; dup {
			return false
		}
		seen[keyword] = struct{}{}
		suggestions = append(suggestions, Suggestion{
			Keyword:     keyword,
			URL:         s.PathPrefix + entrySlug(entry),
			TargetLabel: entry.Title,
		})
		return len(suggestions) >= limit
	}

	for _, entry := range catalog {
		for _, w := range words(strings.ToLower(entry.Title)) {
			if _, ok := tokens[w]; ok && add(w, entry) {
				return suggestions
			}
		}
		for _, ingredient := range entry.Ingredients {
			for _, w := range words(strings.ToLower(ingredient)) {
				if _, ok := tokens[w]; ok && add(w, entry) {
					return suggestions
				}
			}
		}
		for _, tag := range entry.Tags {
			t := strings.ToLower(strings.TrimSpace(tag))
			if t != "" && strings.Contains(lowered, t) && add(t, entry) {
				return suggestions
			}
		}
	}

	return suggestions
}

// words returns the word runs of s that are long enough to be keywords
func words(s string) []string {
	all := wordPattern.FindAllString(s, -1)
	out := all[:0]
	for _, w := range all {
		if utf8.RuneCountInString(w) >= MinKeywordLength {
			out = append(out, w)
		}
	}
	return out
}

func entrySlug(entry CatalogEntry) string {
	if entry.Slug != "" {
		return entry.Slug
	}
	return GenerateSlug(entry.Title)
}
