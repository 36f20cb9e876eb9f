package linker

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const patternCacheSize = 512

var (
	// tagPattern matches any single tag, including its attributes
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	// anchorPattern matches a whole anchor element, markup and inner text
	anchorPattern = regexp.MustCompile(`(?is)<a\b[^>]*>.*?</a\s*>`)

	// internalAnchorPattern captures the attributes and inner text of marker anchors
	internalAnchorPattern = regexp.MustCompile(`(?is)<a\b([^>]*\bclass="[^"]*\b` + MarkerClass + `\b[^"]*"[^>]*)>(.*?)</a\s*>`)

	hrefPattern = regexp.MustCompile(`(?i)\bhref="([^"]*)"`)
)

// RegexRewriter implements Rewriter with regular expressions over raw markup.
// It does not parse HTML: keywords spanning tags or hidden behind entities
// are not found.
type RegexRewriter struct {
	patterns *lru.Cache[string, *regexp.Regexp]
}

// NewRegexRewriter creates a rewriter with a bounded keyword pattern cache
func NewRegexRewriter() *RegexRewriter {
	cache, err := lru.New[string, *regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(fmt.Sprintf("linker: pattern cache: %v", err))
	}
	return &RegexRewriter{patterns: cache}
}

// InsertLinks links the first unprotected whole-word occurrence of each keyword.
// Insertions run in order, each against the output of the previous one.
func (r *RegexRewriter) InsertLinks(content string, insertions []Insertion) string {
	for _, ins := range insertions {
		content = r.insertOne(content, ins)
	}
	return content
}

func (r *RegexRewriter) insertOne(content string, ins Insertion) string {
	keyword := strings.TrimSpace(ins.Keyword)
	if keyword == "" || strings.TrimSpace(ins.URL) == "" {
		return content
	}
	if r.alreadyLinked(content, keyword) {
		return content
	}

	// Whole content is re-scanned per insertion.
	spans := protectedSpans(content)
	re := r.pattern(keyword)
	first, _ := utf8.DecodeRuneInString(keyword)
	last, _ := utf8.DecodeLastRuneInString(keyword)
	checkStart, checkEnd := isWordRune(first), isWordRune(last)

	for start := 0; start < len(content); {
		loc := re.FindStringIndex(content[start:])
		if loc == nil {
			break
		}
		m := []int{start + loc[0], start + loc[1]}
		if !overlapsAny(m, spans) &&
			!(checkStart && wordRuneBefore(content, m[0])) &&
			!(checkEnd && wordRuneAt(content, m[1])) {
			anchor := buildAnchor(ins.URL, ins.DisplayLabel, content[m[0]:m[1]])
			return content[:m[0]] + anchor + content[m[1]:]
		}
		_, size := utf8.DecodeRuneInString(content[m[0]:])
		start = m[0] + size
	}
	return content
}

// alreadyLinked reports whether an internal link for keyword is already present
func (r *RegexRewriter) alreadyLinked(content, keyword string) bool {
	for _, link := range r.ExtractLinks(content) {
		if strings.EqualFold(strings.TrimSpace(html.UnescapeString(link.Keyword)), keyword) {
			return true
		}
	}
	return false
}

// pattern returns the compiled case-insensitive pattern for keyword. Word
// boundaries are checked by the caller, since \b only knows ASCII.
// The keyword is quoted, so arbitrary input never fails to compile.
func (r *RegexRewriter) pattern(keyword string) *regexp.Regexp {
	key := strings.ToLower(keyword)
	if re, ok := r.patterns.Get(key); ok {
		return re
	}

	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(keyword))
	r.patterns.Add(key, re)
	return re
}

// RemoveLinks replaces each internal-link anchor with its inner text
func (r *RegexRewriter) RemoveLinks(content string) string {
	return internalAnchorPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := internalAnchorPattern.FindStringSubmatch(match)
		if len(sub) < 3 {
			return match
		}
		return sub[2]
	})
}

// ExtractLinks returns internal links in document order
func (r *RegexRewriter) ExtractLinks(content string) []ExtractedLink {
	links := make([]ExtractedLink, 0)
	for _, sub := range internalAnchorPattern.FindAllStringSubmatch(content, -1) {
		href := ""
		if h := hrefPattern.FindStringSubmatch(sub[1]); h != nil {
			href = html.UnescapeString(h[1])
		}
		links = append(links, ExtractedLink{
			Keyword:  sub[2],
			URL:      href,
			RawMatch: sub[0],
		})
	}
	return links
}

func buildAnchor(url, label, text string) string {
	return fmt.Sprintf(`<a href="%s" class="%s" title="%s">%s</a>`,
		html.EscapeString(url), MarkerClass, html.EscapeString(label), text)
}

// protectedSpans lists byte ranges that must never be rewritten: tag markup and
// the full extent of anchor elements.
func protectedSpans(content string) [][]int {
	spans := anchorPattern.FindAllStringIndex(content, -1)
	return append(spans, tagPattern.FindAllStringIndex(content, -1)...)
}

func overlapsAny(m []int, spans [][]int) bool {
	for _, s := range spans {
		if m[0] < s[1] && m[1] > s[0] {
			return true
		}
	}
	return false
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c) || unicode.IsMark(c)
}

func wordRuneBefore(content string, i int) bool {
	if i == 0 {
		return false
	}
	c, _ := utf8.DecodeLastRuneInString(content[:i])
	return isWordRune(c)
}

func wordRuneAt(content string, i int) bool {
	if i >= len(content) {
		return false
	}
	c, _ := utf8.DecodeRuneInString(content[i:])
	return isWordRune(c)
}
