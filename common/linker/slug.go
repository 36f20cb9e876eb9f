package linker

import (
	"regexp"
	"strings"
)

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapse = regexp.MustCompile(`[\s-]+`)
)

// GenerateSlug turns text into a URL slug of [a-z0-9] runs joined by single hyphens.
// GenerateSlug(GenerateSlug(x)) == GenerateSlug(x).
func GenerateSlug(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
