// Package linker rewrites HTML content to add, strip and inspect internal links,
// and proposes new links by cross-referencing content against a document catalog.
package linker

// MarkerClass is the class attribute carried by every anchor the linker inserts.
// RemoveLinks and ExtractLinks only ever touch anchors with this class.
const MarkerClass = "internal-link"

// Insertion asks for keyword to be linked to URL with DisplayLabel as the title.
type Insertion struct {
	Keyword      string `json:"keyword"`
	URL          string `json:"url"`
	DisplayLabel string `json:"displayLabel"`
}

// ExtractedLink is an internal link found in existing content
type ExtractedLink struct {
	Keyword  string `json:"keyword"`
	URL      string `json:"url"`
	RawMatch string `json:"rawMatch"`
}

// Suggestion is a candidate link derived from a catalog entry
type Suggestion struct {
	Keyword     string `json:"keyword"`
	URL         string `json:"url"`
	TargetLabel string `json:"targetLabel"`
}

// CatalogEntry describes another document that content may link to
type CatalogEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// Rewriter mutates and inspects internal links in content.
//
// RegexRewriter is the production implementation. Callers should depend on this
// interface so a DOM-based rewriter can replace it without touching them.
type Rewriter interface {
	InsertLinks(content string, insertions []Insertion) string
	RemoveLinks(content string) string
	ExtractLinks(content string) []ExtractedLink
}

var defaultRewriter = NewRegexRewriter()

// InsertLinks applies insertions with the package default rewriter
func InsertLinks(content string, insertions []Insertion) string {
	return defaultRewriter.InsertLinks(content, insertions)
}

// RemoveLinks strips internal links with the package default rewriter
func RemoveLinks(content string) string {
	return defaultRewriter.RemoveLinks(content)
}

// ExtractLinks lists internal links with the package default rewriter
func ExtractLinks(content string) []ExtractedLink {
	return defaultRewriter.ExtractLinks(content)
}
