package linker

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VisibleText returns the text a reader would see for an HTML fragment
func VisibleText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return html.UnescapeString(tagPattern.ReplaceAllString(content, ""))
	}
	return doc.Text()
}

const blockElements = "address, article, aside, blockquote, dd, div, dl, dt, figcaption, figure, footer, " +
	"h1, h2, h3, h4, h5, h6, header, li, main, nav, ol, p, pre, section, table, td, th, tr, ul"

// matchableText is the visible text of content with block boundaries kept
// as spaces and whitespace collapsed. Attribute values never appear in it.
func matchableText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(html.UnescapeString(tagPattern.ReplaceAllString(content, " "))), " ")
	}
	doc.Find("br, hr").ReplaceWithHtml(" ")
	doc.Find(blockElements).AppendHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}
