package models

import (
	"time"

	"github.com/lyzr/cookbook/common/linker"
)

// Document is a piece of site content that other content can link to
// Maps to: documents table
type Document struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`

	// URL slug; generated from the title when empty
	Slug string `db:"slug" json:"slug"`

	Ingredients []string `db:"ingredients" json:"ingredients"`
	Tags        []string `db:"tags" json:"tags"`
	Category    string   `db:"category" json:"category"`

	// HTML body; internal links are inserted here
	Body string `db:"body" json:"body"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CatalogEntry projects the document into the shape the link suggester reads
func (d *Document) CatalogEntry() linker.CatalogEntry {
	return linker.CatalogEntry{
		ID:          d.ID,
		Title:       d.Title,
		Slug:        d.Slug,
		Ingredients: d.Ingredients,
		Tags:        d.Tags,
		Category:    d.Category,
	}
}
