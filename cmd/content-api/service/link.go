package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lyzr/cookbook/common/linker"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/metrics"
	"github.com/lyzr/cookbook/common/validation"
)

// ErrInvalidFilter is returned when a catalog filter expression is rejected
var ErrInvalidFilter = errors.New("invalid catalog filter")

// CatalogSource provides the entries suggestions are drawn from
type CatalogSource interface {
	Catalog(ctx context.Context) ([]linker.CatalogEntry, error)
}

// LinkService exposes the link engine over content supplied by callers
type LinkService struct {
	rewriter  linker.Rewriter
	suggester *linker.Suggester
	catalog   CatalogSource
	filter    *CatalogFilter
	urls      *validation.LinkURLValidator
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewLinkService creates a link service. catalog may be nil, in which case
// suggestions need an explicit catalog.
func NewLinkService(rewriter linker.Rewriter, suggester *linker.Suggester, catalog CatalogSource, filter *CatalogFilter, m *metrics.Metrics, log *logger.Logger) *LinkService {
	if rewriter == nil {
		rewriter = linker.NewRegexRewriter()
	}
	if suggester == nil {
		suggester = linker.NewSuggester("", 0)
	}
	if filter == nil {
		filter = NewCatalogFilter()
	}
	return &LinkService{
		rewriter:  rewriter,
		suggester: suggester,
		catalog:   catalog,
		filter:    filter,
		urls:      validation.NewLinkURLValidator(),
		metrics:   m,
		log:       log,
	}
}

// Insert links keywords in content. Every insertion URL is validated first.
func (s *LinkService) Insert(content string, insertions []linker.Insertion) (string, error) {
	if err := validateInsertions(s.urls, insertions); err != nil {
		return "", err
	}

	before := len(s.rewriter.ExtractLinks(content))
	out := s.rewriter.InsertLinks(content, insertions)
	s.metrics.RecordLinkOperation("insert", len(s.rewriter.ExtractLinks(out))-before)
	return out, nil
}

// Remove strips every internal link from content
func (s *LinkService) Remove(content string) string {
	removed := len(s.rewriter.ExtractLinks(content))
	out := s.rewriter.RemoveLinks(content)
	s.metrics.RecordLinkOperation("remove", removed)
	return out
}

// Extract lists the internal links in content
func (s *LinkService) Extract(content string) []linker.ExtractedLink {
	links := s.rewriter.ExtractLinks(content)
	s.metrics.RecordLinkOperation("extract", len(links))
	return links
}

// Suggest proposes links for content. When catalog is nil the configured
// catalog source is used. filter is an optional CEL expression over entry.
func (s *LinkService) Suggest(ctx context.Context, content, filter string, catalog []linker.CatalogEntry) ([]linker.Suggestion, error) {
	if catalog == nil && s.catalog != nil {
		var err error
		catalog, err = s.catalog.Catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	filtered, err := s.filter.Filter(filter, catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	suggestions := s.suggester.Suggest(content, filtered)
	s.metrics.RecordLinkOperation("suggest", len(suggestions))

	s.log.Debug("suggested links",
		"catalog", len(catalog),
		"filtered", len(filtered),
		"suggestions", len(suggestions))

	return suggestions, nil
}

// Slug converts text into a URL slug
func (s *LinkService) Slug(text string) string {
	return linker.GenerateSlug(text)
}

func validateInsertions(v *validation.LinkURLValidator, insertions []linker.Insertion) error {
	for i, ins := range insertions {
		if err := v.Validate(ins.URL); err != nil {
			return fmt.Errorf("insertion %d (%s): %w", i, ins.Keyword, err)
		}
	}
	return nil
}
