package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/lyzr/cookbook/cmd/content-api/models"
	"github.com/lyzr/cookbook/common/cache"
	"github.com/lyzr/cookbook/common/linker"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/metrics"
	"github.com/lyzr/cookbook/common/validation"
)

// CatalogCacheKey holds the JSON catalog snapshot used for suggestions
const CatalogCacheKey = "catalog:entries"

// ErrInvalidDocument is returned when a create or patch leaves a document unusable
var ErrInvalidDocument = errors.New("invalid document")

// DocumentStore persists documents
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}

// DocumentService handles document CRUD and link application
type DocumentService struct {
	repo     DocumentStore
	cache    cache.Cache
	ttl      time.Duration
	rewriter linker.Rewriter
	urls     *validation.LinkURLValidator
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewDocumentService creates a new document service. cache may be nil.
func NewDocumentService(repo DocumentStore, c cache.Cache, ttl time.Duration, rewriter linker.Rewriter, m *metrics.Metrics, log *logger.Logger) *DocumentService {
	if rewriter == nil {
		rewriter = linker.NewRegexRewriter()
	}
	return &DocumentService{
		repo:     repo,
		cache:    c,
		ttl:      ttl,
		rewriter: rewriter,
		urls:     validation.NewLinkURLValidator(),
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns every document
func (s *DocumentService) List(ctx context.Context) ([]*models.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Get returns one document
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new document, generating the id and slug when empty
func (s *DocumentService) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if err := normalize(doc); err != nil {
		return nil, err
	}

	now := s.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)

	s.log.Info("created document", "id", doc.ID, "slug", doc.Slug)
	return doc, nil
}

// Patch applies an RFC 7386 merge patch to the document. The id and
// creation time cannot be changed.
func (s *DocumentService) Patch(ctx context.Context, id string, patch []byte) (*models.Document, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	original, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to apply merge patch: %v", ErrInvalidDocument, err)
	}

	var patched models.Document
	if err := json.Unmarshal(merged, &patched); err != nil {
		return nil, fmt.Errorf("%w: patched document is malformed: %v", ErrInvalidDocument, err)
	}

	if patched.ID != current.ID {
		return nil, fmt.Errorf("%w: id is immutable", ErrInvalidDocument)
	}
	patched.Title = strings.TrimSpace(patched.Title)
	if err := normalize(&patched); err != nil {
		return nil, err
	}
	patched.CreatedAt = current.CreatedAt
	patched.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &patched); err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)

	s.log.Info("patched document", "id", id)
	return &patched, nil
}

// ApplyLinks inserts internal links into the document body and persists it.
// It returns the updated document and the number of links added.
func (s *DocumentService) ApplyLinks(ctx context.Context, id string, insertions []linker.Insertion) (*models.Document, int, error) {
	if err := validateInsertions(s.urls, insertions); err != nil {
		return nil, 0, err
	}

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	before := len(s.rewriter.ExtractLinks(doc.Body))
	body := s.rewriter.InsertLinks(doc.Body, insertions)
	added := len(s.rewriter.ExtractLinks(body)) - before
	s.metrics.RecordLinkOperation("document_insert", added)

	if body == doc.Body {
		return doc, 0, nil
	}

	doc.Body = body
	doc.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, 0, err
	}

	s.log.Info("applied links to document", "id", id, "added", added)
	return doc, added, nil
}

// Catalog returns every document as a catalog entry, served from the cache
// when a fresh snapshot exists
func (s *DocumentService) Catalog(ctx context.Context) ([]linker.CatalogEntry, error) {
	if s.cache != nil {
		data, found, err := s.cache.Get(ctx, CatalogCacheKey)
		if err != nil {
			s.log.Warn("catalog cache read failed", "error", err)
		}
		if found {
			var entries []linker.CatalogEntry
			if err := json.Unmarshal(data, &entries); err == nil {
				return entries, nil
			}
			s.log.Warn("discarding corrupt catalog snapshot")
		}
	}

	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	entries := make([]linker.CatalogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.CatalogEntry())
	}

	if s.cache != nil {
		if data, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, CatalogCacheKey, data, s.ttl); err != nil {
				s.log.Warn("catalog cache write failed", "error", err)
			}
		}
	}

	return entries, nil
}

func (s *DocumentService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CatalogCacheKey); err != nil {
		s.log.Warn("failed to invalidate catalog cache", "error", err)
	}
}

func normalize(doc *models.Document) error {
	if doc.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}
	if doc.Slug == "" {
		doc.Slug = linker.GenerateSlug(doc.Title)
	} else {
		doc.Slug = linker.GenerateSlug(doc.Slug)
	}
	if doc.Slug == "" {
		return fmt.Errorf("%w: title %q produces an empty slug", ErrInvalidDocument, doc.Title)
	}
	if doc.Ingredients == nil {
		doc.Ingredients = []string{}
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return nil
}
