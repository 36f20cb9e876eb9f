package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lyzr/cookbook/cmd/content-api/models"
)

var (
	// ErrDocumentNotFound is returned when no document has the requested id
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDuplicateSlug is returned when another document already uses the slug
	ErrDuplicateSlug = errors.New("slug already in use")
	// ErrDuplicateID is returned when a document with the same id exists
	ErrDuplicateID = errors.New("document id already exists")
)

const (
	uniqueViolation = "23505"
	primaryKeyIndex = "documents_pkey"
)

// Querier is the subset of pgxpool.Pool the repository uses
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentRepository handles database operations for documents
type DocumentRepository struct {
	db Querier
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db Querier) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, title, slug, ingredients, tags, category, body, created_at, updated_at`

// Create inserts a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		doc.ID,
		doc.Title,
		doc.Slug,
		nonNil(doc.Ingredients),
		nonNil(doc.Tags),
		doc.Category,
		doc.Body,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return fmt.Errorf("failed to create document %s: %w", doc.ID, dup)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by id
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1
	`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to get document %s: %w", id, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// List returns every document ordered by title
func (r *DocumentRepository) List(ctx context.Context) ([]*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY title, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// Update overwrites every mutable column of an existing document
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET title = $2, slug = $3, ingredients = $4, tags = $5,
		    category = $6, body = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		doc.ID,
		doc.Title,
		doc.Slug,
		nonNil(doc.Ingredients),
		nonNil(doc.Tags),
		doc.Category,
		doc.Body,
		doc.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return fmt.Errorf("failed to update document %s: %w", doc.ID, dup)
		}
		return fmt.Errorf("failed to update document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update document %s: %w", doc.ID, ErrDocumentNotFound)
	}

	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Slug,
		&doc.Ingredients,
		&doc.Tags,
		&doc.Category,
		&doc.Body,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// duplicateError maps a unique violation to the sentinel for the violated
// index, or returns nil for any other error
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	if pgErr.ConstraintName == primaryKeyIndex {
		return ErrDuplicateID
	}
	// documents_slug_idx is the only other unique index
	return ErrDuplicateSlug
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
