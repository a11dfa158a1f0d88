package store

import (
	"context"
	"time"

	"github.com/emrgen/docgen/internal/model"
	"github.com/google/uuid"
)

type Store interface {
	TemplateStore
	TemplateVersionStore
	DocumentStore
	AccessLogStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type TemplateFilter struct {
	Category   string
	ActiveOnly bool
}

type TemplateStore interface {
	// CreateTemplate creates a new template.
	CreateTemplate(ctx context.Context, t *model.Template) error
	// GetTemplate retrieves a template by ID.
	GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error)
	// ListTemplates lists templates, defaults first and newest next.
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]*model.Template, error)
	// UpdateTemplate saves every field of a template.
	UpdateTemplate(ctx context.Context, t *model.Template) error
	// ClearDefaultTemplates unsets isDefault on every template of a category except one.
	ClearDefaultTemplates(ctx context.Context, category string, except uuid.UUID) error
	// DeleteTemplate hard-deletes a template and its versions.
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

type TemplateVersionStore interface {
	// CreateTemplateVersion appends a snapshot.
	CreateTemplateVersion(ctx context.Context, v *model.TemplateVersion) error
	// ListTemplateVersions lists the snapshots of a template, newest first.
	ListTemplateVersions(ctx context.Context, templateID uuid.UUID) ([]*model.TemplateVersion, error)
	// GetTemplateVersion retrieves one snapshot of a template.
	GetTemplateVersion(ctx context.Context, templateID, versionID uuid.UUID) (*model.TemplateVersion, error)
	// LastTemplateVersionSequence returns the highest sequence of a template, 0 when none.
	LastTemplateVersionSequence(ctx context.Context, templateID uuid.UUID) (int64, error)
}

// DuplicateQuery selects documents generated for the same entity from the same inputs.
type DuplicateQuery struct {
	EntityType    string
	EntityID      string
	TemplateID    string
	VariablesHash string
}

type DocumentFilter struct {
	EntityType string
	EntityID   string
	Type       string
	Offset     int
	Limit      int
}

type DocumentStore interface {
	// CreateDocument creates a document record. ErrDuplicate reports a dedup key collision.
	CreateDocument(ctx context.Context, doc *model.Document) error
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)
	// GetDocumentByDedupKey retrieves the document holding a dedup key.
	GetDocumentByDedupKey(ctx context.Context, key string) (*model.Document, error)
	// FindDuplicate returns the earliest matching document or ErrNotFound.
	FindDuplicate(ctx context.Context, q DuplicateQuery) (*model.Document, error)
	// ListDocuments lists documents newest first with the total count.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*model.Document, int64, error)
	// CountTemplateDocuments counts documents generated from a template.
	CountTemplateDocuments(ctx context.Context, templateID uuid.UUID) (int64, error)
	// ListDocumentsCreatedBefore pages through documents older than before, ordered by ID.
	ListDocumentsCreatedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*model.Document, error)
	// ArchiveDocument flags a document archived.
	ArchiveDocument(ctx context.Context, id uuid.UUID) error
	// RecordDocumentView increments the view count.
	RecordDocumentView(ctx context.Context, id uuid.UUID, at time.Time) error
	// DeleteDocument deletes a document record.
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

// AccessLogStore is append-only.
type AccessLogStore interface {
	// CreateAccessLog appends an access log entry.
	CreateAccessLog(ctx context.Context, entry *model.AccessLog) error
	// ListAccessLogs lists the entries of a document, oldest first.
	ListAccessLogs(ctx context.Context, documentID uuid.UUID) ([]*model.AccessLog, error)
}
