package store

import (
	"context"
	"time"

	"github.com/emrgen/docgen/internal/model"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	return translate(g.db.WithContext(ctx).Create(t).Error)
}

func (g *GormStore) GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	var t model.Template
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&t).Error
	if err != nil {
		return nil, translate(err)
	}

	return &t, nil
}

func (g *GormStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]*model.Template, error) {
	q := g.db.WithContext(ctx).Model(&model.Template{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var templates []*model.Template
	err := q.Order("is_default desc").Order("updated_at desc").Order("id").Find(&templates).Error

	return templates, translate(err)
}

func (g *GormStore) UpdateTemplate(ctx context.Context, t *model.Template) error {
	res := g.db.WithContext(ctx).Save(t)
	if res.Error != nil {
		return translate(res.Error)
	}

	return nil
}

func (g *GormStore) ClearDefaultTemplates(ctx context.Context, category string, except uuid.UUID) error {
	return translate(g.db.WithContext(ctx).
		Model(&model.Template{}).
		Where("category = ? AND is_default = ? AND id <> ?", category, true, except.String()).
		Update("is_default", false).Error)
}

func (g *GormStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if err := g.db.WithContext(ctx).Where("template_id = ?", id.String()).Delete(&model.TemplateVersion{}).Error; err != nil {
		return translate(err)
	}

	res := g.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&model.Template{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (g *GormStore) CreateTemplateVersion(ctx context.Context, v *model.TemplateVersion) error {
	return translate(g.db.WithContext(ctx).Create(v).Error)
}

func (g *GormStore) ListTemplateVersions(ctx context.Context, templateID uuid.UUID) ([]*model.TemplateVersion, error) {
	var versions []*model.TemplateVersion
	err := g.db.WithContext(ctx).
		Where("template_id = ?", templateID.String()).
		Order("sequence desc").
		Find(&versions).Error

	return versions, translate(err)
}

func (g *GormStore) GetTemplateVersion(ctx context.Context, templateID, versionID uuid.UUID) (*model.TemplateVersion, error) {
	var v model.TemplateVersion
	err := g.db.WithContext(ctx).
		Where("template_id = ? AND id = ?", templateID.String(), versionID.String()).
		First(&v).Error
	if err != nil {
		return nil, translate(err)
	}

	return &v, nil
}

func (g *GormStore) LastTemplateVersionSequence(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var seq int64
	err := g.db.WithContext(ctx).
		Model(&model.TemplateVersion{}).
		Where("template_id = ?", templateID.String()).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&seq).Error
	if err != nil {
		return 0, translate(err)
	}

	return seq, nil
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return translate(g.db.WithContext(ctx).Create(doc).Error)
}

func (g *GormStore) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}

	return &doc, nil
}

func (g *GormStore) GetDocumentByDedupKey(ctx context.Context, key string) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).Where("dedup_key = ?", key).First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}

	return &doc, nil
}

func (g *GormStore) FindDuplicate(ctx context.Context, q DuplicateQuery) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", q.EntityType, q.EntityID).
		Where(datatypes.JSONQuery("metadata").Equals(q.TemplateID, "templateId")).
		Where(datatypes.JSONQuery("metadata").Equals(q.VariablesHash, "variablesHash")).
		Order("created_at asc").
		First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}

	return &doc, nil
}

func (g *GormStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*model.Document, int64, error) {
	q := g.db.WithContext(ctx).Model(&model.Document{})
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Type != "" {
		q = q.Where("document_type = ?", filter.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var docs []*model.Document
	err := q.Order("created_at desc").Offset(filter.Offset).Limit(limit).Find(&docs).Error

	return docs, total, translate(err)
}

func (g *GormStore) CountTemplateDocuments(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&model.Document{}).
		Where(datatypes.JSONQuery("metadata").Equals(templateID.String(), "templateId")).
		Count(&count).Error

	return count, translate(err)
}

func (g *GormStore) ListDocumentsCreatedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("created_at < ? AND id > ?", before, afterID).
		Order("id").
		Limit(limit).
		Find(&docs).Error

	return docs, translate(err)
}

func (g *GormStore) ArchiveDocument(ctx context.Context, id uuid.UUID) error {
	res := g.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id.String()).
		Update("archived", true)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (g *GormStore) RecordDocumentView(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := g.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"view_count":     gorm.Expr("view_count + ?", 1),
			"last_viewed_at": at,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (g *GormStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res := g.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&model.Document{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (g *GormStore) CreateAccessLog(ctx context.Context, entry *model.AccessLog) error {
	return translate(g.db.WithContext(ctx).Create(entry).Error)
}

func (g *GormStore) ListAccessLogs(ctx context.Context, documentID uuid.UUID) ([]*model.AccessLog, error) {
	var logs []*model.AccessLog
	err := g.db.WithContext(ctx).
		Where("document_id = ?", documentID.String()).
		Order("created_at asc").
		Order("id").
		Find(&logs).Error

	return logs, translate(err)
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
