package store

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newDocument(entityID, templateID, hash string, createdAt time.Time) *model.Document {
	return &model.Document{
		ID:           uuid.NewString(),
		DocumentType: "order",
		FileName:     "order.pdf",
		StoragePath:  "order/2024/01/order.pdf",
		Size:         100,
		Checksum:     "abc",
		EntityType:   string(model.EntityOrder),
		EntityID:     entityID,
		Metadata: datatypes.NewJSONType(model.DocumentMetadata{
			TemplateID:    templateID,
			VariablesHash: hash,
		}),
		CreatedAt: createdAt,
	}
}

func newTemplate(category string, isDefault bool) *model.Template {
	t := &model.Template{ID: uuid.NewString(), Version: 1}
	t.Apply(template.Definition{
		Name:     "t",
		Category: template.Category(category),
		Mode:     template.ModeSource,
		Sections: template.Sections{{Order: 1, Content: template.Spacer{Height: 5}}},
		IsActive: true, IsDefault: isDefault,
	})
	return t
}

func TestGormStore_FindDuplicate(t *testing.T) {
	s := NewGormStore(tester.TestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	first := newDocument("o-1", "t-1", "h-1", now.Add(-time.Hour))
	require.NoError(t, s.CreateDocument(ctx, first))
	require.NoError(t, s.CreateDocument(ctx, newDocument("o-1", "t-1", "h-1", now)))
	require.NoError(t, s.CreateDocument(ctx, newDocument("o-2", "t-1", "h-2", now)))

	got, err := s.FindDuplicate(ctx, DuplicateQuery{EntityType: "order", EntityID: "o-1", TemplateID: "t-1", VariablesHash: "h-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	// same variables for another entity are not a duplicate
	_, err = s.FindDuplicate(ctx, DuplicateQuery{EntityType: "order", EntityID: "o-2", TemplateID: "t-1", VariablesHash: "h-1"})
	assert.ErrorIs(t, err, ErrNotFound)

	tid := uuid.New()
	require.NoError(t, s.CreateDocument(ctx, newDocument("o-3", tid.String(), "h-3", now)))
	count, err := s.CountTemplateDocuments(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormStore_DedupKeyIsUnique(t *testing.T) {
	s := NewGormStore(tester.TestDB(t))
	ctx := context.Background()

	a := newDocument("o-1", "t-1", "h-1", time.Now().UTC())
	a.DedupKey = model.DedupKey(model.EntityOrder, "o-1", "t-1", "h-1")
	require.NoError(t, s.CreateDocument(ctx, a))

	b := newDocument("o-1", "t-1", "h-1", time.Now().UTC())
	b.DedupKey = model.DedupKey(model.EntityOrder, "o-1", "t-1", "h-1")
	assert.ErrorIs(t, s.CreateDocument(ctx, b), ErrDuplicate)

	// documents without a key never collide
	require.NoError(t, s.CreateDocument(ctx, newDocument("o-1", "t-1", "h-1", time.Now().UTC())))
	require.NoError(t, s.CreateDocument(ctx, newDocument("o-1", "t-1", "h-1", time.Now().UTC())))

	winner, err := s.GetDocumentByDedupKey(ctx, *a.DedupKey)
	require.NoError(t, err)
	assert.Equal(t, a.ID, winner.ID)
}

func TestGormStore_Templates(t *testing.T) {
	s := NewGormStore(tester.TestDB(t))
	ctx := context.Background()

	a := newTemplate("invoice", true)
	b := newTemplate("invoice", true)
	c := newTemplate("order", true)
	for _, tpl := range []*model.Template{a, b, c} {
		require.NoError(t, s.CreateTemplate(ctx, tpl))
	}

	require.NoError(t, s.ClearDefaultTemplates(ctx, "invoice", uuid.MustParse(b.ID)))

	got, err := s.GetTemplate(ctx, uuid.MustParse(a.ID))
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
	assert.Len(t, got.Sections.Data(), 1)

	invoices, err := s.ListTemplates(ctx, TemplateFilter{Category: "invoice", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, b.ID, invoices[0].ID)

	other, err := s.GetTemplate(ctx, uuid.MustParse(c.ID))
	require.NoError(t, err)
	assert.True(t, other.IsDefault)

	require.NoError(t, s.CreateTemplateVersion(ctx, a.Snapshot(uuid.NewString(), 1, "admin", "first")))
	require.NoError(t, s.CreateTemplateVersion(ctx, a.Snapshot(uuid.NewString(), 2, "admin", "second")))
	seq, err := s.LastTemplateVersionSequence(ctx, uuid.MustParse(a.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	seq, err = s.LastTemplateVersionSequence(ctx, uuid.MustParse(c.ID))
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.DeleteTemplate(ctx, uuid.MustParse(a.ID)))
	_, err = s.GetTemplate(ctx, uuid.MustParse(a.ID))
	assert.ErrorIs(t, err, ErrNotFound)

	versions, err := s.ListTemplateVersions(ctx, uuid.MustParse(a.ID))
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestGormStore_DocumentLifecycle(t *testing.T) {
	s := NewGormStore(tester.TestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	old := newDocument("o-1", "t-1", "h-1", now.AddDate(-2, 0, 0))
	fresh := newDocument("o-1", "t-1", "h-2", now)
	require.NoError(t, s.CreateDocument(ctx, old))
	require.NoError(t, s.CreateDocument(ctx, fresh))

	docs, err := s.ListDocumentsCreatedBefore(ctx, now.AddDate(-1, 0, 0), "", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, old.ID, docs[0].ID)

	require.NoError(t, s.ArchiveDocument(ctx, uuid.MustParse(old.ID)))
	require.NoError(t, s.RecordDocumentView(ctx, uuid.MustParse(fresh.ID), now))
	require.NoError(t, s.RecordDocumentView(ctx, uuid.MustParse(fresh.ID), now))

	got, err := s.GetDocument(ctx, uuid.MustParse(fresh.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)
	assert.NotNil(t, got.LastViewedAt)

	got, err = s.GetDocument(ctx, uuid.MustParse(old.ID))
	require.NoError(t, err)
	assert.True(t, got.Archived)

	list, total, err := s.ListDocuments(ctx, DocumentFilter{EntityID: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, fresh.ID, list[0].ID)

	require.NoError(t, s.DeleteDocument(ctx, uuid.MustParse(old.ID)))
	assert.ErrorIs(t, s.DeleteDocument(ctx, uuid.MustParse(old.ID)), ErrNotFound)
}

func TestGormStore_AccessLogs(t *testing.T) {
	s := NewGormStore(tester.TestDB(t))
	ctx := context.Background()
	docID := uuid.New()

	for i, action := range []model.AccessAction{model.ActionGenerate, model.ActionView, model.ActionDownload} {
		require.NoError(t, s.CreateAccessLog(ctx, &model.AccessLog{
			ID:         uuid.NewString(),
			DocumentID: docID.String(),
			ActorID:    "a-1",
			Action:     string(action),
			CreatedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := s.ListAccessLogs(ctx, docID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, string(model.ActionGenerate), logs[0].Action)
	assert.Equal(t, string(model.ActionDownload), logs[2].Action)
}

func TestGormStore_Transaction(t *testing.T) {
	s := NewGormStore(tester.TestDB(t))
	ctx := context.Background()
	tpl := newTemplate("report", false)

	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateTemplate(ctx, tpl); err != nil {
			return err
		}
		return ErrDuplicate
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.GetTemplate(ctx, uuid.MustParse(tpl.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}
