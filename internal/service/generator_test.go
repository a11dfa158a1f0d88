package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/render"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/emrgen/docgen/internal/store"
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/tester"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRequest(orderID, number string) GenerateRequest {
	return GenerateRequest{
		Category:  template.CategoryOrder,
		Variables: orderVariables(number),
		Language:  template.English,
		Entity:    model.EntityLink{OrderID: orderID},
		ActorID:   "staff-1",
		IPAddress: "10.0.0.1",
		UserAgent: "test",
	}
}

func TestGenerator_Generate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.createTemplate(t, orderDefinition("order", template.ModeBilingual, true))
	ctx := context.Background()

	res := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, res.Success, "%+v", res.Error)
	assert.False(t, res.Deduplicated)
	assert.Regexp(t, `^order_o-1_\d+_[0-9a-f]{12}\.pdf$`, res.FileName)

	doc, err := f.store.GetDocument(ctx, uuid.MustParse(res.DocumentID))
	require.NoError(t, err)
	assert.Equal(t, "order", doc.DocumentType)
	assert.Equal(t, string(model.EntityOrder), doc.EntityType)
	assert.Equal(t, "o-1", doc.EntityID)
	assert.Equal(t, tmpl.ID, doc.Meta().TemplateID)
	assert.Equal(t, vars.MustHash(orderVariables("ORD-1")), doc.Meta().VariablesHash)
	assert.Equal(t, "en", doc.Meta().Language)
	require.NotNil(t, doc.DedupKey)

	data, err := f.adapter.Download(ctx, doc.StoragePath, doc.Checksum)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), doc.Size)

	logs, err := f.store.ListAccessLogs(ctx, uuid.MustParse(doc.ID))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, string(model.ActionGenerate), logs[0].Action)
	assert.Equal(t, "staff-1", logs[0].ActorID)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, doc.ID, events[0].DocumentID)
}

func TestGenerator_Deduplication(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	ctx := context.Background()

	first := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, first.Success)

	// variables in another order hash the same
	req := orderRequest("o-1", "ORD-1")
	req.Variables = vars.List{req.Variables[1], req.Variables[0]}
	second := f.generator.Generate(ctx, req)
	require.True(t, second.Success)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, first.FileName, second.FileName)
	assert.Equal(t, int64(1), f.documentCount(t))
	assert.Equal(t, 1, f.bucket.Len())
	assert.Len(t, f.events.Events(), 1)

	// same variables for another entity are not duplicates
	other := f.generator.Generate(ctx, orderRequest("o-2", "ORD-1"))
	require.True(t, other.Success)
	assert.False(t, other.Deduplicated)
	assert.NotEqual(t, first.DocumentID, other.DocumentID)

	changed := f.generator.Generate(ctx, orderRequest("o-1", "ORD-2"))
	require.True(t, changed.Success)
	assert.False(t, changed.Deduplicated)

	assert.Equal(t, int64(3), f.documentCount(t))
}

func TestGenerator_Force(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	ctx := context.Background()

	first := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, first.Success)

	req := orderRequest("o-1", "ORD-1")
	req.Force = true
	forced := f.generator.Generate(ctx, req)
	require.True(t, forced.Success)
	assert.False(t, forced.Deduplicated)
	assert.NotEqual(t, first.DocumentID, forced.DocumentID)

	doc, err := f.store.GetDocument(ctx, uuid.MustParse(forced.DocumentID))
	require.NoError(t, err)
	assert.Nil(t, doc.DedupKey)
	assert.Equal(t, int64(2), f.documentCount(t))

	// later unforced calls still return the original
	again := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	assert.Equal(t, first.DocumentID, again.DocumentID)
}

func TestGenerator_UnlinkedIsNeverDeduplicated(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	ctx := context.Background()

	req := orderRequest("", "ORD-1")
	a := f.generator.Generate(ctx, req)
	b := f.generator.Generate(ctx, req)
	require.True(t, a.Success)
	require.True(t, b.Success)
	assert.NotEqual(t, a.DocumentID, b.DocumentID)
	assert.Regexp(t, `^order_unlinked_\d+_[0-9a-f]{12}\.pdf$`, a.FileName)
}

type brokenDedupStore struct {
	store.Store
}

func (brokenDedupStore) FindDuplicate(context.Context, store.DuplicateQuery) (*model.Document, error) {
	return nil, errors.New("metadata index unavailable")
}

type blindDedupStore struct {
	store.Store
}

func (blindDedupStore) FindDuplicate(context.Context, store.DuplicateQuery) (*model.Document, error) {
	return nil, store.ErrNotFound
}

func TestGenerator_DedupFailsOpen(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store { return brokenDedupStore{s} })
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.DedupCheckFailures)

	first := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, first.Success, "%+v", first.Error)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DedupCheckFailures))

	// the unique dedup key still returns the first document
	second := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, second.Success, "%+v", second.Error)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.DedupCheckFailures))
}

func TestGenerator_LostRaceReturnsWinner(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store { return blindDedupStore{s} })
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	ctx := context.Background()

	first := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, first.Success)
	second := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, second.Success)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, int64(1), f.documentCount(t))
	// the loser's upload is removed
	assert.Equal(t, 1, f.bucket.Len())
}

func TestGenerator_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))

	const n = 6
	results := make([]GenerateResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.generator.Generate(context.Background(), orderRequest("o-1", "ORD-1"))
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.Success, "%+v", res.Error)
		assert.Equal(t, results[0].DocumentID, res.DocumentID)
	}
	assert.Equal(t, int64(1), f.documentCount(t))
	assert.Equal(t, 1, f.bucket.Len())
}

func TestGenerator_Failures(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))

	tests := []struct {
		name   string
		mutate func(r *GenerateRequest)
		kind   apperr.Kind
	}{
		{"missing category", func(r *GenerateRequest) { r.Category = "" }, apperr.KindValidation},
		{"unknown category", func(r *GenerateRequest) { r.Category = "memo" }, apperr.KindValidation},
		{"blank variable key", func(r *GenerateRequest) { r.Variables = vars.List{{Key: "", Value: 1}} }, apperr.KindValidation},
		{"two entities", func(r *GenerateRequest) { r.Entity.ClientID = "c-1" }, apperr.KindValidation},
		{"unsupported language", func(r *GenerateRequest) { r.Language = "fr" }, apperr.KindValidation},
		{"malformed language", func(r *GenerateRequest) { r.Language = "not a tag!" }, apperr.KindValidation},
		{"no template in language", func(r *GenerateRequest) { r.Language = template.Arabic }, apperr.KindNotFound},
		{"no template in category", func(r *GenerateRequest) { r.Category = template.CategoryInvoice }, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := orderRequest("o-1", "ORD-1")
			tt.mutate(&req)

			res := f.generator.Generate(context.Background(), req)
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.kind, res.Error.Kind)
			assert.NotEmpty(t, res.Error.Message)
		})
	}

	assert.Equal(t, int64(0), f.documentCount(t))
	assert.Equal(t, 0, f.bucket.Len())
}

type failingBucket struct {
	storage.Bucket
	puts int
}

func (b *failingBucket) Put(context.Context, string, []byte) error {
	b.puts++
	return errors.New("bucket offline")
}

func TestGenerator_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))

	bucket := &failingBucket{Bucket: f.bucket}
	g := NewGenerator(f.store, f.templates, render.NewEngine(render.Options{}), tester.Adapter(bucket), nil)

	res := g.Generate(context.Background(), orderRequest("o-1", "ORD-1"))
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperr.KindStorage, res.Error.Kind)
	assert.Equal(t, storage.DefaultAttempts, bucket.puts)
	assert.Equal(t, int64(0), f.documentCount(t))
}

type failingCreateStore struct {
	store.Store
}

func (failingCreateStore) CreateDocument(context.Context, *model.Document) error {
	return errors.New("database is read only")
}

func TestGenerator_PersistFailureRemovesBlob(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store { return failingCreateStore{s} })
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))

	res := f.generator.Generate(context.Background(), orderRequest("o-1", "ORD-1"))
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperr.KindInternal, res.Error.Kind)
	assert.Equal(t, 0, f.bucket.Len())
	assert.Empty(t, f.events.Events())
}

func TestGenerator_PublishFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	f.events.FailWith(errors.New("broker down"))

	res := f.generator.Generate(context.Background(), orderRequest("o-1", "ORD-1"))
	require.True(t, res.Success)
	assert.Contains(t, res.Warnings, "generated event not published")
}

func TestFileName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	id := "4f1c2b9a-7d3e-4a11-9b2c-0123456789ab"
	assert.Equal(t, "order_o-1_1700000000123_4f1c2b9a7d3e.pdf", FileName(template.CategoryOrder, "o-1", at, id))
	assert.Equal(t, "invoice_a-b_1700000000123_4f1c2b9a7d3e.pdf", FileName(template.CategoryInvoice, "a/b", at, id))
	assert.Equal(t, "report_unlinked_1700000000123_4f1c2b9a7d3e.pdf", FileName(template.CategoryReport, "", at, id))

	other := FileName(template.CategoryOrder, "o-1", at, uuid.NewString())
	assert.NotEqual(t, FileName(template.CategoryOrder, "o-1", at, uuid.NewString()), other)
}

func frozenClock(t *testing.T, g *Generator) {
	t.Helper()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return at }
}

func (f *fixture) download(t *testing.T, id string) error {
	t.Helper()

	doc, err := f.store.GetDocument(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	_, err = f.adapter.Download(context.Background(), doc.StoragePath, doc.Checksum)

	return err
}

func TestGenerator_LostRaceInSameMillisecondKeepsWinnerBlob(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store { return blindDedupStore{s} })
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	frozenClock(t, f.generator)
	ctx := context.Background()

	first := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, first.Success)
	second := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, second.Success)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, f.bucket.Len())
	assert.NoError(t, f.download(t, first.DocumentID))
}

func TestGenerator_ForceInSameMillisecondGetsOwnBlob(t *testing.T) {
	f := newFixture(t)
	f.createTemplate(t, orderDefinition("order", template.ModeSource, true))
	frozenClock(t, f.generator)
	ctx := context.Background()

	first := f.generator.Generate(ctx, orderRequest("o-1", "ORD-1"))
	require.True(t, first.Success)

	req := orderRequest("o-1", "ORD-2")
	req.Force = true
	forced := f.generator.Generate(ctx, req)
	require.True(t, forced.Success)

	assert.NotEqual(t, first.FileName, forced.FileName)
	assert.Equal(t, 2, f.bucket.Len())
	assert.NoError(t, f.download(t, first.DocumentID))
	assert.NoError(t, f.download(t, forced.DocumentID))
}
