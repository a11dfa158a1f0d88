package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/queue"
	"github.com/emrgen/docgen/internal/render"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/emrgen/docgen/internal/store"
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// GenerateRequest asks for the document of category for one entity.
type GenerateRequest struct {
	Category  template.Category `json:"category" validate:"required"`
	Variables vars.List         `json:"variables" validate:"dive"`
	Language  template.Language `json:"language"`
	Entity    model.EntityLink  `json:"entityLink"`
	// Force skips deduplication and always renders a new document.
	Force bool `json:"force"`
	// Retain exempts the document from lifecycle deletion.
	Retain     bool           `json:"retain"`
	Provenance map[string]any `json:"provenance,omitempty"`

	ActorID   string `json:"-"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type GenerateError struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// GenerateResult is the outcome of Generate. Failures are reported in Error,
// never as a Go error.
type GenerateResult struct {
	Success      bool           `json:"success"`
	DocumentID   string         `json:"documentId,omitempty"`
	FileName     string         `json:"fileName,omitempty"`
	Deduplicated bool           `json:"deduplicated"`
	Error        *GenerateError `json:"error,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// NewGenerator creates a new Generator.
func NewGenerator(store store.Store, templates *TemplateService, engine *render.Engine, adapter *storage.Adapter, events queue.DocumentQueue) *Generator {
	if events == nil {
		events = queue.NewNopQueue()
	}

	return &Generator{
		store:     store,
		templates: templates,
		engine:    engine,
		storage:   adapter,
		dedup:     NewDeduplicator(store),
		events:    events,
		now:       time.Now,
	}
}

// Generator turns a category, variables and an entity link into a stored document.
type Generator struct {
	store     store.Store
	templates *TemplateService
	engine    *render.Engine
	storage   *storage.Adapter
	dedup     *Deduplicator
	events    queue.DocumentQueue
	now       func() time.Time
}

// generation carries the resolved inputs of one request.
type generation struct {
	req        GenerateRequest
	lang       template.Language
	tmpl       *model.Template
	entityType model.EntityType
	entityID   string
	hash       string
}

// Generate runs the pipeline: resolve, deduplicate, render, upload, persist,
// log, publish.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (result GenerateResult) {
	start := g.now()
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("generate panicked: %v\n%s", r, debug.Stack())
			result = failed(apperr.New(apperr.KindInternal, "generate", fmt.Sprintf("unexpected failure: %v", r), nil))
		}

		outcome := "created"
		switch {
		case !result.Success:
			outcome = "failed"
		case result.Deduplicated:
			outcome = "deduplicated"
		}
		metrics.Generations.WithLabelValues(string(req.Category), outcome).Inc()
		logrus.WithFields(logrus.Fields{
			"category": req.Category,
			"document": result.DocumentID,
			"outcome":  outcome,
			"took":     g.now().Sub(start),
		}).Info("generate")
	}()

	gen, err := g.prepare(ctx, req)
	if err != nil {
		return failed(err)
	}

	if !req.Force {
		if doc, ok := g.dedup.Find(ctx, gen.entityType, gen.entityID, gen.tmpl.ID, gen.hash); ok {
			return GenerateResult{Success: true, DocumentID: doc.ID, FileName: doc.FileName, Deduplicated: true}
		}
	}

	data, report, err := g.engine.Compose(ctx, gen.tmpl.Definition(), req.Variables, gen.lang)
	if err != nil {
		return failed(renderError("generate.render", err))
	}
	metrics.RenderDuration.WithLabelValues(string(req.Category)).Observe(g.now().Sub(start).Seconds())
	metrics.RenderedPages.Observe(float64(len(report.Pages)))

	doc, deduplicated, err := g.persist(ctx, gen, data)
	if err != nil {
		return failed(err)
	}

	result = GenerateResult{
		Success:      true,
		DocumentID:   doc.ID,
		FileName:     doc.FileName,
		Deduplicated: deduplicated,
		Warnings:     report.Warnings,
	}
	if deduplicated {
		return result
	}

	if err := g.store.CreateAccessLog(ctx, &model.AccessLog{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		ActorID:    actorOrSystem(req.ActorID),
		Action:     string(model.ActionGenerate),
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}); err != nil {
		logrus.WithField("document", doc.ID).Warnf("generate access log not written: %v", err)
		result.Warnings = append(result.Warnings, "access log entry not written")
	}

	if err := g.events.PublishGenerated(ctx, queue.NewDocumentEvent(doc, req.ActorID)); err != nil {
		logrus.WithField("document", doc.ID).Warnf("document.generated not published: %v", err)
		result.Warnings = append(result.Warnings, "generated event not published")
	}

	return result
}

func (g *Generator) prepare(ctx context.Context, req GenerateRequest) (*generation, error) {
	if err := validate.Struct(req); err != nil {
		return nil, invalid("generate", err)
	}
	if !req.Category.Valid() {
		return nil, apperr.Validation("generate", fmt.Sprintf("unknown template category %q", req.Category))
	}

	lang := template.English
	if req.Language != "" {
		parsed, err := template.ParseLanguage(string(req.Language))
		if err != nil {
			return nil, invalid("generate", err)
		}
		lang = parsed
	}
	if lang != template.English && lang != template.Arabic {
		return nil, apperr.Validation("generate", fmt.Sprintf("unsupported language %q", lang))
	}

	entityType, entityID, err := req.Entity.Resolve()
	if err != nil {
		return nil, invalid("generate", err)
	}

	hash, err := vars.Hash(req.Variables)
	if err != nil {
		return nil, invalid("generate", err)
	}

	t, err := g.templates.Resolve(ctx, req.Category, lang)
	if err != nil {
		return nil, err
	}

	return &generation{
		req:        req,
		lang:       lang,
		tmpl:       t,
		entityType: entityType,
		entityID:   entityID,
		hash:       hash,
	}, nil
}

// FileName is {category}_{entityId}_{unix millis}_{short id}.pdf. The short
// id comes from the document id so two uploads never share a storage key.
func FileName(category template.Category, entityID string, at time.Time, documentID string) string {
	if entityID == "" {
		entityID = "unlinked"
	}
	entityID = strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(entityID)

	return fmt.Sprintf("%s_%s_%d_%s.pdf", category, entityID, at.UnixMilli(), shortID(documentID))
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// persist uploads data and persists the record. A dedup key collision means a
// concurrent request won; its document is returned and our own blob removed.
func (g *Generator) persist(ctx context.Context, gen *generation, data []byte) (*model.Document, bool, error) {
	now := g.now().UTC()
	id := uuid.NewString()
	name := FileName(gen.req.Category, gen.entityID, now, id)

	obj, err := g.storage.Upload(ctx, data, name, string(gen.req.Category))
	if err != nil {
		return nil, false, storageError("generate.upload", err)
	}

	var key *string
	if !gen.req.Force {
		key = model.DedupKey(gen.entityType, gen.entityID, gen.tmpl.ID, gen.hash)
	}

	doc := &model.Document{
		ID:           id,
		DocumentType: string(gen.req.Category),
		FileName:     name,
		StoragePath:  obj.Path,
		Size:         obj.Size,
		Checksum:     obj.Checksum,
		EntityType:   string(gen.entityType),
		EntityID:     gen.entityID,
		Metadata: datatypes.NewJSONType(model.DocumentMetadata{
			TemplateID:      gen.tmpl.ID,
			TemplateVersion: gen.tmpl.Version,
			VariablesHash:   gen.hash,
			GeneratedAt:     now,
			Language:        string(gen.lang),
			Retain:          gen.req.Retain,
			Provenance:      gen.req.Provenance,
		}),
		DedupKey:  key,
		CreatedAt: now,
	}

	err = g.store.CreateDocument(ctx, doc)
	if err == nil {
		return doc, false, nil
	}

	if errors.Is(err, store.ErrDuplicate) && key != nil {
		winner, werr := g.dedup.Winner(ctx, *key)
		if werr == nil {
			if winner.StoragePath != obj.Path {
				g.discard(ctx, obj.Path)
			}
			logrus.WithField("document", winner.ID).Info("lost generation race, returning the stored document")
			return winner, true, nil
		}
		err = errors.Join(err, werr)
	}
	g.discard(ctx, obj.Path)

	return nil, false, apperr.New(apperr.KindInternal, "generate.persist", "document record not saved", err)
}

// discard removes an uploaded blob that has no record.
func (g *Generator) discard(ctx context.Context, path string) {
	if err := g.storage.Delete(context.WithoutCancel(ctx), path); err != nil {
		logrus.WithField("path", path).Warnf("orphaned blob not removed: %v", err)
	}
}

func failed(err error) GenerateResult {
	kind := apperr.KindOf(err)
	logrus.WithField("kind", kind).Warnf("generate failed: %v", err)

	return GenerateResult{Error: &GenerateError{Kind: kind, Message: err.Error()}}
}

func actorOrSystem(id string) string {
	if id == "" {
		return "system"
	}
	return id
}
