package service

import (
	"context"
	"fmt"
	"time"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/cache"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/render"
	"github.com/emrgen/docgen/internal/store"
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewTemplateService creates a new TemplateService.
func NewTemplateService(store store.Store, templates *cache.TemplateCache, previews *cache.PreviewCache, engine *render.Engine) *TemplateService {
	return &TemplateService{
		store:     store,
		templates: templates,
		previews:  previews,
		engine:    engine,
	}
}

// TemplateService manages templates and their version history.
type TemplateService struct {
	store     store.Store
	templates *cache.TemplateCache
	previews  *cache.PreviewCache
	engine    *render.Engine
}

// TemplatePatch changes the fields that are not nil.
type TemplatePatch struct {
	Name      *string                `json:"name,omitempty"`
	Category  *template.Category     `json:"category,omitempty"`
	Mode      *template.LanguageMode `json:"languageMode,omitempty"`
	Sections  *template.Sections     `json:"sections,omitempty"`
	Variables *[]string              `json:"variables,omitempty"`
	Styles    *template.Styles       `json:"styles,omitempty"`
	IsActive  *bool                  `json:"isActive,omitempty"`
	IsDefault *bool                  `json:"isDefault,omitempty"`
}

func (p TemplatePatch) apply(def *template.Definition) {
	if p.Name != nil {
		def.Name = *p.Name
	}
	if p.Category != nil {
		def.Category = *p.Category
	}
	if p.Mode != nil {
		def.Mode = *p.Mode
	}
	if p.Sections != nil {
		def.Sections = *p.Sections
	}
	if p.Variables != nil {
		def.Variables = *p.Variables
	}
	if p.Styles != nil {
		def.Styles = *p.Styles
	}
	if p.IsActive != nil {
		def.IsActive = *p.IsActive
	}
	if p.IsDefault != nil {
		def.IsDefault = *p.IsDefault
	}
}

// Create stores a new template at version 1. A default template takes the
// default flag from its siblings.
func (s *TemplateService) Create(ctx context.Context, def template.Definition, author string) (*model.Template, error) {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, invalid("template.create", err)
	}

	t := &model.Template{
		ID:        uuid.NewString(),
		Version:   1,
		CreatedBy: author,
	}
	t.Apply(def)

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if t.IsDefault {
			if err := tx.ClearDefaultTemplates(ctx, t.Category, uuid.MustParse(t.ID)); err != nil {
				return err
			}
		}
		return tx.CreateTemplate(ctx, t)
	})
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "template.create", "", err)
	}

	s.templates.Invalidate(def.Category)
	logrus.WithFields(logrus.Fields{"template": t.ID, "category": t.Category}).Info("template created")

	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, notFoundOr("template.get", err, ErrTemplateNotFound)
	}

	return t, nil
}

// List returns the templates of category, or all when category is empty.
func (s *TemplateService) List(ctx context.Context, category string, activeOnly bool) ([]*model.Template, error) {
	if category != "" {
		if _, err := template.ParseCategory(category); err != nil {
			return nil, invalid("template.list", err)
		}
	}

	templates, err := s.store.ListTemplates(ctx, store.TemplateFilter{Category: category, ActiveOnly: activeOnly})
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "template.list", "", err)
	}

	return templates, nil
}

// Update snapshots the current state as a new version, then applies patch.
func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, patch TemplatePatch, author, reason string) (*model.Template, error) {
	makeDefault := patch.IsDefault != nil && *patch.IsDefault
	return s.update(ctx, "template.update", id, author, makeDefault, func(store.Store, *template.Definition) (string, error) {
		return reason, nil
	}, patch.apply)
}

// RestoreVersion writes the content of a snapshot back as the newest version.
// The pre-restore state is snapshotted like any other update.
func (s *TemplateService) RestoreVersion(ctx context.Context, id, versionID uuid.UUID, author string) (*model.Template, error) {
	var snapshot *model.TemplateVersion
	t, err := s.update(ctx, "template.restore", id, author, false, func(tx store.Store, _ *template.Definition) (string, error) {
		v, err := tx.GetTemplateVersion(ctx, id, versionID)
		if err != nil {
			return "", notFoundOr("template.restore", err, ErrVersionNotFound)
		}
		snapshot = v
		return fmt.Sprintf("restored from version %d", v.Sequence), nil
	}, func(def *template.Definition) {
		def.Name = snapshot.Name
		def.Mode = template.LanguageMode(snapshot.LanguageMode)
		def.Sections = snapshot.Sections.Data()
		def.Variables = []string(snapshot.Variables)
		def.Styles = snapshot.Styles.Data()
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"template": t.ID, "version": snapshot.Sequence}).Info("template restored")
	return t, nil
}

// update writes the pre-update snapshot and the mutated template in one
// transaction. prepare runs first and supplies the snapshot reason.
func (s *TemplateService) update(
	ctx context.Context,
	op string,
	id uuid.UUID,
	author string,
	makeDefault bool,
	prepare func(tx store.Store, def *template.Definition) (string, error),
	mutate func(def *template.Definition),
) (*model.Template, error) {
	var t *model.Template
	var previous template.Category

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		current, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return notFoundOr(op, err, ErrTemplateNotFound)
		}
		previous = template.Category(current.Category)

		def := current.Definition()
		reason, err := prepare(tx, &def)
		if err != nil {
			return err
		}
		mutate(&def)
		def.Normalize()
		if err := def.Validate(); err != nil {
			return invalid(op, err)
		}

		seq, err := tx.LastTemplateVersionSequence(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.CreateTemplateVersion(ctx, current.Snapshot(uuid.NewString(), seq+1, author, reason)); err != nil {
			return err
		}

		current.Apply(def)
		current.Version++
		// a default moved to another category must not collide there
		if makeDefault || (current.IsDefault && template.Category(current.Category) != previous) {
			if err := tx.ClearDefaultTemplates(ctx, current.Category, id); err != nil {
				return err
			}
		}
		if err := tx.UpdateTemplate(ctx, current); err != nil {
			return err
		}

		t = current
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}

	s.templates.Invalidate(previous)
	s.templates.Invalidate(template.Category(t.Category))
	logrus.WithFields(logrus.Fields{"template": t.ID, "version": t.Version}).Debug("template updated")

	return t, nil
}

// Duplicate copies a template under a new name. The copy starts inactive and
// not default so it cannot take over generation by accident.
func (s *TemplateService) Duplicate(ctx context.Context, id uuid.UUID, name, author string) (*model.Template, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	def := src.Definition()
	if name == "" {
		name = src.Name + " (copy)"
	}
	def.Name = name
	def.IsActive = false
	def.IsDefault = false

	return s.Create(ctx, def, author)
}

type DeleteResult struct {
	// Retired is set when documents reference the template, so it was only deactivated.
	Retired bool `json:"retired"`
}

// Delete hard-deletes an unreferenced template with its history. A template
// that documents were generated from is retired instead.
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error) {
	var result DeleteResult
	var category template.Category

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return notFoundOr("template.delete", err, ErrTemplateNotFound)
		}
		category = template.Category(t.Category)

		used, err := tx.CountTemplateDocuments(ctx, id)
		if err != nil {
			return err
		}
		if used == 0 {
			return tx.DeleteTemplate(ctx, id)
		}

		t.IsActive = false
		t.IsDefault = false
		result.Retired = true
		return tx.UpdateTemplate(ctx, t)
	})
	if err != nil {
		return DeleteResult{}, classify("template.delete", err)
	}

	s.templates.Invalidate(category)
	logrus.WithFields(logrus.Fields{"template": id, "retired": result.Retired}).Info("template deleted")

	return result, nil
}

// ListVersions returns the snapshots of a template, newest first.
func (s *TemplateService) ListVersions(ctx context.Context, id uuid.UUID) ([]*model.TemplateVersion, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	versions, err := s.store.ListTemplateVersions(ctx, id)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "template.versions", "", err)
	}

	return versions, nil
}

// Resolve picks the template that generates category documents in lang: the
// default one when it supports lang, else the newest active one that does.
func (s *TemplateService) Resolve(ctx context.Context, category template.Category, lang template.Language) (*model.Template, error) {
	if t, ok := s.templates.Get(category, lang); ok {
		return t, nil
	}

	candidates, err := s.store.ListTemplates(ctx, store.TemplateFilter{Category: string(category), ActiveOnly: true})
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "template.resolve", "", err)
	}

	var chosen *model.Template
	for _, t := range candidates {
		if !template.LanguageMode(t.LanguageMode).Supports(lang) || !t.Usable() {
			continue
		}
		if t.IsDefault {
			chosen = t
			break
		}
		if chosen == nil {
			chosen = t
		}
	}
	if chosen == nil {
		return nil, apperr.NotFound("template.resolve", fmt.Sprintf("%s: %s/%s", ErrNoTemplate, category, lang), ErrNoTemplate)
	}

	s.templates.Set(category, lang, chosen)
	return chosen, nil
}

// ClearCache drops every resolved template and returns how many were held.
func (s *TemplateService) ClearCache() int {
	return s.templates.Clear()
}

// Preview renders a template without persisting anything. Results are cached
// by template, language and variables.
func (s *TemplateService) Preview(ctx context.Context, id uuid.UUID, variables vars.List, lang template.Language) ([]byte, bool, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	hash, err := vars.Hash(variables)
	if err != nil {
		return nil, false, invalid("template.preview", err)
	}
	// the version is part of the key so edits never serve a stale preview
	key := cache.PreviewKey(fmt.Sprintf("%s@%d", t.ID, t.Version), lang, hash)
	if data, ok := s.previews.GetKey(ctx, key); ok {
		return data, true, nil
	}

	start := time.Now()
	data, err := s.engine.Render(ctx, t.Definition(), variables, lang)
	if err != nil {
		return nil, false, renderError("template.preview", err)
	}
	logrus.WithFields(logrus.Fields{"template": t.ID, "language": lang, "took": time.Since(start)}).Debug("preview rendered")

	s.previews.SetKey(ctx, key, data)
	return data, false, nil
}
