package server

import (
	"time"

	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/service"
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
)

type documentView struct {
	ID           string                 `json:"id"`
	DocumentType string                 `json:"documentType"`
	FileName     string                 `json:"fileName"`
	Size         int64                  `json:"size"`
	Checksum     string                 `json:"checksum"`
	EntityType   string                 `json:"entityType,omitempty"`
	EntityID     string                 `json:"entityId,omitempty"`
	ViewCount    int64                  `json:"viewCount"`
	LastViewedAt *time.Time             `json:"lastViewedAt,omitempty"`
	Archived     bool                   `json:"archived"`
	Metadata     model.DocumentMetadata `json:"metadata"`
	CreatedAt    time.Time              `json:"createdAt"`
}

func newDocumentView(d *model.Document) documentView {
	return documentView{
		ID:           d.ID,
		DocumentType: d.DocumentType,
		FileName:     d.FileName,
		Size:         d.Size,
		Checksum:     d.Checksum,
		EntityType:   d.EntityType,
		EntityID:     d.EntityID,
		ViewCount:    d.ViewCount,
		LastViewedAt: d.LastViewedAt,
		Archived:     d.Archived,
		Metadata:     d.Meta(),
		CreatedAt:    d.CreatedAt,
	}
}

type documentList struct {
	Documents []documentView `json:"documents"`
	Total     int64          `json:"total"`
}

type templateView struct {
	ID string `json:"id"`
	template.Definition
	Version   int64     `json:"version"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newTemplateView(t *model.Template) templateView {
	return templateView{
		ID:         t.ID,
		Definition: t.Definition(),
		Version:    t.Version,
		CreatedBy:  t.CreatedBy,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

type versionView struct {
	ID           string            `json:"id"`
	TemplateID   string            `json:"templateId"`
	Sequence     int64             `json:"sequence"`
	Name         string            `json:"name"`
	LanguageMode string            `json:"languageMode"`
	Sections     template.Sections `json:"sections"`
	Variables    []string          `json:"variables"`
	Styles       template.Styles   `json:"styles"`
	Reason       string            `json:"reason,omitempty"`
	Author       string            `json:"author,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func newVersionView(v *model.TemplateVersion) versionView {
	return versionView{
		ID:           v.ID,
		TemplateID:   v.TemplateID,
		Sequence:     v.Sequence,
		Name:         v.Name,
		LanguageMode: v.LanguageMode,
		Sections:     v.Sections.Data(),
		Variables:    []string(v.Variables),
		Styles:       v.Styles.Data(),
		Reason:       v.Reason,
		Author:       v.Author,
		CreatedAt:    v.CreatedAt,
	}
}

type accessLogView struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newAccessLogView(l *model.AccessLog) accessLogView {
	return accessLogView{
		ID:         l.ID,
		DocumentID: l.DocumentID,
		ActorID:    l.ActorID,
		Action:     l.Action,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt,
	}
}

func mapViews[T, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}

type previewRequest struct {
	Variables vars.List         `json:"variables"`
	Language  template.Language `json:"language"`
}

type updateTemplateRequest struct {
	service.TemplatePatch
	Reason string `json:"reason"`
}

type duplicateRequest struct {
	Name string `json:"name"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
	Retired bool `json:"retired"`
}
