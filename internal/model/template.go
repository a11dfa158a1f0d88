package model

import (
	"time"

	"github.com/emrgen/docgen/internal/template"
	"gorm.io/datatypes"
)

// Template is a stored template definition. Version grows by one on every update.
type Template struct {
	ID           string                                `gorm:"primaryKey;type:varchar(36)"`
	Name         string                                `gorm:"not null"`
	Category     string                                `gorm:"not null;index:idx_templates_category"`
	LanguageMode string                                `gorm:"not null"`
	Sections     datatypes.JSONType[template.Sections] `gorm:"not null"`
	Variables    datatypes.JSONSlice[string]           `gorm:""`
	Styles       datatypes.JSONType[template.Styles]   `gorm:""`
	IsActive     bool                                  `gorm:"not null"`
	IsDefault    bool                                  `gorm:"not null"`
	Version      int64                                 `gorm:"not null"`
	CreatedBy    string                                `gorm:""`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Template) TableName() string {
	return "templates"
}

// Definition returns the template content.
func (t *Template) Definition() template.Definition {
	return template.Definition{
		Name:      t.Name,
		Category:  template.Category(t.Category),
		Mode:      template.LanguageMode(t.LanguageMode),
		Sections:  t.Sections.Data(),
		Variables: []string(t.Variables),
		Styles:    t.Styles.Data(),
		IsActive:  t.IsActive,
		IsDefault: t.IsDefault,
	}
}

// Apply overwrites the content fields of t with def.
func (t *Template) Apply(def template.Definition) {
	t.Name = def.Name
	t.Category = string(def.Category)
	t.LanguageMode = string(def.Mode)
	t.Sections = datatypes.NewJSONType(def.Sections)
	t.Variables = datatypes.JSONSlice[string](template.UniqueKeys(def.Variables))
	t.Styles = datatypes.NewJSONType(def.Styles)
	t.IsActive = def.IsActive
	t.IsDefault = def.IsDefault
}

// Usable reports whether t can serve a render, i.e. it is not an empty shell.
func (t *Template) Usable() bool {
	return t != nil && t.ID != "" && len(t.Sections.Data()) > 0
}

// TemplateVersion is the immutable snapshot of a template taken before an update.
type TemplateVersion struct {
	ID           string                                `gorm:"primaryKey;type:varchar(36)"`
	TemplateID   string                                `gorm:"not null;type:varchar(36);uniqueIndex:idx_template_versions_seq"`
	Sequence     int64                                 `gorm:"not null;uniqueIndex:idx_template_versions_seq"`
	Name         string                                `gorm:"not null"`
	LanguageMode string                                `gorm:"not null"`
	Sections     datatypes.JSONType[template.Sections] `gorm:"not null"`
	Variables    datatypes.JSONSlice[string]           `gorm:""`
	Styles       datatypes.JSONType[template.Styles]   `gorm:""`
	Reason       string                                `gorm:""`
	Author       string                                `gorm:""`
	CreatedAt    time.Time
}

func (TemplateVersion) TableName() string {
	return "template_versions"
}

// Snapshot captures the current content of t as version seq.
func (t *Template) Snapshot(id string, seq int64, author, reason string) *TemplateVersion {
	return &TemplateVersion{
		ID:           id,
		TemplateID:   t.ID,
		Sequence:     seq,
		Name:         t.Name,
		LanguageMode: t.LanguageMode,
		Sections:     datatypes.NewJSONType(t.Sections.Data()),
		Variables:    append(datatypes.JSONSlice[string]{}, t.Variables...),
		Styles:       datatypes.NewJSONType(t.Styles.Data()),
		Reason:       reason,
		Author:       author,
	}
}
