// Package queue publishes document lifecycle events to downstream consumers.
package queue

import (
	"context"
	"time"

	"github.com/emrgen/docgen/internal/model"
)

var TopicDocumentGenerated = "document.generated"

// DocumentEvent is the payload of a document.generated message.
type DocumentEvent struct {
	Type         string    `json:"type"`
	DocumentID   string    `json:"documentId"`
	DocumentType string    `json:"documentType"`
	FileName     string    `json:"fileName"`
	EntityType   string    `json:"entityType,omitempty"`
	EntityID     string    `json:"entityId,omitempty"`
	TemplateID   string    `json:"templateId"`
	Language     string    `json:"language"`
	Size         int64     `json:"size"`
	ActorID      string    `json:"actorId,omitempty"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// NewDocumentEvent describes a freshly generated document.
func NewDocumentEvent(doc *model.Document, actorID string) DocumentEvent {
	meta := doc.Meta()
	return DocumentEvent{
		Type:         TopicDocumentGenerated,
		DocumentID:   doc.ID,
		DocumentType: doc.DocumentType,
		FileName:     doc.FileName,
		EntityType:   doc.EntityType,
		EntityID:     doc.EntityID,
		TemplateID:   meta.TemplateID,
		Language:     meta.Language,
		Size:         doc.Size,
		ActorID:      actorID,
		GeneratedAt:  meta.GeneratedAt,
	}
}

type DocumentQueue interface {
	// PublishGenerated announces a generated document. Delivery is best effort.
	PublishGenerated(ctx context.Context, event DocumentEvent) error
	// Close flushes pending messages and releases the producer.
	Close()
}
