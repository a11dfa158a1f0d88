package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type EntityType string

const (
	EntityOrder      EntityType = "order"
	EntityPriceOffer EntityType = "price-offer"
	EntityLTA        EntityType = "lta"
	EntityClient     EntityType = "client"
)

var ErrAmbiguousEntity = errors.New("a document links to at most one entity")

// EntityLink names the business object a document belongs to. At most one id is set.
type EntityLink struct {
	OrderID      string `json:"orderId,omitempty"`
	PriceOfferID string `json:"priceOfferId,omitempty"`
	LTAID        string `json:"ltaId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
}

// Resolve returns the single linked entity, or empty values when none is set.
func (l EntityLink) Resolve() (EntityType, string, error) {
	var typ EntityType
	var id string
	n := 0
	for _, c := range []struct {
		typ EntityType
		id  string
	}{
		{EntityOrder, l.OrderID},
		{EntityPriceOffer, l.PriceOfferID},
		{EntityLTA, l.LTAID},
		{EntityClient, l.ClientID},
	} {
		if strings.TrimSpace(c.id) == "" {
			continue
		}
		n++
		typ, id = c.typ, strings.TrimSpace(c.id)
	}
	if n > 1 {
		return "", "", ErrAmbiguousEntity
	}

	return typ, id, nil
}

// DocumentMetadata is stored as JSON on the document row.
type DocumentMetadata struct {
	TemplateID      string         `json:"templateId"`
	TemplateVersion int64          `json:"templateVersion"`
	VariablesHash   string         `json:"variablesHash"`
	GeneratedAt     time.Time      `json:"generatedAt"`
	Language        string         `json:"language"`
	Retain          bool           `json:"retain,omitempty"`
	Provenance      map[string]any `json:"provenance,omitempty"`
}

// Document is the record of a generated and stored PDF.
type Document struct {
	ID           string                               `gorm:"primaryKey;type:varchar(36)"`
	DocumentType string                               `gorm:"not null;index:idx_documents_type"`
	FileName     string                               `gorm:"not null"`
	StoragePath  string                               `gorm:"not null"`
	Size         int64                                `gorm:"not null"`
	Checksum     string                               `gorm:"not null;type:varchar(64)"`
	EntityType   string                               `gorm:"index:idx_documents_entity"`
	EntityID     string                               `gorm:"index:idx_documents_entity"`
	ViewCount    int64                                `gorm:"not null"`
	LastViewedAt *time.Time                           `gorm:""`
	Metadata     datatypes.JSONType[DocumentMetadata] `gorm:"not null"`
	Archived     bool                                 `gorm:"not null;index:idx_documents_archived"`
	DedupKey     *string                              `gorm:"uniqueIndex:idx_documents_dedup_key"`
	CreatedAt    time.Time                            `gorm:"index:idx_documents_created_at"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) Meta() DocumentMetadata {
	return d.Metadata.Data()
}

// DedupKey identifies a generation for compare-and-swap inserts. Unlinked
// documents have no key.
func DedupKey(entityType EntityType, entityID, templateID, variablesHash string) *string {
	if entityType == "" || entityID == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s:%s:%s", entityType, entityID, templateID, variablesHash)
	return &key
}

type AccessAction string

const (
	ActionView     AccessAction = "view"
	ActionDownload AccessAction = "download"
	ActionGenerate AccessAction = "generate"
)

// AccessLog is append-only. Nothing in the service updates or removes it.
type AccessLog struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	DocumentID string    `gorm:"not null;type:varchar(36);index:idx_access_logs_document"`
	ActorID    string    `gorm:"not null"`
	Action     string    `gorm:"not null"`
	IPAddress  string    `gorm:""`
	UserAgent  string    `gorm:""`
	CreatedAt  time.Time `gorm:"index:idx_access_logs_document"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}
