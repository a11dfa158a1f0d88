package service

import (
	"context"
	"errors"

	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/store"
	"github.com/sirupsen/logrus"
)

// Deduplicator finds documents already generated for the same entity from the
// same template and variables.
type Deduplicator struct {
	store store.DocumentStore
}

func NewDeduplicator(store store.DocumentStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// Find returns the earliest matching document. Lookups that fail report a
// miss so generation proceeds; failures are counted in
// docgen_dedup_check_failures_total.
func (d *Deduplicator) Find(ctx context.Context, entityType model.EntityType, entityID, templateID, variablesHash string) (*model.Document, bool) {
	if entityType == "" || entityID == "" {
		return nil, false
	}

	doc, err := d.store.FindDuplicate(ctx, store.DuplicateQuery{
		EntityType:    string(entityType),
		EntityID:      entityID,
		TemplateID:    templateID,
		VariablesHash: variablesHash,
	})
	switch {
	case err == nil:
		return doc, true
	case errors.Is(err, store.ErrNotFound):
		return nil, false
	}

	metrics.DedupCheckFailures.Inc()
	logrus.WithFields(logrus.Fields{
		"entityType": entityType,
		"entityId":   entityID,
		"template":   templateID,
	}).Warnf("duplicate check failed, generating anyway: %v", err)

	return nil, false
}

// Winner returns the document holding key after a lost insert race.
func (d *Deduplicator) Winner(ctx context.Context, key string) (*model.Document, error) {
	return d.store.GetDocumentByDedupKey(ctx, key)
}
