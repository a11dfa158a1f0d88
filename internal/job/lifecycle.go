// Package job holds the document retention sweep.
package job

import (
	"context"
	"errors"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/docgen/internal/cache"
	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/emrgen/docgen/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultArchiveAfter = 365 * 24 * time.Hour
	DefaultDeleteAfter  = 3 * 365 * 24 * time.Hour
	DefaultBatchSize    = 200
)

// Policy sets the document ages at which the sweep acts.
type Policy struct {
	ArchiveAfter time.Duration
	DeleteAfter  time.Duration
	// PreviewTTL is the age past which mirrored previews are purged.
	PreviewTTL time.Duration
	BatchSize  int
}

func (p Policy) withDefaults() Policy {
	if p.ArchiveAfter <= 0 {
		p.ArchiveAfter = DefaultArchiveAfter
	}
	if p.DeleteAfter <= 0 {
		p.DeleteAfter = DefaultDeleteAfter
	}
	if p.PreviewTTL <= 0 {
		p.PreviewTTL = cache.DefaultPreviewTTL
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}

	return p
}

// PhaseStats counts what one phase did with each item it looked at.
type PhaseStats struct {
	Scanned   int `json:"scanned"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (s *PhaseStats) record(phase, result string) {
	switch result {
	case "succeeded":
		s.Succeeded++
	case "skipped":
		s.Skipped++
	case "failed":
		s.Failed++
	}
	metrics.LifecycleItems.WithLabelValues(phase, result).Inc()
}

type Stats struct {
	Archive  PhaseStats    `json:"archive"`
	Delete   PhaseStats    `json:"delete"`
	Previews PhaseStats    `json:"previews"`
	Took     time.Duration `json:"took"`
}

// Lifecycle archives old documents, deletes expired ones and purges stale
// preview mirrors. A failing item is counted and the sweep moves on.
type Lifecycle struct {
	store   store.Store
	storage *storage.Adapter
	mirror  cache.Mirror
	policy  Policy
	now     func() time.Time
}

// NewLifecycle creates a new Lifecycle. mirror may be nil.
func NewLifecycle(store store.Store, adapter *storage.Adapter, mirror cache.Mirror, policy Policy) *Lifecycle {
	return &Lifecycle{
		store:   store,
		storage: adapter,
		mirror:  mirror,
		policy:  policy.withDefaults(),
		now:     time.Now,
	}
}

// Run runs every phase once.
func (l *Lifecycle) Run(ctx context.Context) Stats {
	start := l.now()
	stats := Stats{
		Archive:  l.Archive(ctx),
		Delete:   l.DeleteExpired(ctx),
		Previews: l.PurgePreviews(ctx),
	}
	stats.Took = l.now().Sub(start)

	logrus.WithFields(logrus.Fields{
		"archived": stats.Archive.Succeeded,
		"deleted":  stats.Delete.Succeeded,
		"purged":   stats.Previews.Succeeded,
		"failed":   stats.Archive.Failed + stats.Delete.Failed + stats.Previews.Failed,
		"took":     stats.Took,
	}).Info("lifecycle sweep finished")

	return stats
}

// Archive flags documents older than the archive age.
func (l *Lifecycle) Archive(ctx context.Context) PhaseStats {
	var stats PhaseStats
	l.scan(ctx, "archive", l.now().Add(-l.policy.ArchiveAfter), &stats, func(doc *model.Document) string {
		if doc.Archived {
			return "skipped"
		}
		if err := l.store.ArchiveDocument(ctx, uuid.MustParse(doc.ID)); err != nil {
			logrus.WithField("document", doc.ID).Warnf("archive failed: %v", err)
			return "failed"
		}
		return "succeeded"
	})

	return stats
}

// DeleteExpired removes the blob and then the record of documents older than
// the delete age. Retained documents are skipped. A record whose blob could
// not be removed is kept so the next sweep retries it.
func (l *Lifecycle) DeleteExpired(ctx context.Context) PhaseStats {
	var stats PhaseStats
	l.scan(ctx, "delete", l.now().Add(-l.policy.DeleteAfter), &stats, func(doc *model.Document) string {
		if doc.Meta().Retain {
			return "skipped"
		}

		log := logrus.WithFields(logrus.Fields{"document": doc.ID, "path": doc.StoragePath})
		if err := l.storage.Delete(ctx, doc.StoragePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Warnf("blob delete failed: %v", err)
			return "failed"
		}
		if err := l.store.DeleteDocument(ctx, uuid.MustParse(doc.ID)); err != nil {
			log.Warnf("record delete failed: %v", err)
			return "failed"
		}
		return "succeeded"
	})

	return stats
}

// scan pages through documents created before cutoff in id order.
func (l *Lifecycle) scan(ctx context.Context, phase string, cutoff time.Time, stats *PhaseStats, visit func(doc *model.Document) string) {
	seen := goset.NewThreadUnsafeSet[string]()
	after := ""
	for ctx.Err() == nil {
		docs, err := l.store.ListDocumentsCreatedBefore(ctx, cutoff, after, l.policy.BatchSize)
		if err != nil {
			logrus.Errorf("lifecycle %s: listing documents failed: %v", phase, err)
			stats.record(phase, "failed")
			return
		}
		if len(docs) == 0 {
			return
		}

		for _, doc := range docs {
			if seen.Contains(doc.ID) {
				continue
			}
			seen.Add(doc.ID)
			stats.Scanned++
			stats.record(phase, visit(doc))
		}
		after = docs[len(docs)-1].ID
	}
}

// PurgePreviews removes mirrored previews older than the preview TTL.
func (l *Lifecycle) PurgePreviews(ctx context.Context) PhaseStats {
	var stats PhaseStats
	if l.mirror == nil {
		return stats
	}

	entries, err := l.mirror.Entries(ctx)
	if err != nil {
		logrus.Errorf("lifecycle previews: listing mirror failed: %v", err)
		stats.record("previews", "failed")
		return stats
	}

	cutoff := l.now().Add(-l.policy.PreviewTTL)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		stats.Scanned++
		if entry.StoredAt.After(cutoff) {
			stats.record("previews", "skipped")
			continue
		}
		if err := l.mirror.Remove(ctx, entry.Key); err != nil {
			logrus.WithField("key", entry.Key).Warnf("preview purge failed: %v", err)
			stats.record("previews", "failed")
			continue
		}
		stats.record("previews", "succeeded")
	}

	return stats
}
