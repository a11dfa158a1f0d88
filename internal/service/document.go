package service

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/docgen/internal/access"
	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/emrgen/docgen/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewDocumentService creates a new DocumentService.
func NewDocumentService(store store.Store, adapter *storage.Adapter, signer *access.Signer) *DocumentService {
	return &DocumentService{
		store:   store,
		storage: adapter,
		signer:  signer,
		now:     time.Now,
	}
}

// DocumentService serves stored documents to authorized readers.
type DocumentService struct {
	store   store.Store
	storage *storage.Adapter
	signer  *access.Signer
	now     func() time.Time
}

// Requester is the caller of a read, recorded in the access log.
type Requester struct {
	Actor     access.Actor
	IPAddress string
	UserAgent string
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Get returns the record of a document the requester may read and logs a view.
func (d *DocumentService) Get(ctx context.Context, id uuid.UUID, r Requester) (*model.Document, error) {
	doc, err := d.authorized(ctx, "document.get", id, r.Actor)
	if err != nil {
		return nil, err
	}

	d.log(ctx, doc.ID, model.ActionView, r)
	return doc, nil
}

// List returns documents matching filter. Unprivileged actors only see their own.
func (d *DocumentService) List(ctx context.Context, filter store.DocumentFilter, actor access.Actor) ([]*model.Document, int64, error) {
	if !actor.Privileged() {
		if actor.ID == "" || (filter.EntityID != "" && filter.EntityID != actor.ID) {
			return nil, 0, apperr.New(apperr.KindForbidden, "document.list", ErrAccessDenied.Error(), ErrAccessDenied)
		}
		filter.EntityID = actor.ID
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	docs, total, err := d.store.ListDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.New(apperr.KindInternal, "document.list", "", err)
	}

	return docs, total, nil
}

// IssueToken signs a two hour download token for a document the actor may read.
func (d *DocumentService) IssueToken(ctx context.Context, id uuid.UUID, actor access.Actor) (*Token, error) {
	doc, err := d.authorized(ctx, "document.token", id, actor)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := d.signer.Issue(doc.ID, actor.ID)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "document.token", "", err)
	}

	return &Token{Token: token, ExpiresAt: expiresAt}, nil
}

// Download verifies the token, then returns the document bytes checked
// against the stored checksum.
func (d *DocumentService) Download(ctx context.Context, id uuid.UUID, token string, r Requester) (*model.Document, []byte, error) {
	claims, err := d.signer.VerifyFor(token, id.String())
	if err != nil {
		metrics.TokenVerifications.WithLabelValues(tokenResult(err)).Inc()
		return nil, nil, apperr.New(apperr.KindForbidden, "document.download", err.Error(), err)
	}
	metrics.TokenVerifications.WithLabelValues("valid").Inc()

	doc, err := d.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, notFoundOr("document.download", err, ErrDocumentNotFound)
	}

	data, err := d.storage.Download(ctx, doc.StoragePath, doc.Checksum)
	if err != nil {
		return nil, nil, storageError("document.download", err)
	}

	if err := d.store.RecordDocumentView(ctx, id, d.now().UTC()); err != nil {
		logrus.WithField("document", doc.ID).Warnf("view count not updated: %v", err)
	}
	if r.Actor.ID == "" {
		r.Actor.ID = claims.ActorID
	}
	d.log(ctx, doc.ID, model.ActionDownload, r)

	return doc, data, nil
}

// ListAccessLogs returns the access history of a document, oldest first.
func (d *DocumentService) ListAccessLogs(ctx context.Context, id uuid.UUID, actor access.Actor) ([]*model.AccessLog, error) {
	if !actor.Privileged() {
		return nil, apperr.New(apperr.KindForbidden, "document.access_logs", ErrAccessDenied.Error(), ErrAccessDenied)
	}
	if _, err := d.store.GetDocument(ctx, id); err != nil {
		return nil, notFoundOr("document.access_logs", err, ErrDocumentNotFound)
	}

	logs, err := d.store.ListAccessLogs(ctx, id)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "document.access_logs", "", err)
	}

	return logs, nil
}

// authorized loads a document and checks the actor may read it. Denials look
// like a missing document so ids cannot be enumerated.
func (d *DocumentService) authorized(ctx context.Context, op string, id uuid.UUID, actor access.Actor) (*model.Document, error) {
	doc, err := d.store.GetDocument(ctx, id)
	if err != nil {
		return nil, notFoundOr(op, err, ErrDocumentNotFound)
	}
	if !access.CanAccess(doc.EntityID, actor) {
		logrus.WithFields(logrus.Fields{"document": doc.ID, "actor": actor.ID}).Warn("document access denied")
		return nil, apperr.NotFound(op, ErrDocumentNotFound.Error(), errors.Join(ErrDocumentNotFound, ErrAccessDenied))
	}

	return doc, nil
}

// log appends an access log entry. A failed write is logged, not returned.
func (d *DocumentService) log(ctx context.Context, docID string, action model.AccessAction, r Requester) {
	err := d.store.CreateAccessLog(ctx, &model.AccessLog{
		ID:         uuid.NewString(),
		DocumentID: docID,
		ActorID:    actorOrSystem(r.Actor.ID),
		Action:     string(action),
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"document": docID, "action": action}).Warnf("access log not written: %v", err)
	}
}

func tokenResult(err error) string {
	switch {
	case errors.Is(err, access.ErrTokenExpired):
		return "expired"
	case errors.Is(err, access.ErrTokenMismatch):
		return "mismatch"
	}
	return "invalid"
}
