package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/emrgen/docgen/internal/access"
	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/service"
	"github.com/emrgen/docgen/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindValidation, r.URL.Path, fmt.Sprintf("invalid %s", name), service.ErrInvalidID)
	}
	return id, nil
}

// generate answers 201 for a new document, 200 for a deduplicated one and the
// status of the failure kind otherwise. The body is always a GenerateResult.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "document.generate", "malformed request body")
		return
	}

	rq := requester(r)
	if !mayGenerate(req.Entity, rq.Actor) {
		writeError(w, r, apperr.New(apperr.KindForbidden, "document.generate", service.ErrAccessDenied.Error(), service.ErrAccessDenied))
		return
	}
	req.ActorID = rq.Actor.ID
	req.IPAddress = rq.IPAddress
	req.UserAgent = rq.UserAgent

	result := h.generator.Generate(r.Context(), req)
	switch {
	case !result.Success:
		writeJSON(w, statusOf(result.Error.Kind), result)
	case result.Deduplicated:
		writeJSON(w, http.StatusOK, result)
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

// mayGenerate lets privileged callers generate anything and everyone else
// only documents linked to themselves.
func mayGenerate(link model.EntityLink, actor access.Actor) bool {
	if actor.Privileged() {
		return true
	}

	_, entityID, err := link.Resolve()
	if err != nil {
		// the generator reports the ambiguity
		return true
	}
	return access.CanAccess(entityID, actor)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DocumentFilter{
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		Type:       q.Get("type"),
	}

	var err error
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			badRequest(w, r, "document.list", "invalid offset")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			badRequest(w, r, "document.list", "invalid limit")
			return
		}
	}

	docs, total, err := h.documents.List(r.Context(), filter, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentList{Documents: mapViews(docs, newDocumentView), Total: total})
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.documents.Get(r.Context(), id, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDocumentView(doc))
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.documents.IssueToken(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// download streams the PDF. The token is the credential, so no actor headers are needed.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		badRequest(w, r, "document.download", "token is required")
		return
	}

	doc, data, err := h.documents.Download(r.Context(), id, token, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) listAccessLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := h.documents.ListAccessLogs(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapViews(logs, newAccessLogView))
}
