package server

import (
	"net/http"
	"strconv"

	"github.com/emrgen/docgen/internal/template"
)

const headerPreviewCache = "X-Preview-Cache"

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, "template.list", "invalid active flag")
			return
		}
		activeOnly = b
	}

	templates, err := h.templates.List(r.Context(), r.URL.Query().Get("category"), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapViews(templates, newTemplateView))
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var def template.Definition
	if err := decode(r, &def); err != nil {
		badRequest(w, r, "template.create", "malformed template definition")
		return
	}

	t, err := h.templates.Create(r.Context(), def, actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newTemplateView(t))
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.templates.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTemplateView(t))
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateTemplateRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "template.update", "malformed template patch")
		return
	}

	t, err := h.templates.Update(r.Context(), id, req.TemplatePatch, actorFrom(r.Context()).ID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTemplateView(t))
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.templates.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Deleted: !result.Retired, Retired: result.Retired})
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	versions, err := h.templates.ListVersions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapViews(versions, newVersionView))
}

func (h *Handler) restoreVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	versionID, err := pathID(r, "versionID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.templates.RestoreVersion(r.Context(), id, versionID, actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTemplateView(t))
}

func (h *Handler) duplicateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req duplicateRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, r, "template.duplicate", "malformed request body")
			return
		}
	}

	t, err := h.templates.Duplicate(r.Context(), id, req.Name, actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newTemplateView(t))
}

// previewTemplate renders without storing anything. X-Preview-Cache tells
// whether the bytes came from the preview cache.
func (h *Handler) previewTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req previewRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "template.preview", "malformed preview request")
		return
	}
	lang := template.English
	if req.Language != "" {
		if lang, err = template.ParseLanguage(string(req.Language)); err != nil {
			badRequest(w, r, "template.preview", err.Error())
			return
		}
	}

	data, cached, err := h.templates.Preview(r.Context(), id, req.Variables, lang)
	if err != nil {
		writeError(w, r, err)
		return
	}

	state := "miss"
	if cached {
		state = "hit"
	}
	w.Header().Set(headerPreviewCache, state)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) clearTemplateCache(w http.ResponseWriter, r *http.Request) {
	cleared := h.templates.ClearCache()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}
