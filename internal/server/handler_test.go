package server

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/service"
	"github.com/emrgen/docgen/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, nobody, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = e.do(t, nobody, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.body), "docgen_dedup_check_failures_total")
}

func TestGenerateAndDownload(t *testing.T) {
	e := newEnv(t)
	_, err := e.templates.Create(context.Background(), clientDefinition(true), "tester")
	require.NoError(t, err)

	res := e.do(t, system, http.MethodPost, "/v1/documents", generateRequest(owner.ID, "S-1"))
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	var created service.GenerateResult
	res.decode(t, &created)
	assert.True(t, created.Success)
	assert.False(t, created.Deduplicated)

	res = e.do(t, system, http.MethodPost, "/v1/documents", generateRequest(owner.ID, "S-1"))
	require.Equal(t, http.StatusOK, res.status)
	var again service.GenerateResult
	res.decode(t, &again)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, created.DocumentID, again.DocumentID)

	path := "/v1/documents/" + created.DocumentID

	res = e.do(t, owner, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, res.status)
	var doc documentView
	res.decode(t, &doc)
	assert.Equal(t, created.FileName, doc.FileName)
	assert.Equal(t, owner.ID, doc.EntityID)

	res = e.do(t, other, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = e.do(t, owner, http.MethodPost, path+"/token", nil)
	require.Equal(t, http.StatusCreated, res.status)
	var token service.Token
	res.decode(t, &token)
	require.NotEmpty(t, token.Token)

	res = e.do(t, nobody, http.MethodGet, path+"/download?token="+url.QueryEscape(token.Token), nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "application/pdf", res.header.Get("Content-Type"))
	assert.Contains(t, res.header.Get("Content-Disposition"), created.FileName)
	assert.True(t, bytes.HasPrefix(res.body, []byte("%PDF-")))

	res = e.do(t, nobody, http.MethodGet, path+"/download?token=garbage", nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(t, nobody, http.MethodGet, path+"/download", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = e.do(t, owner, http.MethodGet, path+"/access-logs", nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(t, admin, http.MethodGet, path+"/access-logs", nil)
	require.Equal(t, http.StatusOK, res.status)
	var logs []accessLogView
	res.decode(t, &logs)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.ElementsMatch(t, []string{"generate", "view", "download"}, actions)
}

func TestGenerateFailures(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		body   any
		status int
		kind   apperr.Kind
	}{
		{
			name:   "no template",
			body:   generateRequest(owner.ID, "S-1"),
			status: http.StatusNotFound,
			kind:   apperr.KindNotFound,
		},
		{
			name:   "missing category",
			body:   service.GenerateRequest{},
			status: http.StatusBadRequest,
			kind:   apperr.KindValidation,
		},
		{
			name:   "unknown language",
			body:   service.GenerateRequest{Category: template.CategoryReport, Language: "fr"},
			status: http.StatusBadRequest,
			kind:   apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.do(t, system, http.MethodPost, "/v1/documents", tt.body)
			assert.Equal(t, tt.status, res.status, string(res.body))

			var result service.GenerateResult
			res.decode(t, &result)
			assert.False(t, result.Success)
			require.NotNil(t, result.Error)
			assert.Equal(t, tt.kind, result.Error.Kind)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		res := e.do(t, system, http.MethodPost, "/v1/documents", map[string]any{"unknown": true})
		assert.Equal(t, http.StatusBadRequest, res.status)
	})

	t.Run("client generating for another client", func(t *testing.T) {
		res := e.do(t, other, http.MethodPost, "/v1/documents", generateRequest(owner.ID, "S-1"))
		assert.Equal(t, http.StatusForbidden, res.status)
	})
}

func TestListDocuments(t *testing.T) {
	e := newEnv(t)
	_, err := e.templates.Create(context.Background(), clientDefinition(true), "tester")
	require.NoError(t, err)

	for _, req := range []service.GenerateRequest{
		generateRequest(owner.ID, "S-1"),
		generateRequest(owner.ID, "S-2"),
		generateRequest(other.ID, "S-3"),
	} {
		res := e.do(t, system, http.MethodPost, "/v1/documents", req)
		require.Equal(t, http.StatusCreated, res.status)
	}

	var list documentList
	res := e.do(t, owner, http.MethodGet, "/v1/documents", nil)
	require.Equal(t, http.StatusOK, res.status)
	res.decode(t, &list)
	assert.Equal(t, int64(2), list.Total)

	res = e.do(t, admin, http.MethodGet, "/v1/documents?limit=1", nil)
	require.Equal(t, http.StatusOK, res.status)
	res.decode(t, &list)
	assert.Equal(t, int64(3), list.Total)
	assert.Len(t, list.Documents, 1)

	res = e.do(t, owner, http.MethodGet, "/v1/documents?entityId="+other.ID, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(t, admin, http.MethodGet, "/v1/documents?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestTemplates(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, owner, http.MethodGet, "/v1/templates", nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(t, admin, http.MethodPost, "/v1/templates", clientDefinition(true))
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	var created templateView
	res.decode(t, &created)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, admin.ID, created.CreatedBy)
	path := "/v1/templates/" + created.ID

	res = e.do(t, admin, http.MethodPatch, path, map[string]any{"name": "Renamed", "reason": "typo"})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var updated templateView
	res.decode(t, &updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	res = e.do(t, admin, http.MethodGet, path+"/versions", nil)
	require.Equal(t, http.StatusOK, res.status)
	var versions []versionView
	res.decode(t, &versions)
	require.Len(t, versions, 1)
	assert.Equal(t, "Client statement", versions[0].Name)
	assert.Equal(t, "typo", versions[0].Reason)

	res = e.do(t, admin, http.MethodPost, path+"/versions/"+versions[0].ID+"/restore", nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var restored templateView
	res.decode(t, &restored)
	assert.Equal(t, "Client statement", restored.Name)
	assert.Equal(t, int64(3), restored.Version)

	res = e.do(t, admin, http.MethodPost, path+"/duplicate", duplicateRequest{Name: "Copy"})
	require.Equal(t, http.StatusCreated, res.status)
	var copied templateView
	res.decode(t, &copied)
	assert.Equal(t, "Copy", copied.Name)
	assert.False(t, copied.IsActive)
	assert.False(t, copied.IsDefault)

	res = e.do(t, admin, http.MethodGet, "/v1/templates?category=report&active=true", nil)
	require.Equal(t, http.StatusOK, res.status)
	var listed []templateView
	res.decode(t, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	res = e.do(t, admin, http.MethodGet, "/v1/templates?category=poster", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = e.do(t, admin, http.MethodGet, "/v1/templates/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = e.do(t, admin, http.MethodDelete, "/v1/templates/"+copied.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	var deleted deleteResponse
	res.decode(t, &deleted)
	assert.True(t, deleted.Deleted)
	assert.False(t, deleted.Retired)

	res = e.do(t, admin, http.MethodGet, "/v1/templates/"+copied.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestPreviewAndCacheClear(t *testing.T) {
	e := newEnv(t)
	tmpl, err := e.templates.Create(context.Background(), clientDefinition(true), "tester")
	require.NoError(t, err)

	body := map[string]any{"variables": []map[string]any{{"key": "number", "value": "P-1"}}}
	path := "/v1/templates/" + tmpl.ID + "/preview"

	res := e.do(t, admin, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.Equal(t, "miss", res.header.Get(headerPreviewCache))
	assert.True(t, bytes.HasPrefix(res.body, []byte("%PDF-")))

	res = e.do(t, admin, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "hit", res.header.Get(headerPreviewCache))

	res = e.do(t, admin, http.MethodPost, path, map[string]any{"language": "ar"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	_, err = e.templates.Resolve(context.Background(), template.CategoryReport, template.English)
	require.NoError(t, err)

	res = e.do(t, owner, http.MethodPost, "/v1/cache/templates/clear", nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(t, admin, http.MethodPost, "/v1/cache/templates/clear", nil)
	require.Equal(t, http.StatusOK, res.status)
	var cleared map[string]int
	res.decode(t, &cleared)
	assert.Equal(t, 1, cleared["cleared"])
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusOf(apperr.KindValidation))
	assert.Equal(t, http.StatusForbidden, statusOf(apperr.KindForbidden))
	assert.Equal(t, http.StatusBadGateway, statusOf(apperr.KindStorage))
	assert.Equal(t, http.StatusInternalServerError, statusOf("unknown"))
}
