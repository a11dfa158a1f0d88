package docgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdf = []byte("%PDF-1.3 fake document body")

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/documents", func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if req.Category == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(GenerateResult{Error: &service.GenerateError{Kind: apperr.KindValidation, Message: "category is required"}})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(GenerateResult{
			Success:    true,
			DocumentID: "doc-1",
			FileName:   "order_o-1_1.pdf",
			Warnings:   []string{r.Header.Get("X-Actor-Id")},
		})
	})
	mux.HandleFunc("POST /v1/documents/{id}/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.PathValue("id") != "doc-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"kind":"not_found","message":"document not found"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"t-1","expiresAt":"2026-01-01T02:00:00Z"}`))
	})
	mux.HandleFunc("GET /v1/documents/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "t-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"kind":"forbidden","message":"download token signature is invalid"}`))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestClient(t *testing.T) {
	srv := fakeServer(t)
	client := NewClient(srv.URL, WithActor("billing", "system"))
	ctx := context.Background()

	result, err := client.Generate(ctx, GenerateRequest{Category: "order"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, []string{"billing"}, result.Warnings)

	token, err := client.IssueToken(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", token.Token)

	data, err := client.Download(ctx, "doc-1", token.Token)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
}

func TestClientErrors(t *testing.T) {
	srv := fakeServer(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	result, err := client.Generate(ctx, GenerateRequest{})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, apperr.KindValidation, apiErr.Kind)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	_, err = client.IssueToken(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, apperr.KindNotFound, apiErr.Kind)

	_, err = client.Download(ctx, "doc-1", "forged")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, apperr.KindForbidden, apiErr.Kind)

	_, err = client.Download(ctx, "doc-1", "")
	assert.ErrorIs(t, err, ErrEmptyToken)
}
