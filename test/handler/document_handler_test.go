package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/knowhub/internal/pkg/errcode"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestDocumentEndpointsRequireAuth(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	result := doRequest(t, router, http.MethodGet, "/api/v1/documents", "", nil)
	require.Equal(t, errcode.ErrUnauthorized, result.Code)

	result = doRequest(t, router, http.MethodGet, "/api/v1/documents", "not-a-token", nil)
	require.Equal(t, errcode.ErrUnauthorized, result.Code)
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()
	_, token := seedTenantToken(t)

	created := doRequest(t, router, http.MethodPost, "/api/v1/documents", token, map[string]string{
		"title":   "meeting notes",
		"content": "discussed roadmap and hiring",
	})
	require.Zero(t, created.Code)
	var doc struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(created.Data, &doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, "pending", doc.Status)

	listed := doRequest(t, router, http.MethodGet, "/api/v1/documents?q=roadmap", token, nil)
	require.Zero(t, listed.Code)
	var page struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(listed.Data, &page))
	require.Equal(t, 1, page.Total)

	stats := doRequest(t, router, http.MethodGet, "/api/v1/documents/stats", token, nil)
	require.Zero(t, stats.Code)
	var counts struct {
		Total   int `json:"total"`
		Pending int `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(stats.Data, &counts))
	require.Equal(t, 1, counts.Total)
	require.Equal(t, 1, counts.Pending)

	classify := doRequest(t, router, http.MethodPost, "/api/v1/documents/bulk_classify", token, map[string]interface{}{
		"ids":            []string{doc.ID},
		"classification": "work",
		"confidence":     0.8,
	})
	require.Zero(t, classify.Code)

	fetched := doRequest(t, router, http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil)
	require.Zero(t, fetched.Code)
	var updated struct {
		Classification string `json:"classification"`
		Status         string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(fetched.Data, &updated))
	require.Equal(t, "work", updated.Classification)
	require.Equal(t, "classified", updated.Status)

	deleted := doRequest(t, router, http.MethodPost, "/api/v1/documents/bulk_delete", token, map[string]interface{}{
		"ids": []string{doc.ID},
	})
	require.Zero(t, deleted.Code)

	missing := doRequest(t, router, http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil)
	require.Equal(t, errcode.ErrNotFound, missing.Code)
}

func TestDocumentTenantIsolationOverHTTP(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()
	_, tokenA := seedTenantToken(t)
	_, tokenB := seedTenantToken(t)

	created := doRequest(t, router, http.MethodPost, "/api/v1/documents", tokenA, map[string]string{
		"title": "private note",
	})
	require.Zero(t, created.Code)
	var doc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created.Data, &doc))

	result := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/documents/%s", doc.ID), tokenB, nil)
	require.Equal(t, errcode.ErrNotFound, result.Code)
}

func TestDocumentCreateValidation(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()
	_, token := seedTenantToken(t)

	result := doRequest(t, router, http.MethodPost, "/api/v1/documents", token, map[string]string{
		"content": "no title",
	})
	require.Equal(t, errcode.ErrInvalid, result.Code)
}
