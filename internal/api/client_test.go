package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "sync_testkey")
	return srv, client
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestFetchGetEncodesQuery(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/articles/", r.URL.Path)
		assert.Equal(t, "Bearer sync_testkey", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("extendedView"))
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["tag"])
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []map[string]any{{"id": 1}, {"id": 2}},
			"total": 17,
		})
	})

	resp, err := client.Fetch(context.Background(), "/api/articles/", FetchOptions{}, map[string]any{
		"offset":       0,
		"limit":        25,
		"extendedView": true,
		"tag":          []any{"a", "b"},
		"skip":         nil,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 17, resp.Total)
	assert.True(t, resp.DataIsSequence())

	var items []map[string]any
	require.NoError(t, resp.DecodeData(&items))
	assert.Len(t, items, 2)
}

func TestFetchWriteSendsBody(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/articles/5", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Bar", body["title"])
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": 5}})
	})

	resp, err := client.Fetch(context.Background(), "/api/articles/5", FetchOptions{Method: http.MethodPatch}, map[string]any{
		"title": "Bar",
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.False(t, resp.DataIsSequence())
}

func TestFetchKeepsErrorStatus(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": map[string]any{"code": "FORBIDDEN", "message": "no access"},
		})
	})

	resp, err := client.Fetch(context.Background(), "/api/articles/", FetchOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.False(t, resp.OK())
	assert.Equal(t, "FORBIDDEN: no access", resp.Message)
}

func TestFetchNonJSONErrorBody(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	resp, err := client.Fetch(context.Background(), "/x", FetchOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.False(t, resp.HasData())
}

func TestFetchIncludedAndFields(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":     map[string]any{"id": 1},
			"authors":  []map[string]any{{"id": 9}},
			"included": map[string]any{"tags": []string{"go"}},
		})
	})

	resp, err := client.Fetch(context.Background(), "/api/articles/1", FetchOptions{}, nil)
	require.NoError(t, err)

	authors, ok := resp.Field("authors")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":9}]`, string(authors))

	tags, ok := resp.Field("tags")
	require.True(t, ok)
	assert.JSONEq(t, `["go"]`, string(tags))

	_, ok = resp.Field("missing")
	assert.False(t, ok)
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, "", 200*time.Millisecond)

	resp, err := client.Fetch(context.Background(), "/api/articles/", FetchOptions{}, nil)
	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "request failed")
}

func TestFetchPublishNotifiesListeners(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": 3}})
	})

	var mu sync.Mutex
	var events []FetchEvent
	client.OnFetch(func(ev FetchEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	_, err := client.Fetch(context.Background(), "/api/articles/", FetchOptions{Publish: true, Method: http.MethodPost}, map[string]any{"title": "x"})
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), "/api/articles/", FetchOptions{Method: http.MethodPost}, map[string]any{"title": "y"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, http.MethodPost, events[0].Method)
	assert.Equal(t, http.StatusCreated, events[0].Status)
	assert.NotEmpty(t, events[0].RequestID)
}

func TestFetchAbsoluteURL(t *testing.T) {
	srv, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/other", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})
	client := NewClient("http://unused.invalid", "")

	resp, err := client.Fetch(context.Background(), srv.URL+"/other", FetchOptions{}, nil)
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestBuildQueryAppendsToExistingQuery(t *testing.T) {
	assert.Equal(t, "/api/x?a=1&b=two", buildQuery("/api/x?a=1", map[string]any{"b": "two"}))
	assert.Equal(t, "/api/x", buildQuery("/api/x", nil))
	assert.Equal(t, "/api/x", buildQuery("/api/x", map[string]any{"n": nil}))
}

func TestExtractAPIErrorBodyVariants(t *testing.T) {
	msg, ok := extractAPIErrorBody([]byte(`{"detail":"bad filter"}`))
	require.True(t, ok)
	assert.Equal(t, "bad filter", msg)

	msg, ok = extractAPIErrorBody([]byte(`{"error":{"error":"nested"}}`))
	require.True(t, ok)
	assert.Equal(t, "nested", msg)

	_, ok = extractAPIErrorBody([]byte(`{"ok":true}`))
	assert.False(t, ok)
}
