package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracq/internal/compile"
	"tracq/internal/query"
	"tracq/internal/service"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func compileList(t *testing.T, field string, raw string) compile.Fragment {
	t.Helper()
	g, err := query.ParseList([]string{raw}, compile.FieldKind(compile.GitHub, field), testNow)
	require.NoError(t, err)
	f, err := compile.CompileQuery(compile.GitHub, field, g)
	require.NoError(t, err)
	return f
}

func TestBuildSearchQuery(t *testing.T) {
	c := New(service.Connection{Base: "https://api.example.org", Repo: "acme/widget", User: "alice"})

	t.Run("repo scope and open default", func(t *testing.T) {
		q, err := c.BuildSearchQuery(service.PagedRequest{
			Fragments: []compile.Fragment{compileList(t, "labels", "== regression")},
		})
		require.NoError(t, err)
		assert.Equal(t, "repo:acme/widget is:issue label:regression is:open", q)
	})

	t.Run("state filter suppresses the open default", func(t *testing.T) {
		q, err := c.BuildSearchQuery(service.PagedRequest{
			Fragments: []compile.Fragment{compileList(t, "status", "== closed")},
		})
		require.NoError(t, err)
		assert.Equal(t, "repo:acme/widget is:issue state:closed", q)
	})

	t.Run("me alias expands in user qualifiers", func(t *testing.T) {
		q, err := c.BuildSearchQuery(service.PagedRequest{
			Fragments: []compile.Fragment{compileList(t, "assignee", "== @me")},
		})
		require.NoError(t, err)
		assert.Contains(t, q, "assignee:alice")
	})

	t.Run("missing repo rejected", func(t *testing.T) {
		bare := New(service.Connection{Base: "https://api.example.org"})
		_, err := bare.BuildSearchQuery(service.PagedRequest{})
		require.Error(t, err)
	})
}

func TestSearchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/issues", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "created", r.URL.Query().Get("sort"))
		assert.Equal(t, "asc", r.URL.Query().Get("order"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"number": 42, "title": "boot crash", "state": "open",
					"user":   map[string]any{"login": "alice"},
					"labels": []map[string]any{{"name": "bug"}},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(service.Connection{Base: srv.URL, Repo: "acme/widget", Token: "tok"})
	records, err := c.SearchPage(context.Background(), service.PagedRequest{Limit: 50, Offset: 50})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(42), records[0].ID)
	assert.Equal(t, "alice", records[0].Creator)
	assert.Equal(t, []string{"bug"}, records[0].Labels)
}

func TestSearchPageOrder(t *testing.T) {
	var sortKey, sortDir string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sortKey = r.URL.Query().Get("sort")
		sortDir = r.URL.Query().Get("order")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := New(service.Connection{Base: srv.URL, Repo: "acme/widget"})

	t.Run("compiled order key reaches the wire", func(t *testing.T) {
		key, err := compile.OrderKey(compile.GitHub, query.Order{Field: "comments", Descending: true})
		require.NoError(t, err)
		_, err = c.SearchPage(context.Background(), service.PagedRequest{Limit: 50, Order: []string{key}})
		require.NoError(t, err)
		assert.Equal(t, "comments", sortKey)
		assert.Equal(t, "desc", sortDir)
	})

	t.Run("ascending direction", func(t *testing.T) {
		key, err := compile.OrderKey(compile.GitHub, query.Order{Field: "updated"})
		require.NoError(t, err)
		_, err = c.SearchPage(context.Background(), service.PagedRequest{Limit: 50, Order: []string{key}})
		require.NoError(t, err)
		assert.Equal(t, "updated", sortKey)
		assert.Equal(t, "asc", sortDir)
	})

	t.Run("multi-key orders rejected", func(t *testing.T) {
		_, err := c.SearchPage(context.Background(), service.PagedRequest{
			Limit: 50, Order: []string{"comments:desc", "created:asc"},
		})
		require.Error(t, err)
	})
}

func TestSearchPageAlignment(t *testing.T) {
	c := New(service.Connection{Base: "https://api.example.org", Repo: "acme/widget"})
	_, err := c.SearchPage(context.Background(), service.PagedRequest{Limit: 50, Offset: 30})
	require.Error(t, err)
	_, err = c.SearchPage(context.Background(), service.PagedRequest{Limit: 500, Offset: 0})
	require.Error(t, err)
}

func TestUpdateNativeLabelDelta(t *testing.T) {
	var posted map[string][]string
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/repos/acme/widget/issues/42/labels", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		case http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(service.Connection{Base: srv.URL, Repo: "acme/widget"})
	frag, err := compile.CompileDelta(compile.GitHub, "labels", query.ParseDelta([]string{"+bug,-stale"}))
	require.NoError(t, err)
	require.NoError(t, c.Update(context.Background(), []int64{42}, []compile.Fragment{frag}))

	assert.Equal(t, map[string][]string{"labels": {"bug"}}, posted)
	assert.Equal(t, []string{"/repos/acme/widget/issues/42/labels/stale"}, deleted)
}

func TestCreate(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/widget/issues", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_, _ = w.Write([]byte(`{"number": 77}`))
	}))
	defer srv.Close()

	c := New(service.Connection{Base: srv.URL, Repo: "acme/widget", User: "alice"})
	frags := make([]compile.Fragment, 0, 3)
	for _, in := range []struct {
		field  string
		values []string
	}{
		{"summary", []string{"boot crash"}},
		{"description", []string{"panics on boot"}},
		{"assignee", []string{"@me"}},
	} {
		frag, err := compile.CompileCreate(compile.GitHub, in.field, in.values)
		require.NoError(t, err)
		frags = append(frags, frag)
	}

	id, err := c.Create(context.Background(), frags)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, "boot crash", created["title"])
	assert.Equal(t, "panics on boot", created["body"])
	assert.Equal(t, []any{"alice"}, created["assignees"])
}

func TestCreateRequiresSummary(t *testing.T) {
	c := New(service.Connection{Base: "https://api.example.org", Repo: "acme/widget"})
	frag, err := compile.CompileCreate(compile.GitHub, "description", []string{"body only"})
	require.NoError(t, err)
	_, err = c.Create(context.Background(), []compile.Fragment{frag})
	require.Error(t, err)
}

func TestUpdatePatch(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/repos/acme/widget/issues/42", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(service.Connection{Base: srv.URL, Repo: "acme/widget"})
	frag, err := compile.CompileSet(compile.GitHub, "status", []string{"closed"})
	require.NoError(t, err)
	require.NoError(t, c.Update(context.Background(), []int64{42}, []compile.Fragment{frag}))
	assert.Equal(t, map[string]any{"state": "closed"}, patched)
}
