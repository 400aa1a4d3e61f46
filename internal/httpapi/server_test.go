package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/internal/indexsync"
	"github.com/relstack-labs/relstore/internal/record"
	"github.com/relstack-labs/relstore/internal/testutil"
)

func setupAPI(t *testing.T) *httptest.Server {
	t.Helper()
	st, registry := testutil.OpenStore(t)
	logger := testutil.NewTestLogger(t)

	access := record.NewAccess(st.Session(), registry, record.Options{Logger: logger})
	index := indexsync.NewMemoryIndex()
	prop := indexsync.NewPropagator(index, access, indexsync.Options{Logger: logger})
	access.SetEmitter(prop)

	srv := NewServer(Config{Access: access, Logger: logger})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON issues a request with an optional JSON body and decodes the JSON
// response, if any.
func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func seedAPI(t *testing.T, base string) {
	t.Helper()
	for _, body := range []map[string]any{
		{"title": "alpha", "author": "alice"},
		{"title": "beta", "author": "bob"},
		{"title": "gamma", "author": "alice"},
	} {
		status, _ := doJSON(t, http.MethodPost, base+"/Story", body)
		require.Equal(t, http.StatusCreated, status)
	}
}

func TestCreateAndGetItem(t *testing.T) {
	ts := setupAPI(t)

	status, doc := doJSON(t, http.MethodPost, ts.URL+"/Story",
		map[string]any{"title": "alpha", "author": "alice"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Story", doc["_type"])
	assert.Equal(t, "1", doc["_pk"])

	status, doc = doJSON(t, http.MethodGet, ts.URL+"/Story/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alpha", doc["title"])

	status, doc = doJSON(t, http.MethodGet, ts.URL+"/Story/404", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, doc["error"], "not found")
}

func TestCreateConflict(t *testing.T) {
	ts := setupAPI(t)

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/Story", map[string]any{"title": "alpha"})
	require.Equal(t, http.StatusCreated, status)

	status, doc := doJSON(t, http.MethodPost, ts.URL+"/Story", map[string]any{"title": "alpha"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, doc["error"], "already exists")
}

func TestCollection(t *testing.T) {
	ts := setupAPI(t)
	seedAPI(t, ts.URL)

	status, out := doJSON(t, http.MethodGet, ts.URL+"/Story?_limit=10&author=alice&_sort=-id", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, out["total"])
	data := out["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "gamma", data[0].(map[string]any)["title"])

	// Without a limit a plain collection query is rejected.
	status, out = doJSON(t, http.MethodGet, ts.URL+"/Story", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["error"], "Missing _limit")

	status, out = doJSON(t, http.MethodGet, ts.URL+"/Story?_count", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, out["count"])

	status, out = doJSON(t, http.MethodGet, ts.URL+"/Story?_limit=10&_fields=title", nil)
	require.Equal(t, http.StatusOK, status)
	row := out["data"].([]any)[0].(map[string]any)
	assert.Contains(t, row, "title")
	assert.Contains(t, row, "_pk")
	assert.NotContains(t, row, "author")
}

func TestUnknownModel(t *testing.T) {
	ts := setupAPI(t)

	status, _ := doJSON(t, http.MethodGet, ts.URL+"/Nope?_limit=1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateAndDeleteItem(t *testing.T) {
	ts := setupAPI(t)
	seedAPI(t, ts.URL)

	status, doc := doJSON(t, http.MethodPatch, ts.URL+"/Story/1",
		map[string]any{"author": "carol"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "carol", doc["author"])

	status, _ = doJSON(t, http.MethodDelete, ts.URL+"/Story/1", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/Story/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBulkEndpoints(t *testing.T) {
	ts := setupAPI(t)
	seedAPI(t, ts.URL)

	status, out := doJSON(t, http.MethodPatch, ts.URL+"/Story?author=alice",
		map[string]any{"views": 5})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, out["updated"])

	status, doc := doJSON(t, http.MethodGet, ts.URL+"/Story/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, doc["views"])

	status, out = doJSON(t, http.MethodDelete, ts.URL+"/Story?author=alice", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, out["deleted"])

	status, out = doJSON(t, http.MethodGet, ts.URL+"/Story?_count", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, out["count"])
}
