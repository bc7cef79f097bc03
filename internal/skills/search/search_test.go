package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/hub"
	"github.com/memohai/accelerator/internal/hub/drivers"
	"github.com/memohai/accelerator/internal/transport"
)

func corpus() []Document {
	return []Document{
		{ID: "1", Index: "products", Title: "Red running shoes", Content: "Light shoes for road running"},
		{ID: "2", Index: "products", Title: "Blue sandals", Content: "Summer shoes"},
		{ID: "3", Index: "products", Title: "Trail shoes", Content: "Red grip for running on trails"},
		{ID: "4", Index: "manuals", Title: "Red shoes care", Content: "How to clean red shoes"},
	}
}

func TestMemoryBackendQuery(t *testing.T) {
	b := NewMemoryBackend(corpus()...)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"keyword requires every term", Query{Index: "products", Text: "red running", Top: 10}, []string{"1", "3"}},
		{"vector widens recall", Query{Index: "products", Text: "red sandals", Top: 10, VectorSearch: true}, []string{"1", "2", "3"}},
		{"top trims", Query{Index: "products", Text: "shoes", Top: 2}, []string{"1", "2"}},
		{"semantic ranker prefers title hits", Query{Index: "products", Text: "trail shoes", Top: 10, VectorSearch: true, SemanticRanker: true}, []string{"3", "1", "2"}},
		{"minimum score", Query{Index: "products", Text: "red sandals", Top: 10, VectorSearch: true, MinimumScore: 0.6}, nil},
		{"other index", Query{Index: "manuals", Text: "red", Top: 10}, []string{"4"}},
		{"no match", Query{Index: "products", Text: "umbrella", Top: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := b.Query(ctx, tt.q)
			require.NoError(t, err)
			var ids []string
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: "1"
  index: products
  title: Red shoes
  content: Running
  tags: [sale]
`), 0o600))
	docs, err := LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"sale"}, docs[0].Tags)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`- title: no id`), 0o600))
	_, err = LoadCorpus(bad)
	assert.Error(t, err)
}

func newHub(t *testing.T) *hub.Service {
	t.Helper()
	registry, err := configdoc.DefaultRegistry()
	require.NoError(t, err)
	svc := hub.NewService(nil, drivers.NewMemoryStore(), registry, nil)
	ctx := context.Background()
	for version, body := range map[string]string{
		"v1": `{"index_name":"products","top":1}`,
		"v2": `{"index_name":"products","top":2,"vector_search":true}`,
	} {
		_, err := svc.Create(ctx, hub.CreateRequest{ConfigType: "SEARCH", ConfigVersion: version, ConfigBody: json.RawMessage(body)})
		require.NoError(t, err)
	}
	require.NoError(t, svc.Activate(ctx, configdoc.TypeSearch, "v1"))
	return svc
}

func TestServiceUsesEffectiveConfig(t *testing.T) {
	svc := NewService(nil, newHub(t), NewMemoryBackend(corpus()...))
	ctx := context.Background()

	active := svc.Search(ctx, []byte(`{"query":"shoes"}`))
	require.Nil(t, active.Error)
	assert.Equal(t, "v1", active.ConfigVersion)
	assert.Equal(t, 1, active.Top)
	assert.Len(t, active.Results, 1)

	pinned := svc.Search(ctx, []byte(`{"query":"shoes","overrides":{"search_overrides":{"config_version":"v2"}}}`))
	require.Nil(t, pinned.Error)
	assert.Equal(t, "v2", pinned.ConfigVersion)
	assert.Equal(t, 2, pinned.Top)
	assert.Len(t, pinned.Results, 2)

	toggled := svc.Search(ctx, []byte(`{"query":"shoes","overrides":{"search_overrides":{"top":3}}}`))
	require.Nil(t, toggled.Error)
	assert.Equal(t, "v1", toggled.ConfigVersion)
	assert.Equal(t, 3, toggled.Top)
	assert.Len(t, toggled.Results, 3)

	missing := svc.Search(ctx, []byte(`{"query":"shoes","overrides":{"search_overrides":{"config_version":"v3"}}}`))
	require.NotNil(t, missing.Error)
	assert.Equal(t, apperr.KindConfigNotFound, missing.Error.Kind)
	assert.Equal(t, http.StatusNotFound, missing.Error.StatusCode)

	invalid := svc.Search(ctx, []byte(`{"query":"  "}`))
	require.NotNil(t, invalid.Error)
	assert.Equal(t, apperr.KindSchemaInvalid, invalid.Error.Kind)
}

type failingBackend struct{ err error }

func (b failingBackend) Query(context.Context, Query) ([]contracts.SearchResult, error) {
	return nil, b.err
}

func TestServiceBackendFailure(t *testing.T) {
	svc := NewService(nil, newHub(t), failingBackend{err: assert.AnError})
	resp := svc.Search(context.Background(), []byte(`{"query":"shoes"}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperr.KindUpstreamUnavailable, resp.Error.Kind)
	assert.True(t, resp.Error.Retry)
}

func TestClientPassesErrorThrough(t *testing.T) {
	svc := NewService(nil, newHub(t), NewMemoryBackend(corpus()...))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req contracts.SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data, err := json.Marshal(req)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(svc.Search(r.Context(), data))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, transport.NewClient(nil, time.Second))
	resp, err := client.Search(context.Background(), contracts.SearchRequest{Query: "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "v1", resp.ConfigVersion)

	_, err = client.Search(context.Background(), contracts.SearchRequest{
		Query:     "shoes",
		Overrides: json.RawMessage(`{"search_overrides":{"config_version":"v3"}}`),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfigNotFound, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "SEARCH version v3 not found")
}

func TestLocalClient(t *testing.T) {
	client := NewLocalClient(NewService(nil, newHub(t), NewMemoryBackend(corpus()...)))

	resp, err := client.Search(context.Background(), contracts.SearchRequest{
		Query:     "shoes",
		Overrides: json.RawMessage(`{"search_overrides":{"config_version":"v2"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", resp.ConfigVersion)

	_, err = client.Search(context.Background(), contracts.SearchRequest{Query: " "})
	assert.Equal(t, apperr.KindSchemaInvalid, apperr.KindOf(err))
}

func TestTextFilter(t *testing.T) {
	keyword := textFilter(Query{Text: "red shoes"})
	assert.Len(t, keyword.GetMust(), 1)
	assert.Empty(t, keyword.GetShould())

	vector := textFilter(Query{Text: "red shoes", VectorSearch: true})
	assert.Empty(t, vector.GetMust())
	assert.Len(t, vector.GetShould(), 4)
}

func TestParseQdrantEndpoint(t *testing.T) {
	host, port, tls, err := parseQdrantEndpoint("https://qdrant.example.com:7000")
	require.NoError(t, err)
	assert.Equal(t, "qdrant.example.com", host)
	assert.Equal(t, 7000, port)
	assert.True(t, tls)

	host, port, tls, err = parseQdrantEndpoint("localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6334, port)
	assert.False(t, tls)
}
