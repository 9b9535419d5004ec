package webtool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	results []SearchResult
	err     error
	query   string
	count   int
}

func (f *fakeProvider) Search(_ context.Context, query string, count int) ([]SearchResult, error) {
	f.query = query
	f.count = count
	return f.results, f.err
}

func TestSearchDomainFiltering(t *testing.T) {
	results := []SearchResult{
		{Title: "Docs", URL: "https://docs.example.com/go"},
		{Title: "Blog", URL: "https://blog.other.org/post"},
		{Title: "Spam", URL: "https://ads.spam.net/x"},
	}

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{
			name: "no filters keeps everything",
			want: []string{"Docs", "Blog", "Spam"},
		},
		{
			name: "allowed domains include subdomains",
			opts: SearchOptions{AllowedDomains: []string{"example.com"}},
			want: []string{"Docs"},
		},
		{
			name: "blocked domains removed",
			opts: SearchOptions{BlockedDomains: []string{"spam.net"}},
			want: []string{"Docs", "Blog"},
		},
		{
			name: "block wins over allow",
			opts: SearchOptions{
				AllowedDomains: []string{"example.com", "spam.net"},
				BlockedDomains: []string{"spam.net"},
			},
			want: []string{"Docs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{results: append([]SearchResult(nil), results...)}
			got, err := Search(context.Background(), provider, "golang", tt.opts)
			require.NoError(t, err)

			var names []string
			for _, r := range got {
				names = append(names, r.Title)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	_, err := Search(context.Background(), &fakeProvider{}, "   ", SearchOptions{})
	require.Error(t, err)
}

func TestStubProvider(t *testing.T) {
	_, err := Search(context.Background(), StubSearchProvider{}, "anything", SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestHTTPSearchProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang nats", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))

		json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]any{
					{"title": "NATS docs", "url": "https://docs.nats.io", "description": "messaging"},
					{"title": "", "url": "https://nats.io"},
					{"title": "no url", "url": ""},
				},
			},
		})
	}))
	defer srv.Close()

	provider := &HTTPSearchProvider{Endpoint: srv.URL, APIKey: "secret", Client: srv.Client()}
	results, err := provider.Search(context.Background(), "golang nats", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "NATS docs", results[0].Title)
	assert.Equal(t, "messaging", results[0].Snippet)
	// Missing title falls back to the URL; missing URL drops the row.
	assert.Equal(t, "https://nats.io", results[1].Title)
}

func TestHTTPSearchProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid subscription token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := &HTTPSearchProvider{Endpoint: srv.URL, Client: srv.Client()}
	_, err := provider.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid subscription token")
}

func TestFormatResults(t *testing.T) {
	out := FormatResults("query", []SearchResult{
		{Title: "One", URL: "https://a", Snippet: "first"},
		{Title: "Two", URL: "https://b"},
	})
	assert.Contains(t, out, `Search results for "query"`)
	assert.Contains(t, out, "1. **One**")
	assert.Contains(t, out, "2. **Two**")
	assert.Contains(t, out, "first")

	assert.Equal(t, "No results found.", FormatResults("q", nil))
}
