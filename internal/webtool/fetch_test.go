package webtool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTMLExtraction(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Page</title></head><body><h1>Hello</h1><p>World</p><script>alert("x")</script></body></html>`))
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	content, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "Hello")
	assert.Contains(t, content, "World")
	assert.NotContains(t, content, "alert", "script content must be stripped")
	assert.NotContains(t, content, "Page", "head content must be stripped")
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("raw <b>text</b> untouched"))
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	content, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "raw <b>text</b> untouched", content)
}

func TestFetchHTTPStatusError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchRejectsBadScheme(t *testing.T) {
	f := &Fetcher{}
	_, err := f.Fetch(context.Background(), "ftp://example.com/file")
	require.Error(t, err)

	_, err = f.Fetch(context.Background(), "")
	require.Error(t, err)
}

func TestFetchTruncation(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", fetchMaxContent+100)))
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	content, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(content, "... (truncated)"))
	assert.LessOrEqual(t, len(content), fetchMaxContent+len("\n... (truncated)"))
}

func TestFetchTruncationRuneBoundary(t *testing.T) {
	// Multi-byte text sized so a naive byte cut would land mid-rune.
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("a" + strings.Repeat("é", fetchMaxContent)))
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	content, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(content, "... (truncated)"))
	assert.True(t, utf8.ValidString(content))
}

func TestExtractTextBlockBoundaries(t *testing.T) {
	got := extractText(`<div>first</div><div>second</div>`)
	assert.Contains(t, got, "first")
	assert.Contains(t, got, "second")
	// Block elements keep the two texts on separate lines.
	assert.Contains(t, got, "\n")
}
