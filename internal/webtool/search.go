package webtool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/sidekick/internal/logger"
)

const (
	searchTimeout      = 15 * time.Second
	searchMaxBodyBytes = 2 << 20
	defaultResultCount = 10
)

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchOptions configures domain filtering for a search.
type SearchOptions struct {
	AllowedDomains []string
	BlockedDomains []string
	Count          int
}

// SearchProvider executes web searches. Implementations return raw results;
// domain filtering is applied by the caller so every provider behaves the
// same way.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// StubSearchProvider stands in when no search endpoint is configured.
type StubSearchProvider struct{}

func (StubSearchProvider) Search(context.Context, string, int) ([]SearchResult, error) {
	return nil, errors.New("web search not configured: set search_endpoint and search_api_key in sidekick.yml")
}

// HTTPSearchProvider queries a Brave-compatible search API.
type HTTPSearchProvider struct {
	Endpoint string
	APIKey   string
	// Client overrides the default HTTP client, for tests.
	Client *http.Client
}

type searchAPIResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (p *HTTPSearchProvider) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	endpoint, err := url.Parse(p.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", strings.TrimSpace(p.APIKey))

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: searchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, searchMaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("search request failed (status %d)", resp.StatusCode)
		}
		return nil, errors.New(msg)
	}

	var decoded searchAPIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.New("invalid search response")
	}

	results := make([]SearchResult, 0, len(decoded.Web.Results))
	for _, item := range decoded.Web.Results {
		u := strings.TrimSpace(item.URL)
		if u == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = u
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     u,
			Snippet: strings.TrimSpace(item.Description),
		})
	}
	return results, nil
}

// Search runs a query through provider and applies domain filters to the
// results.
func Search(ctx context.Context, provider SearchProvider, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	count := opts.Count
	if count <= 0 {
		count = defaultResultCount
	}

	results, err := provider.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, r := range results {
		if !domainAllowed(r.URL, opts.AllowedDomains, opts.BlockedDomains) {
			continue
		}
		filtered = append(filtered, r)
	}
	logger.Debug("webtool: search %q returned %d results (%d after filtering)",
		query, len(results), len(filtered))
	return filtered, nil
}

// domainAllowed checks a result URL against the allow and block lists. A
// filter entry matches the host itself and any subdomain of it.
func domainAllowed(rawURL string, allowed, blocked []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())

	for _, b := range blocked {
		if hostMatches(host, b) {
			return false
		}
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if hostMatches(host, a) {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// FormatResults renders search results as numbered markdown blocks.
func FormatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. **%s**\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return b.String()
}
