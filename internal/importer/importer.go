// Package importer pulls shared agent transcripts from an export URL and
// replays them into the local session event log.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/mark3labs/sidekick/internal/session"
)

const (
	fetchTimeout = 30 * time.Second
	maxBodyBytes = 10 << 20
)

// Export is the transcript document served by a share URL.
type Export struct {
	Title    string          `json:"title"`
	Messages []ExportMessage `json:"messages"`
}

// ExportMessage is one message in an exported transcript.
type ExportMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Importer fetches exports and writes them into the session store.
type Importer struct {
	store *session.Store
	// client overrides the default HTTP client, for tests.
	client *http.Client
}

// New creates an Importer backed by store.
func New(store *session.Store) *Importer {
	return &Importer{store: store}
}

// NewWithClient creates an Importer using a custom HTTP client.
func NewWithClient(store *session.Store, client *http.Client) *Importer {
	return &Importer{store: store, client: client}
}

// Result summarizes a completed import.
type Result struct {
	Session      string
	Title        string
	MessageCount int
}

// Import downloads the export at rawURL and appends its messages to a
// session named after the export title. Messages with unknown roles are
// normalized to assistant so a foreign transcript cannot poison replay.
func (im *Importer) Import(ctx context.Context, rawURL string) (*Result, error) {
	export, err := im.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if len(export.Messages) == 0 {
		return nil, errors.New("export contains no messages")
	}

	name := sessionName(export.Title)
	logger.Info("importer: importing %d messages into session %s", len(export.Messages), name)

	count := 0
	for _, msg := range export.Messages {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := msg.Role
		if role != "user" && role != "system" {
			role = "assistant"
		}
		if err := im.store.MessageAdd(ctx, name, session.MessageAddParams{Role: role, Text: text}); err != nil {
			return nil, fmt.Errorf("failed to store message: %w", err)
		}
		count++
	}
	if count == 0 {
		return nil, errors.New("export contains no usable messages")
	}

	err = im.store.ImportComplete(ctx, name, session.ImportCompleteParams{
		Source:       rawURL,
		Title:        export.Title,
		MessageCount: count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record import: %w", err)
	}

	return &Result{Session: name, Title: export.Title, MessageCount: count}, nil
}

func (im *Importer) fetch(ctx context.Context, rawURL string) (*Export, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := im.client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export fetch failed (status %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var export Export
	if err := json.Unmarshal(body, &export); err != nil {
		return nil, errors.New("invalid export document")
	}
	return &export, nil
}

// sessionName derives a stable session name from the export title. Untitled
// exports get a random name so they never collide.
func sessionName(title string) string {
	if s := slug.Make(title); s != "" {
		return s
	}
	return "import-" + uuid.NewString()[:8]
}
