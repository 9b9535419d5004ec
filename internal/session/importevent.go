package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/sidekick/internal/nats"
)

// ImportCompleteParams represents the parameters for recording a finished
// session import.
type ImportCompleteParams struct {
	Source       string `json:"source"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
}

// ImportComplete records that an external session was imported. The imported
// messages themselves are appended separately via MessageAdd; this event is
// the marker that the import ran and where it came from.
func (s *Store) ImportComplete(ctx context.Context, session string, params ImportCompleteParams) error {
	if params.Source == "" {
		return fmt.Errorf("source is required")
	}

	meta, _ := json.Marshal(map[string]any{
		"source":        params.Source,
		"message_count": params.MessageCount,
	})

	event := Event{
		Session: session,
		Type:    nats.EventTypeImport,
		Action:  "complete",
		Meta:    meta,
		Data:    params.Title,
	}
	_, err := s.PublishEvent(ctx, event)
	return err
}
