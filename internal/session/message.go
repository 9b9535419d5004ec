package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/sidekick/internal/nats"
)

// MessageAddParams represents the parameters for appending a transcript message.
type MessageAddParams struct {
	RunID string `json:"run_id,omitempty"` // Empty for imported messages
	Role  string `json:"role,omitempty"`   // Defaults to "assistant"
	Text  string `json:"text"`
}

// MessageAdd appends a transcript message to the session.
func (s *Store) MessageAdd(ctx context.Context, session string, params MessageAddParams) error {
	if params.Text == "" {
		return fmt.Errorf("text is required")
	}
	role := params.Role
	if role == "" {
		role = "assistant"
	}
	if !isValidRole(role) {
		return fmt.Errorf("invalid role: %s (must be user, assistant, or system)", role)
	}

	meta, _ := json.Marshal(map[string]any{
		"run_id": params.RunID,
		"role":   role,
	})

	event := Event{
		Session: session,
		Type:    nats.EventTypeMessage,
		Action:  "add",
		Meta:    meta,
		Data:    params.Text,
	}
	_, err := s.PublishEvent(ctx, event)
	return err
}

func isValidRole(role string) bool {
	switch role {
	case "user", "assistant", "system":
		return true
	}
	return false
}
