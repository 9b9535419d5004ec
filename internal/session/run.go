package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/sidekick/internal/nats"
)

// RunStartParams represents the parameters for recording a run start.
type RunStartParams struct {
	Task  string `json:"task"`
	Model string `json:"model,omitempty"`
	Git   string `json:"git,omitempty"` // e.g. "main@1a2b3c4, dirty"
}

// RunFinishParams represents the parameters for recording a run finish.
type RunFinishParams struct {
	RunID      string `json:"run_id"`
	ExitCode   int    `json:"exit_code"`
	StopReason string `json:"stop_reason,omitempty"`
	Error      string `json:"error,omitempty"`
	FinalText  string `json:"final_text,omitempty"`
}

// RunStart records the start of a subagent run and returns the new run
// record with its generated ID.
func (s *Store) RunStart(ctx context.Context, session string, params RunStartParams) (*Run, error) {
	if params.Task == "" {
		return nil, fmt.Errorf("task is required")
	}

	id := uuid.NewString()
	now := time.Now()

	meta, _ := json.Marshal(map[string]any{
		"run_id": id,
		"model":  params.Model,
		"git":    params.Git,
	})

	event := Event{
		Timestamp: now,
		Session:   session,
		Type:      nats.EventTypeRun,
		Action:    "start",
		Meta:      meta,
		Data:      params.Task,
	}
	if _, err := s.PublishEvent(ctx, event); err != nil {
		return nil, err
	}

	return &Run{
		ID:        id,
		Task:      params.Task,
		Model:     params.Model,
		Git:       params.Git,
		StartedAt: now,
	}, nil
}

// RunFinish records the terminal outcome of a run. Finishing an unknown run
// is not an error here; the event simply has no run to attach to at replay.
func (s *Store) RunFinish(ctx context.Context, session string, params RunFinishParams) error {
	if params.RunID == "" {
		return fmt.Errorf("run_id is required")
	}

	meta, _ := json.Marshal(map[string]any{
		"run_id":      params.RunID,
		"exit_code":   params.ExitCode,
		"stop_reason": params.StopReason,
		"error":       params.Error,
	})

	event := Event{
		Session: session,
		Type:    nats.EventTypeRun,
		Action:  "finish",
		Meta:    meta,
		Data:    params.FinalText,
	}
	_, err := s.PublishEvent(ctx, event)
	return err
}
