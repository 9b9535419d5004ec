package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/mark3labs/sidekick/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
)

// Event represents a generic event stored in the JetStream event log.
// All session operations (runs, transcript messages, imports) are stored as
// events following an append-only event sourcing pattern.
type Event struct {
	ID        string          `json:"id"`        // NATS message sequence ID
	Timestamp time.Time       `json:"timestamp"` // When the event occurred
	Session   string          `json:"session"`   // Session name
	Type      string          `json:"type"`      // Event type: run, message, import
	Action    string          `json:"action"`    // Action type: start, finish, add, complete
	Meta      json.RawMessage `json:"meta"`      // Action-specific metadata
	Data      string          `json:"data"`      // Primary content (task text, message text, title)
}

// Store manages session state through JetStream event sourcing.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewStore creates a new Store instance with the given JetStream context and stream.
func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{js: js, stream: stream}
}

// PublishEvent appends an event to the JetStream event log.
// Events are published to subjects following the pattern: sidekick.{session}.{type}
func (s *Store) PublishEvent(ctx context.Context, event Event) (*jetstream.PubAck, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event: %v", err)
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := nats.SubjectForEvent(event.Session, event.Type)
	logger.Debug("Publishing event: session=%s type=%s action=%s", event.Session, event.Type, event.Action)

	ack, err := s.js.Publish(ctx, subject, data)
	if err != nil {
		logger.Error("Failed to publish event to subject %s: %v", subject, err)
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	logger.Debug("Event published successfully: seq=%d", ack.Sequence)
	return ack, nil
}

// Run is one subagent run recorded in the session history.
type Run struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	Model      string    `json:"model,omitempty"`
	Git        string    `json:"git,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at,omitempty"`
	Done       bool      `json:"done"`
	ExitCode   int       `json:"exit_code"`
	StopReason string    `json:"stop_reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinalText  string    `json:"final_text,omitempty"`
}

// Message is one transcript message, either produced by a run or brought in
// by a session import.
type Message struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Import records one completed session import.
type Import struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// State represents the current state of a session, reconstructed from events.
type State struct {
	Session  string          `json:"session"`
	Runs     map[string]*Run `json:"runs"`
	Messages []*Message      `json:"messages"`
	Imports  []*Import       `json:"imports"`
}

// NewState creates an empty state for a session.
func NewState(session string) *State {
	return &State{
		Session: session,
		Runs:    make(map[string]*Run),
	}
}

// RunList returns the session's runs ordered by start time.
func (st *State) RunList() []*Run {
	runs := make([]*Run, 0, len(st.Runs))
	for _, r := range st.Runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs
}

// Apply applies an event to the state, implementing the reduce pattern.
func (st *State) Apply(event Event) {
	switch event.Type {
	case nats.EventTypeRun:
		st.applyRunEvent(event)
	case nats.EventTypeMessage:
		st.applyMessageEvent(event)
	case nats.EventTypeImport:
		st.applyImportEvent(event)
	}
}

func (st *State) applyRunEvent(event Event) {
	switch event.Action {
	case "start":
		var meta struct {
			RunID string `json:"run_id"`
			Model string `json:"model"`
			Git   string `json:"git"`
		}
		json.Unmarshal(event.Meta, &meta)
		if meta.RunID == "" {
			meta.RunID = event.ID
		}
		st.Runs[meta.RunID] = &Run{
			ID:        meta.RunID,
			Task:      event.Data,
			Model:     meta.Model,
			Git:       meta.Git,
			StartedAt: event.Timestamp,
		}

	case "finish":
		var meta struct {
			RunID      string `json:"run_id"`
			ExitCode   int    `json:"exit_code"`
			StopReason string `json:"stop_reason"`
			Error      string `json:"error"`
		}
		json.Unmarshal(event.Meta, &meta)
		if run, exists := st.Runs[meta.RunID]; exists {
			run.Done = true
			run.EndedAt = event.Timestamp
			run.ExitCode = meta.ExitCode
			run.StopReason = meta.StopReason
			run.Error = meta.Error
			run.FinalText = event.Data
		}
	}
}

func (st *State) applyMessageEvent(event Event) {
	switch event.Action {
	case "add":
		var meta struct {
			RunID string `json:"run_id"`
			Role  string `json:"role"`
		}
		json.Unmarshal(event.Meta, &meta)
		if meta.Role == "" {
			meta.Role = "assistant"
		}
		st.Messages = append(st.Messages, &Message{
			ID:        event.ID,
			RunID:     meta.RunID,
			Role:      meta.Role,
			Text:      event.Data,
			CreatedAt: event.Timestamp,
		})
	}
}

func (st *State) applyImportEvent(event Event) {
	switch event.Action {
	case "complete":
		var meta struct {
			Source       string `json:"source"`
			MessageCount int    `json:"message_count"`
		}
		json.Unmarshal(event.Meta, &meta)
		st.Imports = append(st.Imports, &Import{
			ID:           event.ID,
			Source:       meta.Source,
			Title:        event.Data,
			MessageCount: meta.MessageCount,
			CreatedAt:    event.Timestamp,
		})
	}
}

// LoadState reconstructs the current state of a session by reading and
// reducing all events from the JetStream event log.
func (s *Store) LoadState(ctx context.Context, session string) (*State, error) {
	logger.Debug("Loading state for session: %s", session)

	consumer, err := nats.CreateConsumer(ctx, s.stream, session)
	if err != nil {
		logger.Error("Failed to create consumer for session %s: %v", session, err)
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	state := NewState(session)

	// Fetch events in batches and reduce into state
	const batchSize = 1000
	malformedCount := 0
	totalEvents := 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			logger.Debug("Finished reading events (batch fetch complete)")
			break
		}

		msgCount := 0
		for msg := range msgs.Messages() {
			msgCount++
			totalEvents++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				// Skip malformed events but acknowledge to prevent redelivery
				malformedCount++
				meta, _ := msg.Metadata()
				logger.Warn("Skipping malformed event (seq=%d): %v", meta.Sequence.Stream, err)
				msg.Ack()
				continue
			}

			if event.ID == "" {
				meta, _ := msg.Metadata()
				event.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
			}

			state.Apply(event)
			msg.Ack()
		}

		logger.Debug("Processed batch: %d events", msgCount)
		if msgCount < batchSize {
			break
		}
	}

	if malformedCount > 0 {
		logger.Warn("Skipped %d malformed events while loading state", malformedCount)
	}

	logger.Debug("State loaded: %d total events, %d runs, %d messages, %d imports",
		totalEvents, len(state.Runs), len(state.Messages), len(state.Imports))
	return state, nil
}
