package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Subject pattern constants and helpers
const (
	streamName = "sidekick_events"

	// Event types
	EventTypeRun     = "run"
	EventTypeMessage = "message"
	EventTypeImport  = "import"
)

// SubjectForSession returns the wildcard subject pattern for all events in a session.
// Example: "sidekick.mysession.>"
func SubjectForSession(session string) string {
	return fmt.Sprintf("sidekick.%s.>", session)
}

// SubjectForEvent returns the specific subject for an event type in a session.
// Example: "sidekick.mysession.run"
func SubjectForEvent(session, eventType string) string {
	return fmt.Sprintf("sidekick.%s.%s", session, eventType)
}

// SetupStream creates or updates the JetStream stream for sidekick events.
// The stream captures all events for all sessions with 30-day retention.
// Subject pattern: sidekick.> matches all sessions and event types.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"sidekick.>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
}

// CreateConsumer creates an ephemeral consumer that replays a session's
// event history from the beginning with explicit acknowledgment.
func CreateConsumer(ctx context.Context, stream jetstream.Stream, session string) (jetstream.Consumer, error) {
	return stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: SubjectForSession(session),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
}
