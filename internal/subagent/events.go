package subagent

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/sidekick/internal/logger"
)

// eventMessageCompleted is the only event type the reducer consumes. The
// agent stream also carries partial deltas and tool progress events; those
// are ignored because every message_completed event restates the full
// cumulative output.
const eventMessageCompleted = "message_completed"

type streamEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// decodeEvent parses one stdout line from the agent. It returns the message
// payload and true only for a well-formed message_completed event; blank
// lines, malformed JSON, and other event types are dropped without failing
// the run.
func decodeEvent(line string) (*Message, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	var ev streamEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		logger.Debug("subagent: skipping unparseable line: %v", err)
		return nil, false
	}
	if ev.Type != eventMessageCompleted || ev.Message == nil {
		return nil, false
	}
	return ev.Message, true
}
