package subagent

import (
	"encoding/json"
	"strings"
)

// reducer folds decoded agent messages into cumulative run state. It is only
// ever touched from the stdout-reading goroutine, so it needs no locking;
// the finalizer reads it after that goroutine has been joined.
type reducer struct {
	messages     []Message
	finalText    string
	toolCalls    []ToolCall
	seen         map[string]struct{}
	stopReason   string
	errorMessage string
	model        string
}

func newReducer() *reducer {
	return &reducer{seen: make(map[string]struct{})}
}

// apply folds one message into the state and reports whether anything an
// observer would care about changed. Every message is recorded in the
// history, but only assistant messages contribute text, tool calls, or
// terminal metadata.
func (r *reducer) apply(msg Message) bool {
	r.messages = append(r.messages, msg)

	if msg.Role != "assistant" {
		return false
	}

	changed := false

	for _, part := range msg.Parts {
		if part.Type != "tool" || part.Tool == "" {
			continue
		}
		key := dedupKey(part)
		if _, dup := r.seen[key]; dup {
			continue
		}
		r.seen[key] = struct{}{}
		r.toolCalls = append(r.toolCalls, ToolCall{
			ID:        part.ID,
			Name:      part.Tool,
			Arguments: part.Arguments,
		})
		changed = true
	}

	// Each completed message restates the full text so far, so later text
	// replaces earlier text rather than appending to it.
	if text := collectText(msg.Parts); text != "" {
		r.finalText = text
		changed = true
	}

	if msg.StopReason != "" {
		r.stopReason = msg.StopReason
		changed = true
	}
	if msg.Error != "" {
		r.errorMessage = msg.Error
	}
	if msg.Model != "" {
		r.model = msg.Model
	}
	return changed
}

// snapshot returns an independent copy of the observable state; observers
// never see later mutations through it.
func (r *reducer) snapshot() Snapshot {
	calls := make([]ToolCall, len(r.toolCalls))
	copy(calls, r.toolCalls)
	return Snapshot{
		Text:       r.finalText,
		ToolCalls:  calls,
		Model:      r.model,
		StopReason: r.stopReason,
	}
}

// dedupKey identifies a tool call for deduplication. The agent's call ID is
// authoritative when present; otherwise the name plus serialized arguments
// stand in, so a retried identical call is still counted once.
func dedupKey(part Part) string {
	if part.ID != "" {
		return part.ID
	}
	args, err := json.Marshal(part.Arguments)
	if err != nil {
		args = []byte("{}")
	}
	return part.Tool + "\x00" + string(args)
}

func collectText(parts []Part) string {
	var texts []string
	for _, part := range parts {
		if part.Type == "text" && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
