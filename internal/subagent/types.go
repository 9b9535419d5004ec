package subagent

// StopReasonAborted marks a run that was cancelled by the caller or timed out,
// as opposed to a run where the agent itself reported an error.
const StopReasonAborted = "aborted"

// Request describes a single subagent run. It is not mutated by the runner.
type Request struct {
	WorkDir      string   // Working directory for the spawned agent
	Task         string   // Natural language task text (required)
	SystemPrompt string   // Optional supplementary system prompt
	Model        string   // Optional model override (e.g., "anthropic/claude-sonnet-4-5")
	Tools        []string // Optional restricted tool-name list
}

// Part is one content part of an agent message. Type is "text" for text
// output and "tool" for a tool call.
type Part struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is the payload of a message_completed event emitted by the agent.
type Message struct {
	Role       string `json:"role"`
	Parts      []Part `json:"parts,omitempty"`
	StopReason string `json:"stopReason,omitempty"`
	Error      string `json:"error,omitempty"`
	Model      string `json:"model,omitempty"`
}

// ToolCall is one recorded tool invocation. Once recorded it is never
// removed or reordered.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Snapshot is the immutable progress view handed to the progress callback
// after every state change.
type Snapshot struct {
	Text       string
	ToolCalls  []ToolCall
	Model      string
	StopReason string
}

// Result is the terminal record of one run. It is created exactly once,
// whether the run completed, failed to spawn, errored, or was aborted.
type Result struct {
	ExitCode     int
	Stderr       string
	Messages     []Message
	FinalText    string
	ToolCalls    []ToolCall
	StopReason   string
	ErrorMessage string
	Model        string
}

// Aborted reports whether the run was cancelled or timed out.
func (r *Result) Aborted() bool {
	return r.StopReason == StopReasonAborted
}

// Summary returns a non-empty human-readable account of the run, preferring
// the agent's own error message, then collected stderr, then the last text
// output.
func (r *Result) Summary() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	if r.Stderr != "" {
		return r.Stderr
	}
	if r.FinalText != "" {
		return r.FinalText
	}
	return "no output"
}
