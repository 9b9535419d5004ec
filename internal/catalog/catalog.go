// Package catalog holds the built-in directory of agent models that sidekick
// can route subagent runs to.
package catalog

import (
	"sort"
	"strings"
)

// Model describes one known model.
type Model struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output,omitempty"`
	SupportsTools bool     `json:"supports_tools"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Ref returns the provider-qualified reference passed to the agent binary,
// e.g. "anthropic/claude-sonnet-4-5".
func (m Model) Ref() string {
	return m.Provider + "/" + m.ID
}

// models is the built-in catalog (February 2026).
var models = []Model{
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: 32768, SupportsTools: true,
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384, SupportsTools: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: 16384, SupportsTools: true,
		Aliases: []string{"haiku", "claude-haiku"},
	},
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, MaxOutput: 32768, SupportsTools: true,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: 16384, SupportsTools: true,
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "gpt-5.2-codex", Provider: "openai", DisplayName: "GPT-5.2 Codex",
		ContextWindow: 1047576, MaxOutput: 32768, SupportsTools: true,
		Aliases: []string{"codex"},
	},
	{
		ID: "gemini-3-pro-preview", Provider: "gemini", DisplayName: "Gemini 3 Pro (Preview)",
		ContextWindow: 1048576, MaxOutput: 65536, SupportsTools: true,
		Aliases: []string{"gemini-pro", "gemini-3-pro"},
	},
	{
		ID: "gemini-3-flash-preview", Provider: "gemini", DisplayName: "Gemini 3 Flash (Preview)",
		ContextWindow: 1048576, MaxOutput: 65536, SupportsTools: true,
		Aliases: []string{"gemini-flash", "gemini-3-flash"},
	},
}

// Lookup resolves a model by ID, alias, or provider-qualified reference.
// Matching is case-insensitive. It returns nil for unknown models.
func Lookup(name string) *Model {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	// Accept "provider/id" as written on command lines. A stated provider
	// must match the entry; "openai/claude-opus-4-6" is not a hit.
	provider := ""
	if i := strings.IndexByte(name, '/'); i >= 0 {
		provider = name[:i]
		name = name[i+1:]
	}
	for i := range models {
		if provider != "" && strings.ToLower(models[i].Provider) != provider {
			continue
		}
		if strings.ToLower(models[i].ID) == name {
			return &models[i]
		}
		for _, alias := range models[i].Aliases {
			if strings.ToLower(alias) == name {
				return &models[i]
			}
		}
	}
	return nil
}

// List returns all catalog entries, ordered by provider then ID.
func List() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Providers returns the distinct provider names in the catalog, sorted.
func Providers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range models {
		if _, ok := seen[m.Provider]; ok {
			continue
		}
		seen[m.Provider] = struct{}{}
		out = append(out, m.Provider)
	}
	sort.Strings(out)
	return out
}
