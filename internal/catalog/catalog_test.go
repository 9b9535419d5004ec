package catalog

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		wantID string
	}{
		{name: "by id", query: "claude-sonnet-4-5", wantID: "claude-sonnet-4-5"},
		{name: "by alias", query: "sonnet", wantID: "claude-sonnet-4-5"},
		{name: "case insensitive", query: "SONNET", wantID: "claude-sonnet-4-5"},
		{name: "provider qualified", query: "anthropic/claude-opus-4-6", wantID: "claude-opus-4-6"},
		{name: "provider qualified alias", query: "openai/codex", wantID: "gpt-5.2-codex"},
		{name: "whitespace trimmed", query: "  haiku ", wantID: "claude-haiku-4-5"},
		{name: "wrong provider rejected", query: "openai/claude-opus-4-6"},
		{name: "wrong provider alias rejected", query: "anthropic/codex"},
		{name: "unknown", query: "nonexistent-model"},
		{name: "empty", query: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lookup(tt.query)
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %q, got nil", tt.wantID)
			}
			if got.ID != tt.wantID {
				t.Errorf("expected %q, got %q", tt.wantID, got.ID)
			}
		})
	}
}

func TestModelRef(t *testing.T) {
	m := Lookup("sonnet")
	if m == nil {
		t.Fatal("expected sonnet in catalog")
	}
	if m.Ref() != "anthropic/claude-sonnet-4-5" {
		t.Errorf("unexpected ref %q", m.Ref())
	}
}

func TestListOrdered(t *testing.T) {
	list := List()
	if len(list) == 0 {
		t.Fatal("expected non-empty catalog")
	}
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.Provider > cur.Provider {
			t.Fatalf("providers out of order at %d: %s > %s", i, prev.Provider, cur.Provider)
		}
		if prev.Provider == cur.Provider && prev.ID > cur.ID {
			t.Fatalf("ids out of order at %d: %s > %s", i, prev.ID, cur.ID)
		}
	}
}

func TestListIsCopy(t *testing.T) {
	list := List()
	list[0].ID = "mutated"
	if Lookup("mutated") != nil {
		t.Error("List must not expose the internal catalog")
	}
}

func TestProviders(t *testing.T) {
	providers := Providers()
	want := []string{"anthropic", "gemini", "openai"}
	if len(providers) != len(want) {
		t.Fatalf("expected %v, got %v", want, providers)
	}
	for i := range want {
		if providers[i] != want[i] {
			t.Errorf("expected %v, got %v", want, providers)
			break
		}
	}
}
