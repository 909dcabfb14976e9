package render

import "testing"

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"pending":    StatePending,
		"Waiting":    StatePending,
		"processing": StatePending,
		"completed":  StateCompleted,
		"failed":     StateFailed,
		"":           StateFailed,
		"exploded":   StateFailed,
	}
	for raw, want := range cases {
		if got := ParseState(raw); got != want {
			t.Fatalf("ParseState(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	if StatePending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Fatal("completed and failed must be terminal")
	}
}
