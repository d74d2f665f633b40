package application

import "testing"

func TestParseDecision(t *testing.T) {
	cases := map[string]Decision{
		"Accepté":    DecisionAccepted,
		" Rejeté ":   DecisionRejected,
		"En attente": DecisionPending,
		"accepted":   DecisionAccepted,
		"PENDING":    DecisionPending,
	}
	for input, want := range cases {
		got, ok := ParseDecision(input)
		if !ok || got != want {
			t.Fatalf("ParseDecision(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	for _, input := range []string{"", "Refusé", "maybe"} {
		if _, ok := ParseDecision(input); ok {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestTotalPages(t *testing.T) {
	if got := TotalPages(25, 10); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
	if got := TotalPages(20, 10); got != 2 {
		t.Fatalf("expected 2 pages, got %d", got)
	}
	if got := TotalPages(0, 10); got != 0 {
		t.Fatalf("expected 0 pages, got %d", got)
	}
}
