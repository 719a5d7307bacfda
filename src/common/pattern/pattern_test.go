package pattern

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, target string
		want            bool
	}{
		{"*", "", true},
		{"*", "anything/at/all", true},
		{"jobs/*", "jobs/123", true},
		{"jobs/*", "jobs/", false},
		{"jobs/*", "jobs", false},
		{"jobs/*", "other/123", false},
		{"*.topic", "orders.topic", true},
		{"*.topic", ".topic", false},
		{"*.topic", "orders.other", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}

	for _, c := range cases {
		if got := Match(c.pattern, c.target); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.target, got, c.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"jobs/*", "*.urgent"}
	if !MatchAny(patterns, "jobs/42") {
		t.Error("expected jobs/42 to match")
	}
	if !MatchAny(patterns, "ticket.urgent") {
		t.Error("expected ticket.urgent to match")
	}
	if MatchAny(patterns, "unrelated") {
		t.Error("expected unrelated not to match")
	}
	if MatchAny(nil, "anything") {
		t.Error("expected empty pattern set not to match")
	}
}
