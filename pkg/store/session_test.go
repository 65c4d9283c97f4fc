package store

import (
	"testing"
)

func TestRecentWindow(t *testing.T) {
	s := NewSession("s1")
	for _, text := range []string{"a", "b", "c", "d"} {
		s.Append(Turn{Role: RoleUser, Text: text})
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "zero", n: 0, want: nil},
		{name: "negative", n: -1, want: nil},
		{name: "partial", n: 2, want: []string{"c", "d"}},
		{name: "exact", n: 4, want: []string{"a", "b", "c", "d"}},
		{name: "oversized", n: 10, want: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Recent(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("Recent(%d) returned %d turns, want %d", tt.n, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].Text != tt.want[i] {
					t.Errorf("turn %d = %q, want %q", i, got[i].Text, tt.want[i])
				}
			}
		})
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s := NewSession("s1")
	s.Append(Turn{Role: RoleUser, Text: "original"})

	got := s.Recent(1)
	got[0].Text = "mutated"

	if s.Recent(1)[0].Text != "original" {
		t.Error("mutating the returned slice leaked into the session")
	}
}

func TestAppendSetsCreatedAt(t *testing.T) {
	s := NewSession("s1")
	s.Append(Turn{Role: RoleUser, Text: "a"})

	if s.Recent(1)[0].CreatedAt.IsZero() {
		t.Error("append should stamp a missing creation time")
	}
}

func TestRecentOnEmptySession(t *testing.T) {
	s := NewSession("s1")
	if got := s.Recent(5); got != nil {
		t.Errorf("Recent on empty session = %v, want nil", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}
