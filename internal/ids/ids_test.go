package ids

import (
	"sort"
	"testing"
)

func TestNewIsSortable(t *testing.T) {
	got := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected ULID length for %q", id)
		}
		got = append(got, id)
	}

	if !sort.StringsAreSorted(got) {
		t.Fatal("expected ids minted in order to sort lexicographically")
	}

	seen := map[string]struct{}{}
	for _, id := range got {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewIsConcurrencySafe(t *testing.T) {
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				New()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
