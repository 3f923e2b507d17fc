package ids

import (
	"sort"
	"testing"
)

func TestNewShape(t *testing.T) {
	id := New()
	if len(id) != 26 {
		t.Fatalf("expected 26-char ulid, got %d chars: %q", len(id), id)
	}
}

func TestNewMonotonicWithinRun(t *testing.T) {
	const n = 1000
	seen := make(map[string]struct{}, n)
	minted := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := New()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
		minted = append(minted, id)
	}
	// Sortable by creation: mint order and lexicographic order agree.
	if !sort.StringsAreSorted(minted) {
		t.Fatal("ids are not sorted in mint order")
	}
}
