package rag

import (
	"testing"

	contractx "github.com/pchaya/aftercare/agent/contract"
)

func TestFilterByScore(t *testing.T) {
	t.Parallel()

	passages := []contractx.Passage{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.35},
		{ChunkID: "c", Score: 0.34},
		{ChunkID: "d", Score: 0.5},
	}

	kept := FilterByScore(passages, 0.35)
	if len(kept) != 3 {
		t.Fatalf("expected 3 passages at the floor, got %d", len(kept))
	}
	// Order is preserved; the floor is inclusive.
	want := []string{"a", "b", "d"}
	for i, id := range want {
		if kept[i].ChunkID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, kept[i].ChunkID)
		}
	}

	if got := FilterByScore(nil, 0.35); len(got) != 0 {
		t.Fatalf("nil input must filter to empty, got %d", len(got))
	}
	if got := FilterByScore(passages, 1.1); len(got) != 0 {
		t.Fatalf("floor above all scores must filter everything, got %d", len(got))
	}
}
