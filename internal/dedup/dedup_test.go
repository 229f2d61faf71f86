package dedup

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nlmatters/semdex/internal/chunker"
)

func TestUniqueExactDuplicates(t *testing.T) {
	d := New(0.9, 3)
	kept := d.Unique([]string{"hello world", "hello world", "hello there"})
	if len(kept) != 2 {
		t.Fatalf("Unique() kept %d, want 2", len(kept))
	}
	if kept[0] != 0 || kept[1] != 2 {
		t.Errorf("Unique() = %v, want [0 2]", kept)
	}
}

func TestUniqueFirstOccurrenceWins(t *testing.T) {
	d := New(0.9, 3)
	// The second text repeats the same phrase one more time: its shingle
	// set is identical to the first's, so it must bucket and score as a
	// near duplicate even though the raw strings differ.
	texts := []string{
		strings.Repeat("tick tock goes the clock ", 4),
		strings.Repeat("tick tock goes the clock ", 5),
		"a completely different sentence about database transactions and locks",
	}
	kept := d.Unique(texts)
	if len(kept) != 2 {
		t.Fatalf("Unique() = %v, want 2 retained", kept)
	}
	if kept[0] != 0 || kept[1] != 2 {
		t.Errorf("Unique() = %v, want [0 2]", kept)
	}
}

func TestUniqueExactCollapseRegardlessOfThreshold(t *testing.T) {
	// Even with the threshold above any near-duplicate score, identical
	// texts must collapse.
	d := New(1.0, 3)
	kept := d.Unique([]string{"same text here", "same text here"})
	if len(kept) != 1 {
		t.Errorf("Unique() kept %d, want 1", len(kept))
	}
}

func TestUniqueCaseAndWhitespaceInsensitive(t *testing.T) {
	d := New(0.9, 3)
	kept := d.Unique([]string{"Hello   World", "hello world"})
	if len(kept) != 1 {
		t.Errorf("Unique() kept %d, want 1", len(kept))
	}
}

func TestUniqueEmptyTextsSkipped(t *testing.T) {
	d := New(0.9, 3)
	kept := d.Unique([]string{"", "  ", "real content"})
	if len(kept) != 1 || kept[0] != 2 {
		t.Errorf("Unique() = %v, want [2]", kept)
	}
}

func TestUniqueDissimilarRetained(t *testing.T) {
	d := New(0.8, 3)
	texts := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		texts = append(texts, fmt.Sprintf(
			"document number %d talks about subject %d and mentions item %d in detail",
			i, i*7, i*13))
	}
	kept := d.Unique(texts)
	if len(kept) != 20 {
		t.Errorf("Unique() kept %d of 20 dissimilar texts", len(kept))
	}
}

func TestFilterChunksReindexes(t *testing.T) {
	d := New(0.9, 3)
	chunks := []chunker.Chunk{
		{DocumentID: "d", ChunkIndex: 0, Text: "alpha beta gamma delta"},
		{DocumentID: "d", ChunkIndex: 1, Text: "alpha beta gamma delta"},
		{DocumentID: "d", ChunkIndex: 2, Text: "epsilon zeta eta theta"},
	}
	out := d.FilterChunks(chunks)
	if len(out) != 2 {
		t.Fatalf("FilterChunks() = %d chunks, want 2", len(out))
	}
	for i, ch := range out {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d after reindexing", i, ch.ChunkIndex)
		}
	}
	if !strings.Contains(out[1].Text, "epsilon") {
		t.Errorf("wrong chunk retained: %q", out[1].Text)
	}
}
