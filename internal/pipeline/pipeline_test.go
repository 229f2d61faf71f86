package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/nlmatters/semdex/internal/chunker"
	"github.com/nlmatters/semdex/internal/dedup"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	ch, err := chunker.New(chunker.Options{
		Strategy:  chunker.StrategySentence,
		ChunkSize: 120,
		Overlap:   20,
	})
	if err != nil {
		t.Fatalf("chunker.New() error: %v", err)
	}
	return New(ch, dedup.New(0.9, 3))
}

func TestProcessEmptyInput(t *testing.T) {
	p := newTestPipeline(t)
	for _, input := range []string{"", "  \n\n ", "\x00\x07"} {
		chunks, err := p.Process(context.Background(), "doc1", input, nil)
		if err != nil {
			t.Fatalf("Process(%q) error: %v", input, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Process(%q) = %d chunks, want 0", input, len(chunks))
		}
	}
}

func TestProcessDeterministic(t *testing.T) {
	p := newTestPipeline(t)
	text := "First sentence of the document. Second sentence follows here. " +
		strings.Repeat("Another filler sentence for bulk. ", 6)

	a, err := p.Process(context.Background(), "doc1", text, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	b, err := p.Process(context.Background(), "doc1", text, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].StartOffset != b[i].StartOffset {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestProcessDedupAndReindex(t *testing.T) {
	p := newTestPipeline(t)
	// The same paragraph twice; dedup must collapse it and reindex densely.
	para := strings.Repeat("Repeated content sentence goes here again and again. ", 3)
	text := para + "\n\n" + para + "\n\nA closing remark that differs completely from everything."

	chunks, err := p.Process(context.Background(), "doc1", text, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
	}
	seen := make(map[string]bool)
	for _, ch := range chunks {
		if seen[ch.Text] {
			t.Errorf("duplicate chunk survived: %q", ch.Text)
		}
		seen[ch.Text] = true
	}
}

func TestProcessAttachesMetadata(t *testing.T) {
	p := newTestPipeline(t)
	chunks, err := p.Process(context.Background(), "doc1", "One good sentence.", map[string]string{"topic": "AI"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Process() = %d chunks, want 1", len(chunks))
	}
	if chunks[0].Metadata["topic"] != "AI" {
		t.Errorf("metadata not attached: %v", chunks[0].Metadata)
	}
}
