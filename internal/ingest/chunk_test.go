package ingest

import (
	"strings"
	"testing"
)

func TestChunkTextShortInputIsOneChunk(t *testing.T) {
	t.Parallel()

	got := ChunkText("First sentence. Second sentence.", 800)
	if len(got) != 1 {
		t.Fatalf("chunk count mismatch: got %d want 1", len(got))
	}
	if got[0] != "First sentence. Second sentence." {
		t.Fatalf("chunk mismatch: got %q", got[0])
	}
}

func TestChunkTextEmpty(t *testing.T) {
	t.Parallel()

	if got := ChunkText("   ", 800); got != nil {
		t.Fatalf("chunk mismatch: got %v want nil", got)
	}
}

func TestChunkTextRespectsBudget(t *testing.T) {
	t.Parallel()

	text := strings.TrimSpace(strings.Repeat("Ten words fit in this sentence about password resets today. ", 40))
	maxTokens := 50
	got := ChunkText(text, maxTokens)
	if len(got) < 2 {
		t.Fatalf("chunk count mismatch: got %d want >= 2", len(got))
	}
	for i, c := range got {
		if len(c) > maxTokens*4 {
			t.Fatalf("chunk %d over budget: %d chars", i, len(c))
		}
	}
	if strings.Join(got, " ") != text {
		t.Fatalf("chunks do not reassemble the input")
	}
}

func TestChunkTextOversizeSentenceStandsAlone(t *testing.T) {
	t.Parallel()

	oversize := strings.Repeat("word ", 100) + "end."
	text := "Short lead. " + oversize
	got := ChunkText(text, 10)
	if len(got) != 2 {
		t.Fatalf("chunk count mismatch: got %d want 2", len(got))
	}
	if got[0] != "Short lead." {
		t.Fatalf("first chunk mismatch: got %q", got[0])
	}
	if !strings.HasPrefix(got[1], "word word") {
		t.Fatalf("second chunk mismatch: got %q", got[1])
	}
}
