package i18n

import (
	"strings"
	"testing"
)

func TestSplitChunksShortTextStaysWhole(t *testing.T) {
	chunks := splitChunks("Un court résumé.", maxChunkLen)
	if len(chunks) != 1 || chunks[0] != "Un court résumé." {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestSplitChunksRespectsParagraphBound(t *testing.T) {
	paragraph := strings.Repeat("mot ", 50) // ~200 chars
	text := strings.Join([]string{paragraph, paragraph, paragraph, paragraph}, "\n")

	chunks := splitChunks(text, 450)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 450 {
			t.Fatalf("chunk %d exceeds bound: %d chars", i, len(chunk))
		}
	}
}

func TestSplitChunksNeverBreaksInsideParagraph(t *testing.T) {
	// A single paragraph longer than the bound stays one chunk.
	long := strings.TrimSpace(strings.Repeat("abcdefghij ", 100)) // ~1100 chars, no newline
	chunks := splitChunks(long, 450)
	if len(chunks) != 1 {
		t.Fatalf("unsplittable paragraph must stay whole, got %d chunks", len(chunks))
	}
	if chunks[0] != long {
		t.Fatal("paragraph content changed")
	}
}

func TestSplitChunksDropsEmptyParagraphs(t *testing.T) {
	text := strings.Repeat("ligne un\n\n\nligne deux\n", 40)
	for _, chunk := range splitChunks(text, 100) {
		if strings.Contains(chunk, "\n") {
			t.Fatalf("chunk contains raw newline: %q", chunk)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Fatal("empty chunk emitted")
		}
	}
}
