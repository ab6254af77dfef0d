package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("data retention policy")
	if len(chunks) != 1 || chunks[0] != "data retention policy" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	if chunks := s.Split(""); chunks != nil {
		t.Fatalf("expected nil, got %v", chunks)
	}
	if chunks := s.Split("   \n\t  "); len(chunks) != 0 {
		t.Fatalf("expected no chunks for whitespace, got %v", chunks)
	}
}

func TestSplitPrefersWordBoundaryWithinOverlap(t *testing.T) {
	// 30-rune window lands mid-word; the boundary search inside the
	// overlap must pull the cut back to the preceding space.
	s := NewSplitter(30, 10)
	text := "alpha bravo charlie delta echo foxtrot golf"
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for _, chunk := range chunks {
		if !strings.Contains(text, chunk) {
			t.Fatalf("chunk %q is not a substring of the input", chunk)
		}
	}
	first := chunks[0]
	if strings.HasSuffix(first, "fox") || strings.HasSuffix(first, "ch") {
		t.Fatalf("first chunk ends mid-word: %q", first)
	}
}

func TestSplitZeroOverlapKeepsHardCuts(t *testing.T) {
	s := NewSplitter(5, 0)
	chunks := s.Split("abcdefghij")
	if len(chunks) != 2 || chunks[0] != "abcde" || chunks[1] != "fghij" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitCoversWholeText(t *testing.T) {
	s := NewSplitter(40, 12)
	words := strings.Fields("one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen")
	text := strings.Join(words, " ")
	chunks := s.Split(text)

	joined := strings.Join(chunks, " ")
	for _, w := range words {
		if !strings.Contains(joined, w) {
			t.Fatalf("word %q missing from chunks %v", w, chunks)
		}
	}
}
