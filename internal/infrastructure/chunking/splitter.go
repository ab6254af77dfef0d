package chunking

import (
	"strings"
	"unicode"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		last := end >= len(runes)
		if last {
			end = len(runes)
		} else {
			end = s.wordBoundary(runes, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if last {
			break
		}
	}
	return out
}

// wordBoundary walks back from a hard cut to the nearest whitespace. The
// search window never exceeds the overlap, so shortening a chunk cannot
// drop text between it and the next one.
func (s *Splitter) wordBoundary(runes []rune, end int) int {
	limit := end - s.Overlap
	for i := end; i > limit && i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
