package ingestion

import (
	"strings"
	"unicode"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into overlapping windows of at most Size runes.
// A window that would cut a word prefers to end on whitespace found in its
// final fifth.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a Chunker with out-of-range values replaced: a
// non-positive size becomes DefaultChunkSize, a negative overlap becomes 0
// and an overlap not smaller than size becomes size/5.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split returns the trimmed, non-empty chunks of text.
func (c *Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < n; {
		end := min(start+c.Size, n)
		if end < n {
			floor := start + c.Size*4/5
			for i := end; i > floor; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}

		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
