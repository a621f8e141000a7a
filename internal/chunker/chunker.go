// Package chunker splits text into overlapping fixed-size windows.
package chunker

import (
	"strings"
)

// Chunk splits text into windows of at most maxSize runes. Consecutive windows share exactly
// overlap runes; the last window may be shorter. Empty or whitespace-only text yields nil.
// maxSize and overlap must already be validated (see Options.Validate); invalid bounds yield nil.
func Chunk(text string, maxSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxSize <= 0 || overlap < 0 || overlap >= maxSize {
		return nil
	}
	runes := []rune(text)
	step := maxSize - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for offset := 0; ; offset += step {
		end := offset + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[offset:end]))
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// Span is a chunk with its rune offsets in the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// Spans is Chunk with rune offsets attached.
func Spans(text string, maxSize, overlap int) []Span {
	chunks := Chunk(text, maxSize, overlap)
	if len(chunks) == 0 {
		return nil
	}
	step := maxSize - overlap
	spans := make([]Span, len(chunks))
	for i, c := range chunks {
		start := i * step
		spans[i] = Span{Text: c, Start: start, End: start + len([]rune(c))}
	}
	return spans
}
