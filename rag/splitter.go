package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk sizing defaults, in characters.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 64
)

// Splitter cuts raw document text into overlapping chunks.
//
// The split is paragraph-aware: paragraphs (blank-line separated) are packed
// whole into chunks up to the target size, so semantic context is not cut
// mid-paragraph when possible. A paragraph longer than the target size is
// windowed on its own. Consecutive chunks share an overlap window taken from
// the tail of the previous chunk.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a splitter with the given target chunk size and
// overlap window, both in characters.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d", overlap)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split returns the chunk texts for the given content.
// Whitespace-only content yields no chunks.
func (s *Splitter) Split(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs(text) {
		pieces := []string{para}
		if len(para) > s.chunkSize {
			flush()
			pieces = window(para, s.chunkSize, s.overlap)
		}
		for _, piece := range pieces {
			switch {
			case current.Len() == 0:
				current.WriteString(s.tailOverlap(chunks))
				current.WriteString(piece)
			case current.Len()+2+len(piece) <= s.chunkSize:
				current.WriteString("\n\n")
				current.WriteString(piece)
			default:
				flush()
				current.WriteString(s.tailOverlap(chunks))
				current.WriteString(piece)
			}
			if current.Len() >= s.chunkSize {
				flush()
			}
		}
	}
	flush()
	return chunks
}

// tailOverlap returns the overlap prefix for a new chunk: the last overlap
// characters of the previous chunk, or nothing for the first chunk.
func (s *Splitter) tailOverlap(chunks []string) string {
	if s.overlap == 0 || len(chunks) == 0 {
		return ""
	}
	prev := chunks[len(chunks)-1]
	if len(prev) <= s.overlap {
		return prev
	}
	return prev[runeStart(prev, len(prev)-s.overlap):]
}

// paragraphs splits text on blank lines, dropping whitespace-only entries.
func paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

// window cuts an oversized paragraph into size-bounded pieces that overlap
// by the given number of characters, breaking at a space when one is near.
// Cut points never land inside a multi-byte rune.
func window(text string, size, overlap int) []string {
	// Clamp the overlap so every iteration makes forward progress even when
	// the cut point lands early.
	if overlap > size/2 {
		overlap = size / 2
	}
	var out []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		end = runeStart(text, end)
		if end <= start {
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
			if end >= len(text) {
				out = append(out, text[start:])
				break
			}
		}
		// Prefer breaking at whitespace within the last tenth of the window.
		// Whitespace is ASCII, so a byte match is always a rune boundary.
		cut := end
		for i := end; i > end-size/10 && i > start; i-- {
			if text[i-1] == ' ' || text[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, text[start:cut])
		next := runeStart(text, cut-overlap)
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}

// runeStart backs i up to the nearest rune boundary in s.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
