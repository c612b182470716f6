// Package chunker splits extracted document text into overlapping passages
// along natural boundaries for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"
)

// separators is the boundary cascade, strongest first: paragraphs, lines,
// sentences, words. A word that alone exceeds the chunk size is emitted
// verbatim rather than cut mid-word, so nothing is silently lost.
var separators = []string{"\n\n", "\n", ". ", " "}

const (
	// MinChunkSize and MaxChunkSize bound the configurable chunk size.
	MinChunkSize = 100
	MaxChunkSize = 4096

	// DefaultChunkSize and DefaultOverlap match typical embedding model
	// context budgets.
	DefaultChunkSize = 512
	DefaultOverlap   = 50
)

// Chunker splits text into chunks of at most maxSize bytes, stitching an
// overlap from the tail of each chunk onto the head of the next so context
// survives the cut points.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a Chunker. maxSize must lie in [MinChunkSize, MaxChunkSize]
// and overlap must be non-negative and strictly smaller than maxSize.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize < MinChunkSize || maxSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size %d outside [%d, %d]", maxSize, MinChunkSize, MaxChunkSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("overlap %d must satisfy 0 <= overlap < chunk size %d", overlap, maxSize)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Chunk splits text into ordered chunks. Empty or whitespace-only input
// yields nil. A single word longer than maxSize is emitted verbatim as its
// own oversized chunk rather than being dropped.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := c.split(text, separators)

	if c.overlap > 0 && len(raw) > 1 {
		raw = c.addOverlap(raw)
	}

	chunks := make([]string, 0, len(raw))
	for _, chunk := range raw {
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// split recursively divides text, trying each separator in order and merging
// pieces back up until they would exceed maxSize.
func (c *Chunker) split(text string, seps []string) []string {
	if len(text) <= c.maxSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sep := seps[0]
	pieces := strings.Split(text, sep)

	var chunks []string
	var current string

	for _, piece := range pieces {
		candidate := piece
		if current != "" {
			candidate = current + sep + piece
		}

		if len(candidate) <= c.maxSize {
			current = candidate
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}

		switch {
		case len(piece) <= c.maxSize:
			current = piece
		case len(seps) > 1:
			// Piece is still oversized: recurse with a finer separator.
			chunks = append(chunks, c.split(piece, seps[1:])...)
		default:
			// Word-level split exhausted: an indivisible word longer than
			// maxSize is kept whole.
			chunks = append(chunks, piece)
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// addOverlap copies the last overlap bytes of each chunk onto the start of
// the next, advancing to the first word boundary so the stitched prefix
// never begins mid-word.
func (c *Chunker) addOverlap(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	out = append(out, chunks[0])

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]

		start := len(prev) - c.overlap
		if start < 0 {
			start = 0
		}
		// Back off to a rune boundary.
		for start > 0 && start < len(prev) && !isRuneStart(prev[start]) {
			start++
		}
		tail := prev[start:]

		if idx := strings.Index(tail, " "); idx != -1 {
			tail = tail[idx+1:]
		}

		if tail == "" {
			out = append(out, chunks[i])
		} else {
			out = append(out, tail+" "+chunks[i])
		}
	}

	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
