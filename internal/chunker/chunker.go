package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

const (
	// DefaultChunkSize is the target chunk length in characters
	DefaultChunkSize = 2000

	// DefaultOverlap is the number of characters shared by consecutive chunks
	DefaultOverlap = 200

	// MinTailLength is the shortest trailing piece kept as its own chunk
	MinTailLength = 300
)

// ErrInvalidParams is returned for a chunk size or overlap that cannot
// produce forward progress
var ErrInvalidParams = errors.New("invalid chunking parameters")

// Chunker splits source text into overlapping character windows.
// Lengths and offsets are counted in runes.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidParams, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured chunk size
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into chunks. Text no longer than the chunk size is a single
// chunk and empty text has none. Longer text goes through the boundary-aware
// splitter; when that cannot make progress the sliding window is used instead.
//
// The boundary-aware splitter loses nothing. The sliding window drops a
// trailing window shorter than MinTailLength, and that window always ends
// past the previous one, so up to MinTailLength-overlap-1 characters at the
// end of the text are not in any chunk. This only happens to text without
// usable line breaks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}
	if chunks, ok := c.splitOnBoundaries(runes); ok {
		return chunks
	}
	return c.slidingWindow(runes)
}

// Count returns the number of chunks Split would produce
func (c *Chunker) Count(text string) int {
	return len(c.Split(text))
}

// splitOnBoundaries ends every chunk at a line break in the upper half of the
// window, preferring blank lines, then lines holding a closing brace, then any
// line break. The next chunk starts exactly overlap characters before the end.
// A remainder shorter than MinTailLength is absorbed by the last chunk.
func (c *Chunker) splitOnBoundaries(runes []rune) ([]string, bool) {
	if c.overlap >= c.size/2 {
		return nil, false
	}

	var chunks []string
	n := len(runes)
	start := 0
	for {
		if n-start <= c.size {
			chunks = append(chunks, string(runes[start:]))
			return chunks, true
		}

		end := boundary(runes, start+c.size/2+1, start+c.size)
		if end < 0 {
			return nil, false
		}
		if n-end < MinTailLength {
			chunks = append(chunks, string(runes[start:]))
			return chunks, true
		}

		chunks = append(chunks, string(runes[start:end]))
		start = end - c.overlap
	}
}

// boundary returns the best chunk end in [lo, hi], or -1 when the range holds
// no line break. An end is the index just past a '\n'.
func boundary(runes []rune, lo, hi int) int {
	blank, brace, line := -1, -1, -1
	for p := hi; p >= lo; p-- {
		if runes[p-1] != '\n' {
			continue
		}
		if line < 0 {
			line = p
		}
		lineText := strings.TrimSpace(string(runes[lineStart(runes, p-1):p-1]))
		switch {
		case lineText == "":
			blank = p
		case brace < 0 && strings.HasPrefix(lineText, "}"):
			brace = p
		}
		if blank >= 0 {
			break
		}
	}

	switch {
	case blank >= 0:
		return blank
	case brace >= 0:
		return brace
	default:
		return line
	}
}

// lineStart returns the index of the first rune of the line ending at nl
func lineStart(runes []rune, nl int) int {
	for i := nl - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

// slidingWindow cuts fixed windows advancing by size-overlap. A trailing
// window shorter than MinTailLength is dropped unless it is the only one,
// losing the characters past the previous window's end.
func (c *Chunker) slidingWindow(runes []rune) []string {
	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		piece := runes[start:end]
		if end == len(runes) && len(piece) < MinTailLength && len(chunks) > 0 {
			break
		}
		chunks = append(chunks, string(piece))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Reassemble joins chunks by dropping the first overlap characters of every
// chunk after the first. The result equals the original text except where
// Split dropped a short sliding-window tail.
func Reassemble(chunks []string, overlap int) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		runes := []rune(chunk)
		if overlap < len(runes) {
			b.WriteString(string(runes[overlap:]))
		}
	}
	return b.String()
}

// ChunkFile reads a file and returns its chunk metadata items, along with the
// content hash of the full text. Empty files yield no items.
func (c *Chunker) ChunkFile(path string, origin types.Origin) ([]types.ChunkMeta, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)
	hash := ContentHash(text)
	return c.Items(path, text, hash, origin), hash, nil
}

// Items builds the metadata items for text that was already read and hashed
func (c *Chunker) Items(path, text, hash string, origin types.Origin) []types.ChunkMeta {
	pieces := c.Split(text)
	items := make([]types.ChunkMeta, len(pieces))
	for i, piece := range pieces {
		items[i] = types.ChunkMeta{
			Path:        path,
			ChunkIndex:  i,
			TotalChunks: len(pieces),
			Origin:      origin,
			Text:        piece,
			CharLength:  utf8.RuneCountInString(piece),
			ContentHash: hash,
			ChunkSize:   c.size,
			Overlap:     c.overlap,
		}
	}
	return items
}

// ContentHash returns the hex SHA-256 of text
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
