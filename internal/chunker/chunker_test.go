package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// sampleSource produces header-like text of exactly n ASCII characters
func sampleSource(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		switch i % 6 {
		case 0:
			fmt.Fprintf(&b, "UCLASS()\nclass AThing%d : public AActor\n{\n", i)
		case 1, 2, 3:
			fmt.Fprintf(&b, "\tUPROPERTY(EditAnywhere)\n\tFVector Location%d;\n", i)
		case 4:
			b.WriteString("};\n")
		default:
			b.WriteString("\n")
		}
	}
	return b.String()[:n]
}

func newDefault(t *testing.T) *Chunker {
	t.Helper()
	c, err := New(DefaultChunkSize, DefaultOverlap)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c := newDefault(t)
	assert.Equal(t, 2000, c.Size())
	assert.Equal(t, 200, c.Overlap())

	for _, p := range [][2]int{{0, 0}, {100, 100}, {100, 150}, {100, -1}, {-5, 0}} {
		_, err := New(p[0], p[1])
		assert.ErrorIs(t, err, ErrInvalidParams, "size=%d overlap=%d", p[0], p[1])
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	c := newDefault(t)

	for _, n := range []int{0, 1, 1999, 2000, 2001, 2300, 25000, 100000} {
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			text := sampleSource(n)
			chunks := c.Split(text)

			assert.Equal(t, text, Reassemble(chunks, c.Overlap()))
			if n == 0 {
				assert.Empty(t, chunks)
			}
			if n > 0 && n <= c.Size() {
				assert.Equal(t, []string{text}, chunks)
			}
		})
	}
}

func TestSplit_ExactOverlap(t *testing.T) {
	c := newDefault(t)
	chunks := c.Split(sampleSource(30000))
	require.Greater(t, len(chunks), 10)

	for i := 0; i+1 < len(chunks); i++ {
		cur := []rune(chunks[i])
		next := []rune(chunks[i+1])
		assert.Equal(t, string(cur[len(cur)-c.Overlap():]), string(next[:c.Overlap()]), "chunk %d", i)
		assert.LessOrEqual(t, len(cur), c.Size())
		assert.Greater(t, len(cur), c.Size()/2)
		assert.True(t, strings.HasSuffix(chunks[i], "\n"), "chunk %d ends on a line break", i)
	}

	last := []rune(chunks[len(chunks)-1])
	assert.Less(t, len(last), c.Size()+MinTailLength)
}

func TestSplit_Multibyte(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	text := strings.Repeat("// données éàü 日本語 ligne\n", 200)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, Reassemble(chunks, 50))
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
	}
}

func TestSplit_PrefersBlankLine(t *testing.T) {
	c := newDefault(t)
	line := "\tint32 Value = 0;\n"
	head := strings.Repeat(line, 80) + "}\n" + strings.Repeat(line, 20)
	tail := strings.Repeat(line, 200)

	chunks := c.Split(head + "\n" + tail)
	assert.Len(t, chunks[0], len(head)+1)
	assert.True(t, strings.HasSuffix(chunks[0], ";\n\n"))

	// without the blank line the closing brace wins over a plain line break
	chunks = c.Split(head + tail)
	assert.True(t, strings.HasSuffix(chunks[0], "}\n"))
	assert.Len(t, chunks[0], 80*len(line)+2)
}

func TestSplit_AbsorbsShortTail(t *testing.T) {
	c := newDefault(t)
	// last line break in the window is at 1998, leaving a 162 character tail
	text := strings.Repeat("\tint32 Value = 0;\n", 120)
	chunks := c.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_FallbackWithoutLineBreaks(t *testing.T) {
	c := newDefault(t)

	text := strings.Repeat("x", 5000)
	chunks := c.Split(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2000)
	assert.Len(t, chunks[1], 2000)
	assert.Len(t, chunks[2], 1400)
	assert.Equal(t, text, Reassemble(chunks, c.Overlap()))

	// a trailing window under MinTailLength is dropped
	chunks = c.Split(strings.Repeat("y", 3850))
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[1], 2000)
}

func TestSplit_DroppedTailIsLost(t *testing.T) {
	c := newDefault(t)

	// windows start at 0, 1800 and 3600; the last holds 250 characters,
	// 50 of them past the end of the second window
	var b strings.Builder
	for i := 0; i < 3850; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	got := Reassemble(chunks, c.Overlap())
	assert.Equal(t, text[:3800], got)
	assert.Len(t, text[len(got):], 50)

	// a tail of MinTailLength is kept and the text round trips
	longer := text + strings.Repeat("z", 50)
	chunks = c.Split(longer)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], MinTailLength)
	assert.Equal(t, longer, Reassemble(chunks, c.Overlap()))
}

func TestSplit_FallbackWhenOverlapTooLarge(t *testing.T) {
	c, err := New(1000, 600)
	require.NoError(t, err)

	text := sampleSource(5000)
	assert.Equal(t, c.slidingWindow([]rune(text)), c.Split(text))
}

func TestSlidingWindow_KeepsOnlyChunk(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	chunks := c.slidingWindow([]rune(strings.Repeat("z", 200)))
	assert.Equal(t, []string{strings.Repeat("z", 200)}, chunks)
}

func TestCount(t *testing.T) {
	c := newDefault(t)
	for _, n := range []int{0, 10, 9000} {
		text := sampleSource(n)
		assert.Equal(t, len(c.Split(text)), c.Count(text))
	}

	// chunk count depends on parameters
	text := sampleSource(9000)
	small, err := New(1000, 100)
	require.NoError(t, err)
	assert.NotEqual(t, c.Count(text), small.Count(text))
}

func TestItems(t *testing.T) {
	c := newDefault(t)
	text := sampleSource(6000)
	hash := ContentHash(text)

	items := c.Items("Source/Thing.h", text, hash, types.OriginProject)
	require.Len(t, items, c.Count(text))

	for i, item := range items {
		assert.Equal(t, "Source/Thing.h", item.Path)
		assert.Equal(t, i, item.ChunkIndex)
		assert.Equal(t, len(items), item.TotalChunks)
		assert.Equal(t, types.OriginProject, item.Origin)
		assert.Equal(t, hash, item.ContentHash)
		assert.Equal(t, utf8.RuneCountInString(item.Text), item.CharLength)
		assert.Equal(t, 2000, item.ChunkSize)
		assert.Equal(t, 200, item.Overlap)
		assert.NoError(t, item.Validate())
	}
}

func TestChunkFile(t *testing.T) {
	c := newDefault(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "Weapon.h")
	require.NoError(t, os.WriteFile(path, []byte(sampleSource(4500)), 0644))

	items, hash, err := c.ChunkFile(path, types.OriginEngine)
	require.NoError(t, err)
	assert.NotEmpty(t, items)
	assert.Equal(t, ContentHash(sampleSource(4500)), hash)

	empty := filepath.Join(dir, "Empty.h")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	items, hash, err = c.ChunkFile(empty, types.OriginEngine)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hash)

	_, _, err = c.ChunkFile(filepath.Join(dir, "missing.h"), types.OriginEngine)
	assert.Error(t, err)
}
