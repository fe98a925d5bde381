package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/storage"
)

const testDim = 64

// countingEmbedder wraps the local provider and counts what it was asked to embed
type countingEmbedder struct {
	embedder.Embedder
	mu        sync.Mutex
	texts     int
	failBatch bool
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	c.mu.Lock()
	c.texts += len(req.Texts)
	fail := c.failBatch
	c.mu.Unlock()
	if fail {
		return nil, errors.New("provider unavailable")
	}
	return c.Embedder.GenerateBatch(ctx, req)
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	c.mu.Lock()
	fail := c.failBatch
	c.mu.Unlock()
	if fail {
		return nil, errors.New("provider unavailable")
	}
	return c.Embedder.GenerateEmbedding(ctx, req)
}

func (c *countingEmbedder) embedded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.texts
}

func (c *countingEmbedder) reset() {
	c.mu.Lock()
	c.texts = 0
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	root     string
	store    *storage.Store
	provider *countingEmbedder
	idx      *Indexer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	local, err := embedder.NewLocalProvider(testDim, nil)
	require.NoError(t, err)
	provider := &countingEmbedder{Embedder: local}

	logger := discardLogger()
	handle := embedder.NewHandle(provider, embedder.HandleOptions{BatchSize: 8, Logger: logger})
	store := storage.NewStore(filepath.Join(t.TempDir(), "index"), logger)

	return &testEnv{
		root:     t.TempDir(),
		store:    store,
		provider: provider,
		idx:      New(store, handle, logger),
	}
}

func (e *testEnv) config() Config {
	return Config{
		Roots:       []Root{{Path: e.root, Origin: "project"}},
		ChunkSize:   400,
		Overlap:     40,
		Workers:     4,
		Incremental: true,
	}
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// classSource renders a small UE-style header of roughly n members
func classSource(name string, members int) string {
	var b strings.Builder
	b.WriteString("#pragma once\n\n")
	b.WriteString("UCLASS()\n")
	b.WriteString("class " + name + " : public AActor\n{\n\tGENERATED_BODY()\n\npublic:\n")
	for i := 0; i < members; i++ {
		b.WriteString("\tUPROPERTY(EditAnywhere)\n")
		b.WriteString("\tfloat Value" + string(rune('A'+i%26)) + strings.Repeat("x", i/26) + " = 0.f;\n\n")
	}
	b.WriteString("};\n")
	return b.String()
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	writeFile(t, root, "Source/Game/Weapon.h", classSource("AWeapon", 30))
	writeFile(t, root, "Source/Game/Weapon.cpp", "#include \"Weapon.h\"\n\nvoid AWeapon::Fire()\n{\n\tAmmo--;\n}\n")
	writeFile(t, root, "Source/Game/Pickup.h", classSource("APickup", 4))
	writeFile(t, root, "Source/Game/Empty.h", "")
	writeFile(t, root, "Source/Game/README.md", "not source")
	writeFile(t, root, "Intermediate/Build/Generated.h", classSource("AGenerated", 2))
}
