package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RebuildsOnChange(t *testing.T) {
	env := newTestEnv(t)
	writeTree(t, env.root)

	first, err := env.idx.Build(context.Background(), env.config())
	require.NoError(t, err)

	w, err := NewWatcher(env.idx, env.config(), 50*time.Millisecond, discardLogger())
	require.NoError(t, err)

	builds := make(chan *Statistics, 4)
	w.OnBuild = func(s *Statistics, err error) {
		if err == nil {
			builds <- s
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, env.root, "Source/Game/Shield.h", classSource("AShield", 2))

	select {
	case stats := <-builds:
		assert.NotEqual(t, first.BuildID, stats.BuildID)
		assert.Equal(t, 3, stats.FilesReused)
		assert.Equal(t, 1, stats.ChunksCreated)
	case <-time.After(10 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_StopsWithoutEvents(t *testing.T) {
	env := newTestEnv(t)
	writeTree(t, env.root)

	w, err := NewWatcher(env.idx, env.config(), 0, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestWatcher_Relevant(t *testing.T) {
	env := newTestEnv(t)
	writeTree(t, env.root)

	w, err := NewWatcher(env.idx, env.config(), time.Second, discardLogger())
	require.NoError(t, err)
	defer func() { _ = w.fsw.Close() }()

	header := writeFile(t, env.root, "Source/Game/New.h", "x")
	text := writeFile(t, env.root, "Source/Game/Notes.txt", "x")
	generated := writeFile(t, env.root, "Intermediate/Build/Gen.h", "x")

	assert.True(t, w.relevant(fsnotify.Event{Name: header, Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: header, Op: fsnotify.Remove}))
	assert.False(t, w.relevant(fsnotify.Event{Name: header, Op: fsnotify.Chmod}))
	assert.False(t, w.relevant(fsnotify.Event{Name: text, Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: generated, Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/elsewhere/Other.h", Op: fsnotify.Write}))
}

func TestWatcher_NewDirectoryWithSources(t *testing.T) {
	env := newTestEnv(t)
	writeTree(t, env.root)

	w, err := NewWatcher(env.idx, env.config(), time.Second, discardLogger())
	require.NoError(t, err)
	defer func() { _ = w.fsw.Close() }()

	// a checkout lands with its files already in place
	writeFile(t, env.root, "Plugins/Inventory/Source/Bag.h", classSource("ABag", 1))
	assert.True(t, w.relevant(fsnotify.Event{Name: filepath.Join(env.root, "Plugins"), Op: fsnotify.Create}))
	assert.Contains(t, w.fsw.WatchList(), filepath.Join(env.root, "Plugins", "Inventory", "Source"))

	empty := filepath.Join(env.root, "Plugins", "Empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	assert.False(t, w.relevant(fsnotify.Event{Name: empty, Op: fsnotify.Create}))

	writeFile(t, env.root, "Docs/Readme.txt", "x")
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(env.root, "Docs"), Op: fsnotify.Create}))
}
