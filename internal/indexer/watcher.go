package indexer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a rebuild
const DefaultDebounce = 2 * time.Second

// Watcher rebuilds the index incrementally when source files change
type Watcher struct {
	idx      *Indexer
	cfg      Config
	debounce time.Duration
	logger   *slog.Logger
	filter   *fileFilter
	fsw      *fsnotify.Watcher

	// OnBuild, if set, is called after every triggered rebuild
	OnBuild func(*Statistics, error)
}

// NewWatcher prepares a watcher over cfg.Roots. Rebuilds always run in
// incremental mode.
func NewWatcher(idx *Indexer, cfg Config, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := cfg.Discovery.Validate(); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	cfg.Incremental = true
	cfg.Force = false

	w := &Watcher{
		idx:      idx,
		cfg:      cfg,
		debounce: debounce,
		logger:   logger,
		filter:   newFileFilter(cfg.Discovery),
		fsw:      fsw,
	}
	for _, root := range cfg.Roots {
		w.addTree(root.Path)
	}
	return w, nil
}

// addTree watches dir and every non-excluded directory below it. It
// reports whether the tree already holds a file discovery would accept.
func (w *Watcher) addTree(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	found := false
	_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if !d.IsDir() {
			if w.filter.acceptName(d.Name()) {
				found = true
			}
			return nil
		}
		if path != abs && w.filter.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", slog.String("path", path), slog.Any("error", err))
		}
		return nil
	})
	return found
}

// Run processes events until ctx is cancelled. Pending changes at shutdown
// are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := 0

	w.logger.Info("watching for changes", slog.Int("roots", len(w.cfg.Roots)), slog.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				pending++
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))

		case <-timer.C:
			if pending == 0 {
				continue
			}
			w.logger.Info("changes detected, rebuilding", slog.Int("events", pending))
			pending = 0
			stats, err := w.idx.Build(ctx, w.cfg)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("rebuild failed", slog.Any("error", err))
			}
			if w.OnBuild != nil {
				w.OnBuild(stats, err)
			}
		}
	}
}

// relevant reports whether an event should trigger a rebuild. New
// directories are added to the watch set as a side effect and count when
// they arrive with source files already inside.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == event.Op {
		return false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.filter.skipDir(info.Name()) {
				return false
			}
			return w.addTree(event.Name)
		}
	}

	for _, root := range w.cfg.Roots {
		abs, err := filepath.Abs(root.Path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, event.Name)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if w.filter.inExcludedDir(rel) {
			return false
		}
		return w.filter.acceptName(filepath.Base(event.Name))
	}
	return false
}
