package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// ErrNoFiles is returned when discovery finds nothing to index
var ErrNoFiles = errors.New("no source files found")

// Default discovery filters for Unreal-style C++ trees
var (
	DefaultExtensions  = []string{".h", ".hh", ".hpp", ".hxx", ".inl", ".c", ".cc", ".cpp", ".cxx"}
	DefaultExcludeDirs = []string{".git", ".vs", ".idea", "Binaries", "Intermediate", "Saved", "DerivedDataCache"}
)

// Root is one directory to index, labelled with where it came from
type Root struct {
	Path   string       `yaml:"path" json:"path"`
	Origin types.Origin `yaml:"origin" json:"origin"`
}

// SourceFile is a discovered file
type SourceFile struct {
	Path   string
	Origin types.Origin
}

// DiscoveryOptions are applied in order: directory exclusion, file name
// globs, extension allow-list.
type DiscoveryOptions struct {
	// ExcludeDirs skips any directory whose name equals an entry exactly
	ExcludeDirs []string
	// Include and Exclude are doublestar globs on the file name; exclude wins
	Include []string
	Exclude []string
	// Extensions is the allow-list, compared case-insensitively
	Extensions []string
}

func (o DiscoveryOptions) withDefaults() DiscoveryOptions {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	return o
}

// Validate rejects malformed glob patterns
func (o DiscoveryOptions) Validate() error {
	for _, p := range append(append([]string{}, o.Include...), o.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// fileFilter is the compiled form of DiscoveryOptions
type fileFilter struct {
	excludeDirs map[string]bool
	include     []string
	exclude     []string
	extensions  map[string]bool
}

func newFileFilter(opts DiscoveryOptions) *fileFilter {
	opts = opts.withDefaults()
	f := &fileFilter{
		excludeDirs: make(map[string]bool, len(opts.ExcludeDirs)),
		include:     opts.Include,
		exclude:     opts.Exclude,
		extensions:  make(map[string]bool, len(opts.Extensions)),
	}
	for _, d := range opts.ExcludeDirs {
		f.excludeDirs[d] = true
	}
	for _, e := range opts.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		f.extensions[e] = true
	}
	return f
}

func (f *fileFilter) skipDir(name string) bool {
	return f.excludeDirs[name]
}

// inExcludedDir checks every directory component of rel
func (f *fileFilter) inExcludedDir(rel string) bool {
	dir := filepath.Dir(filepath.ToSlash(rel))
	if dir == "." {
		return false
	}
	for _, seg := range strings.Split(dir, "/") {
		if f.excludeDirs[seg] {
			return true
		}
	}
	return false
}

func (f *fileFilter) acceptName(name string) bool {
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	if len(f.include) > 0 {
		matched := false
		for _, p := range f.include {
			if ok, _ := doublestar.Match(p, name); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return f.extensions[strings.ToLower(filepath.Ext(name))]
}

// Discover walks the roots and returns the matching files, deduplicated and
// sorted by path. A missing root is logged and skipped; finding no files at
// all is an error.
func Discover(roots []Root, opts DiscoveryOptions, logger *slog.Logger) ([]SourceFile, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	filter := newFileFilter(opts)

	seen := make(map[string]bool)
	var files []SourceFile

	for _, root := range roots {
		abs, err := filepath.Abs(root.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", root.Path, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			logger.Warn("skipping missing root", slog.String("root", root.Path), slog.String("origin", string(root.Origin)))
			continue
		}

		origin := root.Origin
		if origin == "" {
			origin = types.OriginProject
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("walk error", slog.String("path", path), slog.Any("error", err))
				if d != nil && d.IsDir() && path != abs {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != abs && filter.skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !filter.acceptName(d.Name()) {
				return nil
			}
			if seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, SourceFile{Path: path, Origin: origin})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root.Path, err)
		}
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
