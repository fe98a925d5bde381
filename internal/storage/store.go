package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// On-disk layout of a store root:
//
//	<root>/CURRENT                      id of the live build
//	<root>/builds/<id>/embeddings.vec
//	<root>/builds/<id>/metadata.json
//	<root>/builds/<id>/hash_cache.json
//	<root>/builds/<id>/entities.db
const (
	CurrentFile   = "CURRENT"
	BuildsDir     = "builds"
	VectorsFile   = "embeddings.vec"
	MetadataFile  = "metadata.json"
	HashCacheFile = "hash_cache.json"
	CatalogFile   = "entities.db"

	// FormatVersion is written into metadata.json
	FormatVersion = "1.0.0"

	// formatConstraint accepts stores this binary can read
	formatConstraint = "^1.0.0"
)

// Store states reported by Status
const (
	StateReady   = "ready"
	StateMissing = "missing"
	StateInvalid = "invalid"
)

// Metadata is the JSON document aligned row-by-row with the vector file
type Metadata struct {
	Items         []types.ChunkMeta `json:"items"`
	Dimension     int               `json:"dimension"`
	Provider      string            `json:"provider"`
	Model         string            `json:"model"`
	BuildID       string            `json:"build_id"`
	BuiltAt       time.Time         `json:"built_at"`
	ChunkSize     int               `json:"chunk_size"`
	Overlap       int               `json:"overlap"`
	FormatVersion string            `json:"format_version"`
}

// HashEntry records what a file hash produced in the build that saw it
type HashEntry struct {
	Path       string `json:"path"`
	ChunkCount int    `json:"chunk_count"`
}

// HashCache maps full-file SHA-256 hex digests to their entries
type HashCache map[string]HashEntry

// ValidationError tags a store failure as missing or invalid
type ValidationError struct {
	State  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store %s: %s", e.State, e.Reason)
}

// Unwrap maps the state onto ErrMissing or ErrInvalid
func (e *ValidationError) Unwrap() error {
	if e.State == StateMissing {
		return ErrMissing
	}
	return ErrInvalid
}

// Remediation suggests how to recover from the failure
func (e *ValidationError) Remediation() string {
	if e.State == StateMissing {
		return "run the index command (or the index_codebase tool) to build the store"
	}
	return "rebuild the store with force enabled to replace the unusable build"
}

func missing(format string, args ...any) error {
	return &ValidationError{State: StateMissing, Reason: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &ValidationError{State: StateInvalid, Reason: fmt.Sprintf(format, args...)}
}

// Store manages versioned builds under a root directory
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore returns a store rooted at root. The directory is created lazily.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the store root directory
func (s *Store) Root() string { return s.root }

func (s *Store) buildDir(id string) string {
	return filepath.Join(s.root, BuildsDir, id)
}

// CurrentBuildID reads the CURRENT pointer
func (s *Store) CurrentBuildID() (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, CurrentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", missing("no build at %s", s.root)
	}
	if err != nil {
		return "", invalid("cannot read %s: %v", CurrentFile, err)
	}
	id := strings.TrimSpace(string(raw))
	if id == "" {
		return "", invalid("%s is empty", CurrentFile)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", invalid("%s holds %q: %v", CurrentFile, id, err)
	}
	return id, nil
}

// BeginBuild creates a fresh build directory
func (s *Store) BeginBuild() (*BuildWriter, error) {
	id := uuid.NewString()
	dir := s.buildDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	return &BuildWriter{store: s, id: id, dir: dir}, nil
}

// BuildWriter fills one build directory and publishes it on Commit
type BuildWriter struct {
	store   *Store
	id      string
	dir     string
	written bool
	closed  bool
}

// ID returns the build id
func (b *BuildWriter) ID() string { return b.id }

// Dir returns the build directory
func (b *BuildWriter) Dir() string { return b.dir }

// CatalogPath is where the build's entity catalog belongs
func (b *BuildWriter) CatalogPath() string { return filepath.Join(b.dir, CatalogFile) }

// Write persists the vectors, metadata and hash cache. The metadata's
// BuildID and FormatVersion are filled in.
func (b *BuildWriter) Write(meta *Metadata, vectors *Matrix, hashes HashCache) error {
	if b.closed {
		return errors.New("build already finished")
	}
	if len(meta.Items) != vectors.Rows {
		return fmt.Errorf("metadata has %d items but %d vectors", len(meta.Items), vectors.Rows)
	}
	if meta.Dimension != vectors.Dim {
		return fmt.Errorf("metadata dimension %d != vector dimension %d", meta.Dimension, vectors.Dim)
	}

	meta.BuildID = b.id
	meta.FormatVersion = FormatVersion
	if meta.BuiltAt.IsZero() {
		meta.BuiltAt = time.Now().UTC()
	}
	if hashes == nil {
		hashes = HashCache{}
	}

	if err := WriteVectors(filepath.Join(b.dir, VectorsFile), vectors); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(b.dir, MetadataFile), meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(b.dir, HashCacheFile), hashes); err != nil {
		return err
	}
	b.written = true
	return nil
}

// Commit validates the build and swaps the CURRENT pointer to it. The
// previously live build is kept; older ones are pruned.
func (b *BuildWriter) Commit() error {
	if b.closed {
		return errors.New("build already finished")
	}
	if !b.written {
		return errors.New("build has not been written")
	}
	if _, err := loadBuild(b.dir, 0); err != nil {
		return fmt.Errorf("refusing to publish build %s: %w", b.id, err)
	}

	previous, _ := b.store.CurrentBuildID()

	tmp := filepath.Join(b.store.root, CurrentFile+".tmp")
	if err := writeSynced(tmp, []byte(b.id+"\n")); err != nil {
		return fmt.Errorf("failed to write %s: %w", CurrentFile, err)
	}
	if err := os.Rename(tmp, filepath.Join(b.store.root, CurrentFile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to swap %s: %w", CurrentFile, err)
	}
	b.closed = true

	b.store.prune(b.id, previous)
	b.store.logger.Info("build published", slog.String("build_id", b.id), slog.String("previous", previous))
	return nil
}

// Abort removes the build directory. Safe to call after Commit.
func (b *BuildWriter) Abort() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return os.RemoveAll(b.dir)
}

// prune deletes every build directory except keep
func (s *Store) prune(keep ...string) {
	entries, err := os.ReadDir(filepath.Join(s.root, BuildsDir))
	if err != nil {
		return
	}
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		if k != "" {
			keepSet[k] = true
		}
	}
	for _, e := range entries {
		if !e.IsDir() || keepSet[e.Name()] {
			continue
		}
		if err := os.RemoveAll(s.buildDir(e.Name())); err != nil {
			s.logger.Warn("failed to prune build", slog.String("build_id", e.Name()), slog.Any("error", err))
		}
	}
}

// Snapshot is an immutable, fully loaded build
type Snapshot struct {
	BuildID  string
	Dir      string
	Metadata *Metadata
	Vectors  *Matrix
	Hashes   HashCache
}

// CatalogPath returns the path of the build's entity catalog
func (s *Snapshot) CatalogPath() string { return filepath.Join(s.Dir, CatalogFile) }

// Len returns the number of indexed chunks
func (s *Snapshot) Len() int { return len(s.Metadata.Items) }

// PathIndex maps each file path to its row positions in chunk order
func (s *Snapshot) PathIndex() map[string][]int {
	idx := make(map[string][]int)
	for i, item := range s.Metadata.Items {
		idx[item.Path] = append(idx[item.Path], i)
	}
	return idx
}

// Load reads and validates the live build. expectedDim > 0 additionally
// requires the stored dimension to match.
func (s *Store) Load(expectedDim int) (*Snapshot, error) {
	id, err := s.CurrentBuildID()
	if err != nil {
		return nil, err
	}
	dir := s.buildDir(id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, invalid("build directory %s is missing", id)
	}
	snap, err := loadBuild(dir, expectedDim)
	if err != nil {
		return nil, err
	}
	if snap.Metadata.BuildID != id {
		return nil, invalid("metadata build id %q does not match %s %q", snap.Metadata.BuildID, CurrentFile, id)
	}
	return snap, nil
}

// Validate checks the live build without returning it
func (s *Store) Validate(expectedDim int) error {
	_, err := s.Load(expectedDim)
	return err
}

func loadBuild(dir string, expectedDim int) (*Snapshot, error) {
	var meta Metadata
	if err := readJSON(filepath.Join(dir, MetadataFile), &meta); err != nil {
		return nil, err
	}

	if err := checkFormat(meta.FormatVersion); err != nil {
		return nil, err
	}
	if len(meta.Items) == 0 {
		return nil, invalid("%s has no items", MetadataFile)
	}
	if meta.Dimension <= 0 {
		return nil, invalid("%s has dimension %d", MetadataFile, meta.Dimension)
	}
	for i := range meta.Items {
		if err := meta.Items[i].Validate(); err != nil {
			return nil, invalid("item %d: %v", i, err)
		}
	}
	if expectedDim > 0 && expectedDim != meta.Dimension {
		return nil, invalid("dimension mismatch: store has %d, provider produces %d", meta.Dimension, expectedDim)
	}

	vecPath := filepath.Join(dir, VectorsFile)
	if info, err := os.Stat(vecPath); err != nil {
		return nil, invalid("%s: %v", VectorsFile, err)
	} else if info.Size() == 0 {
		return nil, invalid("%s is empty", VectorsFile)
	}
	vectors, err := ReadVectors(vecPath)
	if err != nil {
		return nil, invalid("%s: %v", VectorsFile, err)
	}
	if vectors.Rows != len(meta.Items) {
		return nil, invalid("length mismatch: %d vectors, %d items", vectors.Rows, len(meta.Items))
	}
	if vectors.Dim != meta.Dimension {
		return nil, invalid("dimension mismatch: vectors have %d, metadata says %d", vectors.Dim, meta.Dimension)
	}
	if err := vectors.CheckFinite(); err != nil {
		return nil, invalid("%s: %v", VectorsFile, err)
	}

	hashes := HashCache{}
	if err := readJSON(filepath.Join(dir, HashCacheFile), &hashes); err != nil {
		return nil, err
	}

	return &Snapshot{
		BuildID:  filepath.Base(dir),
		Dir:      dir,
		Metadata: &meta,
		Vectors:  vectors,
		Hashes:   hashes,
	}, nil
}

func checkFormat(raw string) error {
	if raw == "" {
		return invalid("%s has no format_version", MetadataFile)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return invalid("format_version %q: %v", raw, err)
	}
	c, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return invalid("format_version %s is not compatible with %s", v, formatConstraint)
	}
	return nil
}

// StatusReport summarizes the live build for humans and tools
type StatusReport struct {
	State       string    `json:"state"`
	Root        string    `json:"root"`
	BuildID     string    `json:"build_id,omitempty"`
	Items       int       `json:"items"`
	Files       int       `json:"files"`
	Dimension   int       `json:"dimension,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	ChunkSize   int       `json:"chunk_size,omitempty"`
	Overlap     int       `json:"overlap,omitempty"`
	BuiltAt     time.Time `json:"built_at,omitzero"`
	Reason      string    `json:"reason,omitempty"`
	Remediation string    `json:"remediation,omitempty"`
}

// Status reports whether the store is ready, missing or invalid
func (s *Store) Status(expectedDim int) *StatusReport {
	report := &StatusReport{Root: s.root}
	snap, err := s.Load(expectedDim)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			report.State = ve.State
			report.Reason = ve.Reason
			report.Remediation = ve.Remediation()
		} else {
			report.State = StateInvalid
			report.Reason = err.Error()
		}
		return report
	}
	report.State = StateReady
	report.BuildID = snap.BuildID
	report.Items = snap.Len()
	report.Files = len(snap.PathIndex())
	report.Dimension = snap.Metadata.Dimension
	report.Provider = snap.Metadata.Provider
	report.Model = snap.Metadata.Model
	report.ChunkSize = snap.Metadata.ChunkSize
	report.Overlap = snap.Metadata.Overlap
	report.BuiltAt = snap.Metadata.BuiltAt
	return report
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := writeSynced(path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return invalid("%s: %v", name, err)
	}
	if len(data) == 0 {
		return invalid("%s is empty", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return invalid("%s is corrupt: %v", name, err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
