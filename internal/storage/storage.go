package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrMissing means no store has been built yet
	ErrMissing = errors.New("store missing")

	// ErrInvalid means a store exists but cannot be used
	ErrInvalid = errors.New("store invalid")
)

// Catalog persists the entity declarations found during a build so the
// structural query path can resolve names without rescanning sources.
type Catalog interface {
	// Build bookkeeping
	RecordBuild(ctx context.Context, build *BuildRecord) error
	LatestBuild(ctx context.Context) (*BuildRecord, error)

	// Files and their declarations
	UpsertFile(ctx context.Context, file *FileRecord) error
	GetFile(ctx context.Context, path string) (*FileRecord, error)
	ReplaceDeclarations(ctx context.Context, fileID int64, decls []types.Declaration) error

	// Lookup
	LookupEntity(ctx context.Context, name string) ([]EntityRecord, error)
	LookupEntityFold(ctx context.Context, name string) ([]EntityRecord, error)
	EntityNames(ctx context.Context) ([]string, error)
	ListEntities(ctx context.Context, kind types.EntityKind, limit int) ([]EntityRecord, error)
	Stats(ctx context.Context) (*CatalogStats, error)

	// Transactions
	BeginTx(ctx context.Context) (Tx, error)

	Close() error
}

// Tx is a catalog write transaction
type Tx interface {
	RecordBuild(ctx context.Context, build *BuildRecord) error
	UpsertFile(ctx context.Context, file *FileRecord) error
	ReplaceDeclarations(ctx context.Context, fileID int64, decls []types.Declaration) error
	Commit() error
	Rollback() error
}

// BuildRecord describes one completed index build
type BuildRecord struct {
	BuildID    string
	Provider   string
	Model      string
	Dimension  int
	ChunkSize  int
	Overlap    int
	FileCount  int
	ChunkCount int
	BuiltAt    time.Time
}

// FileRecord is one indexed source file
type FileRecord struct {
	ID          int64
	Path        string
	Origin      types.Origin
	ContentHash string
	ChunkCount  int
	SizeBytes   int64
	IndexedAt   time.Time
}

// EntityRecord is one declaration joined with its file
type EntityRecord struct {
	Name   string
	Kind   types.EntityKind
	Path   string
	Line   int
	Origin types.Origin
}

// CatalogStats summarizes the catalog contents
type CatalogStats struct {
	Files    int
	Entities int
	ByKind   map[types.EntityKind]int
	SizeMB   float64
}
