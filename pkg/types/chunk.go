package types

import (
	"errors"
	"path/filepath"
	"strings"
)

// Origin labels the source tree a file was discovered under
type Origin string

const (
	OriginEngine  Origin = "engine"
	OriginProject Origin = "project"
)

// FileKind distinguishes declarations from definitions
type FileKind string

const (
	FileHeader         FileKind = "header"
	FileImplementation FileKind = "implementation"
)

var (
	headerExts         = map[string]bool{".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".inl": true}
	implementationExts = map[string]bool{".c": true, ".cc": true, ".cpp": true, ".cxx": true}
)

// IsHeaderPath reports whether the path has a header extension
func IsHeaderPath(path string) bool {
	return headerExts[strings.ToLower(filepath.Ext(path))]
}

// IsImplementationPath reports whether the path has an implementation extension
func IsImplementationPath(path string) bool {
	return implementationExts[strings.ToLower(filepath.Ext(path))]
}

// ChunkMeta is one metadata item of the persisted store. Items are aligned by
// position with the rows of the embeddings array.
type ChunkMeta struct {
	// Identification
	Path        string `json:"path"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Origin      Origin `json:"origin,omitempty"`

	// Content
	Text        string `json:"text"`
	CharLength  int    `json:"char_length"`
	ContentHash string `json:"content_hash"` // SHA-256 of the whole file, hex

	// Chunking parameters in effect when the chunk was produced
	ChunkSize int `json:"chunk_size"`
	Overlap   int `json:"overlap"`

	// Enrichment
	Entities         []string `json:"entities,omitempty"`
	EntityTypes      []string `json:"entity_types,omitempty"`
	HasUProperty     bool     `json:"has_uproperty"`
	HasUFunction     bool     `json:"has_ufunction"`
	HasUClass        bool     `json:"has_uclass"`
	HasUStruct       bool     `json:"has_ustruct"`
	IsHeader         bool     `json:"is_header"`
	IsImplementation bool     `json:"is_implementation"`
}

// HasMacro reports whether the enrichment flagged the given macro kind
func (m *ChunkMeta) HasMacro(macro string) bool {
	switch macro {
	case MacroUProperty:
		return m.HasUProperty
	case MacroUFunction:
		return m.HasUFunction
	case MacroUClass:
		return m.HasUClass
	case MacroUStruct:
		return m.HasUStruct
	}
	return false
}

// HasAnyMacro reports whether any macro flag is set
func (m *ChunkMeta) HasAnyMacro() bool {
	return m.HasUProperty || m.HasUFunction || m.HasUClass || m.HasUStruct
}

// ReferencesEntity reports whether the enrichment lists the entity name
func (m *ChunkMeta) ReferencesEntity(name string) bool {
	for _, e := range m.Entities {
		if e == name {
			return true
		}
	}
	return false
}

// Validate checks the positional fields of a metadata item
func (m *ChunkMeta) Validate() error {
	if m.Path == "" {
		return errors.New("chunk path cannot be empty")
	}
	if m.TotalChunks <= 0 {
		return errors.New("total chunks must be positive")
	}
	if m.ChunkIndex < 0 || m.ChunkIndex >= m.TotalChunks {
		return errors.New("chunk index out of range")
	}
	if m.ContentHash == "" {
		return errors.New("content hash is required")
	}
	return nil
}
