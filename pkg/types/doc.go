// Package types provides the shared domain types of cppcontext.
//
// # Entities
//
// SourceEntity is the relationship graph of one declared C++ entity, built by
// the parser package from raw source text:
//
//	entity := &types.SourceEntity{
//	    Name:    "FHitResult",
//	    Kind:    types.KindStruct,
//	    Parents: []string{"FBaseStruct"},
//	}
//	entity.ComputeDerived()
//
// # Chunks
//
// ChunkMeta is one metadata item of the persisted index. Item i describes row
// i of the embeddings array, so a store is only valid when both have the same
// length.
//
// # Queries
//
// QueryIntent is produced by the intent classifier, FilterSpec by the filter
// parser, and QueryResponse by the searcher. DefinitionResults always come
// from the structural path and are listed ahead of SemanticResults.
package types
