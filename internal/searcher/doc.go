// Package searcher answers questions against a built store.
//
// A question is classified first. Definition and hybrid questions naming an
// entity go through the structural path: an exact catalog lookup, then a
// case-insensitive one, then fuzzy matching over every catalog name. The
// defining file is read and its entity graph built. Semantic and hybrid
// questions, and definition questions with no structural hit, go through the
// vector path: the enhanced query is embedded and ranked against the stored
// chunk vectors.
//
// # Ranking
//
// Rank filters candidates before scoring. Scope narrows by path substring and
// extension, and a FilterSpec narrows by entity type, macro, origin and file
// kind. When nothing survives, Rank returns ErrNoCandidates. Similarity is
// the dot product of the normalized query with the stored unit vectors.
// Entity and macro boosts multiply positive scores only.
//
// # Filters
//
// ParseFilter reads the filter mini-language:
//
//	type:struct AND macro:UPROPERTY AND origin:engine
//	entity:FHitResult AND boost:macros
//
// # Caching
//
// Responses can be cached in process (MemoryCache) or in Redis (RedisCache).
// Keys include the build id, so a rebuild never serves stale entries.
package searcher
