// Package chunker divides C++ source text into overlapping character windows
// for embedding.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	items, hash, err := c.ChunkFile("/path/to/Weapon.h", types.OriginProject)
//	for _, item := range items {
//	    fmt.Printf("%s [%d/%d] %d chars\n", item.Path, item.ChunkIndex+1, item.TotalChunks, item.CharLength)
//	}
//
// # Chunking Strategy
//
// Text no longer than the chunk size becomes a single chunk. Longer text is
// cut by a boundary-aware splitter that ends each chunk on a line break in
// the second half of the window, preferring:
//
//  1. a blank line
//  2. a line holding a closing brace
//  3. any line break
//
// Consecutive chunks share exactly Overlap characters, so Reassemble
// reconstructs the original text. A remainder shorter than MinTailLength is
// absorbed into the final chunk.
//
// When a window contains no line break (minified or generated sources), or
// the overlap is at least half the chunk size, the chunker falls back to a
// fixed sliding window advancing by size minus overlap. That strategy drops
// a trailing window shorter than MinTailLength unless it is the only chunk.
//
// # Chunk Counts
//
// Count is used by the index builder to decide whether cached vectors can be
// reused: a file whose hash is unchanged but whose chunk count differs under
// the current parameters is re-embedded.
package chunker
