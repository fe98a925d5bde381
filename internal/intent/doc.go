// Package intent classifies a natural-language question about the codebase
// into a retrieval strategy.
//
// Classification is an ordered list of rules evaluated first-match-wins:
//
//  1. definition_cue  "struct FHitResult", "UWorld class", "what is AActor"  (0.95)
//  2. function_cue    "SpawnActor function", "function SpawnActor"            (0.9)
//  3. bare_entity     "FHitResult"                                            (0.85)
//  4. hybrid_hint     "FHitResult members"                                    (0.7)
//  5. conceptual      "how does collision detection work"                     (0.9)
//  6. fallback        anything else                                           (0.5)
//
// The order is part of the contract: a question such as
// "FHitResult struct members" carries both a definition cue and a hint word,
// and the definition cue wins.
//
// # Basic Usage
//
//	c := intent.New()
//	qi := c.Classify("FHitResult members")
//	if qi.WantsStructural() {
//	    // look up qi.EntityName in the catalog
//	}
//	// embed qi.EnhancedQuery for the vector path
//
// The classifier holds no mutable state and is safe for concurrent use.
package intent
