package types

import "time"

// DefinitionResult is a structural hit resolved through the entity catalog
type DefinitionResult struct {
	Query       string        `json:"query"`        // name that was looked up
	MatchedName string        `json:"matched_name"` // catalog name that matched
	Exact       bool          `json:"exact"`
	Score       float64       `json:"score"` // 1.0 for exact hits, compound score otherwise
	Line        int           `json:"line"`
	Entity      *SourceEntity `json:"entity"`
	Definition  string        `json:"definition,omitempty"`
}

// SemanticResult is a vector hit after filtering and boosting
type SemanticResult struct {
	Rank     int       `json:"rank"` // 1-based
	Score    float64   `json:"score"`
	RawScore float64   `json:"raw_score"` // similarity before boosts
	Position int       `json:"position"`  // row in the persisted store
	Chunk    ChunkMeta `json:"chunk"`
}

// Timing breaks a query down by stage
type Timing struct {
	Classify   time.Duration `json:"classify"`
	Structural time.Duration `json:"structural"`
	Embed      time.Duration `json:"embed"`
	Search     time.Duration `json:"search"`
	Total      time.Duration `json:"total"`
}

// QueryResponse is the answer to one question
type QueryResponse struct {
	Intent            QueryIntent        `json:"intent"`
	DefinitionResults []DefinitionResult `json:"definition_results"`
	SemanticResults   []SemanticResult   `json:"semantic_results"`
	Timing            Timing             `json:"timing"`
	CacheHit          bool               `json:"cache_hit"`
}

// Validate checks the invariants of a semantic hit
func (sr *SemanticResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Position < 0 {
		return ErrInvalidPosition
	}
	if sr.Chunk.Path == "" {
		return ErrMissingPath
	}
	return nil
}
