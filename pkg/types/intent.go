package types

// IntentType is the retrieval strategy chosen for a question
type IntentType string

const (
	IntentDefinition IntentType = "definition"
	IntentSemantic   IntentType = "semantic"
	IntentHybrid     IntentType = "hybrid"
)

// QueryIntent is the classifier's decision for one question
type QueryIntent struct {
	Type          IntentType `json:"type"`
	EntityType    EntityKind `json:"entity_type,omitempty"`
	EntityName    string     `json:"entity_name,omitempty"`
	Confidence    float64    `json:"confidence"`
	EnhancedQuery string     `json:"enhanced_query"`
	Reasoning     string     `json:"reasoning"`
	Rule          string     `json:"rule"`
}

// WantsStructural reports whether the structural path should run
func (q QueryIntent) WantsStructural() bool {
	return (q.Type == IntentDefinition || q.Type == IntentHybrid) && q.EntityName != ""
}
