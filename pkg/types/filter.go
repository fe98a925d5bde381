package types

// FilterSpec narrows and boosts vector candidates by enrichment metadata
type FilterSpec struct {
	EntityType    EntityKind `json:"entity_type,omitempty"`
	HasMacro      string     `json:"has_macro,omitempty"`
	Origin        Origin     `json:"origin,omitempty"`
	FileKind      FileKind   `json:"file_kind,omitempty"`
	BoostEntities []string   `json:"boost_entities,omitempty"`
	BoostMacros   bool       `json:"boost_macros,omitempty"`
}

// IsZero reports whether no clause was set
func (f *FilterSpec) IsZero() bool {
	return f == nil || (f.EntityType == "" && f.HasMacro == "" && f.Origin == "" &&
		f.FileKind == "" && len(f.BoostEntities) == 0 && !f.BoostMacros)
}

// Narrows reports whether the spec contains predicate clauses (as opposed to boosts only)
func (f *FilterSpec) Narrows() bool {
	return f != nil && (f.EntityType != "" || f.HasMacro != "" || f.Origin != "" || f.FileKind != "")
}

// Match applies the predicate clauses to one metadata item
func (f *FilterSpec) Match(m *ChunkMeta) bool {
	if f == nil {
		return true
	}
	if f.EntityType != "" && !containsString(m.EntityTypes, string(f.EntityType)) {
		return false
	}
	if f.HasMacro != "" && !m.HasMacro(f.HasMacro) {
		return false
	}
	if f.Origin != "" && m.Origin != f.Origin {
		return false
	}
	switch f.FileKind {
	case FileHeader:
		if !m.IsHeader {
			return false
		}
	case FileImplementation:
		if !m.IsImplementation {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
