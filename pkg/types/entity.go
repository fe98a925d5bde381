package types

import "errors"

// EntityKind is the structural category of a declared C++ entity
type EntityKind string

const (
	KindStruct   EntityKind = "struct"
	KindClass    EntityKind = "class"
	KindEnum     EntityKind = "enum"
	KindFunction EntityKind = "function"
	KindDelegate EntityKind = "delegate"
	KindUnknown  EntityKind = "unknown"
)

// AllKinds lists the kinds in declaration order of the enumeration
var AllKinds = []EntityKind{KindStruct, KindClass, KindEnum, KindFunction, KindDelegate, KindUnknown}

// ParseEntityKind maps a string onto a known kind, returning false for anything else
func ParseEntityKind(s string) (EntityKind, bool) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// Known reports whether the kind carries structural information
func (k EntityKind) Known() bool {
	return k != "" && k != KindUnknown
}

// Macro annotation kinds recognized on members and declarations
const (
	MacroUProperty = "UPROPERTY"
	MacroUFunction = "UFUNCTION"
	MacroUClass    = "UCLASS"
	MacroUStruct   = "USTRUCT"
	MacroUEnum     = "UENUM"
)

// Member is a data member extracted from an entity body
type Member struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Macro       string `json:"macro,omitempty"` // annotation kind, empty for plain members
	IsPointer   bool   `json:"is_pointer"`
	IsComponent bool   `json:"is_component"`
}

// SourceEntity is the relationship graph of one declared entity
type SourceEntity struct {
	Name         string     `json:"name"`
	Kind         EntityKind `json:"kind"`
	Parents      []string   `json:"parents"`
	Members      []Member   `json:"members"`
	Dependencies []string   `json:"dependencies"`
	Path         string     `json:"path"`

	// Derived flags
	HasMacros     bool `json:"has_macros"`
	HasComponents bool `json:"has_components"`

	// Counts
	MemberCount      int `json:"member_count"`
	ParentCount      int `json:"parent_count"`
	DependencyCount  int `json:"dependency_count"`
	MacroMemberCount int `json:"macro_member_count"`
	ComponentCount   int `json:"component_count"`
}

// ComputeDerived refreshes flags and counts from the member, parent and dependency lists
func (e *SourceEntity) ComputeDerived() {
	e.MemberCount = len(e.Members)
	e.ParentCount = len(e.Parents)
	e.DependencyCount = len(e.Dependencies)
	e.MacroMemberCount = 0
	e.ComponentCount = 0
	for _, m := range e.Members {
		if m.Macro != "" {
			e.MacroMemberCount++
		}
		if m.IsComponent {
			e.ComponentCount++
		}
	}
	e.HasMacros = e.MacroMemberCount > 0
	e.HasComponents = e.ComponentCount > 0
}

// Validate checks the fields a catalog row requires
func (e *SourceEntity) Validate() error {
	if e.Name == "" {
		return errors.New("entity name cannot be empty")
	}
	if _, ok := ParseEntityKind(string(e.Kind)); !ok {
		return errors.New("invalid entity kind")
	}
	return nil
}

// Declaration is a single entity declaration located in a source file
type Declaration struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
	Path string     `json:"path"`
	Line int        `json:"line"` // 1-based
}

// Clone returns a deep copy of the entity
func (e *SourceEntity) Clone() *SourceEntity {
	if e == nil {
		return nil
	}
	c := *e
	c.Parents = append([]string{}, e.Parents...)
	c.Members = append([]Member{}, e.Members...)
	c.Dependencies = append([]string{}, e.Dependencies...)
	return &c
}
