package parser

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Extractor builds entity relationship graphs from raw source text and keeps
// every graph it built, keyed by entity name, until Reset is called.
// It is safe for concurrent use.
type Extractor struct {
	mu    sync.RWMutex
	cache map[string]*types.SourceEntity
}

// New creates an Extractor with an empty cache
func New() *Extractor {
	return &Extractor{
		cache: make(map[string]*types.SourceEntity),
	}
}

// BuildGraph extracts the graph of the named entity from text and caches it.
// When text contains the entity's definition, inheritance and members are read
// from that block only; includes always come from the whole text. It never
// fails: unparseable input yields an entity with empty lists.
func (x *Extractor) BuildGraph(name, text, path string) *types.SourceEntity {
	body := text
	kind := types.KindUnknown
	if def, ok := FindDefinition(text, name); ok {
		body = def.Block
		kind = def.Kind
	}
	if !kind.Known() {
		kind = KindFromName(name)
	}

	entity := &types.SourceEntity{
		Name:         name,
		Kind:         kind,
		Parents:      ExtractInheritance(body),
		Members:      ExtractMembers(body),
		Dependencies: ExtractDependencies(text),
		Path:         path,
	}
	entity.ComputeDerived()

	x.mu.Lock()
	x.cache[name] = entity
	x.mu.Unlock()

	return entity.Clone()
}

// Cached returns a copy of a previously built graph
func (x *Extractor) Cached(name string) (*types.SourceEntity, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entity, ok := x.cache[name]
	if !ok {
		return nil, false
	}
	return entity.Clone(), true
}

// Len returns the number of cached graphs
func (x *Extractor) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.cache)
}

// Reset drops every cached graph
func (x *Extractor) Reset() {
	x.mu.Lock()
	x.cache = make(map[string]*types.SourceEntity)
	x.mu.Unlock()
}

// ExtractInheritance returns the base names of the first class or struct
// definition that declares any, in declaration order. Duplicates are kept.
func ExtractInheritance(text string) []string {
	for _, loc := range inheritancePattern.FindAllStringSubmatchIndex(text, -1) {
		// enum class EFoo : uint8 { is an underlying type, not a base
		if strings.HasSuffix(strings.TrimRight(text[:loc[0]], " \t\r\n"), "enum") {
			continue
		}
		return splitBases(text[loc[4]:loc[5]])
	}
	return []string{}
}

// splitBases splits a base list on top-level commas and strips access specifiers
func splitBases(list string) []string {
	parents := make([]string, 0)
	for _, part := range splitTopLevel(list, ',') {
		words := make([]string, 0, 2)
		for _, w := range strings.Fields(part) {
			if !accessSpecifiers[w] {
				words = append(words, w)
			}
		}
		if name := strings.Join(words, " "); name != "" {
			parents = append(parents, name)
		}
	}
	return parents
}

// splitTopLevel splits s on sep, ignoring separators nested in <>
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// ExtractMembers returns data members in two passes: annotated members first
// (UPROPERTY(...) TYPE NAME;), then plain TYPE NAME; lines whose type starts
// with an uppercase letter and whose name was not already captured.
func ExtractMembers(text string) []types.Member {
	members := make([]types.Member, 0)
	seen := make(map[string]bool)

	for _, loc := range annotationPattern.FindAllStringSubmatchIndex(text, -1) {
		closeIdx := matchDelimiter(text, loc[1]-1, '(', ')')
		if closeIdx < 0 {
			continue
		}
		m := memberDeclPattern.FindStringSubmatch(text[closeIdx+1:])
		if m == nil {
			continue
		}
		name := m[3]
		if seen[name] {
			continue
		}
		seen[name] = true
		members = append(members, newMember(name, normalizeType(m[1]+m[2]), text[loc[2]:loc[3]]))
	}

	for _, line := range strings.Split(text, "\n") {
		m := plainMemberPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		typ, name := normalizeType(m[1]+m[2]), m[3]
		if !startsUpper(typ) || seen[name] {
			continue
		}
		seen[name] = true
		members = append(members, newMember(name, typ, ""))
	}

	return members
}

func newMember(name, typ, macro string) types.Member {
	return types.Member{
		Name:        name,
		Type:        typ,
		Macro:       macro,
		IsPointer:   strings.Contains(typ, "*"),
		IsComponent: strings.Contains(typ, "Component"),
	}
}

// normalizeType collapses whitespace and binds pointer markers to the type
func normalizeType(t string) string {
	t = strings.Join(strings.Fields(t), " ")
	t = strings.ReplaceAll(t, " *", "*")
	return strings.ReplaceAll(t, " &", "&")
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// ExtractDependencies returns every include path in order, duplicates kept
func ExtractDependencies(text string) []string {
	deps := make([]string, 0)
	for _, m := range includePattern.FindAllStringSubmatch(text, -1) {
		deps = append(deps, strings.TrimSpace(m[1]))
	}
	return deps
}
