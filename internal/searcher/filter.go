package searcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// FilterSyntax is appended to every filter parse error
const FilterSyntax = `filter syntax: key:value clauses joined by " AND "
  type:struct|class|enum|function|delegate
  macro:UPROPERTY|UFUNCTION|UCLASS|USTRUCT
  origin:engine|project
  file:header|implementation
  entity:<Name>      (repeatable, boosts chunks mentioning Name)
  boost:macros       (boosts chunks carrying any macro annotation)
example: type:struct AND macro:UPROPERTY AND origin:engine`

const clauseSeparator = " AND "

var identifierPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// FilterError reports a clause that could not be parsed
type FilterError struct {
	Clause string
	Reason string
}

func (e *FilterError) Error() string {
	if e.Clause == "" {
		return fmt.Sprintf("invalid filter: %s\n%s", e.Reason, FilterSyntax)
	}
	return fmt.Sprintf("invalid filter clause %q: %s\n%s", e.Clause, e.Reason, FilterSyntax)
}

// ParseFilter parses the filter mini-language. An empty expression yields a
// nil spec.
func ParseFilter(expr string) (*types.FilterSpec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if strings.Contains(expr, " OR ") {
		return nil, &FilterError{Reason: "OR is not supported; clauses can only be combined with AND"}
	}

	spec := &types.FilterSpec{}
	seen := make(map[string]bool)

	for _, raw := range strings.Split(expr, clauseSeparator) {
		clause := strings.TrimSpace(raw)
		if clause == "" {
			return nil, &FilterError{Clause: raw, Reason: "empty clause"}
		}
		key, value, ok := strings.Cut(clause, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, &FilterError{Clause: clause, Reason: "expected key:value"}
		}
		if seen[key] && key != "entity" {
			return nil, &FilterError{Clause: clause, Reason: fmt.Sprintf("duplicate %q clause", key)}
		}
		seen[key] = true

		if err := applyClause(spec, clause, key, value); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func applyClause(spec *types.FilterSpec, clause, key, value string) error {
	switch key {
	case "type":
		kind, ok := types.ParseEntityKind(strings.ToLower(value))
		if !ok || kind == types.KindUnknown {
			return &FilterError{Clause: clause, Reason: fmt.Sprintf("unknown entity type %q", value)}
		}
		spec.EntityType = kind

	case "macro":
		macro := strings.ToUpper(value)
		switch macro {
		case types.MacroUProperty, types.MacroUFunction, types.MacroUClass, types.MacroUStruct:
			spec.HasMacro = macro
		default:
			return &FilterError{Clause: clause, Reason: fmt.Sprintf("unknown macro %q", value)}
		}

	case "origin":
		switch origin := types.Origin(strings.ToLower(value)); origin {
		case types.OriginEngine, types.OriginProject:
			spec.Origin = origin
		default:
			return &FilterError{Clause: clause, Reason: fmt.Sprintf("unknown origin %q", value)}
		}

	case "file":
		switch kind := types.FileKind(strings.ToLower(value)); kind {
		case types.FileHeader, types.FileImplementation:
			spec.FileKind = kind
		default:
			return &FilterError{Clause: clause, Reason: fmt.Sprintf("unknown file kind %q", value)}
		}

	case "entity":
		if !identifierPattern.MatchString(value) {
			return &FilterError{Clause: clause, Reason: fmt.Sprintf("%q is not an identifier", value)}
		}
		for _, e := range spec.BoostEntities {
			if e == value {
				return nil
			}
		}
		spec.BoostEntities = append(spec.BoostEntities, value)

	case "boost":
		if strings.ToLower(value) != "macros" {
			return &FilterError{Clause: clause, Reason: fmt.Sprintf("unknown boost %q", value)}
		}
		spec.BoostMacros = true

	default:
		return &FilterError{Clause: clause, Reason: fmt.Sprintf("unknown key %q", key)}
	}
	return nil
}
