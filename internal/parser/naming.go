package parser

import (
	"unicode"
	"unicode/utf8"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// KindFromName infers an entity kind from the naming convention:
// F<Upper> is a struct, U/A/I<Upper> a class, E<Upper> an enum, any other
// capitalized identifier a function. Everything else is unknown.
func KindFromName(name string) types.EntityKind {
	first, size := utf8.DecodeRuneInString(name)
	if size == 0 || !unicode.IsUpper(first) {
		return types.KindUnknown
	}
	second, _ := utf8.DecodeRuneInString(name[size:])
	prefixed := unicode.IsUpper(second)

	switch {
	case first == 'F' && prefixed:
		return types.KindStruct
	case (first == 'U' || first == 'A' || first == 'I') && prefixed:
		return types.KindClass
	case first == 'E' && prefixed:
		return types.KindEnum
	default:
		return types.KindFunction
	}
}

// HasConventionPrefix reports whether name carries one of the F, U, A, I or E
// type prefixes followed by an uppercase letter.
func HasConventionPrefix(name string) bool {
	switch KindFromName(name) {
	case types.KindStruct, types.KindClass, types.KindEnum:
		return true
	}
	return false
}
