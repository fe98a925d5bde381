package parser

import (
	"sort"
	"strings"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Definition is a located declaration together with its source block
type Definition struct {
	types.Declaration
	Block string
}

// FindDeclarations lists the entity declarations found in text, ordered by
// line. Only the first declaration of a given name and kind is reported.
func FindDeclarations(text, path string) []types.Declaration {
	type hit struct {
		name string
		kind types.EntityKind
		pos  int
	}
	hits := make([]hit, 0)

	for _, m := range typeDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{text[m[4]:m[5]], types.EntityKind(text[m[2]:m[3]]), m[4]})
	}
	for _, m := range enumDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{text[m[2]:m[3]], types.KindEnum, m[2]})
	}
	for _, m := range delegateDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{text[m[2]:m[3]], types.KindDelegate, m[2]})
	}
	for _, m := range functionDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		if !plausibleFunction(text[m[2]:m[3]], text[m[4]:m[5]]) {
			continue
		}
		hits = append(hits, hit{text[m[4]:m[5]], types.KindFunction, m[4]})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool)
	decls := make([]types.Declaration, 0, len(hits))
	for _, h := range hits {
		key := string(h.kind) + ":" + h.name
		if seen[key] {
			continue
		}
		seen[key] = true
		decls = append(decls, types.Declaration{
			Name: h.name,
			Kind: h.kind,
			Path: path,
			Line: lineAt(text, h.pos),
		})
	}
	return decls
}

// plausibleFunction rejects statements and macro invocations that share the
// shape of a function declaration
func plausibleFunction(prefix, name string) bool {
	words := strings.Fields(strings.NewReplacer("*", " ", "&", " ").Replace(prefix))
	if len(words) == 0 || statementKeywords[words[len(words)-1]] {
		return false
	}
	return strings.ToUpper(name) != name
}

// FindDefinition locates the definition of name in text. Type definitions are
// preferred over delegates, and function bodies over bare prototypes.
// Annotation lines directly above the declaration are part of the block.
func FindDefinition(text, name string) (Definition, bool) {
	if name == "" {
		return Definition{}, false
	}

	for _, m := range typeDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		if text[m[4]:m[5]] == name {
			return bracedDefinition(text, name, types.EntityKind(text[m[2]:m[3]]), m[0], m[4], m[1]-1), true
		}
	}
	for _, m := range enumDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		if text[m[2]:m[3]] == name {
			return bracedDefinition(text, name, types.KindEnum, m[0], m[2], m[1]-1), true
		}
	}
	for _, m := range delegateDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		if text[m[2]:m[3]] == name {
			end := strings.IndexByte(text[m[0]:], ';')
			if end < 0 {
				end = len(text) - m[0] - 1
			}
			return Definition{
				Declaration: types.Declaration{Name: name, Kind: types.KindDelegate, Line: lineAt(text, m[2])},
				Block:       text[m[0] : m[0]+end+1],
			}, true
		}
	}

	var prototype *Definition
	for _, m := range functionDeclPattern.FindAllStringSubmatchIndex(text, -1) {
		if text[m[4]:m[5]] != name || !plausibleFunction(text[m[2]:m[3]], name) {
			continue
		}
		if text[m[8]:m[9]] == "{" {
			return bracedDefinition(text, name, types.KindFunction, m[0], m[4], m[8]), true
		}
		if prototype == nil {
			prototype = &Definition{
				Declaration: types.Declaration{Name: name, Kind: types.KindFunction, Line: lineAt(text, m[4])},
				Block:       strings.TrimLeft(text[m[0]:m[1]], "\r\n"),
			}
		}
	}
	if prototype != nil {
		return *prototype, true
	}

	return Definition{}, false
}

// bracedDefinition cuts the block that starts at the line of start, absorbs
// preceding annotation lines, and ends at the brace matching openIdx
func bracedDefinition(text, name string, kind types.EntityKind, start, namePos, openIdx int) Definition {
	begin := annotatedStart(text, lineStart(text, start))

	end := matchDelimiter(text, openIdx, '{', '}')
	if end < 0 {
		end = len(text) - 1
	}
	end++
	if rest := strings.TrimLeft(text[end:], " \t"); strings.HasPrefix(rest, ";") {
		end += strings.IndexByte(text[end:], ';') + 1
	}

	return Definition{
		Declaration: types.Declaration{Name: name, Kind: kind, Line: lineAt(text, namePos)},
		Block:       strings.TrimLeft(text[begin:end], "\r\n"),
	}
}

// annotatedStart walks back over lines that hold only an annotation macro
func annotatedStart(text string, begin int) int {
	for begin > 0 {
		prev := lineStart(text, begin-1)
		line := strings.TrimSpace(text[prev : begin-1])
		if line == "" || !annotationPattern.MatchString(line) || !strings.HasPrefix(line, "U") {
			break
		}
		begin = prev
	}
	return begin
}

func lineStart(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	return strings.LastIndexByte(text[:pos], '\n') + 1
}

func lineAt(text string, pos int) int {
	return strings.Count(text[:pos], "\n") + 1
}

// matchDelimiter returns the index of the delimiter closing the one at
// openIdx, skipping string literals and comments, or -1 when unbalanced
func matchDelimiter(text string, openIdx int, open, close byte) int {
	if openIdx < 0 || openIdx >= len(text) || text[openIdx] != open {
		return -1
	}

	depth := 0
	for i := openIdx; i < len(text); i++ {
		switch c := text[i]; {
		case c == '"' || c == '\'':
			i = skipQuoted(text, i)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return -1
			}
			i += nl
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			endComment := strings.Index(text[i+2:], "*/")
			if endComment < 0 {
				return -1
			}
			i += endComment + 3
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipQuoted returns the index of the closing quote of the literal at i
func skipQuoted(text string, i int) int {
	quote := text[i]
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j
		case '\n':
			return j
		}
	}
	return len(text) - 1
}
