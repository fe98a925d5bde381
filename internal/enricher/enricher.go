// Package enricher annotates chunk metadata with the entities and macro
// annotations a chunk's text mentions. Enrichment is a pure function of the
// text and the incoming metadata.
package enricher

import (
	"github.com/dshills/cppcontext-mcp/internal/parser"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// MaxEntities caps the entity names recorded per chunk
const MaxEntities = 64

// Enrich returns a copy of meta with the enrichment fields set from text.
// Fields outside enrichment are passed through untouched.
func Enrich(text string, meta types.ChunkMeta) types.ChunkMeta {
	out := meta

	mentions := parser.DetectMentions(text)
	if len(mentions) > MaxEntities {
		mentions = mentions[:MaxEntities]
	}

	out.Entities = make([]string, 0, len(mentions))
	out.EntityTypes = make([]string, 0, 4)
	seenKind := make(map[types.EntityKind]bool)
	for _, m := range mentions {
		out.Entities = append(out.Entities, m.Name)
		if m.Kind.Known() && !seenKind[m.Kind] {
			seenKind[m.Kind] = true
			out.EntityTypes = append(out.EntityTypes, string(m.Kind))
		}
	}

	macros := parser.DetectMacros(text)
	out.HasUProperty = macros[types.MacroUProperty]
	out.HasUFunction = macros[types.MacroUFunction]
	out.HasUClass = macros[types.MacroUClass]
	out.HasUStruct = macros[types.MacroUStruct]

	out.IsHeader = types.IsHeaderPath(meta.Path)
	out.IsImplementation = types.IsImplementationPath(meta.Path)

	return out
}
