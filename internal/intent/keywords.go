package intent

import "github.com/dshills/cppcontext-mcp/pkg/types"

// conceptualWords mark questions about behavior rather than declarations
var conceptualWords = map[string]bool{
	"how": true, "why": true, "explain": true, "compare": true, "comparison": true,
	"example": true, "examples": true, "difference": true, "differences": true,
	"purpose": true, "overview": true, "describe": true, "understand": true,
	"works": true, "relationship": true, "versus": true, "vs": true,
	"best": true, "practice": true, "practices": true, "should": true,
}

// definitionHints ask for parts of a declaration
var definitionHints = map[string]bool{
	"members": true, "member": true, "fields": true, "field": true,
	"signature": true, "parameters": true, "parameter": true, "params": true,
	"arguments": true, "returns": true, "return": true,
	"properties": true, "property": true, "methods": true, "method": true,
	"values": true, "declaration": true, "declared": true,
	"inherits": true, "inheritance": true, "parents": true, "base": true,
}

var parameterHints = map[string]bool{
	"signature": true, "parameters": true, "parameter": true, "params": true, "arguments": true,
}

var returnHints = map[string]bool{
	"signature": true, "returns": true, "return": true,
}

// stopWords do not count as significant words. Words of two letters or
// fewer never count, so only longer ones are listed.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true,
	"are": true, "does": true, "show": true, "find": true, "from": true,
	"this": true, "that": true, "about": true, "into": true, "its": true,
	"can": true, "all": true, "get": true, "where": true, "which": true,
	"there": true, "have": true, "has": true, "was": true, "were": true,
}

// questionWords open questions and are never entity names
var questionWords = map[string]bool{
	"what": true, "which": true, "where": true, "who": true, "whose": true,
	"when": true, "how": true, "why": true, "is": true, "does": true,
	"show": true, "list": true, "find": true, "the": true, "a": true, "an": true,
}

// typeKeywords are appended to enhanced queries so the embedding leans toward
// declarations of the right kind
var typeKeywords = map[types.EntityKind][]string{
	types.KindStruct:   {"struct", "USTRUCT", "fields"},
	types.KindClass:    {"class", "UCLASS", "UFUNCTION", "methods"},
	types.KindEnum:     {"enum", "UENUM", "values"},
	types.KindFunction: {"function", "UFUNCTION"},
	types.KindDelegate: {"delegate", "DECLARE_DELEGATE"},
}

// keywordsFor returns the type keywords for kind. Function keywords gain
// "parameters" and "returns" when the question hints at them.
func keywordsFor(kind types.EntityKind, hints map[string]bool) []string {
	words := append([]string(nil), typeKeywords[kind]...)
	if kind != types.KindFunction {
		return words
	}
	for h := range hints {
		if parameterHints[h] {
			words = append(words, "parameters")
			break
		}
	}
	for h := range hints {
		if returnHints[h] {
			words = append(words, "returns")
			break
		}
	}
	return words
}
