package parser

import "regexp"

// Patterns shared with the enricher. They are best-effort and line oriented;
// none of them understands the preprocessor.
var (
	// class|struct NAME : bases {
	inheritancePattern = regexp.MustCompile(`\b(?:class|struct)\s+(?:[A-Z0-9_]+_API\s+)?([A-Za-z_]\w*)(?:\s+final)?\s*:\s*([^{;]+?)\s*\{`)

	// #include <path> or #include "path"
	includePattern = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*[<"]([^>"\n]+)[>"]`)

	// Start of an annotation macro such as UPROPERTY( or UFUNCTION(
	annotationPattern = regexp.MustCompile(`\b(U[A-Z]+)\s*\(`)

	// TYPE NAME; with optional array suffix and initializer, anchored at the
	// start of the remaining text
	memberDeclPattern = regexp.MustCompile(`^\s*` + typeExpr + `\s*([\*&]*)\s*([A-Za-z_]\w*)\s*(?:\[[^\]]*\]\s*)?(?:=[^;]*|\{[^;{}]*\})?\s*;`)

	// Same shape as memberDeclPattern for a single trimmed line
	plainMemberPattern = regexp.MustCompile(`^` + typeExpr + `\s*([\*&]*)\s*([A-Za-z_]\w*)\s*(?:\[[^\]]*\]\s*)?(?:=[^;]*|\{[^;{}]*\})?\s*;\s*(?://.*)?$`)

	// Declarations with a body
	typeDeclPattern = regexp.MustCompile(`(?m)^[ \t]*(?:template\s*<[^>]*>\s*)?(class|struct)\s+(?:[A-Z0-9_]+_API\s+)?([A-Za-z_]\w*)\s*(?:final\s*)?(?::[^;{]*)?\{`)
	enumDeclPattern = regexp.MustCompile(`(?m)^[ \t]*enum\s+(?:class\s+|struct\s+)?([A-Za-z_]\w*)\s*(?::\s*[\w:]+\s*)?\{`)

	// DECLARE_DYNAMIC_MULTICAST_DELEGATE_OneParam(FOnDeath, ...)
	delegateDeclPattern = regexp.MustCompile(`\bDECLARE_(?:DYNAMIC_)?(?:MULTICAST_)?DELEGATE\w*\s*\(\s*([A-Za-z_]\w*)`)

	// [qualifiers] RET [Class::]Name(args) [const] [override] { or ;
	functionDeclPattern = regexp.MustCompile(`(?m)^[ \t]*((?:[A-Za-z_]\w*(?:::\w+)*(?:<[^;{}()]*>)?[\s\*&]+)+)(?:[A-Za-z_]\w*::)?([A-Z]\w*)\s*\(([^;{}]*)\)\s*(?:const\s*)?(?:noexcept\s*)?(?:override\s*)?(?:final\s*)?([;{])`)

	// Declaration keyword followed by a name, used for chunk enrichment
	keywordDeclPattern = regexp.MustCompile(`\b(struct|class|enum)\s+(?:class\s+)?(?:[A-Z0-9_]+_API\s+)?([A-Za-z_]\w*)`)

	// Identifier that carries a naming-convention prefix
	conventionTokenPattern = regexp.MustCompile(`\b(?:F|U|A|I|E)[A-Z]\w*\b`)

	// Macro annotation kinds flagged during enrichment
	macroPatterns = map[string]*regexp.Regexp{
		"UPROPERTY": regexp.MustCompile(`\bUPROPERTY\s*\(`),
		"UFUNCTION": regexp.MustCompile(`\bUFUNCTION\s*\(`),
		"UCLASS":    regexp.MustCompile(`\bUCLASS\s*\(`),
		"USTRUCT":   regexp.MustCompile(`\bUSTRUCT\s*\(`),
	}
)

// typeExpr matches a member type: optional qualifiers, a possibly qualified
// identifier, an optional template argument list and trailing pointer or
// reference markers.
const typeExpr = `((?:(?:const|mutable|class|struct|enum)\s+)*[A-Za-z_][\w:]*(?:\s*<[^;{}()]*>)?(?:\s*[\*&]+)?)`

// accessSpecifiers are dropped from inheritance lists
var accessSpecifiers = map[string]bool{
	"public":    true,
	"protected": true,
	"private":   true,
	"virtual":   true,
}

// statementKeywords rule out function matches that are really statements
var statementKeywords = map[string]bool{
	"return": true, "new": true, "delete": true, "throw": true, "else": true,
	"case": true, "sizeof": true, "co_return": true, "co_await": true, "goto": true,
	"using": true, "typedef": true, "friend": true, "namespace": true,
}
