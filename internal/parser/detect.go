package parser

import (
	"strings"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Mention is an entity name seen in a span of text
type Mention struct {
	Name string
	Kind types.EntityKind
}

// DetectMentions finds entity names in text: explicit struct/class/enum
// declarations first, then identifiers carrying a naming-convention prefix.
// Each name is reported once with the first kind it was seen with.
func DetectMentions(text string) []Mention {
	mentions := make([]Mention, 0)
	seen := make(map[string]bool)

	add := func(name string, kind types.EntityKind) {
		if seen[name] {
			return
		}
		seen[name] = true
		mentions = append(mentions, Mention{Name: name, Kind: kind})
	}

	for _, m := range keywordDeclPattern.FindAllStringSubmatch(text, -1) {
		if startsUpper(m[2]) {
			add(m[2], types.EntityKind(m[1]))
		}
	}
	for _, token := range ConventionTokens(text) {
		add(token, KindFromName(token))
	}

	return mentions
}

// DetectMacros reports which of UPROPERTY, UFUNCTION, UCLASS and USTRUCT occur in text
func DetectMacros(text string) map[string]bool {
	found := make(map[string]bool, len(macroPatterns))
	for macro, re := range macroPatterns {
		found[macro] = re.MatchString(text)
	}
	return found
}

// ConventionTokens returns identifiers with a naming-convention prefix in
// order of appearance. All-caps tokens are macros and are skipped.
func ConventionTokens(text string) []string {
	tokens := make([]string, 0)
	for _, t := range conventionTokenPattern.FindAllString(text, -1) {
		if strings.ToUpper(t) != t {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
