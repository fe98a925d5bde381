package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/cppcontext-mcp/internal/parser"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Per-rule confidence constants
const (
	ConfidenceDefinitionCue = 0.95
	ConfidenceFunctionCue   = 0.9
	ConfidenceBareEntity    = 0.85
	ConfidenceHybrid        = 0.7
	ConfidenceConceptual    = 0.9
	ConfidenceFallback      = 0.5

	// MaxBareEntityWords is the largest number of significant words a
	// bare entity question may have
	MaxBareEntityWords = 2

	// minSignificantLen is the length a word must exceed to be significant
	minSignificantLen = 2
)

// Rule names, in evaluation order
const (
	RuleDefinitionCue = "definition_cue"
	RuleFunctionCue   = "function_cue"
	RuleBareEntity    = "bare_entity"
	RuleHybridHint    = "hybrid_hint"
	RuleConceptual    = "conceptual"
	RuleFallback      = "fallback"
)

// Names are capitalized identifiers. Keywords match in any case.
var (
	keywordFirstCue = regexp.MustCompile(`(?i:\b(struct|class|enum))\s+([A-Z]\w*)`)
	nameFirstCue    = regexp.MustCompile(`\b([A-Z]\w*)\s+(?i:(struct|class|enum))\b`)
	defineCue       = regexp.MustCompile(`(?i:\b(?:definition\s+of|define))\s+(?:(?i:the)\s+)?([A-Z]\w*)`)
	lookupCue       = regexp.MustCompile(`(?i:\b(?:what\s+is|show\s+me|find))\s+(?:(?i:the|an?)\s+)?([A-Z]\w*)`)

	nameFunctionCue = regexp.MustCompile(`\b([A-Z]\w*)\s+(?i:function)\b`)
	functionNameCue = regexp.MustCompile(`(?i:\bfunction)\s+([A-Z]\w*)`)

	wordPattern        = regexp.MustCompile(`[A-Za-z0-9_]+`)
	capitalizedPattern = regexp.MustCompile(`\b[A-Z]\w*\b`)
)

// Rule is one step of the classification cascade. Apply reports whether the
// rule fires for the question's features.
type Rule struct {
	Name  string
	Apply func(f *Features) (types.QueryIntent, bool)
}

// Features are computed once per question and shared by every rule
type Features struct {
	Question    string
	Words       []string // lowercased, in order
	Conceptual  bool
	Hints       map[string]bool
	Candidates  []string // naming-convention entity names, in order, deduplicated
	Significant int
}

// Extract computes the features of a question
func Extract(question string) *Features {
	f := &Features{
		Question: strings.TrimSpace(question),
		Hints:    make(map[string]bool),
	}

	for _, w := range wordPattern.FindAllString(f.Question, -1) {
		lw := strings.ToLower(w)
		f.Words = append(f.Words, lw)
		if conceptualWords[lw] {
			f.Conceptual = true
		}
		if definitionHints[lw] {
			f.Hints[lw] = true
		}
		if len(lw) > minSignificantLen && !stopWords[lw] {
			f.Significant++
		}
	}

	seen := make(map[string]bool)
	for _, token := range parser.ConventionTokens(f.Question) {
		if !seen[token] {
			seen[token] = true
			f.Candidates = append(f.Candidates, token)
		}
	}

	return f
}

// HasHints reports whether any definition hint word is present
func (f *Features) HasHints() bool {
	return len(f.Hints) > 0
}

// Classifier maps questions to a retrieval intent
type Classifier struct {
	rules []Rule
}

// New creates a Classifier with the standard rule order
func New() *Classifier {
	return &Classifier{
		rules: []Rule{
			{Name: RuleDefinitionCue, Apply: definitionCue},
			{Name: RuleFunctionCue, Apply: functionCue},
			{Name: RuleBareEntity, Apply: bareEntity},
			{Name: RuleHybridHint, Apply: hybridHint},
			{Name: RuleConceptual, Apply: conceptual},
			{Name: RuleFallback, Apply: fallback},
		},
	}
}

// Rules returns the rules in evaluation order
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify runs the rules in order and returns the first match. The last
// rule always matches.
func (c *Classifier) Classify(question string) types.QueryIntent {
	f := Extract(question)
	for _, r := range c.rules {
		if qi, ok := r.Apply(f); ok {
			qi.Rule = r.Name
			if qi.EnhancedQuery == "" {
				qi.EnhancedQuery = f.Question
			}
			return qi
		}
	}
	// unreachable while fallback is last
	return types.QueryIntent{Type: types.IntentSemantic, EntityType: types.KindUnknown, EnhancedQuery: f.Question}
}

func definitionCue(f *Features) (types.QueryIntent, bool) {
	var name string
	var kind types.EntityKind
	var cue string

	if m := findNamed(keywordFirstCue, f.Question, 2); m != nil {
		name, kind, cue = m[2], types.EntityKind(strings.ToLower(m[1])), m[0]
	} else if m := findNamed(nameFirstCue, f.Question, 1); m != nil {
		name, kind, cue = m[1], types.EntityKind(strings.ToLower(m[2])), m[0]
	} else if m := findNamed(defineCue, f.Question, 1); m != nil {
		name, kind, cue = m[1], parser.KindFromName(m[1]), m[0]
	} else if m := findNamed(lookupCue, f.Question, 1); m != nil {
		name, kind, cue = m[1], parser.KindFromName(m[1]), m[0]
	} else {
		return types.QueryIntent{}, false
	}

	return types.QueryIntent{
		Type:       types.IntentDefinition,
		EntityType: kind,
		EntityName: name,
		Confidence: ConfidenceDefinitionCue,
		Reasoning:  fmt.Sprintf("explicit definition cue %q", cue),
	}, true
}

func functionCue(f *Features) (types.QueryIntent, bool) {
	m := findNamed(nameFunctionCue, f.Question, 1)
	if m == nil {
		m = findNamed(functionNameCue, f.Question, 1)
	}
	if m == nil {
		return types.QueryIntent{}, false
	}
	return types.QueryIntent{
		Type:       types.IntentDefinition,
		EntityType: types.KindFunction,
		EntityName: m[1],
		Confidence: ConfidenceFunctionCue,
		Reasoning:  fmt.Sprintf("explicit function cue %q", m[0]),
	}, true
}

// findNamed returns the first match of re whose group names an entity.
// Sentence-initial question words are capitalized but never entities.
func findNamed(re *regexp.Regexp, question string, group int) []string {
	for _, m := range re.FindAllStringSubmatch(question, -1) {
		if isEntityName(m[group]) {
			return m
		}
	}
	return nil
}

func isEntityName(name string) bool {
	lower := strings.ToLower(name)
	return !stopWords[lower] && !questionWords[lower] && !conceptualWords[lower]
}

func bareEntity(f *Features) (types.QueryIntent, bool) {
	if len(f.Candidates) == 0 || f.Significant > MaxBareEntityWords || f.Conceptual || f.HasHints() {
		return types.QueryIntent{}, false
	}
	name := f.Candidates[0]
	kind := parser.KindFromName(name)
	if !kind.Known() {
		return types.QueryIntent{}, false
	}
	return types.QueryIntent{
		Type:       types.IntentDefinition,
		EntityType: kind,
		EntityName: name,
		Confidence: ConfidenceBareEntity,
		Reasoning:  fmt.Sprintf("short question naming %s", name),
	}, true
}

func hybridHint(f *Features) (types.QueryIntent, bool) {
	if len(f.Candidates) == 0 || !f.HasHints() || f.Conceptual {
		return types.QueryIntent{}, false
	}
	name := f.Candidates[0]
	kind := parser.KindFromName(name)

	extra := missingWords(f, keywordsFor(kind, f.Hints))
	for _, token := range capitalizedPattern.FindAllString(f.Question, -1) {
		lower := strings.ToLower(token)
		if token == name || stopWords[lower] || definitionHints[lower] || contains(extra, token) {
			continue
		}
		extra = append(extra, token)
	}

	return types.QueryIntent{
		Type:          types.IntentHybrid,
		EntityType:    kind,
		EntityName:    name,
		Confidence:    ConfidenceHybrid,
		EnhancedQuery: join(f.Question, extra),
		Reasoning:     fmt.Sprintf("%s with definition hints", name),
	}, true
}

func conceptual(f *Features) (types.QueryIntent, bool) {
	if !f.Conceptual {
		return types.QueryIntent{}, false
	}
	qi := types.QueryIntent{
		Type:       types.IntentSemantic,
		EntityType: types.KindUnknown,
		Confidence: ConfidenceConceptual,
		Reasoning:  "conceptual question",
	}
	if len(f.Candidates) > 0 {
		qi.EntityName = f.Candidates[0]
		qi.EntityType = parser.KindFromName(qi.EntityName)
	}
	return qi, true
}

func fallback(f *Features) (types.QueryIntent, bool) {
	qi := types.QueryIntent{
		Type:          types.IntentSemantic,
		EntityType:    types.KindUnknown,
		Confidence:    ConfidenceFallback,
		EnhancedQuery: f.Question,
		Reasoning:     "no structural cue",
	}
	if len(f.Candidates) > 0 {
		qi.EntityName = f.Candidates[0]
		qi.EntityType = parser.KindFromName(qi.EntityName)
		qi.EnhancedQuery = join(f.Question, missingWords(f, keywordsFor(qi.EntityType, f.Hints)))
		qi.Reasoning = fmt.Sprintf("no structural cue, enriched with %s keywords", qi.EntityType)
	}
	return qi, true
}

// missingWords filters out keywords the question already contains
func missingWords(f *Features, keywords []string) []string {
	present := make(map[string]bool, len(f.Words))
	for _, w := range f.Words {
		present[w] = true
	}
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if !present[strings.ToLower(k)] {
			out = append(out, k)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func join(question string, extra []string) string {
	if len(extra) == 0 {
		return question
	}
	return question + " " + strings.Join(extra, " ")
}
