package fuzzy

import (
	"strings"
	"testing"

	"github.com/hbollon/go-edlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pairs = [][2]string{
	{"", ""},
	{"", "abc"},
	{"kitten", "sitting"},
	{"FHitResult", "FHitResult"},
	{"FHitResult", "FHitResults"},
	{"FHitResult", "fhitresult"},
	{"UWorld", "AActor"},
	{"GetActorLocation", "GetActorRotation"},
	{"EMovementMode", "EMoveMode"},
	{"résumé", "resume"},
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"FHitResult", "FHitResults", 1},
		{"flaw", "lawn", 2},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b))
		})
	}
}

// TestLevenshteinDistance_MatchesEdlib cross-checks against an independent implementation
func TestLevenshteinDistance_MatchesEdlib(t *testing.T) {
	for _, p := range pairs {
		assert.Equal(t, edlib.LevenshteinDistance(p[0], p[1]), LevenshteinDistance(p[0], p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestLevenshteinDistance_Symmetric(t *testing.T) {
	for _, p := range pairs {
		assert.Equal(t, LevenshteinDistance(p[0], p[1]), LevenshteinDistance(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestJaroWinklerSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, JaroWinklerSimilarity("FHitResult", "FHitResult"))
	assert.Equal(t, 0.0, JaroWinklerSimilarity("", "abc"))
	assert.Equal(t, 0.0, JaroWinklerSimilarity("abc", "xyz"))
	assert.InDelta(t, 0.9611, JaroWinklerSimilarity("MARTHA", "MARHTA"), 0.0001)
	assert.InDelta(t, 0.84, JaroWinklerSimilarity("DWAYNE", "DUANE"), 0.0001)
}

// TestJaroWinklerSimilarity_PrefixMonotone verifies a longer shared prefix never lowers the score
func TestJaroWinklerSimilarity_PrefixMonotone(t *testing.T) {
	prev := 0.0
	for k := 0; k <= 4; k++ {
		prefix := "abcd"[:k]
		score := JaroWinklerSimilarity(prefix+"MARTHA", prefix+"MARHTA")
		assert.GreaterOrEqual(t, score, prev, "prefix length %d", k)
		prev = score
	}
}

func TestNgramSimilarity(t *testing.T) {
	assert.InDelta(t, 0.25, NgramSimilarity("night", "nacht", 2), 1e-9)
	assert.Equal(t, 1.0, NgramSimilarity("actor", "actor", 2))
	assert.Equal(t, 0.0, NgramSimilarity("a", "ab", 2), "shorter than n scores 0")
	assert.Equal(t, 0.0, NgramSimilarity("", "", 2))
	assert.Equal(t, NgramSimilarity("night", "nacht", 2), NgramSimilarity("night", "nacht", 0), "non-positive n falls back to bigrams")
}

func TestCompoundScore(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		for _, p := range pairs {
			assert.Equal(t, 1.0, CompoundScore(p[0], p[0]))
		}
	})

	t.Run("case-insensitive match", func(t *testing.T) {
		assert.Equal(t, CaseInsensitiveScore, CompoundScore("fhitresult", "FHitResult"))
	})

	t.Run("typo stays close", func(t *testing.T) {
		score := CompoundScore("FHitReslt", "FHitResult")
		assert.Greater(t, score, 0.85)
		assert.Less(t, score, CaseInsensitiveScore)
	})

	t.Run("always within bounds", func(t *testing.T) {
		for _, p := range pairs {
			s := CompoundScore(p[0], p[1])
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	})

	t.Run("containment bonus", func(t *testing.T) {
		q, c := "hit", "fhitresult"
		base := JaroWinklerWeight*JaroWinklerSimilarity(q, c) +
			LevenshteinWeight*(1-float64(LevenshteinDistance(q, c))/float64(len(c))) +
			NgramWeight*NgramSimilarity(q, c, 2)
		want := base + MaxContainmentBonus*float64(len(q))/float64(len(c))
		assert.InDelta(t, want, CompoundScore("Hit", "FHitResult"), 1e-9)
	})

	t.Run("unrelated names score low", func(t *testing.T) {
		assert.Less(t, CompoundScore("UWorld", "FHitResult"), 0.5)
	})
}

func TestCompoundScore_Weights(t *testing.T) {
	assert.InDelta(t, 1.0, JaroWinklerWeight+LevenshteinWeight+NgramWeight, 1e-9)
}

func TestBestMatches(t *testing.T) {
	candidates := []string{"UWorld", "FHitResult", "FHitResults", "AActor"}

	matches := BestMatches("FHitResult", candidates, 0.7, 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "FHitResult", matches[0].Candidate)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, 1.0, matches[0].Score)
	assert.Equal(t, "FHitResults", matches[1].Candidate)

	limited := BestMatches("FHitResult", candidates, 0, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "FHitResult", limited[0].Candidate)
}

func TestBestMatches_StableTies(t *testing.T) {
	candidates := []string{"Alpha", "Alpha", "Alpha"}
	matches := BestMatches("alpha", candidates, 0.5, 0)
	require.Len(t, matches, 3)
	for i, m := range matches {
		assert.Equal(t, i, m.Index)
	}
}

func BenchmarkCompoundScore(b *testing.B) {
	long := strings.Repeat("UCharacterMovementComponent", 2)
	for i := 0; i < b.N; i++ {
		_ = CompoundScore("CharacterMovement", long)
	}
}
