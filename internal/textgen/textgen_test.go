package textgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIsPure(t *testing.T) {
	a := Generate("match-123", 200, Medium, true)
	b := Generate("match-123", 200, Medium, true)
	assert.Equal(t, a, b)
}

func TestGenerateDiffersBySeed(t *testing.T) {
	a := Generate("seed-a", 200, Medium, false)
	b := Generate("seed-b", 200, Medium, false)
	assert.NotEqual(t, a, b)
}

func TestGenerateRespectsApproxLength(t *testing.T) {
	out := Generate("abc", 100, Easy, false)
	assert.LessOrEqual(t, len(out), 100)
	assert.Greater(t, len(out), 0)
}

func TestGenerateZeroHashFallsBack(t *testing.T) {
	// empty string hashes to the FNV offset basis, which is non-zero, but
	// exercise the fallback path directly for the documented zero case.
	assert.NotPanics(t, func() {
		Generate("", 50, Hard, true)
	})
}

func TestRoundSeedDeterministic(t *testing.T) {
	s1 := RoundSeed("matchSeed", 3)
	s2 := RoundSeed("matchSeed", 3)
	assert.Equal(t, s1, s2)
	assert.Equal(t, "matchSeed-3", s1)
}

func TestPunctuationInjectionOccurs(t *testing.T) {
	out := Generate("punct-seed", 600, Hard, true)
	hasPunct := false
	for _, c := range out {
		if c == ',' || c == ';' || c == ':' || c == '.' {
			hasPunct = true
			break
		}
	}
	assert.True(t, hasPunct, "expected at least one punctuation mark in a long hard-difficulty sample")
}

func TestUnknownDifficultyFallsBackToMedium(t *testing.T) {
	out := Generate("seed", 50, Difficulty("unknown"), false)
	assert.NotEmpty(t, out)
}
