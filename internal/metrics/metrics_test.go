package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyPlausibilityGuardClampsToCharRate(t *testing.T) {
	typed := "abcdefghijklmnopqrstuvwxyz"
	out := ApplyPlausibilityGuard(typed, 500, MaxCharsPerSecondDaily, 100)
	// 0.5s * 20 chars/sec = 10 chars max
	assert.Len(t, out, 10)
}

func TestApplyPlausibilityGuardClampsToTargetLen(t *testing.T) {
	typed := "abcdefghijklmnopqrstuvwxyz"
	out := ApplyPlausibilityGuard(typed, 60000, MaxCharsPerSecondRanked, 5)
	assert.Len(t, out, 5)
}

func TestComputeBasicAccuracyAndWPM(t *testing.T) {
	target := "hello world"
	typed := "hello world"
	keystrokes := 11
	errs := 0
	round := Compute(Submission{
		TargetText:      target,
		Typed:           typed,
		ElapsedMs:       60000,
		TotalErrors:     &errs,
		TotalKeystrokes: &keystrokes,
	})
	assert.Equal(t, 11, round.CorrectChars)
	assert.InDelta(t, 1.0, round.Accuracy, 1e-9)
	assert.InDelta(t, 11.0/5.0, round.WPM, 1e-9)
}

func TestComputeWithoutKeystrokeCountersFallsBackToCorrectChars(t *testing.T) {
	round := Compute(Submission{
		TargetText: "hello",
		Typed:      "hallo",
		ElapsedMs:  60000,
	})
	assert.Equal(t, 4, round.CorrectChars)
	assert.InDelta(t, 4.0/5.0, round.Accuracy, 1e-9)
}

func TestCorrectedMistakeBonus(t *testing.T) {
	keystrokes := 20
	totalErrors := 6 // 6 corrected/total errors recorded during typing
	round := Compute(Submission{
		TargetText:      "aaaaaaaaaa",
		Typed:           "aaaaaaaaaa", // final string fully correct: currentErrors = 0
		ElapsedMs:       60000,
		TotalErrors:     &totalErrors,
		TotalKeystrokes: &keystrokes,
	})
	// base wpm = 10/5 = 2, bonus = floor((6-0)/3) = 2 => 4
	assert.InDelta(t, 4.0, round.WPM, 1e-9)
}

func TestConsistencyFewerThanTwoSamples(t *testing.T) {
	assert.Equal(t, 1.0, Consistency(nil))
	assert.Equal(t, 1.0, Consistency([]int{5}))
}

func TestConsistencyPenalizesVariance(t *testing.T) {
	steady := Consistency([]int{10, 10, 10, 10})
	jumpy := Consistency([]int{0, 20, 0, 20})
	assert.Equal(t, 1.0, steady)
	assert.Less(t, jumpy, steady)
}

func TestDamageClampedToMax(t *testing.T) {
	assert.Equal(t, MaxDamagePerRound, Damage(100, 0))
	assert.Equal(t, 0, Damage(10, 50))
	assert.Equal(t, 10, Damage(60, 50))
}

func TestCombatScoreBounded(t *testing.T) {
	opp := 2000
	score := CombatScore(200, 1.0, &opp)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestEloDeltaFavorsUnderdogWin(t *testing.T) {
	underdogDelta := EloDelta(EloInput{PlayerRating: 1000, OpponentRating: 1400, Result: ResultWin})
	favoriteDelta := EloDelta(EloInput{PlayerRating: 1400, OpponentRating: 1000, Result: ResultWin})
	assert.Greater(t, underdogDelta, favoriteDelta)
}

func TestEloDeltaForfeitPenalty(t *testing.T) {
	normalLoss := EloDelta(EloInput{PlayerRating: 1200, OpponentRating: 1200, Result: ResultLoss})
	forfeitLoss := EloDelta(EloInput{PlayerRating: 1200, OpponentRating: 1200, Result: ResultLoss, Forfeit: true})
	assert.Less(t, forfeitLoss, normalLoss)
}
