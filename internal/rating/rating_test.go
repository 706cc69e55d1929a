package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func opp(r int) *int { return &r }

// S1: empty placement.
func TestCalculatePlacementRatingEmpty(t *testing.T) {
	assert.Equal(t, BasePlacementRating, CalculatePlacementRating(nil))
}

// S2: opponent-strength signal.
func TestOpponentStrengthSignal(t *testing.T) {
	mkGames := func(opponentRating *int) []PlacementGame {
		games := make([]PlacementGame, 5)
		for i := range games {
			games[i] = PlacementGame{WPM: 70, Accuracy: 0.95, Consistency: 0.8, Won: true, OpponentRating: opponentRating}
		}
		return games
	}

	ratingUnrated := CalculatePlacementRating(mkGames(nil))
	ratingStrong := CalculatePlacementRating(mkGames(opp(1400)))

	assert.Greater(t, ratingStrong, ratingUnrated)
}

// S3: wins beat losses.
func TestWinsBeatLosses(t *testing.T) {
	mkGames := func(won bool) []PlacementGame {
		games := make([]PlacementGame, 5)
		for i := range games {
			games[i] = PlacementGame{WPM: 60, Accuracy: 0.94, Consistency: 0.8, Won: won}
		}
		return games
	}

	mmrWins := CalculatePlacementRating(mkGames(true))
	mmrLosses := CalculatePlacementRating(mkGames(false))

	assert.Greater(t, mmrWins, mmrLosses)
}

// S4: hard cap.
func TestHardCap(t *testing.T) {
	games := make([]PlacementGame, 5)
	for i := range games {
		games[i] = PlacementGame{WPM: 200, Accuracy: 1.0, Consistency: 1.0, Won: true, OpponentRating: opp(2200)}
	}
	final := CalculatePlacementRating(games)
	assert.LessOrEqual(t, final, MaxPlacementRating)
}

func TestApexEligibility(t *testing.T) {
	assert.True(t, ApexEligible(2100, 1500))
	assert.False(t, ApexEligible(2099, 1))
	assert.False(t, ApexEligible(2200, 1501))
}

func TestApplyApexDeltaFloorsAtZero(t *testing.T) {
	assert.Equal(t, 0, ApplyApexDelta(3, -10))
	assert.Equal(t, 5, ApplyApexDelta(3, 2))
}

func TestCurrentTierAndMidpoint(t *testing.T) {
	assert.Equal(t, 0, CurrentTier(50))
	assert.Equal(t, 20, CurrentTier(2099))
	assert.Equal(t, 20, CurrentTier(5000)) // clamped
	assert.Equal(t, 50, TierMidpoint(0))
	assert.Equal(t, 2050, TierMidpoint(20))
}

func f(v float64) *float64 { return &v }

func TestApplyOverperformanceRequiresSixQualifying(t *testing.T) {
	games := []RecentGame{
		{WPM: f(180), Accuracy: f(0.98)},
		{WPM: f(180), Accuracy: f(0.98)},
		{WPM: nil, Accuracy: nil},
		{WPM: nil, Accuracy: nil},
		{WPM: nil, Accuracy: nil},
	}
	result := ApplyOverperformance(300, games)
	assert.False(t, result.Applied)
}

func TestApplyOverperformancePromotesTwoTiers(t *testing.T) {
	games := make([]RecentGame, 8)
	for i := range games {
		games[i] = RecentGame{WPM: f(250), Accuracy: f(0.99)}
	}
	result := ApplyOverperformance(100, games) // tier 1
	assert.True(t, result.Applied)
	assert.Equal(t, 3, result.NewTier) // capped at currentTier+2
	assert.Equal(t, TierMidpoint(3), result.NewRating)
	assert.Greater(t, result.PromotionGap, 0)
}

func TestApplyOverperformanceRequiresAccuracyFloor(t *testing.T) {
	games := make([]RecentGame, 8)
	for i := range games {
		games[i] = RecentGame{WPM: f(250), Accuracy: f(0.5)}
	}
	result := ApplyOverperformance(100, games)
	assert.False(t, result.Applied)
}

func TestProvisionalRatingBlendsTowardBase(t *testing.T) {
	games := []PlacementGame{{WPM: 80, Accuracy: 0.95, Consistency: 0.8, Won: true}}
	provisional := ProvisionalRating(games)
	full := CalculatePlacementRating(append(games, games[0], games[0], games[0], games[0]))
	assert.NotEqual(t, full, provisional)
}
