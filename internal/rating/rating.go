// Package rating implements C3: placement calibration, the Elo-style main
// rating, the Apex competitive-rating lifecycle, and the overperformance
// promotion accelerator (spec §4.3).
package rating

import (
	"math"

	"github.com/velotype/velotype/internal/metrics"
)

// Constants from spec §6.
const (
	BasePlacementRating = 1050
	MaxPlacementRating  = 2099
	PlacementRequired   = 5
	ApexThreshold       = 2100
	ApexLeaderboardSlots = 1500

	placementK         = 40.0
	perfWeightWPM      = 0.70
	perfWeightAccuracy = 0.25
	perfWeightConsist  = 0.05
	perfDeltaScale     = 22.0
	consistencyScale   = 4.0

	tierWidth = 100
	maxTier   = 20 // rating 2099, "Velocity 3"
	overperformanceWindow       = 10
	overperformanceMinQualifying = 6
	overperformanceMinAccuracy  = 0.90
	overperformanceCombatFloor  = 82.0
)

// PlacementGame is one qualifying game used for placement calibration: a
// win/loss result with non-null wpm, played against a known or unknown
// opponent rating.
type PlacementGame struct {
	WPM            float64
	Accuracy       float64
	Consistency    float64
	Won            bool
	OpponentRating *int // nil when the opponent was themselves unranked
}

// CalculatePlacementRating runs the frozen 1050-base Elo-style calibration
// sequence over a player's qualifying games in chronological order and
// returns the final placement rating, hard-capped below Apex (spec's
// frozen Open Question: the 1050-seed variant, not the 0-seed one).
func CalculatePlacementRating(games []PlacementGame) int {
	estimate := float64(BasePlacementRating)
	for _, g := range games {
		estimate = applyPlacementGame(estimate, g)
	}
	return int(math.Round(estimate))
}

// ProvisionalRating blends the in-progress placement estimate toward the
// base rating for use by matchmaking before placement completes — a
// confidence-weighted view, never persisted as the real rating.
func ProvisionalRating(games []PlacementGame) int {
	estimate := float64(BasePlacementRating)
	for _, g := range games {
		estimate = applyPlacementGame(estimate, g)
	}
	n := float64(len(games))
	confidence := n / float64(PlacementRequired)
	if confidence > 1 {
		confidence = 1
	}
	blended := float64(BasePlacementRating) + (estimate-float64(BasePlacementRating))*confidence
	return int(math.Round(blended))
}

func applyPlacementGame(estimate float64, g PlacementGame) float64 {
	opponent := estimate
	if g.OpponentRating != nil {
		opponent = float64(*g.OpponentRating)
	}

	expected := expectedScore(estimate, opponent)
	actual := 0.0
	if g.Won {
		actual = 1.0
	}
	estimate += placementK * (actual - expected)

	ceiling := ratingCeiling(estimate)
	perfSignal := perfWeightWPM*clamp01(g.WPM/ceiling) +
		perfWeightAccuracy*clamp01(g.Accuracy) +
		perfWeightConsist*clamp01(g.Consistency)
	estimate += (perfSignal - 0.5) * perfDeltaScale
	estimate += (clamp01(g.Consistency) - 0.5) * consistencyScale

	return clampFloat(estimate, 0, MaxPlacementRating)
}

func expectedScore(rating, opponentRating float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponentRating-rating)/400.0))
}

// ratingCeiling mirrors metrics.CombatScore's wpm ceiling curve so
// placement perf-signal and round combat scoring use the same notion of
// "what wpm is expected at this rating band."
func ratingCeiling(rating float64) float64 {
	return 50.0 + rating/30.0
}

func clamp01(v float64) float64 { return clampFloat(v, 0, 1) }

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApexEligible reports whether a main rating and leaderboard position
// qualify for first Apex promotion (spec §4.3).
func ApexEligible(newMainRating, leaderboardPosition int) bool {
	return newMainRating >= ApexThreshold && leaderboardPosition <= ApexLeaderboardSlots
}

// ApplyApexDelta applies the same Elo delta used for the main rating to
// the competitive rating, floored at 0.
func ApplyApexDelta(currentCompetitive, delta int) int {
	v := currentCompetitive + delta
	if v < 0 {
		return 0
	}
	return v
}

// CurrentTier maps a main rating to its tier index (width 100, capped at
// maxTier for Apex-range ratings).
func CurrentTier(rating int) int {
	t := rating / tierWidth
	if t > maxTier {
		t = maxTier
	}
	if t < 0 {
		t = 0
	}
	return t
}

// TierMidpoint returns the representative rating for a tier.
func TierMidpoint(tier int) int {
	return tier*tierWidth + tierWidth/2
}

// RecentGame is the subset of match history the overperformance
// accelerator reads: non-null wpm/accuracy only for games that qualify.
type RecentGame struct {
	WPM      *float64
	Accuracy *float64
}

// InferTier returns the highest tier whose midpoint rating would still
// yield a combat score of at least overperformanceCombatFloor for the
// given average wpm/accuracy. Combat score falls monotonically as the
// tested tier's midpoint rises, so this is the highest tier that is still
// "keeping up."
func InferTier(avgWPM, avgAccuracy float64) int {
	inferred := 0
	for t := 0; t <= maxTier; t++ {
		mid := TierMidpoint(t)
		score := metrics.CombatScore(avgWPM, avgAccuracy, &mid)
		if score >= overperformanceCombatFloor {
			inferred = t
		}
	}
	return inferred
}

// OverperformanceResult describes what ApplyOverperformance decided.
type OverperformanceResult struct {
	Applied    bool
	NewTier    int
	NewRating  int
	PromotionGap int // added to the caller's stored rating delta when Applied
}

// ApplyOverperformance reads a ranked player's last games (ordered oldest
// first; only the last overperformanceWindow entries are read) and, if the overperformance
// condition is met, promotes the player by up to two tiers and returns the
// rating gap to add to the match's stored delta (spec §4.3).
func ApplyOverperformance(currentRating int, recent []RecentGame) OverperformanceResult {
	window := recent
	if len(window) > overperformanceWindow {
		window = window[len(window)-overperformanceWindow:]
	}

	var sumWPM, sumAcc float64
	qualifying := 0
	for _, g := range window {
		if g.WPM == nil || g.Accuracy == nil {
			continue
		}
		qualifying++
		sumWPM += *g.WPM
		sumAcc += *g.Accuracy
	}

	if qualifying < overperformanceMinQualifying {
		return OverperformanceResult{}
	}
	avgAcc := sumAcc / float64(qualifying)
	if avgAcc < overperformanceMinAccuracy {
		return OverperformanceResult{}
	}
	avgWPM := sumWPM / float64(qualifying)

	inferredTier := InferTier(avgWPM, avgAcc)
	currentTier := CurrentTier(currentRating)

	if inferredTier < currentTier+2 {
		return OverperformanceResult{}
	}

	newTier := currentTier + 2
	if inferredTier < newTier {
		newTier = inferredTier
	}
	if newTier > maxTier {
		newTier = maxTier
	}

	newRating := TierMidpoint(newTier)
	return OverperformanceResult{
		Applied:      true,
		NewTier:      newTier,
		NewRating:    newRating,
		PromotionGap: newRating - currentRating,
	}
}

// LeaderboardPosition is a convenience for callers: 1-indexed rank of
// newRating among all strictly-higher-rated players.
func LeaderboardPosition(countStrictlyHigher int) int {
	return countStrictlyHigher + 1
}
