// Package metrics implements C2: computing wpm, raw wpm, accuracy,
// consistency, performance score, combat score, damage, and Elo delta from
// a raw round submission. All functions here are pure; I/O and logging stay
// at the orchestrator boundary, matching the teacher's separation between
// its scoring packages and its connection/transport code.
package metrics

import "math"

// Ranked and daily plausibility caps per §4.2.
const (
	MaxCharsPerSecondRanked = 45.0
	MaxCharsPerSecondDaily  = 20.0
	MaxDamagePerRound       = 35
)

// Submission is the server-computed-from raw round input described in
// §4.2: target text, what the client claims to have typed, elapsed time,
// per-second progress samples, and optional keystroke-level counters.
type Submission struct {
	TargetText      string
	Typed           string
	ElapsedMs       int
	Samples         []int
	TotalErrors     *int
	TotalKeystrokes *int
}

// Round holds every derived value for one round's submission.
type Round struct {
	CorrectChars     int
	Accuracy         float64
	RawWPM           float64
	WPM              float64
	Consistency      float64
	PerformanceScore float64
}

// ApplyPlausibilityGuard clamps a claimed typed string to what is
// physically plausible at maxCharsPerSecond, then to the target length
// (§4.2's plausibility guard, applied before any metric is computed).
func ApplyPlausibilityGuard(typed string, elapsedMs int, maxCharsPerSecond float64, targetLen int) string {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	maxChars := int(math.Ceil(float64(elapsedMs) / 1000.0 * maxCharsPerSecond))
	if maxChars < 0 {
		maxChars = 0
	}
	if len(typed) > maxChars {
		typed = typed[:maxChars]
	}
	if len(typed) > targetLen {
		typed = typed[:targetLen]
	}
	return typed
}

// Compute derives every round metric from a guarded submission.
func Compute(s Submission) Round {
	correct := correctChars(s.TargetText, s.Typed)
	totalTyped := len(s.Typed)

	accuracy := accuracyFor(s, correct, totalTyped)
	rawWPM := rawWPM(s)
	consistency := Consistency(s.Samples)
	wpm := wpmFor(s, correct, totalTyped)

	return Round{
		CorrectChars:     correct,
		Accuracy:         accuracy,
		RawWPM:           rawWPM,
		WPM:              wpm,
		Consistency:      consistency,
		PerformanceScore: wpm * accuracy * accuracy * (0.9 + 0.1*consistency),
	}
}

func correctChars(target, typed string) int {
	n := len(target)
	if len(typed) < n {
		n = len(typed)
	}
	count := 0
	for i := 0; i < n; i++ {
		if target[i] == typed[i] {
			count++
		}
	}
	return count
}

func accuracyFor(s Submission, correct, totalTyped int) float64 {
	if s.TotalKeystrokes != nil && *s.TotalKeystrokes > 0 {
		errs := 0
		if s.TotalErrors != nil {
			errs = *s.TotalErrors
		}
		acc := float64(*s.TotalKeystrokes-errs) / float64(*s.TotalKeystrokes)
		return clamp(acc, 0, 1)
	}
	if totalTyped == 0 {
		return 0
	}
	return clamp(float64(correct)/float64(maxInt(1, totalTyped)), 0, 1)
}

func rawWPM(s Submission) float64 {
	if s.TotalKeystrokes == nil || s.ElapsedMs <= 0 {
		return 0
	}
	minutes := float64(s.ElapsedMs) / 60000.0
	if minutes <= 0 {
		return 0
	}
	return (float64(*s.TotalKeystrokes) / 5.0) / minutes
}

// wpmFor computes net wpm plus the corrected-mistake bonus: every three
// corrected mistakes (totalErrors minus the errors still present in the
// final string) grants +1 wpm.
func wpmFor(s Submission, correct, totalTyped int) float64 {
	if s.ElapsedMs <= 0 {
		return 0
	}
	minutes := float64(s.ElapsedMs) / 60000.0
	if minutes <= 0 {
		return 0
	}
	base := (float64(correct) / 5.0) / minutes

	if s.TotalErrors == nil {
		return base
	}
	currentErrors := totalTyped - correct
	if currentErrors < 0 {
		currentErrors = 0
	}
	corrected := *s.TotalErrors - currentErrors
	if corrected < 0 {
		corrected = 0
	}
	bonus := math.Floor(float64(corrected) / 3.0)
	return base + bonus
}

// Consistency returns 1/(1+stddev(samples)), or 1.0 when fewer than two
// samples are present.
func Consistency(samples []int) float64 {
	if len(samples) < 2 {
		return 1.0
	}
	mean := 0.0
	for _, v := range samples {
		mean += float64(v)
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, v := range samples {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(samples))

	stddev := math.Sqrt(variance)
	return 1.0 / (1.0 + stddev)
}

// CombatScore normalises (wpm, accuracy) to 0..100 for round damage,
// scaled against a rating-dependent wpm ceiling; the ceiling rises with
// the rating, so the same raw wpm scores lower against a higher rating.
// opponentRating is nil for an unranked opponent, in which case the base
// placement rating is used as the ceiling anchor.
func CombatScore(wpm, accuracy float64, opponentRating *int) float64 {
	rating := 1050
	if opponentRating != nil {
		rating = *opponentRating
	}
	// Ceiling rises with rating: 85 wpm at 1050, about 120 wpm (roughly
	// 1.4 times as much) at 2099.
	ceiling := 50.0 + float64(rating)/30.0

	raw := 100.0 * (wpm / ceiling) * math.Pow(clamp(accuracy, 0, 1), 1.5)
	return clamp(raw, 0, 100)
}

// Damage converts a combat-score gap into HP damage, clamped to
// [0, MaxDamagePerRound].
func Damage(winnerScore, loserScore float64) int {
	d := math.Round(math.Max(0, winnerScore-loserScore))
	return int(clamp(d, 0, MaxDamagePerRound))
}

// EloInput is every signal the Elo delta depends on per §4.2.
type EloInput struct {
	PlayerRating    int
	OpponentRating  int
	Result          Result
	ScoreMargin     float64 // player's combat score minus opponent's, this round's decider
	RemainingHP     int     // player's HP remaining at match end
	Forfeit         bool    // true if the PLAYER is the one who forfeited
}

// Result mirrors model.RoundResult without importing the storage package
// from a pure calculation package.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

const (
	baseK             = 32.0
	marginFactor      = 0.05
	hpFactor          = 0.05
	forfeitPenalty    = 5
)

// EloDelta computes the rating adjustment for one player in a completed
// match using a standard expected-score form, with a small margin/HP bonus
// and a fixed additional penalty when the player forfeited.
func EloDelta(in EloInput) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(in.OpponentRating-in.PlayerRating)/400.0))

	var actual float64
	switch in.Result {
	case ResultWin:
		actual = 1.0
	case ResultDraw:
		actual = 0.5
	default:
		actual = 0.0
	}

	delta := baseK*(actual-expected) + marginFactor*in.ScoreMargin + hpFactor*float64(in.RemainingHP)
	rounded := int(math.Round(delta))

	if in.Forfeit {
		rounded -= forfeitPenalty
	}
	return rounded
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
