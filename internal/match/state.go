// Package match implements C5, the per-match orchestrator: the
// multi-round combat state machine owning one RuntimeMatchState per
// in-progress match (spec §4.5). Grounded on the teacher's
// internal/scheduler (a single owner loop draining a work channel) and
// internal/infrastructure/providers' circuit-breaker style of posting
// outcomes back to a serial owner rather than mutating shared state from
// arbitrary goroutines (spec §5's "no suspension while holding a
// mutation across awaits").
package match

import (
	"time"

	"github.com/velotype/velotype/internal/matchmaking"
	"github.com/velotype/velotype/internal/metrics"
)

// Phase is one state of the per-match state machine (spec §4.5).
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhasePrep       Phase = "prep"
	PhaseCountdown  Phase = "countdown"
	PhaseTyping     Phase = "typing"
	PhaseResolving  Phase = "resolving"
	PhaseBreak      Phase = "break"
	PhaseDrawWindow Phase = "draw-window"
	PhaseComplete   Phase = "complete"
)

// Timing constants from spec §6.
const (
	ReconnectGraceMs = 30000
	SubmitGraceMs    = 30000

	regulationRounds        = 6
	regulationWinsToOvertime = 3
	startingHP              = 100
)

// PlayerAggregate accumulates the running per-round totals used to build
// the final persisted MatchPlayer row at finalisation (spec §4.5 item 1).
type PlayerAggregate struct {
	WPMSum, RawWPMSum, AccuracySum, ConsistencySum, ScoreSum float64
	RoundsCounted                                            int

	CorrectChars, TotalTyped, Errors          int
	DamageDealt, DamageTaken                  int
	ProgressSamples                           []int
}

func (a *PlayerAggregate) addRound(r metrics.Round, typedLen, errs, damageDealt, damageTaken int) {
	a.WPMSum += r.WPM
	a.RawWPMSum += r.RawWPM
	a.AccuracySum += r.Accuracy
	a.ConsistencySum += r.Consistency
	a.ScoreSum += r.PerformanceScore
	a.RoundsCounted++

	a.CorrectChars += r.CorrectChars
	a.TotalTyped += typedLen
	a.Errors += errs
	a.DamageDealt += damageDealt
	a.DamageTaken += damageTaken
}

// averages returns the per-round mean of every averaged field, or all
// zeros when RoundsCounted is 0 (a forfeit before any round resolves).
func (a *PlayerAggregate) averages() (wpm, rawWPM, accuracy, consistency, score float64) {
	if a.RoundsCounted == 0 {
		return 0, 0, 0, 0, 0
	}
	n := float64(a.RoundsCounted)
	return a.WPMSum / n, a.RawWPMSum / n, a.AccuracySum / n, a.ConsistencySum / n, a.ScoreSum / n
}

// ProgressSnapshot is the latest mid-round progress frame from a player,
// exposed to the opponent and to reconnect recovery (spec §4.5).
type ProgressSnapshot struct {
	ProgressIndex int
	TypedLength   int
	MistakesCount int
	ElapsedMs     int
}

// RuntimeMatchState is the authoritative, process-memory-only state for
// one in-progress match (spec §4.5's RuntimeMatchState contract).
type RuntimeMatchState struct {
	MatchID      string
	UserA, UserB string
	Seed         string

	CurrentRound     int
	MaxRounds        int
	RoundStartAt     time.Time
	BreakSeconds     int
	CountdownSeconds int
	RoundTimeSeconds int
	TextLength       int
	Difficulty       string
	Punctuation      bool

	Phase Phase

	PlayerHP      map[string]int
	RoundWins     map[string]int
	Aggregates    map[string]*PlayerAggregate
	PlayerRatings map[string]int

	OvertimeActive bool
	DrawWindowOpen bool
	DrawVotes      map[string]string

	WinnerUserID    string
	ForfeitedUserID string
	Finalized       bool

	Submissions  map[string]metrics.Submission
	LastProgress map[string]ProgressSnapshot
	Joined       map[string]bool
	Connected    map[string]bool

	// LastCombatScores holds the most recently resolved round's combat
	// scores, used as the Elo delta's score-margin signal at finalisation
	// (spec §4.2: "score-margin, this round's decider").
	LastCombatScores map[string]float64
}

func newRuntimeMatchState(cfg matchmaking.MatchConfig) *RuntimeMatchState {
	return &RuntimeMatchState{
		MatchID:          cfg.MatchID,
		UserA:            cfg.UserIDA,
		UserB:            cfg.UserIDB,
		Seed:             cfg.Seed,
		CurrentRound:     1,
		MaxRounds:        cfg.MaxRounds,
		BreakSeconds:     cfg.BreakSeconds,
		CountdownSeconds: cfg.CountdownSeconds,
		RoundTimeSeconds: cfg.RoundTimeSeconds,
		TextLength:       cfg.TextLength,
		Difficulty:       string(cfg.Difficulty),
		Punctuation:      cfg.Punctuation,
		Phase:            PhaseLobby,
		PlayerHP:         map[string]int{cfg.UserIDA: startingHP, cfg.UserIDB: startingHP},
		RoundWins:        map[string]int{cfg.UserIDA: 0, cfg.UserIDB: 0},
		Aggregates:       map[string]*PlayerAggregate{cfg.UserIDA: {}, cfg.UserIDB: {}},
		PlayerRatings:    cfg.PlayerRatings,
		DrawVotes:        map[string]string{},
		Submissions:      map[string]metrics.Submission{},
		LastProgress:     map[string]ProgressSnapshot{},
		Joined:           map[string]bool{},
		Connected:        map[string]bool{},
		LastCombatScores: map[string]float64{},
	}
}

// opponent returns the other participant's userID.
func (s *RuntimeMatchState) opponent(userID string) string {
	if userID == s.UserA {
		return s.UserB
	}
	return s.UserA
}

// bothSubmitted reports whether both participants have a submission for
// the current round.
func (s *RuntimeMatchState) bothSubmitted() bool {
	_, a := s.Submissions[s.UserA]
	_, b := s.Submissions[s.UserB]
	return a && b
}

// resetRound clears per-round transient state ahead of the next round.
func (s *RuntimeMatchState) resetRound() {
	s.Submissions = map[string]metrics.Submission{}
	s.LastProgress = map[string]ProgressSnapshot{}
}

// maybeEnterOvertime latches OvertimeActive once either win condition is
// met (spec §4.5: "once true it stays true").
func (s *RuntimeMatchState) maybeEnterOvertime() {
	if s.OvertimeActive {
		return
	}
	if s.RoundWins[s.UserA] >= regulationWinsToOvertime && s.RoundWins[s.UserB] >= regulationWinsToOvertime {
		s.OvertimeActive = true
		return
	}
	if s.CurrentRound >= regulationRounds {
		s.OvertimeActive = true
	}
}

// drawWindowShouldOpen implements spec §4.5's overtime draw-vote cadence:
// every other round once in overtime, starting at round 8 (two rounds
// past the round-6 overtime threshold).
func (s *RuntimeMatchState) drawWindowShouldOpen() bool {
	if !s.OvertimeActive || s.CurrentRound <= regulationRounds {
		return false
	}
	return (s.CurrentRound-regulationRounds)%2 == 0
}
