package match

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velotype/velotype/internal/matchmaking"
	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/storage"
	"github.com/velotype/velotype/internal/telemetry"
	"github.com/velotype/velotype/internal/textgen"
	"github.com/velotype/velotype/internal/wire"
)

// Room is the single owner of one in-progress match's RuntimeMatchState.
// Every mutation runs inside Run's loop via the actions channel — the
// single-owner-goroutine shape spec §5 requires ("no suspension occurs
// while holding a mutation on RuntimeMatchState across awaits") — so no
// mutex guards the state itself.
type Room struct {
	state *RuntimeMatchState
	cfg   matchmaking.MatchConfig

	wireRoom *wire.Room
	gateway  storage.Gateway

	actions chan func()
	done    chan struct{}

	clock      func() time.Time
	onComplete func(matchID string)

	reconnectGrace time.Duration
	submitGrace    time.Duration

	telem *telemetry.Registry

	pendingTimers []*time.Timer
}

// Option configures a Room at construction, chiefly for test control over
// the grace-period timers that default to the spec §6 constants.
type Option func(*Room)

// WithClock overrides the wall clock used for "now" comparisons.
func WithClock(clock func() time.Time) Option {
	return func(r *Room) { r.clock = clock }
}

// WithReconnectGrace overrides ReconnectGraceMs, for tests that exercise
// the disconnect-forfeit path without waiting 30 real seconds.
func WithReconnectGrace(d time.Duration) Option {
	return func(r *Room) { r.reconnectGrace = d }
}

// WithSubmitGrace overrides SubmitGraceMs likewise.
func WithSubmitGrace(d time.Duration) Option {
	return func(r *Room) { r.submitGrace = d }
}

// WithTelemetry attaches the operational metrics registry used for
// placement-completed and Apex promotion/demotion counters at
// finalisation. A nil registry is a valid no-op default.
func WithTelemetry(reg *telemetry.Registry) Option {
	return func(r *Room) { r.telem = reg }
}

// NewRoom builds a Room in PhaseLobby for a freshly-paired match. gateway
// may be nil only in tests that never reach finalisation.
func NewRoom(cfg matchmaking.MatchConfig, gateway storage.Gateway, onComplete func(matchID string), opts ...Option) *Room {
	r := &Room{
		state:          newRuntimeMatchState(cfg),
		cfg:            cfg,
		wireRoom:       wire.NewRoom(),
		gateway:        gateway,
		actions:        make(chan func(), 64),
		done:           make(chan struct{}),
		clock:          time.Now,
		onComplete:     onComplete,
		reconnectGrace: ReconnectGraceMs * time.Millisecond,
		submitGrace:    SubmitGraceMs * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the actions channel until Close is called. Call it in its
// own goroutine; it is the room's sole owner goroutine.
func (r *Room) Run() {
	for {
		select {
		case fn := <-r.actions:
			fn()
		case <-r.done:
			return
		}
	}
}

// Close stops Run and cancels any pending timers. It is not idempotent:
// a second call panics on the already-closed done channel, so callers
// must only Close once. completeMatch removes the room from its Manager
// (via onComplete) before closing it.
func (r *Room) Close() {
	for _, t := range r.pendingTimers {
		t.Stop()
	}
	close(r.done)
}

func (r *Room) post(fn func()) {
	select {
	case r.actions <- fn:
	case <-r.done:
	}
}

func (r *Room) scheduleAfter(d time.Duration, fn func()) {
	t := time.AfterFunc(d, func() { r.post(fn) })
	r.pendingTimers = append(r.pendingTimers, t)
}

// --- connection lifecycle -------------------------------------------------

// Join registers conn as userID's socket and, once both participants have
// joined, advances lobby → prep (spec §4.5). Reconnection into an
// in-progress match instead emits match_state_recovery.
func (r *Room) Join(userID string, conn *wire.Conn) {
	r.post(func() {
		if userID != r.state.UserA && userID != r.state.UserB {
			conn.Send(wire.NewError("not in match"))
			return
		}

		r.wireRoom.Join(userID, conn)
		r.state.Connected[userID] = true

		if r.state.Finalized {
			conn.Send(wire.NewError("not in match"))
			return
		}

		r.state.Joined[userID] = true

		if r.state.Phase != PhaseLobby {
			r.sendRecovery(userID)
		} else {
			roundText := textgen.Generate(textgen.RoundSeed(r.state.Seed, r.state.CurrentRound), r.state.TextLength, textgen.Difficulty(r.state.Difficulty), r.state.Punctuation)
			conn.Send(wire.NewGeneric(wire.OutJoined, JoinedPayload{
				MatchID:      r.state.MatchID,
				RoundNumber:  r.state.CurrentRound,
				RoundText:    roundText,
				RoundStartAt: r.cfg.StartAt.UnixMilli(),
			}))
		}

		r.wireRoom.SendTo(r.state.opponent(userID), wire.NewGeneric(wire.OutOpponentJoined, OpponentJoinedPayload{OpponentUserID: userID}))

		r.tryEnterPrep()
	})
}

func (r *Room) sendRecovery(userID string) {
	opponent := r.state.opponent(userID)
	var progress *ProgressSnapshot
	if p, ok := r.state.LastProgress[opponent]; ok {
		p := p
		progress = &p
	}
	_, opponentSubmitted := r.state.Submissions[opponent]

	r.wireRoom.SendTo(userID, wire.NewGeneric(wire.OutMatchStateRecovery, MatchStateRecoveryPayload{
		ServerTimeMs:         r.clock().UnixMilli(),
		RoundNumber:          r.state.CurrentRound,
		RoundStartAtMs:       r.state.RoundStartAt.UnixMilli(),
		MaxRounds:            r.state.MaxRounds,
		RoundWins:            copyIntMap(r.state.RoundWins),
		OvertimeActive:       r.state.OvertimeActive,
		DrawWindowOpen:       r.state.DrawWindowOpen,
		HP:                   copyIntMap(r.state.PlayerHP),
		OpponentProgress:     progress,
		OpponentHasSubmitted: opponentSubmitted,
	}))
}

// Disconnect marks userID's socket gone and starts the reconnect-grace
// forfeit timer if the match is still live.
func (r *Room) Disconnect(userID string) {
	r.post(func() {
		if r.state.Finalized {
			return
		}
		r.state.Connected[userID] = false
		r.wireRoom.SendTo(r.state.opponent(userID), wire.NewGeneric(wire.OutOpponentLeft, OpponentLeftPayload{OpponentUserID: userID}))

		r.scheduleAfter(r.reconnectGrace, func() {
			if r.state.Finalized || r.state.Connected[userID] {
				return
			}
			r.forfeit(userID)
		})
	})
}

func (r *Room) tryEnterPrep() {
	if r.state.Phase != PhaseLobby {
		return
	}
	if !r.state.Joined[r.state.UserA] || !r.state.Joined[r.state.UserB] {
		return
	}
	r.state.Phase = PhasePrep

	delay := r.cfg.StartAt.Sub(r.clock())
	if delay < 0 {
		delay = 0
	}
	r.scheduleAfter(delay, r.enterCountdown)
}

func (r *Room) enterCountdown() {
	if r.state.Finalized || (r.state.Phase != PhasePrep && r.state.Phase != PhaseBreak) {
		return
	}
	r.state.Phase = PhaseCountdown
	r.scheduleAfter(time.Duration(r.state.CountdownSeconds)*time.Second, r.enterTyping)
}

func (r *Room) enterTyping() {
	if r.state.Finalized {
		return
	}
	r.state.Phase = PhaseTyping
	r.state.RoundStartAt = r.clock()

	deadline := time.Duration(r.state.RoundTimeSeconds)*time.Second + r.submitGrace
	r.scheduleAfter(deadline, func() { r.resolveRound("deadline") })
}

// --- gameplay ingress ------------------------------------------------------

// Progress relays a mid-round progress update to the opponent (spec
// §4.6); it is accepted only during PhaseTyping.
func (r *Room) Progress(userID string, f wire.InboundFrame) {
	r.post(func() {
		if r.state.Finalized || r.state.Phase != PhaseTyping {
			return
		}
		snap := ProgressSnapshot{
			ProgressIndex: f.ProgressIndex,
			TypedLength:   f.TypedLength,
			MistakesCount: f.MistakesCount,
			ElapsedMs:     f.ElapsedMs,
		}
		r.state.LastProgress[userID] = snap
		r.wireRoom.SendTo(r.state.opponent(userID), wire.NewGeneric(wire.OutOpponentProgress, OpponentProgressPayload{
			ProgressIndex: snap.ProgressIndex,
			TypedLength:   snap.TypedLength,
			MistakesCount: snap.MistakesCount,
			ElapsedMs:     snap.ElapsedMs,
		}))
	})
}

// Submit ingests a result frame: at most one per (matchId, userId) per
// round (spec invariant 4), rejected past the round deadline.
func (r *Room) Submit(userID string, f wire.InboundFrame) {
	r.post(func() {
		if r.state.Finalized {
			return
		}
		if r.state.Phase != PhaseTyping {
			r.wireRoom.SendTo(userID, wire.NewError("not in match"))
			return
		}
		if _, ok := r.state.Submissions[userID]; ok {
			r.wireRoom.SendTo(userID, wire.NewError("already submitted"))
			return
		}
		deadline := r.state.RoundStartAt.Add(time.Duration(r.state.RoundTimeSeconds)*time.Second + r.submitGrace)
		if r.clock().After(deadline) {
			r.wireRoom.SendTo(userID, wire.NewError("submission past deadline"))
			return
		}

		r.state.Submissions[userID] = metrics.Submission{
			Typed:           f.Typed,
			ElapsedMs:       f.ElapsedMs,
			Samples:         f.Samples,
			TotalErrors:     f.TotalErrors,
			TotalKeystrokes: f.TotalKeystrokes,
		}
		r.wireRoom.SendTo(userID, wire.NewGeneric(wire.OutResultReceived, ResultReceivedPayload{RoundNumber: r.state.CurrentRound}))
		r.wireRoom.SendTo(r.state.opponent(userID), wire.NewGeneric(wire.OutOpponentFinished, OpponentFinishedPayload{}))

		if r.state.bothSubmitted() {
			r.resolveRound("both-submitted")
		}
	})
}

// Forfeit handles an explicit forfeit frame.
func (r *Room) Forfeit(userID string) {
	r.post(func() {
		if r.state.Finalized {
			return
		}
		r.forfeit(userID)
	})
}

func (r *Room) forfeit(userID string) {
	r.state.ForfeitedUserID = userID
	r.state.PlayerHP[userID] = 0
	r.completeMatch(r.state.opponent(userID), false)
}

// DrawVote handles a draw_vote frame, only meaningful while the overtime
// draw window is open (spec §4.5).
func (r *Room) DrawVote(userID string, vote string) {
	r.post(func() {
		if r.state.Finalized || !r.state.DrawWindowOpen {
			return
		}
		r.state.DrawVotes[userID] = vote
		if vote == "continue" {
			r.state.DrawWindowOpen = false
			r.state.DrawVotes = map[string]string{}
			return
		}
		if r.state.DrawVotes[r.state.opponent(userID)] == "draw" {
			r.completeMatch("", true)
		}
	})
}

// --- round resolution -------------------------------------------------------

func (r *Room) resolveRound(trigger string) {
	if r.state.Finalized || r.state.Phase != PhaseTyping {
		return
	}
	r.state.Phase = PhaseResolving

	roundText := textgen.Generate(textgen.RoundSeed(r.state.Seed, r.state.CurrentRound), r.state.TextLength, textgen.Difficulty(r.state.Difficulty), r.state.Punctuation)

	roundMetrics := map[string]metrics.Round{}
	combat := map[string]float64{}
	typedLens := map[string]int{}
	errCounts := map[string]int{}

	for _, uid := range [2]string{r.state.UserA, r.state.UserB} {
		sub, ok := r.state.Submissions[uid]
		if !ok {
			sub = metrics.Submission{ElapsedMs: r.state.RoundTimeSeconds * 1000}
		}
		sub.TargetText = roundText
		sub.Typed = metrics.ApplyPlausibilityGuard(sub.Typed, sub.ElapsedMs, metrics.MaxCharsPerSecondRanked, len(roundText))

		rm := metrics.Compute(sub)
		roundMetrics[uid] = rm
		typedLens[uid] = len(sub.Typed)
		if sub.TotalErrors != nil {
			errCounts[uid] = *sub.TotalErrors
		}

		opponentRating := r.state.PlayerRatings[r.state.opponent(uid)]
		combat[uid] = metrics.CombatScore(rm.WPM, rm.Accuracy, &opponentRating)
	}

	a, b := combat[r.state.UserA], combat[r.state.UserB]
	damage := map[string]int{r.state.UserA: 0, r.state.UserB: 0}
	var roundWinner string

	switch {
	case a > b:
		dmg := metrics.Damage(a, b)
		damage[r.state.UserB] = dmg
		r.state.PlayerHP[r.state.UserB] = floorZero(r.state.PlayerHP[r.state.UserB] - dmg)
		r.state.RoundWins[r.state.UserA]++
		roundWinner = r.state.UserA
	case b > a:
		dmg := metrics.Damage(b, a)
		damage[r.state.UserA] = dmg
		r.state.PlayerHP[r.state.UserA] = floorZero(r.state.PlayerHP[r.state.UserA] - dmg)
		r.state.RoundWins[r.state.UserB]++
		roundWinner = r.state.UserB
	}

	for _, uid := range [2]string{r.state.UserA, r.state.UserB} {
		r.state.Aggregates[uid].addRound(roundMetrics[uid], typedLens[uid], errCounts[uid], damage[r.state.opponent(uid)], damage[uid])
	}
	r.state.LastCombatScores = combat

	log.Debug().Str("matchId", r.state.MatchID).Int("round", r.state.CurrentRound).Str("trigger", trigger).Msg("match: round resolved")

	completedRound := r.state.CurrentRound
	r.state.maybeEnterOvertime()

	anyKO := r.state.PlayerHP[r.state.UserA] <= 0 || r.state.PlayerHP[r.state.UserB] <= 0
	stalemate := r.state.RoundWins[r.state.UserA] >= regulationWinsToOvertime && r.state.RoundWins[r.state.UserB] >= regulationWinsToOvertime

	if anyKO {
		r.broadcastRoundEnd(roundWinner, combat, damage, 0, "")
		koWinner := r.koWinner()
		r.completeMatch(koWinner, koWinner == "")
		return
	}

	if completedRound == regulationRounds && !stalemate {
		r.broadcastRoundEnd(roundWinner, combat, damage, 0, "")
		tiebreakWinner := r.hpTiebreakWinner()
		r.completeMatch(tiebreakWinner, tiebreakWinner == "")
		return
	}

	r.state.DrawWindowOpen = r.state.drawWindowShouldOpen()
	if r.state.DrawWindowOpen {
		r.state.DrawVotes = map[string]string{}
	}

	r.state.CurrentRound = completedRound + 1
	r.state.resetRound()

	nextText := textgen.Generate(textgen.RoundSeed(r.state.Seed, r.state.CurrentRound), r.state.TextLength, textgen.Difficulty(r.state.Difficulty), r.state.Punctuation)
	breakDelay := time.Duration(r.state.BreakSeconds) * time.Second
	countdownDelay := time.Duration(r.state.CountdownSeconds) * time.Second
	r.broadcastRoundEnd(roundWinner, combat, damage, r.clock().Add(breakDelay+countdownDelay).UnixMilli(), nextText)

	r.state.Phase = PhaseBreak
	r.scheduleAfter(breakDelay, r.enterCountdown)
}

func (r *Room) broadcastRoundEnd(roundWinner string, combat map[string]float64, damage map[string]int, nextStartMs int64, nextText string) {
	r.wireRoom.Broadcast(wire.NewGeneric(wire.OutRoundEnd, RoundEndPayload{
		RoundNumber:    r.state.CurrentRound,
		CombatScores:   combat,
		Damage:         damage,
		HP:             copyIntMap(r.state.PlayerHP),
		RoundWinnerID:  roundWinner,
		NextRoundText:  nextText,
		NextRoundStart: nextStartMs,
		DrawWindowOpen: r.state.DrawWindowOpen,
	}))
}

func (r *Room) koWinner() string {
	if r.state.PlayerHP[r.state.UserA] <= 0 && r.state.PlayerHP[r.state.UserB] <= 0 {
		return ""
	}
	if r.state.PlayerHP[r.state.UserA] <= 0 {
		return r.state.UserB
	}
	return r.state.UserA
}

func (r *Room) hpTiebreakWinner() string {
	hpA, hpB := r.state.PlayerHP[r.state.UserA], r.state.PlayerHP[r.state.UserB]
	if hpA == hpB {
		return ""
	}
	if hpA > hpB {
		return r.state.UserA
	}
	return r.state.UserB
}

// completeMatch is the single idempotent entry point into finalisation
// (spec §4.5's "exactly once per match, idempotent against re-entry").
func (r *Room) completeMatch(winner string, draw bool) {
	if r.state.Finalized {
		return
	}
	r.state.Finalized = true
	r.state.Phase = PhaseComplete
	r.state.WinnerUserID = winner

	r.wireRoom.Broadcast(wire.NewGeneric(wire.OutMatchComplete, MatchCompletePayload{
		WinnerUserID:    winner,
		Draw:            draw,
		ForfeitedUserID: r.state.ForfeitedUserID,
		FinalHP:         copyIntMap(r.state.PlayerHP),
	}))

	if err := r.finalize(context.Background(), winner, draw); err != nil {
		log.Error().Err(err).Str("matchId", r.state.MatchID).Msg("match: finalisation failed")
	}

	r.wireRoom.CloseAll()
	if r.onComplete != nil {
		r.onComplete(r.state.MatchID)
	}
	r.Close()
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
