package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velotype/velotype/internal/matchmaking"
	"github.com/velotype/velotype/internal/model"
	"github.com/velotype/velotype/internal/storage"
	"github.com/velotype/velotype/internal/textgen"
	"github.com/velotype/velotype/internal/wire"
)

func testConfig(matchID string) matchmaking.MatchConfig {
	return matchmaking.MatchConfig{
		MatchID:          matchID,
		Seed:             "seed-" + matchID,
		UserIDA:          "alice",
		UserIDB:          "bob",
		Mode:             "ranked",
		RoundTimeSeconds: 15,
		TextLength:       60,
		Difficulty:       textgen.Medium,
		Punctuation:      false,
		StartAt:          time.Now(),
		MaxRounds:        6,
		PrepSeconds:      0,
		CountdownSeconds: 0,
		BreakSeconds:     0,
		PlayerRatings:    map[string]int{"alice": 1200, "bob": 1200},
	}
}

// drain blocks until every action posted before this call has been
// processed by the room's owner goroutine, by posting a trailing no-op
// and waiting for it to run. Safe to call even after the room has closed.
func drain(r *Room) {
	done := make(chan struct{})
	r.post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func waitForPhase(t *testing.T, r *Room, phase Phase, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		drain(r)
		if r.state.Phase == phase {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase never reached %s (stuck at %s)", phase, r.state.Phase)
}

func waitForFinalized(t *testing.T, r *Room, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		drain(r)
		if r.state.Finalized {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("match never finalized")
}

// seedPendingMatch mirrors what Manager.Start persists before a Room ever
// runs, so finalize's RecordMatch call has a pending row to flip to
// completed.
func seedPendingMatch(t *testing.T, gateway storage.Gateway, cfg matchmaking.MatchConfig) {
	t.Helper()
	err := gateway.CreateMatch(context.Background(),
		model.Match{ID: cfg.MatchID, Seed: cfg.Seed, Mode: cfg.Mode, RoundTimeSeconds: cfg.RoundTimeSeconds, Status: model.MatchPending},
		model.MatchPlayer{MatchID: cfg.MatchID, UserID: cfg.UserIDA},
		model.MatchPlayer{MatchID: cfg.MatchID, UserID: cfg.UserIDB},
	)
	require.NoError(t, err)
}

func roundTextFor(cfg matchmaking.MatchConfig, round int) string {
	return textgen.Generate(textgen.RoundSeed(cfg.Seed, round), cfg.TextLength, cfg.Difficulty, cfg.Punctuation)
}

func drainOutbox(c *wire.Conn) []wire.OutboundFrame {
	var frames []wire.OutboundFrame
	for {
		select {
		case f := <-c.Outbox():
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func containsKind(frames []wire.OutboundFrame, kind wire.OutboundKind) bool {
	for _, f := range frames {
		if f.Type == kind {
			return true
		}
	}
	return false
}

// TestDuelResolvesByKnockout drives a full match where alice dominates
// every round (types the exact round text at a generous pace while bob
// submits an empty result), so bob's HP should hit zero well inside the regulation
// six rounds and finalisation should persist a placement game for both
// sides (spec §4.2/§4.5, scenario: ranked duel to knockout).
func TestDuelResolvesByKnockout(t *testing.T) {
	cfg := testConfig("match-ko")
	gateway := storage.NewMemoryGateway()
	seedPendingMatch(t, gateway, cfg)
	doneCh := make(chan string, 1)

	r := NewRoom(cfg, gateway, func(matchID string) { doneCh <- matchID }, WithSubmitGrace(2*time.Second))
	go r.Run()

	connA := wire.NewDetachedConn("alice")
	connB := wire.NewDetachedConn("bob")

	r.Join("alice", connA)
	r.Join("bob", connB)

	for round := 0; round < 6; round++ {
		waitForPhase(t, r, PhaseTyping, time.Second)
		if r.state.Finalized {
			break
		}

		text := roundTextFor(cfg, r.state.CurrentRound)
		errs := 0
		keystrokes := len(text)
		r.Submit("alice", wire.InboundFrame{
			Type:            wire.InResult,
			Typed:           text,
			ElapsedMs:       10000,
			TotalErrors:     &errs,
			TotalKeystrokes: &keystrokes,
		})
		r.Submit("bob", wire.InboundFrame{
			Type:      wire.InResult,
			Typed:     "",
			ElapsedMs: 10000,
		})

		drain(r)
		if r.state.Finalized {
			break
		}
	}

	select {
	case matchID := <-doneCh:
		assert.Equal(t, "match-ko", matchID)
	case <-time.After(2 * time.Second):
		t.Fatal("match never completed")
	}

	assert.Equal(t, "alice", r.state.WinnerUserID)
	assert.Empty(t, r.state.ForfeitedUserID)
	assert.LessOrEqual(t, r.state.PlayerHP["bob"], 0)

	aliceRating, err := gateway.GetRating(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, aliceRating.PlacementGamesPlayed)

	framesA := drainOutbox(connA)
	assert.True(t, containsKind(framesA, wire.OutMatchComplete))

	// The winner dealt all the damage and took none; the loser is the
	// reverse. A prior bug swapped these two fields on the way into
	// addRound, which §8-property-1's symmetry check alone doesn't catch
	// since both sides of that check land on the same total either way.
	alicePlayers, err := gateway.RecentMatchPlayers(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.Len(t, alicePlayers, 1)
	bobPlayers, err := gateway.RecentMatchPlayers(context.Background(), "bob", 1)
	require.NoError(t, err)
	require.Len(t, bobPlayers, 1)

	assert.Positive(t, alicePlayers[0].DamageDealt)
	assert.Zero(t, alicePlayers[0].DamageTaken)
	assert.Zero(t, bobPlayers[0].DamageDealt)
	assert.Equal(t, alicePlayers[0].DamageDealt, bobPlayers[0].DamageTaken)
}

// TestKoWinnerDrawsOnSimultaneousZeroHP exercises completeMatch's draw
// branch directly: koWinner must report no winner (rather than picking
// one side arbitrarily) if both players' HP are already at zero, and
// completeMatch must record that as a draw rather than a loss for both.
func TestKoWinnerDrawsOnSimultaneousZeroHP(t *testing.T) {
	cfg := testConfig("match-simultaneous-ko")
	gateway := storage.NewMemoryGateway()
	seedPendingMatch(t, gateway, cfg)
	r := NewRoom(cfg, gateway, nil)
	r.state.PlayerHP["alice"] = 0
	r.state.PlayerHP["bob"] = 0

	assert.Empty(t, r.koWinner())

	go r.Run()
	winner := r.koWinner()
	done := make(chan struct{})
	r.post(func() {
		r.completeMatch(winner, winner == "")
		close(done)
	})
	<-done

	assert.True(t, r.state.Finalized)
	assert.Empty(t, r.state.WinnerUserID)

	playerA, err := gateway.RecentMatchPlayers(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.Len(t, playerA, 1)
	assert.Equal(t, model.ResultDraw, playerA[0].Result)
}

// TestDrawVoteEndsMatchAsDraw covers the overtime draw-window path: once
// both participants vote draw while the window is open, the match ends
// immediately without a winner (spec §4.5).
func TestDrawVoteEndsMatchAsDraw(t *testing.T) {
	cfg := testConfig("match-draw-vote")
	r := NewRoom(cfg, nil, nil)
	r.state.DrawWindowOpen = true
	go r.Run()

	r.DrawVote("alice", "draw")
	r.DrawVote("bob", "draw")

	waitForFinalized(t, r, time.Second)
	assert.Empty(t, r.state.WinnerUserID)
}

// TestContinueVoteClosesDrawWindow confirms a single continue vote shuts
// the draw window rather than leaving it open for a delayed draw vote.
func TestContinueVoteClosesDrawWindow(t *testing.T) {
	cfg := testConfig("match-continue-vote")
	r := NewRoom(cfg, nil, nil)
	r.state.DrawWindowOpen = true
	go r.Run()

	r.DrawVote("alice", "continue")
	drain(r)

	assert.False(t, r.state.DrawWindowOpen)
	assert.False(t, r.state.Finalized)
}

// TestReconnectWithinGraceSendsRecovery covers scenario S6's happy path:
// a mid-round disconnect followed by a reconnect inside the grace window
// must not forfeit the match, and the reconnecting socket must receive a
// match_state_recovery frame describing where the match currently stands.
func TestReconnectWithinGraceSendsRecovery(t *testing.T) {
	cfg := testConfig("match-reconnect")
	r := NewRoom(cfg, nil, nil, WithReconnectGrace(150*time.Millisecond))
	go r.Run()

	connA := wire.NewDetachedConn("alice")
	connB := wire.NewDetachedConn("bob")
	r.Join("alice", connA)
	r.Join("bob", connB)
	waitForPhase(t, r, PhaseTyping, time.Second)

	r.Disconnect("bob")
	drain(r)
	assert.False(t, r.state.Finalized)

	reJoin := wire.NewDetachedConn("bob")
	r.Join("bob", reJoin)
	drain(r)

	time.Sleep(200 * time.Millisecond)
	drain(r)

	assert.False(t, r.state.Finalized)
	frames := drainOutbox(reJoin)
	assert.True(t, containsKind(frames, wire.OutMatchStateRecovery))
}

// TestDisconnectPastGraceForfeits covers scenario S6's unhappy path: if
// the disconnected player never reconnects before ReconnectGrace elapses,
// the match must finalize as a forfeit in the opponent's favor.
func TestDisconnectPastGraceForfeits(t *testing.T) {
	cfg := testConfig("match-forfeit")
	gateway := storage.NewMemoryGateway()
	seedPendingMatch(t, gateway, cfg)
	doneCh := make(chan string, 1)
	r := NewRoom(cfg, gateway, func(matchID string) { doneCh <- matchID }, WithReconnectGrace(50*time.Millisecond))
	go r.Run()

	connA := wire.NewDetachedConn("alice")
	connB := wire.NewDetachedConn("bob")
	r.Join("alice", connA)
	r.Join("bob", connB)
	waitForPhase(t, r, PhaseTyping, time.Second)

	r.Disconnect("bob")

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("match never finalized after reconnect grace lapsed")
	}

	assert.Equal(t, "bob", r.state.ForfeitedUserID)
	assert.Equal(t, "alice", r.state.WinnerUserID)
	assert.Equal(t, 0, r.state.PlayerHP["bob"])

	matchPlayers, err := gateway.RecentMatchPlayers(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, matchPlayers, 1)
	assert.Equal(t, model.ResultWin, matchPlayers[0].Result)
}
