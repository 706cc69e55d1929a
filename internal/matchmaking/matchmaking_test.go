package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		ids := []string{"id-1", "id-2", "id-3", "id-4", "id-5", "id-6"}
		return ids[(n-1)%len(ids)]
	}
}

func TestJoinThenTickPairsClosestRatings(t *testing.T) {
	now := time.Now()
	svc := NewService(WithClock(fixedClock(now)), WithIDGenerator(sequentialIDs()))

	svc.Join("alice", 1000)
	svc.Join("bob", 1050)
	svc.Join("carol", 1900)

	configs := svc.Tick()
	require.Len(t, configs, 1)
	pair := configs[0]
	gotPair := map[string]bool{pair.UserIDA: true, pair.UserIDB: true}
	assert.True(t, gotPair["alice"])
	assert.True(t, gotPair["bob"])
	assert.Equal(t, 1, svc.QueueDepth()) // carol remains
}

func TestSecondJoinReplacesWaiter(t *testing.T) {
	now := time.Now()
	svc := NewService(WithClock(fixedClock(now)))
	svc.Join("alice", 1000)
	svc.Join("alice", 1900)
	assert.Equal(t, 1, svc.QueueDepth())
}

func TestLeaveRemovesWaiter(t *testing.T) {
	svc := NewService()
	svc.Join("alice", 1000)
	svc.Leave("alice")
	assert.Equal(t, 0, svc.QueueDepth())
}

func TestPairingDeterministicGivenIdenticalInputs(t *testing.T) {
	now := time.Now()
	run := func() []MatchConfig {
		svc := NewService(WithClock(fixedClock(now)), WithIDGenerator(sequentialIDs()))
		svc.Join("alice", 1000)
		svc.Join("bob", 1050)
		svc.Join("carol", 1060)
		svc.Join("dave", 2000)
		return svc.Tick()
	}

	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].UserIDA, second[i].UserIDA)
		assert.Equal(t, first[i].UserIDB, second[i].UserIDB)
	}
}

func TestOutOfWindowWaitersDoNotPairUntilWindowGrows(t *testing.T) {
	base := time.Now()
	clock := base
	svc := NewService(WithClock(func() time.Time { return clock }))

	svc.Join("alice", 1000)
	svc.Join("bob", 1500) // gap 500, far beyond the base window

	assert.Empty(t, svc.Tick())

	// Advance the clock (not the join times) so each waiter's window has
	// grown past the rating gap.
	clock = base.Add(60 * time.Second)
	assert.NotEmpty(t, svc.Tick())
}

func TestMatchConfigDefaults(t *testing.T) {
	now := time.Now()
	svc := NewService(WithClock(fixedClock(now)), WithIDGenerator(sequentialIDs()))
	svc.Join("alice", 1000)
	svc.Join("bob", 1010)

	configs := svc.Tick()
	require.Len(t, configs, 1)
	got := configs[0]

	assert.Equal(t, DefaultMaxRounds, got.MaxRounds)
	assert.Equal(t, DefaultRoundTimeSeconds, got.RoundTimeSeconds)
	assert.Equal(t, now.Add(DefaultPrepSeconds*time.Second), got.StartAt)
	assert.Len(t, got.PlayerRatings, 2)
}
