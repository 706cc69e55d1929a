package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(userID string) *Conn {
	return &Conn{
		UserID: userID,
		send:   make(chan OutboundFrame, 8),
		closed: make(chan struct{}),
	}
}

func TestRoomJoinAndGet(t *testing.T) {
	r := NewRoom()
	c := newTestConn("alice")
	replaced := r.Join("alice", c)
	assert.Nil(t, replaced)

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRoomJoinReplacesExistingIdempotently(t *testing.T) {
	r := NewRoom()
	first := newTestConn("alice")
	second := newTestConn("alice")

	r.Join("alice", first)
	replaced := r.Join("alice", second)

	require.NotNil(t, replaced)
	assert.Same(t, first, replaced)

	got, _ := r.Get("alice")
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Connected())
}

func TestRoomLeaveOnlyRemovesMatchingConn(t *testing.T) {
	r := NewRoom()
	first := newTestConn("alice")
	second := newTestConn("alice")

	r.Join("alice", first)
	r.Join("alice", second)

	// Stale Leave for the replaced connection must not evict the new one.
	r.Leave("alice", first)
	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, second, got)

	r.Leave("alice", second)
	_, ok = r.Get("alice")
	assert.False(t, ok)
}

func TestRoomBroadcastDeliversToAllMembers(t *testing.T) {
	r := NewRoom()
	a := newTestConn("alice")
	b := newTestConn("bob")
	r.Join("alice", a)
	r.Join("bob", b)

	r.Broadcast(NewError("test"))

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}

func TestRoomSendToOnlyTargetsNamedUser(t *testing.T) {
	r := NewRoom()
	a := newTestConn("alice")
	b := newTestConn("bob")
	r.Join("alice", a)
	r.Join("bob", b)

	r.SendTo("alice", NewError("only alice"))

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 0)
}

func TestRoomCloseAllEmptiesRoom(t *testing.T) {
	r := NewRoom()
	a := newTestConn("alice")
	r.Join("alice", a)

	r.CloseAll()

	assert.Equal(t, 0, r.Connected())
	select {
	case <-a.closed:
	default:
		t.Fatal("expected connection to be closed")
	}
}
