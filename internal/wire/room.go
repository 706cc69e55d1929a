package wire

import (
	"sync"
)

// Room holds the live connections for one match (spec §4.6: "duplicate
// join from the same user replaces the existing socket idempotently").
// The match orchestrator owns match lifecycle; Room only owns the
// transport fan-out, mirroring the split between providers.kraken (pure
// transport) and the strategy/orchestration packages above it in the
// teacher repo.
type Room struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewRoom builds an empty room.
func NewRoom() *Room {
	return &Room{conns: make(map[string]*Conn)}
}

// Join installs conn as userID's active connection. If a connection was
// already registered for that user it is closed first, so a reconnect
// (new socket, same user) always wins over the stale one rather than
// racing it.
func (r *Room) Join(userID string, conn *Conn) (replaced *Conn) {
	r.mu.Lock()
	if existing, ok := r.conns[userID]; ok {
		replaced = existing
	}
	r.conns[userID] = conn
	r.mu.Unlock()

	if replaced != nil && replaced != conn {
		replaced.Close()
	}
	return replaced
}

// Leave removes userID's connection if it is still the one passed in
// (guards against a Leave racing behind a newer Join for the same user).
func (r *Room) Leave(userID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == conn {
		delete(r.conns, userID)
	}
}

// Get returns the currently registered connection for userID, if any.
func (r *Room) Get(userID string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	return c, ok
}

// SendTo delivers frame to userID's connection, if currently connected.
// Silently a no-op otherwise: the match orchestrator is the source of
// truth for whether a disconnected player is still "in" the match, not
// the transport layer.
func (r *Room) SendTo(userID string, frame OutboundFrame) {
	if c, ok := r.Get(userID); ok {
		c.Send(frame)
	}
}

// Broadcast delivers frame to every currently-connected member.
func (r *Room) Broadcast(frame OutboundFrame) {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Send(frame)
	}
}

// Connected reports how many members currently have a live socket.
func (r *Room) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every connection, used when a match finalises.
func (r *Room) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
