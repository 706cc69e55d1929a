package httpapi

import (
	"sync"

	"github.com/velotype/velotype/internal/wire"
)

// connRegistry tracks the live socket per authenticated user and, once a
// join frame binds it, the match that connection belongs to. Duplicate
// joins from the same user replace the prior entry and close the old
// socket (spec §4.6 idempotence rule).
type connRegistry struct {
	mu       sync.Mutex
	byUser   map[string]*wire.Conn
	matchOf  map[string]string
}

func newConnRegistry() *connRegistry {
	return &connRegistry{byUser: make(map[string]*wire.Conn), matchOf: make(map[string]string)}
}

// attach registers conn for userID, closing and replacing any existing
// socket for that user.
func (r *connRegistry) attach(userID string, conn *wire.Conn) {
	r.mu.Lock()
	old, had := r.byUser[userID]
	r.byUser[userID] = conn
	r.mu.Unlock()

	if had && old != conn {
		old.Close()
	}
}

// detach removes userID's entry, but only if conn is still the
// registered socket (a reconnect may have already replaced it).
func (r *connRegistry) detach(userID string, conn *wire.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.byUser[userID]; ok && current == conn {
		delete(r.byUser, userID)
		delete(r.matchOf, userID)
	}
}

func (r *connRegistry) get(userID string) (*wire.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUser[userID]
	return c, ok
}

func (r *connRegistry) bindMatch(userID, matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchOf[userID] = matchID
}

func (r *connRegistry) matchFor(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matchOf[userID]
	return m, ok
}
