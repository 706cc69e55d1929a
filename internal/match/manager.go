package match

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velotype/velotype/internal/matchmaking"
	"github.com/velotype/velotype/internal/model"
	"github.com/velotype/velotype/internal/storage"
	"github.com/velotype/velotype/internal/telemetry"
	"github.com/velotype/velotype/internal/wire"
)

// Manager is the process-scoped registry of live Rooms, the explicit
// "clean Start/Stop lifecycle, no ambient globals" re-architecture spec
// §9 calls for in place of an in-source rooms-map singleton.
type Manager struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	gateway storage.Gateway
	telem   *telemetry.Registry
}

// NewManager builds an empty registry backed by gateway for match
// creation and finalisation writes. telem may be nil outside of a fully
// wired process (e.g. in unit tests).
func NewManager(gateway storage.Gateway, telem *telemetry.Registry) *Manager {
	return &Manager{rooms: make(map[string]*Room), gateway: gateway, telem: telem}
}

// Start persists the pending Match + MatchPlayer shells (spec §4.4 item
// 3) and launches a Room's owner goroutine for a freshly-paired
// MatchConfig. Called for each config returned by matchmaking.Service.Tick.
func (m *Manager) Start(cfg matchmaking.MatchConfig) {
	if m.gateway != nil {
		if err := m.gateway.CreateMatch(context.Background(),
			model.Match{
				ID:               cfg.MatchID,
				Seed:             cfg.Seed,
				Mode:             cfg.Mode,
				RoundTimeSeconds: cfg.RoundTimeSeconds,
				Status:           model.MatchPending,
				CreatedAt:        time.Now(),
			},
			model.MatchPlayer{MatchID: cfg.MatchID, UserID: cfg.UserIDA},
			model.MatchPlayer{MatchID: cfg.MatchID, UserID: cfg.UserIDB},
		); err != nil {
			log.Error().Err(err).Str("matchId", cfg.MatchID).Msg("match: failed to persist pending match")
		}
	}

	room := NewRoom(cfg, m.gateway, m.remove, WithTelemetry(m.telem))

	m.mu.Lock()
	m.rooms[cfg.MatchID] = room
	m.mu.Unlock()
	if m.telem != nil {
		m.telem.ActiveRooms.Inc()
	}

	go room.Run()
}

func (m *Manager) remove(matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, matchID)
	if m.telem != nil {
		m.telem.ActiveRooms.Dec()
	}
}

// Get returns the live Room for matchID, if any.
func (m *Manager) Get(matchID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[matchID]
	return r, ok
}

// Count reports the number of currently in-progress matches, for
// operational metrics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// CloseAll stops every still-running Room's owner goroutine without
// finalising a result, for process shutdown once the reconnect-grace
// drain window has elapsed: an in-progress match at restart is treated
// as abandoned per spec, so nothing here attempts to persist a result.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}

// Dispatch routes one inbound frame from an already-authenticated
// connection to the named match's Room. Call from the connection layer's
// Handler after a `join` frame has resolved matchId, or using the
// connection's remembered matchId for subsequent frames.
func (m *Manager) Dispatch(matchID, userID string, conn *wire.Conn, f wire.InboundFrame) {
	room, ok := m.Get(matchID)
	if !ok {
		conn.Send(wire.NewError("not in match"))
		return
	}

	switch f.Type {
	case wire.InJoin:
		room.Join(userID, conn)
	case wire.InProgress:
		room.Progress(userID, f)
	case wire.InResult:
		room.Submit(userID, f)
	case wire.InForfeit:
		room.Forfeit(userID)
	case wire.InDrawVote:
		room.DrawVote(userID, f.Vote)
	}
}
