package httpapi

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/velotype/velotype/internal/model"
	"github.com/velotype/velotype/internal/rating"
	"github.com/velotype/velotype/internal/wire"
)

// handleWS upgrades the socket, authenticates the connecting token, and
// auto-enrolls the player in the matchmaking queue (spec §4.4: "join
// requires a valid auth token"; queue entry is implicit on connect since
// the only explicit `join` frame is for binding into an already-paired
// match, spec §4.6). Duplicate connections from the same user replace the
// prior socket per the §4.6 idempotence rule.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := s.verifier.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("httpapi: websocket upgrade failed")
		return
	}

	conn := wire.NewConn(ws, claims.ID, s.dispatch)
	if s.telem != nil {
		conn = conn.WithRateLimitObserver(s.telem.RateLimitDrops.Inc)
	}
	s.registry.attach(claims.ID, conn)

	conn.Send(wire.NewWelcome(claims.ID))

	playerRating, err := s.effectiveRating(r.Context(), claims.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", claims.ID).Msg("httpapi: rating lookup failed, skipping queue join")
	} else {
		s.mm.Join(claims.ID, playerRating)
		if s.telem != nil {
			s.telem.QueueDepth.Set(float64(s.mm.QueueDepth()))
		}
		conn.Send(wire.NewQueued())
	}

	go func() {
		<-conn.Done()
		s.handleDisconnect(claims.ID, conn)
	}()

	go conn.WritePump()
	conn.ReadPump()
}

// dispatch routes one inbound frame to the matchmaking queue or, once a
// join has bound this user to a match, to that match's Room.
func (s *Server) dispatch(c *wire.Conn, f wire.InboundFrame) {
	switch f.Type {
	case wire.InLeave:
		s.mm.Leave(c.UserID)
		return
	case wire.InJoin:
		s.registry.bindMatch(c.UserID, f.MatchID)
		s.manager.Dispatch(f.MatchID, c.UserID, c, f)
		return
	}

	matchID, ok := s.registry.matchFor(c.UserID)
	if !ok {
		c.Send(wire.NewError("not in match"))
		return
	}
	s.manager.Dispatch(matchID, c.UserID, c, f)
}

// handleDisconnect runs once a socket closes for any reason: it pulls the
// user out of the matchmaking queue (a no-op if they were never queued)
// and, if they were bound to a live match, notifies that Room so its
// reconnect-grace timer can start (spec §4.5/§5).
func (s *Server) handleDisconnect(userID string, conn *wire.Conn) {
	s.mm.Leave(userID)
	matchID, bound := s.registry.matchFor(userID)
	current, _ := s.registry.get(userID)
	s.registry.detach(userID, conn)

	if bound && current == conn {
		if room, ok := s.manager.Get(matchID); ok {
			room.Disconnect(userID)
		}
	}
}

// effectiveRating returns the rating matchmaking should pair on: the main
// rating once placement is complete, or a confidence-blended provisional
// estimate from qualifying games played so far (spec §4.3/§4.4), matching
// the same placement-game reconstruction finalize.go uses.
func (s *Server) effectiveRating(ctx context.Context, userID string) (int, error) {
	r, err := s.gateway.GetRating(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !r.InPlacement() {
		return *r.Rating, nil
	}

	played, err := s.gateway.RecentMatchPlayers(ctx, userID, rating.PlacementRequired-1)
	if err != nil {
		return 0, err
	}
	games := make([]rating.PlacementGame, 0, len(played))
	for _, p := range played {
		games = append(games, placementGameFromMatchPlayer(p))
	}
	return rating.ProvisionalRating(games), nil
}

func placementGameFromMatchPlayer(p model.MatchPlayer) rating.PlacementGame {
	return rating.PlacementGame{
		WPM:            p.WPM,
		Accuracy:       p.Accuracy,
		Consistency:    p.Consistency,
		Won:            p.Result == model.ResultWin,
		OpponentRating: p.OpponentRatingAtMatch,
	}
}
