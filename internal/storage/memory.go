package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/velotype/velotype/internal/apperr"
	"github.com/velotype/velotype/internal/model"
)

// MemoryGateway is an in-process Gateway used by tests and by the
// orchestrator/placement unit suites, the same role the teacher's
// persistence layer lets an in-memory double play against the same
// interface as the Postgres implementation.
type MemoryGateway struct {
	mu sync.Mutex

	matches      map[string]model.Match
	players      map[string][2]model.MatchPlayer // matchID -> [a, b]
	playerOrder  map[string][]string              // userID -> matchIDs in insertion order
	ratings      map[string]model.Rating
	dailyScores  map[string]map[string]model.DailyScore // date -> userID -> score
}

// NewMemoryGateway builds an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		matches:     make(map[string]model.Match),
		players:     make(map[string][2]model.MatchPlayer),
		playerOrder: make(map[string][]string),
		ratings:     make(map[string]model.Rating),
		dailyScores: make(map[string]map[string]model.DailyScore),
	}
}

func (g *MemoryGateway) CreateMatch(ctx context.Context, m model.Match, playerA, playerB model.MatchPlayer) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.matches[m.ID] = m
	g.players[m.ID] = [2]model.MatchPlayer{playerA, playerB}
	return nil
}

func (g *MemoryGateway) RecordMatch(ctx context.Context, matchID string, playerA, playerB model.MatchPlayer, status model.MatchStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.matches[matchID]
	if !ok {
		return apperr.Wrap(apperr.KindInternal, "unknown match at finalise time", nil)
	}
	m.Status = status
	g.matches[matchID] = m
	g.players[matchID] = [2]model.MatchPlayer{playerA, playerB}

	g.playerOrder[playerA.UserID] = append(g.playerOrder[playerA.UserID], matchID)
	g.playerOrder[playerB.UserID] = append(g.playerOrder[playerB.UserID], matchID)
	return nil
}

func (g *MemoryGateway) ApplyRatings(ctx context.Context, updates []RatingUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range updates {
		r := g.ratings[u.UserID]
		r.UserID = u.UserID
		newRating := u.NewRating
		r.Rating = &newRating
		r.CompetitiveRating = u.NewCompetitive
		g.ratings[u.UserID] = r
	}
	return nil
}

func (g *MemoryGateway) IncrementPlacement(ctx context.Context, updates []PlacementIncrement) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range updates {
		r := g.ratings[u.UserID]
		r.UserID = u.UserID
		r.PlacementGamesPlayed = u.NewCount
		g.ratings[u.UserID] = r
	}
	return nil
}

func (g *MemoryGateway) UpdatePlacementMMR(ctx context.Context, userID string, initialRating int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.ratings[userID]
	r.UserID = userID
	rating := initialRating
	r.Rating = &rating
	g.ratings[userID] = r
	return nil
}

func (g *MemoryGateway) GetRating(ctx context.Context, userID string) (model.Rating, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.ratings[userID]
	if !ok {
		return model.Rating{UserID: userID}, nil
	}
	return r, nil
}

func (g *MemoryGateway) CountRatingAbove(ctx context.Context, rating int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0
	for _, r := range g.ratings {
		if r.Rating != nil && *r.Rating > rating {
			count++
		}
	}
	return count, nil
}

func (g *MemoryGateway) RecentMatchPlayers(ctx context.Context, userID string, limit int) ([]model.MatchPlayer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	matchIDs := g.playerOrder[userID]
	start := 0
	if len(matchIDs) > limit {
		start = len(matchIDs) - limit
	}

	out := make([]model.MatchPlayer, 0, len(matchIDs)-start)
	for _, mid := range matchIDs[start:] {
		pair := g.players[mid]
		for _, p := range pair {
			if p.UserID == userID {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (g *MemoryGateway) InsertDailyScore(ctx context.Context, score model.DailyScore) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	byUser, ok := g.dailyScores[score.Date]
	if !ok {
		byUser = make(map[string]model.DailyScore)
		g.dailyScores[score.Date] = byUser
	}
	if _, exists := byUser[score.UserID]; exists {
		return apperr.ErrDuplicateDaily
	}
	byUser[score.UserID] = score
	return nil
}

func (g *MemoryGateway) TopDailyScores(ctx context.Context, date string, limit int) ([]model.DailyScore, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byUser := g.dailyScores[date]
	scores := make([]model.DailyScore, 0, len(byUser))
	for _, s := range byUser {
		scores = append(scores, s)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

func (g *MemoryGateway) DailyRank(ctx context.Context, date, userID string) (int, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byUser := g.dailyScores[date]
	if byUser == nil {
		return 0, false, nil
	}
	target, ok := byUser[userID]
	if !ok {
		return 0, false, nil
	}

	rank := 1
	for uid, s := range byUser {
		if uid == userID {
			continue
		}
		if s.Score > target.Score {
			rank++
		}
	}
	return rank, true, nil
}

func (g *MemoryGateway) Health(ctx context.Context) error { return nil }
