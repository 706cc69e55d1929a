package match

import (
	"context"

	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/model"
	"github.com/velotype/velotype/internal/rating"
	"github.com/velotype/velotype/internal/storage"
)

// finalize commits the completed match's persisted outcome in one pass:
// per-player metrics, placement/Elo/Apex/overperformance rating
// resolution, and the Match status flip, exactly once per match (spec
// §4.5 item 2). It runs after RuntimeMatchState has already transitioned
// to PhaseComplete/Finalized, so it is safe to block the room's owner
// goroutine here — no further user-visible transition can race it.
func (r *Room) finalize(ctx context.Context, winner string, draw bool) error {
	if r.gateway == nil {
		return nil
	}

	playerA := r.buildMatchPlayer(r.state.UserA, winner, draw)
	playerB := r.buildMatchPlayer(r.state.UserB, winner, draw)

	ratingA, err := r.gateway.GetRating(ctx, r.state.UserA)
	if err != nil {
		return err
	}
	ratingB, err := r.gateway.GetRating(ctx, r.state.UserB)
	if err != nil {
		return err
	}

	var ratingUpdates []storage.RatingUpdate
	var placementIncrements []storage.PlacementIncrement
	var placementCompletions []struct {
		userID string
		rating int
	}

	playerA.OpponentRatingAtMatch = resolvedRatingPointer(ratingB)
	playerB.OpponentRatingAtMatch = resolvedRatingPointer(ratingA)

	for _, side := range []struct {
		userID   string
		current  model.Rating
		self     *model.MatchPlayer
		opponent model.Rating
	}{
		{r.state.UserA, ratingA, &playerA, ratingB},
		{r.state.UserB, ratingB, &playerB, ratingA},
	} {
		if side.current.InPlacement() {
			newCount := side.current.PlacementGamesPlayed + 1
			placementIncrements = append(placementIncrements, storage.PlacementIncrement{UserID: side.userID, NewCount: newCount})

			if newCount >= rating.PlacementRequired {
				games, err := r.placementGames(ctx, side.userID, *side.self)
				if err != nil {
					return err
				}
				initial := rating.CalculatePlacementRating(games)
				placementCompletions = append(placementCompletions, struct {
					userID string
					rating int
				}{side.userID, initial})
				side.self.RatingAfter = &initial
				if r.telem != nil {
					r.telem.PlacementCompleted.Inc()
				}
			}
			continue
		}

		beforeRating := *side.current.Rating
		side.self.RatingBefore = &beforeRating

		opponentRating := rating.BasePlacementRating
		if side.opponent.Rating != nil {
			opponentRating = *side.opponent.Rating
		}

		delta := metrics.EloDelta(metrics.EloInput{
			PlayerRating:   beforeRating,
			OpponentRating: opponentRating,
			Result:         eloResult(side.self.Result),
			ScoreMargin:    r.state.LastCombatScores[side.userID] - r.state.LastCombatScores[r.state.opponent(side.userID)],
			RemainingHP:    r.state.PlayerHP[side.userID],
			Forfeit:        r.state.ForfeitedUserID == side.userID,
		})

		newMainRating := beforeRating + delta

		recent, err := r.gateway.RecentMatchPlayers(ctx, side.userID, 10)
		if err != nil {
			return err
		}
		recentGames := toRecentGames(recent, *side.self)
		overperf := rating.ApplyOverperformance(newMainRating, recentGames)
		storedDelta := delta
		if overperf.Applied {
			newMainRating = overperf.NewRating
			storedDelta += overperf.PromotionGap
		}

		wasApex := side.current.CompetitiveRating != nil
		newCompetitive := side.current.CompetitiveRating
		if newCompetitive != nil {
			v := rating.ApplyApexDelta(*newCompetitive, delta)
			newCompetitive = &v
		}
		if newMainRating < rating.ApexThreshold {
			newCompetitive = nil
		} else if newCompetitive == nil {
			higher, err := r.gateway.CountRatingAbove(ctx, newMainRating)
			if err != nil {
				return err
			}
			if rating.ApexEligible(newMainRating, rating.LeaderboardPosition(higher)) {
				zero := 0
				newCompetitive = &zero
			}
		}
		if r.telem != nil {
			switch {
			case !wasApex && newCompetitive != nil:
				r.telem.ApexPromotions.Inc()
			case wasApex && newCompetitive == nil:
				r.telem.ApexDemotions.Inc()
			}
		}

		side.self.RatingAfter = &newMainRating
		side.self.RatingDelta = storedDelta
		ratingUpdates = append(ratingUpdates, storage.RatingUpdate{UserID: side.userID, NewRating: newMainRating, NewCompetitive: newCompetitive})
	}

	if err := r.gateway.RecordMatch(ctx, r.state.MatchID, playerA, playerB, model.MatchCompleted); err != nil {
		return err
	}
	if len(placementIncrements) > 0 {
		if err := r.gateway.IncrementPlacement(ctx, placementIncrements); err != nil {
			return err
		}
	}
	for _, pc := range placementCompletions {
		if err := r.gateway.UpdatePlacementMMR(ctx, pc.userID, pc.rating); err != nil {
			return err
		}
	}
	if len(ratingUpdates) > 0 {
		if err := r.gateway.ApplyRatings(ctx, ratingUpdates); err != nil {
			return err
		}
	}
	return nil
}

func resolvedRatingPointer(r model.Rating) *int {
	if r.Rating == nil {
		base := rating.BasePlacementRating
		return &base
	}
	return r.Rating
}

// buildMatchPlayer assembles the persisted per-player row from the
// runtime aggregates (spec §4.5 item 1: averages for rate-like fields,
// sums for counters).
func (r *Room) buildMatchPlayer(userID, winner string, draw bool) model.MatchPlayer {
	agg := r.state.Aggregates[userID]
	wpm, rawWPM, accuracy, consistency, score := agg.averages()

	result := model.ResultLoss
	switch {
	case draw:
		result = model.ResultDraw
	case winner == userID:
		result = model.ResultWin
	}

	return model.MatchPlayer{
		MatchID:         r.state.MatchID,
		UserID:          userID,
		WPM:             wpm,
		RawWPM:          rawWPM,
		Accuracy:        accuracy,
		Consistency:     consistency,
		Score:           score,
		Result:          result,
		DamageDealt:     agg.DamageDealt,
		DamageTaken:     agg.DamageTaken,
		Errors:          agg.Errors,
		CorrectChars:    agg.CorrectChars,
		TotalTyped:      agg.TotalTyped,
		ProgressSamples: agg.ProgressSamples,
	}
}

// placementGames assembles the chronological qualifying-game history for
// a player about to complete placement: their prior qualifying matches
// plus this one, in order (spec §4.3).
func (r *Room) placementGames(ctx context.Context, userID string, self model.MatchPlayer) ([]rating.PlacementGame, error) {
	prior, err := r.gateway.RecentMatchPlayers(ctx, userID, rating.PlacementRequired-1)
	if err != nil {
		return nil, err
	}

	games := make([]rating.PlacementGame, 0, len(prior)+1)
	for _, p := range prior {
		games = append(games, matchPlayerToPlacementGame(p))
	}
	games = append(games, matchPlayerToPlacementGame(self))
	return games, nil
}

func matchPlayerToPlacementGame(p model.MatchPlayer) rating.PlacementGame {
	return rating.PlacementGame{
		WPM:            p.WPM,
		Accuracy:       p.Accuracy,
		Consistency:    p.Consistency,
		Won:            p.Result == model.ResultWin,
		OpponentRating: p.OpponentRatingAtMatch,
	}
}

func toRecentGames(history []model.MatchPlayer, self model.MatchPlayer) []rating.RecentGame {
	out := make([]rating.RecentGame, 0, len(history)+1)
	for _, p := range history {
		wpm, acc := p.WPM, p.Accuracy
		out = append(out, rating.RecentGame{WPM: &wpm, Accuracy: &acc})
	}
	wpm, acc := self.WPM, self.Accuracy
	out = append(out, rating.RecentGame{WPM: &wpm, Accuracy: &acc})
	return out
}

func eloResult(r model.RoundResult) metrics.Result {
	switch r {
	case model.ResultWin:
		return metrics.ResultWin
	case model.ResultDraw:
		return metrics.ResultDraw
	default:
		return metrics.ResultLoss
	}
}
